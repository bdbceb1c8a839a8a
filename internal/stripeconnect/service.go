package stripeconnect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/storagehub/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Errors surfaced by the Stripe integration.
var (
	ErrInvalidConfig         = errors.New("invalid stripeconnect config")
	ErrInvalidCompanyInput   = errors.New("invalid company input")
	ErrCompanyNotOnboarded   = errors.New("company has not completed onboarding")
	ErrUnitNotListed         = errors.New("unit has no published price")
	ErrPriceInactive         = errors.New("price is not active")
	ErrUnitNotInFacility     = errors.New("unit does not belong to facility")
	ErrRentalAlreadySettled  = errors.New("rental already settled")
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")
)

const (
	metadataUnitID      = "unit_id"
	metadataFacilityID  = "facility_id"
	metadataCompanyID   = "company_id"
	metadataInitiatedBy = "initiated_by"

	initiatorPublic   = "public"
	initiatorOperator = "operator"

	eventCheckoutSessionCompleted = "checkout.session.completed"
)

// Config carries the URLs and keys the Connect flows need. The onboarding and
// checkout redirect targets point at the operator frontend.
type Config struct {
	OnboardingReturnURL  string
	OnboardingRefreshURL string
	CheckoutSuccessURL   string
	CheckoutCancelURL    string
	WebhookSecret        string
}

// Validate checks that every redirect target is present.
func (config Config) Validate() error {
	for name, value := range map[string]string{
		"onboarding return url":  config.OnboardingReturnURL,
		"onboarding refresh url": config.OnboardingRefreshURL,
		"checkout success url":   config.CheckoutSuccessURL,
		"checkout cancel url":    config.CheckoutCancelURL,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, name)
		}
	}
	return nil
}

// Service implements company provisioning, onboarding, and checkout against
// Stripe Connect Express accounts.
type Service struct {
	api       API
	store     *gormstore.Store
	occupancy *occupancy.Service
	config    Config
	logger    *zap.Logger
	nowFn     func() time.Time
}

// NewService wires a Service.
func NewService(api API, store *gormstore.Store, occupancyService *occupancy.Service, config Config, logger *zap.Logger) (*Service, error) {
	if api == nil {
		return nil, fmt.Errorf("%w: api dependency is nil", ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidConfig)
	}
	if occupancyService == nil {
		return nil, fmt.Errorf("%w: occupancy dependency is nil", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:       api,
		store:     store,
		occupancy: occupancyService,
		config:    config,
		logger:    logger,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the service clock.
func (service *Service) WithClock(nowFn func() time.Time) *Service {
	if nowFn != nil {
		service.nowFn = nowFn
	}
	return service
}

// NewCompanyInput carries the fields for company provisioning.
type NewCompanyInput struct {
	Name         string
	Address      string
	ContactEmail string
	ContactPhone string
}

// Validate checks the required fields.
func (input NewCompanyInput) Validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCompanyInput)
	}
	if strings.TrimSpace(input.ContactEmail) == "" {
		return fmt.Errorf("%w: contact email is required", ErrInvalidCompanyInput)
	}
	return nil
}

// ProvisionCompany creates the Stripe Express account first and only then
// persists the company row, so a stored company always carries an account id.
func (service *Service) ProvisionCompany(ctx context.Context, input NewCompanyInput) (gormstore.Company, error) {
	if err := input.Validate(); err != nil {
		return gormstore.Company{}, err
	}
	accountParams := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(input.ContactEmail),
		BusinessProfile: &stripe.AccountBusinessProfileParams{
			Name: stripe.String(input.Name),
		},
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	account, err := service.api.NewAccount(accountParams)
	if err != nil {
		return gormstore.Company{}, fmt.Errorf("create stripe account: %w", err)
	}

	company := gormstore.Company{
		Name:            input.Name,
		Address:         input.Address,
		ContactEmail:    input.ContactEmail,
		ContactPhone:    input.ContactPhone,
		StripeAccountID: account.ID,
		Status:          gormstore.CompanyStatusEnabled,
	}
	if err := service.store.CreateCompany(ctx, &company); err != nil {
		// The Stripe account is orphaned here; it holds no funds and expires
		// unused, so we only log it.
		service.logger.Warn("company row creation failed after stripe account was provisioned",
			zap.String("stripe_account_id", account.ID), zap.Error(err))
		return gormstore.Company{}, err
	}
	service.appendEvent(ctx, occupancy.EventTypeCompany, occupancy.EventNameCreated, nil,
		fmt.Sprintf("company %s provisioned with stripe account %s", company.Name, account.ID))
	return company, nil
}

// OnboardingLink returns a fresh account-onboarding URL for the company.
func (service *Service) OnboardingLink(ctx context.Context, companyID string) (string, error) {
	company, err := service.store.GetCompany(ctx, companyID)
	if err != nil {
		return "", err
	}
	linkParams := &stripe.AccountLinkParams{
		Account:    stripe.String(company.StripeAccountID),
		ReturnURL:  stripe.String(service.config.OnboardingReturnURL),
		RefreshURL: stripe.String(service.config.OnboardingRefreshURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	link, err := service.api.NewAccountLink(linkParams)
	if err != nil {
		return "", fmt.Errorf("create account link: %w", err)
	}
	return link.URL, nil
}

// SyncRequirements pulls the account's outstanding requirements from Stripe
// and stores them on the company. Onboarding flips to complete once details
// are submitted and charges are enabled.
func (service *Service) SyncRequirements(ctx context.Context, companyID string) (gormstore.Company, error) {
	company, err := service.store.GetCompany(ctx, companyID)
	if err != nil {
		return gormstore.Company{}, err
	}
	account, err := service.api.GetAccount(company.StripeAccountID, nil)
	if err != nil {
		return gormstore.Company{}, fmt.Errorf("fetch stripe account: %w", err)
	}

	requirements, err := json.Marshal(account.Requirements)
	if err != nil {
		return gormstore.Company{}, fmt.Errorf("encode requirements: %w", err)
	}
	now := service.nowFn()
	onboardingComplete := account.DetailsSubmitted && account.ChargesEnabled
	fields := map[string]interface{}{
		"requirements":           requirements,
		"last_requirements_sync": now,
		"onboarding_complete":    onboardingComplete,
	}
	if err := service.store.UpdateCompany(ctx, companyID, fields); err != nil {
		return gormstore.Company{}, err
	}
	service.appendEvent(ctx, occupancy.EventTypeCompany, occupancy.EventNameOnboardingSynced, nil,
		fmt.Sprintf("company %s requirements synced, onboarding complete: %v", companyID, onboardingComplete))
	return service.store.GetCompany(ctx, companyID)
}

// CheckoutInput starts a rental checkout for one unit.
type CheckoutInput struct {
	FacilityID string
	UnitID     string
	BuyerName  string
	BuyerEmail string
	BuyerPhone string
}

// Validate checks the required checkout fields.
func (input CheckoutInput) Validate() error {
	if strings.TrimSpace(input.FacilityID) == "" || strings.TrimSpace(input.UnitID) == "" {
		return fmt.Errorf("%w: facility and unit are required", ErrInvalidCompanyInput)
	}
	if strings.TrimSpace(input.BuyerEmail) == "" {
		return fmt.Errorf("%w: buyer email is required", ErrInvalidCompanyInput)
	}
	return nil
}

// CheckoutResult returns the created session to the caller.
type CheckoutResult struct {
	SessionID   string
	CheckoutURL string
}

// CreatePublicCheckout opens a checkout session from the unauthenticated
// storefront.
func (service *Service) CreatePublicCheckout(ctx context.Context, input CheckoutInput) (CheckoutResult, error) {
	return service.createCheckout(ctx, input, initiatorPublic)
}

// CreateOperatorCheckout opens a checkout session on behalf of a walk-in
// renter. The HTTP layer is responsible for company scoping before calling.
func (service *Service) CreateOperatorCheckout(ctx context.Context, input CheckoutInput) (CheckoutResult, error) {
	return service.createCheckout(ctx, input, initiatorOperator)
}

// createCheckout verifies the unit is rentable and opens a Stripe checkout
// session on the owning company's connected account. The rental row is
// recorded as pending, keyed by the session id.
func (service *Service) createCheckout(ctx context.Context, input CheckoutInput, initiatedBy string) (CheckoutResult, error) {
	if err := input.Validate(); err != nil {
		return CheckoutResult{}, err
	}
	facility, err := service.store.GetFacility(ctx, input.FacilityID)
	if err != nil {
		return CheckoutResult{}, err
	}
	unit, err := service.store.GetUnitModel(ctx, input.UnitID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if unit.FacilityID != facility.FacilityID {
		return CheckoutResult{}, ErrUnitNotInFacility
	}
	if unit.Status != occupancy.UnitStatusVacant.String() || !unit.Availability {
		return CheckoutResult{}, occupancy.ErrUnitOccupied
	}
	if unit.StripePriceID == "" {
		return CheckoutResult{}, ErrUnitNotListed
	}
	company, err := service.store.GetCompany(ctx, facility.CompanyID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if !company.OnboardingComplete {
		return CheckoutResult{}, ErrCompanyNotOnboarded
	}

	priceParams := &stripe.PriceParams{}
	priceParams.SetStripeAccount(company.StripeAccountID)
	price, err := service.api.GetPrice(unit.StripePriceID, priceParams)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("fetch price: %w", err)
	}
	if !price.Active {
		return CheckoutResult{}, ErrPriceInactive
	}

	mode := stripe.CheckoutSessionModePayment
	if price.Type == stripe.PriceTypeRecurring {
		mode = stripe.CheckoutSessionModeSubscription
	}
	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(unit.StripePriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:    stripe.String(service.config.CheckoutSuccessURL),
		CancelURL:     stripe.String(service.config.CheckoutCancelURL),
		CustomerEmail: stripe.String(input.BuyerEmail),
	}
	sessionParams.SetStripeAccount(company.StripeAccountID)
	sessionParams.AddMetadata(metadataUnitID, unit.UnitID)
	sessionParams.AddMetadata(metadataFacilityID, facility.FacilityID)
	sessionParams.AddMetadata(metadataCompanyID, company.CompanyID)
	sessionParams.AddMetadata(metadataInitiatedBy, initiatedBy)

	session, err := service.api.NewCheckoutSession(sessionParams)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("create checkout session: %w", err)
	}

	metadata, err := json.Marshal(map[string]string{metadataInitiatedBy: initiatedBy})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("encode rental metadata: %w", err)
	}
	rental := gormstore.Rental{
		CompanyID:         company.CompanyID,
		FacilityID:        facility.FacilityID,
		UnitID:            unit.UnitID,
		BuyerName:         input.BuyerName,
		BuyerEmail:        input.BuyerEmail,
		BuyerPhone:        input.BuyerPhone,
		CheckoutSessionID: session.ID,
		StripePriceID:     unit.StripePriceID,
		Status:            gormstore.RentalStatusPending,
		Metadata:          datatypes.JSON(metadata),
	}
	if err := service.store.CreateRental(ctx, &rental); err != nil {
		return CheckoutResult{}, err
	}
	facilityID, idErr := occupancy.NewFacilityID(facility.FacilityID)
	if idErr == nil {
		service.appendEvent(ctx, occupancy.EventTypeRental, occupancy.EventNameCheckoutStarted, &facilityID,
			fmt.Sprintf("checkout started for unit %s by %s", unit.UnitNumber, input.BuyerEmail))
	}
	return CheckoutResult{SessionID: session.ID, CheckoutURL: session.URL}, nil
}

// CollectPayment charges a tenant's outstanding unit balance through a payment
// intent on the owning company's connected account, then records the payment.
func (service *Service) CollectPayment(ctx context.Context, tenantID string, unitID string, amountCents int64) (gormstore.Payment, error) {
	if amountCents <= 0 {
		return gormstore.Payment{}, fmt.Errorf("%w: amount must be positive", ErrInvalidCompanyInput)
	}
	tenant, err := service.store.GetTenantModel(ctx, tenantID)
	if err != nil {
		return gormstore.Payment{}, err
	}
	unit, err := service.store.GetUnitModel(ctx, unitID)
	if err != nil {
		return gormstore.Payment{}, err
	}
	if unit.TenantID == nil || *unit.TenantID != tenant.TenantID {
		return gormstore.Payment{}, occupancy.ErrUnitNotHeldByTenant
	}
	facility, err := service.store.GetFacility(ctx, unit.FacilityID)
	if err != nil {
		return gormstore.Payment{}, err
	}
	company, err := service.store.GetCompany(ctx, facility.CompanyID)
	if err != nil {
		return gormstore.Payment{}, err
	}

	intentParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		PaymentMethodTypes: []*string{
			stripe.String("card"),
		},
		ReceiptEmail: stripe.String(tenant.Email),
	}
	intentParams.SetStripeAccount(company.StripeAccountID)
	intent, err := service.api.NewPaymentIntent(intentParams)
	if err != nil {
		return gormstore.Payment{}, fmt.Errorf("create payment intent: %w", err)
	}

	payment := gormstore.Payment{
		TenantID:              tenant.TenantID,
		UnitID:                unit.UnitID,
		AmountCents:           amountCents,
		StripePaymentIntentID: intent.ID,
	}
	if err := service.store.CreatePayment(ctx, &payment); err != nil {
		return gormstore.Payment{}, err
	}
	facilityID, idErr := occupancy.NewFacilityID(facility.FacilityID)
	if idErr == nil {
		service.appendEvent(ctx, occupancy.EventTypePayment, occupancy.EventNameCreated, &facilityID,
			fmt.Sprintf("payment of %d cents collected from tenant %s for unit %s", amountCents, tenant.TenantID, unit.UnitNumber))
	}
	return payment, nil
}

func (service *Service) appendEvent(ctx context.Context, eventType occupancy.EventType, eventName occupancy.EventName, facilityID *occupancy.FacilityID, message string) {
	event, err := occupancy.NewEvent(eventType, eventName, facilityID, message, service.nowFn().Unix())
	if err != nil {
		service.logger.Warn("audit event rejected", zap.Error(err))
		return
	}
	if err := service.store.AppendEvent(ctx, event); err != nil {
		service.logger.Warn("audit event append failed", zap.Error(err))
	}
}
