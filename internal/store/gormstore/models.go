package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Company represents the companies table. A row never exists without a
// Stripe Connect account id.
type Company struct {
	CompanyID            string         `gorm:"type:uuid;primaryKey" json:"companyId"`
	Name                 string         `gorm:"not null;uniqueIndex" json:"name"`
	Address              string         `json:"address"`
	ContactEmail         string         `gorm:"not null" json:"contactEmail"`
	ContactPhone         string         `json:"contactPhone"`
	StripeAccountID      string         `gorm:"not null;uniqueIndex" json:"stripeAccountId"`
	OnboardingComplete   bool           `gorm:"not null;default:false" json:"onboardingComplete"`
	Requirements         datatypes.JSON `gorm:"type:jsonb" json:"requirements,omitempty"`
	LastRequirementsSync *time.Time     `json:"lastRequirementsSync,omitempty"`
	Status               string         `gorm:"not null;default:'enabled'" json:"status"`
	CreatedAt            time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt            time.Time      `gorm:"not null" json:"updatedAt"`
}

func (Company) TableName() string { return "companies" }

func (company *Company) BeforeCreate(tx *gorm.DB) error {
	if company.CompanyID == "" {
		company.CompanyID = uuid.NewString()
	}
	return nil
}

// CompanyStatus values accepted by the API.
const (
	CompanyStatusEnabled  = "enabled"
	CompanyStatusDisabled = "disabled"
)

// StorageFacility represents the storage_facilities table.
type StorageFacility struct {
	FacilityID string         `gorm:"type:uuid;primaryKey" json:"facilityId"`
	Name       string         `gorm:"not null;uniqueIndex" json:"name"`
	Address    string         `json:"address"`
	CompanyID  string         `gorm:"type:uuid;not null;index" json:"companyId"`
	ManagerID  *string        `gorm:"type:uuid" json:"managerId,omitempty"`
	Settings   datatypes.JSON `gorm:"type:jsonb" json:"settings,omitempty"`
	Status     string         `gorm:"not null;default:'pending_deployment'" json:"status"`
	CreatedAt  time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updatedAt"`
}

func (StorageFacility) TableName() string { return "storage_facilities" }

func (facility *StorageFacility) BeforeCreate(tx *gorm.DB) error {
	if facility.FacilityID == "" {
		facility.FacilityID = uuid.NewString()
	}
	return nil
}

// FacilityStatus values accepted by the API.
const (
	FacilityStatusPendingDeployment = "pending_deployment"
	FacilityStatusEnabled           = "enabled"
	FacilityStatusDisabled          = "disabled"
	FacilityStatusMaintenance       = "maintenance"
)

// StorageUnit represents the storage_units table. The tenant_id column is the
// single source of truth for occupancy; a tenant's unit list is derived from it.
type StorageUnit struct {
	UnitID             string     `gorm:"type:uuid;primaryKey" json:"unitId"`
	FacilityID         string     `gorm:"type:uuid;not null;index:idx_units_facility_number,unique,priority:1" json:"facilityId"`
	UnitNumber         string     `gorm:"not null;index:idx_units_facility_number,unique,priority:2" json:"unitNumber"`
	Size               string     `json:"size"`
	TenantID           *string    `gorm:"type:uuid;index" json:"tenantId,omitempty"`
	ClimateControlled  bool       `gorm:"not null;default:false" json:"climateControlled"`
	SecurityLevel      string     `json:"securityLevel"`
	PricePerMonthCents int64      `gorm:"not null;default:0" json:"pricePerMonthCents"`
	BalanceCents       int64      `gorm:"not null;default:0" json:"balanceCents"`
	StripePriceID      string     `json:"stripePriceId,omitempty"`
	MoveInDate         *time.Time `json:"moveInDate,omitempty"`
	LastMoveOutDate    *time.Time `json:"lastMoveOutDate,omitempty"`
	Availability       bool       `gorm:"not null;default:true" json:"availability"`
	Status             string     `gorm:"not null;default:'vacant'" json:"status"`
	CreatedAt          time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"not null" json:"updatedAt"`
}

func (StorageUnit) TableName() string { return "storage_units" }

func (unit *StorageUnit) BeforeCreate(tx *gorm.DB) error {
	if unit.UnitID == "" {
		unit.UnitID = uuid.NewString()
	}
	return nil
}

// UnitNote represents the unit_notes table.
type UnitNote struct {
	NoteID    string     `gorm:"type:uuid;primaryKey" json:"noteId"`
	UnitID    string     `gorm:"type:uuid;not null;index" json:"unitId"`
	Body      string     `gorm:"not null" json:"body"`
	RespondBy *time.Time `json:"respondBy,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"createdAt"`
}

func (UnitNote) TableName() string { return "unit_notes" }

func (note *UnitNote) BeforeCreate(tx *gorm.DB) error {
	if note.NoteID == "" {
		note.NoteID = uuid.NewString()
	}
	return nil
}

// Tenant represents the tenants table. The recurring balance is tracked here;
// per-unit move-in charges live on storage_units.
type Tenant struct {
	TenantID     string    `gorm:"type:uuid;primaryKey" json:"tenantId"`
	FirstName    string    `gorm:"not null" json:"firstName"`
	LastName     string    `gorm:"not null" json:"lastName"`
	Email        string    `gorm:"not null;uniqueIndex" json:"email"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	AccessCode   string    `json:"accessCode"`
	BalanceCents int64     `gorm:"not null;default:0" json:"balanceCents"`
	Status       string    `gorm:"not null;default:'new'" json:"status"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null" json:"updatedAt"`
}

func (Tenant) TableName() string { return "tenants" }

func (tenant *Tenant) BeforeCreate(tx *gorm.DB) error {
	if tenant.TenantID == "" {
		tenant.TenantID = uuid.NewString()
	}
	return nil
}

// TenantNote represents the tenant_notes table.
type TenantNote struct {
	NoteID    string    `gorm:"type:uuid;primaryKey" json:"noteId"`
	TenantID  string    `gorm:"type:uuid;not null;index" json:"tenantId"`
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (TenantNote) TableName() string { return "tenant_notes" }

func (note *TenantNote) BeforeCreate(tx *gorm.DB) error {
	if note.NoteID == "" {
		note.NoteID = uuid.NewString()
	}
	return nil
}

// Event mirrors the events table. Append-only: rows are never updated or deleted.
type Event struct {
	EventID    int64     `gorm:"primaryKey;autoIncrement" json:"eventId"`
	EventType  string    `gorm:"not null;index" json:"eventType"`
	EventName  string    `gorm:"not null" json:"eventName"`
	FacilityID *string   `gorm:"type:uuid;index" json:"facilityId,omitempty"`
	Message    string    `gorm:"not null" json:"message"`
	CreatedAt  time.Time `gorm:"not null;index" json:"createdAt"`
}

func (Event) TableName() string { return "events" }

// Rental records a public-checkout attempt, keyed by the Stripe session.
type Rental struct {
	RentalID          string         `gorm:"type:uuid;primaryKey" json:"rentalId"`
	CompanyID         string         `gorm:"type:uuid;not null;index" json:"companyId"`
	FacilityID        string         `gorm:"type:uuid;not null" json:"facilityId"`
	UnitID            string         `gorm:"type:uuid;not null" json:"unitId"`
	BuyerName         string         `json:"buyerName"`
	BuyerEmail        string         `gorm:"not null" json:"buyerEmail"`
	BuyerPhone        string         `json:"buyerPhone"`
	CheckoutSessionID string         `gorm:"not null;uniqueIndex" json:"checkoutSessionId"`
	StripePriceID     string         `json:"stripePriceId"`
	Status            string         `gorm:"not null;default:'pending'" json:"status"`
	Metadata          datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updatedAt"`
}

func (Rental) TableName() string { return "rentals" }

func (rental *Rental) BeforeCreate(tx *gorm.DB) error {
	if rental.RentalID == "" {
		rental.RentalID = uuid.NewString()
	}
	return nil
}

// RentalStatus values for the public checkout lifecycle.
const (
	RentalStatusPending    = "pending"
	RentalStatusProcessing = "processing"
	RentalStatusPaid       = "paid"
	RentalStatusFailed     = "failed"
	RentalStatusCanceled   = "canceled"
)

// Payment records a direct payment-intent charge.
type Payment struct {
	PaymentID             string    `gorm:"type:uuid;primaryKey" json:"paymentId"`
	TenantID              string    `gorm:"type:uuid;not null;index" json:"tenantId"`
	UnitID                string    `gorm:"type:uuid;not null" json:"unitId"`
	AmountCents           int64     `gorm:"not null" json:"amountCents"`
	StripePaymentIntentID string    `gorm:"not null;uniqueIndex" json:"stripePaymentIntentId"`
	CreatedAt             time.Time `gorm:"not null" json:"createdAt"`
}

func (Payment) TableName() string { return "payments" }

func (payment *Payment) BeforeCreate(tx *gorm.DB) error {
	if payment.PaymentID == "" {
		payment.PaymentID = uuid.NewString()
	}
	return nil
}

// User represents an API operator account.
type User struct {
	UserID       string    `gorm:"type:uuid;primaryKey" json:"userId"`
	Email        string    `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null" json:"role"`
	CompanyID    *string   `gorm:"type:uuid" json:"companyId,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
}

func (User) TableName() string { return "users" }

func (user *User) BeforeCreate(tx *gorm.DB) error {
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	return nil
}

// Roles understood by the authorization policy.
const (
	RoleSystemAdmin  = "system_admin"
	RoleSystemUser   = "system_user"
	RoleCompanyAdmin = "company_admin"
)

// AllModels lists every table for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Company{},
		&StorageFacility{},
		&StorageUnit{},
		&UnitNote{},
		&Tenant{},
		&TenantNote{},
		&Event{},
		&Rental{},
		&Payment{},
		&User{},
	}
}
