package stripeconnect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/storagehub/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// HandleWebhook verifies a Stripe event signature and processes the events the
// rental flow cares about. Unknown event types are acknowledged and skipped.
func (service *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := webhook.ConstructEvent(payload, signatureHeader, service.config.WebhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
	}
	switch string(event.Type) {
	case eventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
		}
		return service.completeCheckout(ctx, session.ID)
	default:
		service.logger.Debug("ignoring stripe event", zap.String("event_type", string(event.Type)))
		return nil
	}
}

// completeCheckout closes the rental loop: the pending rental flips to paid
// and the buyer becomes a tenant holding the unit. Replayed events for a
// settled rental are acknowledged without side effects.
func (service *Service) completeCheckout(ctx context.Context, checkoutSessionID string) error {
	rental, err := service.store.GetRentalBySession(ctx, checkoutSessionID)
	if err != nil {
		return err
	}
	if rental.Status == gormstore.RentalStatusPaid {
		return nil
	}

	unitID, err := occupancy.NewUnitID(rental.UnitID)
	if err != nil {
		return err
	}
	firstName, lastName := splitBuyerName(rental.BuyerName)
	input := occupancy.NewTenantInput{
		FirstName: firstName,
		LastName:  lastName,
		Email:     rental.BuyerEmail,
		Phone:     rental.BuyerPhone,
	}
	tenantID, rentErr := service.occupancy.RentUnits(ctx, input, []occupancy.UnitID{unitID}, true)
	if rentErr != nil {
		if statusErr := service.store.SetRentalStatusBySession(ctx, checkoutSessionID, gormstore.RentalStatusFailed); statusErr != nil {
			service.logger.Error("rental status update failed", zap.String("session_id", checkoutSessionID), zap.Error(statusErr))
		}
		return rentErr
	}
	if err := service.store.SetRentalStatusBySession(ctx, checkoutSessionID, gormstore.RentalStatusPaid); err != nil {
		return err
	}
	facilityID, idErr := occupancy.NewFacilityID(rental.FacilityID)
	if idErr == nil {
		service.appendEvent(ctx, occupancy.EventTypeRental, occupancy.EventNameCheckoutCompleted, &facilityID,
			fmt.Sprintf("checkout %s completed, tenant %s now holds unit %s", checkoutSessionID, tenantID.String(), rental.UnitID))
	}
	return nil
}

// splitBuyerName derives first and last name fields from a free-form buyer
// name. A single word fills both so tenant validation passes.
func splitBuyerName(buyerName string) (string, string) {
	parts := strings.Fields(buyerName)
	switch len(parts) {
	case 0:
		return "Storage", "Renter"
	case 1:
		return parts[0], parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
