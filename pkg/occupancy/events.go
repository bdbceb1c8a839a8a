package occupancy

import "fmt"

// EventType groups audit records by the entity they concern.
type EventType string

const (
	EventTypeCompany  EventType = "company"
	EventTypeFacility EventType = "facility"
	EventTypeUnit     EventType = "unit"
	EventTypeTenant   EventType = "tenant"
	EventTypeRental   EventType = "rental"
	EventTypePayment  EventType = "payment"
	EventTypeBilling  EventType = "billing"
)

// String returns the type value.
func (eventType EventType) String() string { return string(eventType) }

// ParseEventType validates a raw event type value.
func ParseEventType(raw string) (EventType, error) {
	switch EventType(raw) {
	case EventTypeCompany, EventTypeFacility, EventTypeUnit, EventTypeTenant,
		EventTypeRental, EventTypePayment, EventTypeBilling:
		return EventType(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEventType, raw)
}

// EventName identifies the action an audit record describes.
type EventName string

const (
	EventNameCreated           EventName = "created"
	EventNameUpdated           EventName = "updated"
	EventNameDeleted           EventName = "deleted"
	EventNameRented            EventName = "rented"
	EventNameMovedOut          EventName = "moved_out"
	EventNameMarkedDelinquent  EventName = "marked_delinquent"
	EventNameBalanceAccrued    EventName = "balance_accrued"
	EventNameCheckoutStarted   EventName = "checkout_started"
	EventNameCheckoutCompleted EventName = "checkout_completed"
	EventNameOnboardingSynced  EventName = "onboarding_synced"
)

// String returns the name value.
func (eventName EventName) String() string { return string(eventName) }

// ParseEventName validates a raw event name value.
func ParseEventName(raw string) (EventName, error) {
	switch EventName(raw) {
	case EventNameCreated, EventNameUpdated, EventNameDeleted, EventNameRented,
		EventNameMovedOut, EventNameMarkedDelinquent, EventNameBalanceAccrued,
		EventNameCheckoutStarted, EventNameCheckoutCompleted, EventNameOnboardingSynced:
		return EventName(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEventName, raw)
}

// Event is a single append-only audit record. Events are never updated or deleted.
type Event struct {
	Type           EventType
	Name           EventName
	FacilityID     *FacilityID
	Message        string
	CreatedUnixUTC int64
}

// NewEvent validates an audit record before it is appended.
func NewEvent(eventType EventType, eventName EventName, facilityID *FacilityID, message string, createdUnixUTC int64) (Event, error) {
	if _, err := ParseEventType(eventType.String()); err != nil {
		return Event{}, err
	}
	if _, err := ParseEventName(eventName.String()); err != nil {
		return Event{}, err
	}
	return Event{
		Type:           eventType,
		Name:           eventName,
		FacilityID:     facilityID,
		Message:        message,
		CreatedUnixUTC: createdUnixUTC,
	}, nil
}
