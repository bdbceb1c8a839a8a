package occupancy

import (
	"context"
	"fmt"
	"strings"
)

// AmountCents is an integer currency amount in cents. Balances may be zero.
type AmountCents int64

// Int64 returns the raw cents value.
func (amount AmountCents) Int64() int64 { return int64(amount) }

// NewAmountCents validates a non-negative amount.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// CompanyID identifies a platform company.
type CompanyID struct {
	value string
}

// FacilityID identifies a storage facility.
type FacilityID struct {
	value string
}

// UnitID identifies a storage unit.
type UnitID struct {
	value string
}

// TenantID identifies a renter.
type TenantID struct {
	value string
}

// NewCompanyID validates and normalizes a company id.
func NewCompanyID(raw string) (CompanyID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CompanyID{}, fmt.Errorf("%w: empty value", ErrInvalidCompanyID)
	}
	return CompanyID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CompanyID) String() string { return id.value }

// NewFacilityID validates and normalizes a facility id.
func NewFacilityID(raw string) (FacilityID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return FacilityID{}, fmt.Errorf("%w: empty value", ErrInvalidFacilityID)
	}
	return FacilityID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id FacilityID) String() string { return id.value }

// NewUnitID validates and normalizes a unit id.
func NewUnitID(raw string) (UnitID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UnitID{}, fmt.Errorf("%w: empty value", ErrInvalidUnitID)
	}
	return UnitID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UnitID) String() string { return id.value }

// NewTenantID validates and normalizes a tenant id.
func NewTenantID(raw string) (TenantID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TenantID{}, fmt.Errorf("%w: empty value", ErrInvalidTenantID)
	}
	return TenantID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TenantID) String() string { return id.value }

// UnitStatus defines the unit occupancy lifecycle.
type UnitStatus string

const (
	UnitStatusVacant     UnitStatus = "vacant"
	UnitStatusRented     UnitStatus = "rented"
	UnitStatusDelinquent UnitStatus = "delinquent"
)

// String returns the status value.
func (status UnitStatus) String() string { return string(status) }

// ParseUnitStatus validates a raw unit status value.
func ParseUnitStatus(raw string) (UnitStatus, error) {
	switch UnitStatus(raw) {
	case UnitStatusVacant, UnitStatusRented, UnitStatusDelinquent:
		return UnitStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidUnitStatus, raw)
}

// TenantStatus defines the renter lifecycle.
type TenantStatus string

const (
	TenantStatusNew        TenantStatus = "new"
	TenantStatusActive     TenantStatus = "active"
	TenantStatusDelinquent TenantStatus = "delinquent"
	TenantStatusDisabled   TenantStatus = "disabled"
)

// String returns the status value.
func (status TenantStatus) String() string { return string(status) }

// ParseTenantStatus validates a raw tenant status value.
func ParseTenantStatus(raw string) (TenantStatus, error) {
	switch TenantStatus(raw) {
	case TenantStatusNew, TenantStatusActive, TenantStatusDelinquent, TenantStatusDisabled:
		return TenantStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTenantStatus, raw)
}

// Unit is the occupancy view of a storage unit.
type Unit struct {
	UnitID             UnitID
	FacilityID         FacilityID
	TenantID           *TenantID
	UnitNumber         string
	Status             UnitStatus
	Available          bool
	PricePerMonthCents AmountCents
	BalanceCents       AmountCents
}

// Occupied reports whether a tenant currently holds the unit.
func (unit Unit) Occupied() bool { return unit.TenantID != nil }

// Tenant is the occupancy view of a renter.
type Tenant struct {
	TenantID     TenantID
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Address      string
	AccessCode   string
	Status       TenantStatus
	BalanceCents AmountCents
}

// NewTenantInput carries the validated fields for tenant creation.
type NewTenantInput struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Address    string
	AccessCode string
}

// Validate checks the required identity fields.
func (input NewTenantInput) Validate() error {
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", ErrInvalidTenantInput)
	}
	if strings.TrimSpace(input.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidTenantInput)
	}
	return nil
}

// Store is the persistence contract used by Service.
// (gormstore implements this.)
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetUnit(ctx context.Context, unitID UnitID) (Unit, error)
	ClaimUnit(ctx context.Context, unitID UnitID, tenantID TenantID, moveInUnixUTC int64, balanceCents AmountCents) error
	ReleaseUnit(ctx context.Context, unitID UnitID, tenantID TenantID, moveOutUnixUTC int64) error
	DeleteUnit(ctx context.Context, unitID UnitID) error

	CreateTenant(ctx context.Context, input NewTenantInput, status TenantStatus, createdUnixUTC int64) (TenantID, error)
	GetTenant(ctx context.Context, tenantID TenantID) (Tenant, error)
	ListTenantUnits(ctx context.Context, tenantID TenantID) ([]Unit, error)
	CountTenantUnits(ctx context.Context, tenantID TenantID) (int64, error)
	DeleteTenant(ctx context.Context, tenantID TenantID) error

	CountFacilityOccupiedUnits(ctx context.Context, facilityID FacilityID) (int64, error)
	DeleteFacility(ctx context.Context, facilityID FacilityID) error
	CountCompanyFacilities(ctx context.Context, companyID CompanyID) (int64, error)
	DeleteCompany(ctx context.Context, companyID CompanyID) error

	AppendEvent(ctx context.Context, event Event) error

	MarkDelinquentTenants(ctx context.Context, nowUnixUTC int64) (int64, error)
	MarkDelinquentUnits(ctx context.Context, nowUnixUTC int64) (int64, error)
	ListBillableTenantIDs(ctx context.Context) ([]TenantID, error)
	SumTenantMonthlyRate(ctx context.Context, tenantID TenantID) (AmountCents, error)
	AddTenantBalance(ctx context.Context, tenantID TenantID, delta AmountCents) error
}
