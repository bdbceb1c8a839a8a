package occupancy

import (
	"context"
	"fmt"
	"testing"
)

// stubStore is an in-memory Store used by the service tests.
type stubStore struct {
	units             map[UnitID]*Unit
	tenants           map[TenantID]*Tenant
	facilityCompanies map[FacilityID]CompanyID
	events            []Event
	nextTenant        int
	failClaim         error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		units:             map[UnitID]*Unit{},
		tenants:           map[TenantID]*Tenant{},
		facilityCompanies: map[FacilityID]CompanyID{},
	}
}

func (store *stubStore) addUnit(test *testing.T, rawID string, rawFacilityID string, priceCents int64) UnitID {
	test.Helper()
	unitID := mustUnitID(test, rawID)
	facilityID := mustFacilityID(test, rawFacilityID)
	store.units[unitID] = &Unit{
		UnitID:             unitID,
		FacilityID:         facilityID,
		UnitNumber:         rawID,
		Status:             UnitStatusVacant,
		Available:          true,
		PricePerMonthCents: AmountCents(priceCents),
	}
	return unitID
}

func (store *stubStore) mustUnit(test *testing.T, unitID UnitID) Unit {
	test.Helper()
	unit, ok := store.units[unitID]
	if !ok {
		test.Fatalf("unit %s missing from stub store", unitID.String())
	}
	return *unit
}

func (store *stubStore) mustTenant(test *testing.T, tenantID TenantID) Tenant {
	test.Helper()
	tenant, ok := store.tenants[tenantID]
	if !ok {
		test.Fatalf("tenant %s missing from stub store", tenantID.String())
	}
	return *tenant
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) GetUnit(_ context.Context, unitID UnitID) (Unit, error) {
	unit, ok := store.units[unitID]
	if !ok {
		return Unit{}, ErrUnitNotFound
	}
	return *unit, nil
}

func (store *stubStore) ClaimUnit(_ context.Context, unitID UnitID, tenantID TenantID, _ int64, balanceCents AmountCents) error {
	if store.failClaim != nil {
		return store.failClaim
	}
	unit, ok := store.units[unitID]
	if !ok {
		return ErrUnitNotFound
	}
	if unit.Status != UnitStatusVacant {
		return ErrUnitOccupied
	}
	unit.TenantID = &tenantID
	unit.Status = UnitStatusRented
	unit.Available = false
	unit.BalanceCents = balanceCents
	return nil
}

func (store *stubStore) ReleaseUnit(_ context.Context, unitID UnitID, tenantID TenantID, _ int64) error {
	unit, ok := store.units[unitID]
	if !ok {
		return ErrUnitNotFound
	}
	if unit.TenantID == nil || *unit.TenantID != tenantID {
		return ErrUnitNotHeldByTenant
	}
	unit.TenantID = nil
	unit.Status = UnitStatusVacant
	unit.Available = true
	unit.BalanceCents = 0
	return nil
}

func (store *stubStore) DeleteUnit(_ context.Context, unitID UnitID) error {
	if _, ok := store.units[unitID]; !ok {
		return ErrUnitNotFound
	}
	delete(store.units, unitID)
	return nil
}

func (store *stubStore) CreateTenant(_ context.Context, input NewTenantInput, status TenantStatus, _ int64) (TenantID, error) {
	store.nextTenant++
	tenantID := TenantID{value: fmt.Sprintf("tenant-%d", store.nextTenant)}
	store.tenants[tenantID] = &Tenant{
		TenantID:   tenantID,
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Email:      input.Email,
		Phone:      input.Phone,
		Address:    input.Address,
		AccessCode: input.AccessCode,
		Status:     status,
	}
	return tenantID, nil
}

func (store *stubStore) GetTenant(_ context.Context, tenantID TenantID) (Tenant, error) {
	tenant, ok := store.tenants[tenantID]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return *tenant, nil
}

func (store *stubStore) ListTenantUnits(_ context.Context, tenantID TenantID) ([]Unit, error) {
	var held []Unit
	for _, unit := range store.units {
		if unit.TenantID != nil && *unit.TenantID == tenantID {
			held = append(held, *unit)
		}
	}
	return held, nil
}

func (store *stubStore) CountTenantUnits(ctx context.Context, tenantID TenantID) (int64, error) {
	held, err := store.ListTenantUnits(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return int64(len(held)), nil
}

func (store *stubStore) DeleteTenant(_ context.Context, tenantID TenantID) error {
	if _, ok := store.tenants[tenantID]; !ok {
		return ErrTenantNotFound
	}
	delete(store.tenants, tenantID)
	return nil
}

func (store *stubStore) CountFacilityOccupiedUnits(_ context.Context, facilityID FacilityID) (int64, error) {
	var occupied int64
	for _, unit := range store.units {
		if unit.FacilityID == facilityID && unit.TenantID != nil {
			occupied++
		}
	}
	return occupied, nil
}

func (store *stubStore) DeleteFacility(_ context.Context, facilityID FacilityID) error {
	delete(store.facilityCompanies, facilityID)
	return nil
}

func (store *stubStore) CountCompanyFacilities(_ context.Context, companyID CompanyID) (int64, error) {
	var count int64
	for _, owner := range store.facilityCompanies {
		if owner == companyID {
			count++
		}
	}
	return count, nil
}

func (store *stubStore) DeleteCompany(_ context.Context, _ CompanyID) error {
	return nil
}

func (store *stubStore) AppendEvent(_ context.Context, event Event) error {
	store.events = append(store.events, event)
	return nil
}

func (store *stubStore) MarkDelinquentUnits(_ context.Context, _ int64) (int64, error) {
	var marked int64
	for _, unit := range store.units {
		if unit.TenantID == nil || unit.Status != UnitStatusRented {
			continue
		}
		tenant, ok := store.tenants[*unit.TenantID]
		if ok && tenant.Status == TenantStatusActive && tenant.BalanceCents > 0 {
			unit.Status = UnitStatusDelinquent
			marked++
		}
	}
	return marked, nil
}

func (store *stubStore) MarkDelinquentTenants(_ context.Context, _ int64) (int64, error) {
	var marked int64
	for _, tenant := range store.tenants {
		if tenant.Status == TenantStatusActive && tenant.BalanceCents > 0 {
			tenant.Status = TenantStatusDelinquent
			marked++
		}
	}
	return marked, nil
}

func (store *stubStore) ListBillableTenantIDs(_ context.Context) ([]TenantID, error) {
	var billable []TenantID
	for tenantID, tenant := range store.tenants {
		if tenant.Status == TenantStatusActive || tenant.Status == TenantStatusDelinquent {
			billable = append(billable, tenantID)
		}
	}
	return billable, nil
}

func (store *stubStore) SumTenantMonthlyRate(ctx context.Context, tenantID TenantID) (AmountCents, error) {
	held, err := store.ListTenantUnits(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	var sum AmountCents
	for _, unit := range held {
		sum += unit.PricePerMonthCents
	}
	return sum, nil
}

func (store *stubStore) AddTenantBalance(_ context.Context, tenantID TenantID, delta AmountCents) error {
	tenant, ok := store.tenants[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	tenant.BalanceCents += delta
	return nil
}

func mustNewService(test *testing.T, store Store) *Service {
	test.Helper()
	service, err := NewService(store, func() int64 { return 1700000000 })
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustUnitID(test *testing.T, raw string) UnitID {
	test.Helper()
	unitID, err := NewUnitID(raw)
	if err != nil {
		test.Fatalf("unit id: %v", err)
	}
	return unitID
}

func mustTenantID(test *testing.T, raw string) TenantID {
	test.Helper()
	tenantID, err := NewTenantID(raw)
	if err != nil {
		test.Fatalf("tenant id: %v", err)
	}
	return tenantID
}

func mustFacilityID(test *testing.T, raw string) FacilityID {
	test.Helper()
	facilityID, err := NewFacilityID(raw)
	if err != nil {
		test.Fatalf("facility id: %v", err)
	}
	return facilityID
}

func mustCompanyID(test *testing.T, raw string) CompanyID {
	test.Helper()
	companyID, err := NewCompanyID(raw)
	if err != nil {
		test.Fatalf("company id: %v", err)
	}
	return companyID
}

func validTenantInput() NewTenantInput {
	return NewTenantInput{
		FirstName:  "June",
		LastName:   "Park",
		Email:      "june@example.com",
		Phone:      "555-0100",
		Address:    "12 Harbor Way",
		AccessCode: "4821",
	}
}
