package occupancy

import (
	"context"
	"errors"
	"testing"
)

func TestRentUnitsClaimsUnitsForNewTenant(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	unitA := store.addUnit(test, "unit-a", "facility-1", 10000)
	unitB := store.addUnit(test, "unit-b", "facility-1", 15000)
	service := mustNewService(test, store)

	tenantID, err := service.RentUnits(context.Background(), validTenantInput(), []UnitID{unitA, unitB}, false)
	if err != nil {
		test.Fatalf("rent units: %v", err)
	}

	for _, unitID := range []UnitID{unitA, unitB} {
		unit := store.mustUnit(test, unitID)
		if unit.Status != UnitStatusRented {
			test.Fatalf("expected unit %s rented, got %s", unitID.String(), unit.Status)
		}
		if unit.Available {
			test.Fatalf("expected unit %s unavailable", unitID.String())
		}
		if unit.TenantID == nil || *unit.TenantID != tenantID {
			test.Fatalf("expected unit %s linked to tenant %s", unitID.String(), tenantID.String())
		}
	}
	unit := store.mustUnit(test, unitA)
	if unit.BalanceCents != 10000 {
		test.Fatalf("expected move-in balance 10000, got %d", unit.BalanceCents)
	}
	held, err := store.CountTenantUnits(context.Background(), tenantID)
	if err != nil {
		test.Fatalf("count tenant units: %v", err)
	}
	if held != 2 {
		test.Fatalf("expected tenant to hold 2 units, got %d", held)
	}
}

func TestRentUnitsPaidInCashZeroesMoveInBalance(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	unitID := store.addUnit(test, "unit-cash", "facility-1", 12000)
	service := mustNewService(test, store)

	if _, err := service.RentUnits(context.Background(), validTenantInput(), []UnitID{unitID}, true); err != nil {
		test.Fatalf("rent units: %v", err)
	}
	if balance := store.mustUnit(test, unitID).BalanceCents; balance != 0 {
		test.Fatalf("expected zero balance for cash rental, got %d", balance)
	}
}

func TestRentUnitsRejectsOccupiedUnit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	unitID := store.addUnit(test, "unit-taken", "facility-1", 9000)
	service := mustNewService(test, store)

	if _, err := service.RentUnits(context.Background(), validTenantInput(), []UnitID{unitID}, false); err != nil {
		test.Fatalf("first rental: %v", err)
	}
	_, err := service.RentUnits(context.Background(), validTenantInput(), []UnitID{unitID}, false)
	if !errors.Is(err, ErrUnitOccupied) {
		test.Fatalf("expected ErrUnitOccupied, got %v", err)
	}
}

func TestRentUnitsRequiresAtLeastOneUnit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)

	_, err := service.RentUnits(context.Background(), validTenantInput(), nil, false)
	if !errors.Is(err, ErrInvalidTenantInput) {
		test.Fatalf("expected ErrInvalidTenantInput, got %v", err)
	}
}

func TestAddUnitAttachesToExistingTenant(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	first := store.addUnit(test, "unit-1", "facility-1", 8000)
	second := store.addUnit(test, "unit-2", "facility-1", 8500)
	service := mustNewService(test, store)

	tenantID, err := service.RentUnits(context.Background(), validTenantInput(), []UnitID{first}, false)
	if err != nil {
		test.Fatalf("rent units: %v", err)
	}
	if err := service.AddUnit(context.Background(), tenantID, second, false); err != nil {
		test.Fatalf("add unit: %v", err)
	}
	unit := store.mustUnit(test, second)
	if unit.TenantID == nil || *unit.TenantID != tenantID {
		test.Fatalf("expected second unit linked to tenant")
	}
}

func TestAddUnitUnknownTenant(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	unitID := store.addUnit(test, "unit-x", "facility-1", 8000)
	service := mustNewService(test, store)

	err := service.AddUnit(context.Background(), mustTenantID(test, "ghost"), unitID, false)
	if !errors.Is(err, ErrTenantNotFound) {
		test.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestMoveOutResetsUnit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	unitID := store.addUnit(test, "unit-out", "facility-1", 11000)
	service := mustNewService(test, store)

	tenantID, err := service.RentUnits(context.Background(), validTenantInput(), []UnitID{unitID}, false)
	if err != nil {
		test.Fatalf("rent units: %v", err)
	}
	if err := service.MoveOut(context.Background(), tenantID, unitID); err != nil {
		test.Fatalf("move out: %v", err)
	}

	unit := store.mustUnit(test, unitID)
	if unit.Status != UnitStatusVacant {
		test.Fatalf("expected vacant after move out, got %s", unit.Status)
	}
	if !unit.Available {
		test.Fatalf("expected unit available after move out")
	}
	if unit.BalanceCents != 0 {
		test.Fatalf("expected zero balance after move out, got %d", unit.BalanceCents)
	}
	if unit.TenantID != nil {
		test.Fatalf("expected tenant link cleared after move out")
	}
	held, _ := store.CountTenantUnits(context.Background(), tenantID)
	if held != 0 {
		test.Fatalf("expected tenant to hold no units, got %d", held)
	}
}

func TestMoveOutWrongTenant(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	unitID := store.addUnit(test, "unit-wrong", "facility-1", 11000)
	service := mustNewService(test, store)

	if _, err := service.RentUnits(context.Background(), validTenantInput(), []UnitID{unitID}, false); err != nil {
		test.Fatalf("rent units: %v", err)
	}
	err := service.MoveOut(context.Background(), mustTenantID(test, "intruder"), unitID)
	if !errors.Is(err, ErrUnitNotHeldByTenant) {
		test.Fatalf("expected ErrUnitNotHeldByTenant, got %v", err)
	}
}

func TestDeleteUnitBlockedWhileOccupied(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	unitID := store.addUnit(test, "unit-del", "facility-1", 7000)
	service := mustNewService(test, store)

	if _, err := service.RentUnits(context.Background(), validTenantInput(), []UnitID{unitID}, false); err != nil {
		test.Fatalf("rent units: %v", err)
	}
	err := service.DeleteUnit(context.Background(), unitID)
	if !errors.Is(err, ErrUnitHasTenant) {
		test.Fatalf("expected ErrUnitHasTenant, got %v", err)
	}
	if _, ok := store.units[unitID]; !ok {
		test.Fatalf("unit must not be deleted while occupied")
	}
}

func TestDeleteTenantBlockedWhileHoldingUnits(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	unitID := store.addUnit(test, "unit-hold", "facility-1", 7000)
	service := mustNewService(test, store)

	tenantID, err := service.RentUnits(context.Background(), validTenantInput(), []UnitID{unitID}, false)
	if err != nil {
		test.Fatalf("rent units: %v", err)
	}
	if err := service.DeleteTenant(context.Background(), tenantID); !errors.Is(err, ErrTenantHasUnits) {
		test.Fatalf("expected ErrTenantHasUnits, got %v", err)
	}
	if err := service.MoveOut(context.Background(), tenantID, unitID); err != nil {
		test.Fatalf("move out: %v", err)
	}
	if err := service.DeleteTenant(context.Background(), tenantID); err != nil {
		test.Fatalf("delete tenant after move out: %v", err)
	}
}

func TestDeleteFacilityBlockedWhileAnyUnitOccupied(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	unitID := store.addUnit(test, "unit-f", "facility-guarded", 7000)
	service := mustNewService(test, store)

	if _, err := service.RentUnits(context.Background(), validTenantInput(), []UnitID{unitID}, false); err != nil {
		test.Fatalf("rent units: %v", err)
	}
	err := service.DeleteFacility(context.Background(), mustFacilityID(test, "facility-guarded"))
	if !errors.Is(err, ErrFacilityOccupied) {
		test.Fatalf("expected ErrFacilityOccupied, got %v", err)
	}
}

func TestDeleteCompanyBlockedWhileFacilitiesExist(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	companyID := mustCompanyID(test, "company-1")
	store.facilityCompanies[mustFacilityID(test, "facility-a")] = companyID
	service := mustNewService(test, store)

	err := service.DeleteCompany(context.Background(), companyID)
	if !errors.Is(err, ErrCompanyHasFacilities) {
		test.Fatalf("expected ErrCompanyHasFacilities, got %v", err)
	}
	delete(store.facilityCompanies, mustFacilityID(test, "facility-a"))
	if err := service.DeleteCompany(context.Background(), companyID); err != nil {
		test.Fatalf("delete company without facilities: %v", err)
	}
}

func TestMutationsAppendEvents(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	unitID := store.addUnit(test, "unit-ev", "facility-1", 7000)
	service := mustNewService(test, store)

	tenantID, err := service.RentUnits(context.Background(), validTenantInput(), []UnitID{unitID}, false)
	if err != nil {
		test.Fatalf("rent units: %v", err)
	}
	if err := service.MoveOut(context.Background(), tenantID, unitID); err != nil {
		test.Fatalf("move out: %v", err)
	}
	// rent: unit rented + tenant created; move out: unit + tenant records.
	if len(store.events) != 4 {
		test.Fatalf("expected 4 audit events, got %d", len(store.events))
	}
	if store.events[0].Name != EventNameRented {
		test.Fatalf("expected first event rented, got %s", store.events[0].Name)
	}
}
