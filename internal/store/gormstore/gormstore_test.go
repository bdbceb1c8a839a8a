package gormstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	testNowUnix    = int64(1700000000)
	testMonthlyFee = int64(10000)
)

func openTestStore(test *testing.T) *Store {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(test.TempDir()+"/storage.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func seedFacility(test *testing.T, store *Store) StorageFacility {
	test.Helper()
	company := Company{Name: "Acme Storage " + test.Name(), ContactEmail: "ops@acme.test", StripeAccountID: "acct_" + test.Name()}
	if err := store.CreateCompany(context.Background(), &company); err != nil {
		test.Fatalf("create company: %v", err)
	}
	facility := StorageFacility{Name: "Main Street " + test.Name(), CompanyID: company.CompanyID}
	if err := store.CreateFacility(context.Background(), &facility); err != nil {
		test.Fatalf("create facility: %v", err)
	}
	return facility
}

func seedUnit(test *testing.T, store *Store, facilityID string, unitNumber string) StorageUnit {
	test.Helper()
	unit := StorageUnit{FacilityID: facilityID, UnitNumber: unitNumber, PricePerMonthCents: testMonthlyFee}
	if err := store.CreateUnit(context.Background(), &unit); err != nil {
		test.Fatalf("create unit: %v", err)
	}
	return unit
}

func seedTenant(test *testing.T, store *Store, email string) occupancy.TenantID {
	test.Helper()
	input := occupancy.NewTenantInput{FirstName: "Ada", LastName: "Lovelace", Email: email}
	tenantID, err := store.CreateTenant(context.Background(), input, occupancy.TenantStatusActive, testNowUnix)
	if err != nil {
		test.Fatalf("create tenant: %v", err)
	}
	return tenantID
}

func mustUnitIDValue(test *testing.T, raw string) occupancy.UnitID {
	test.Helper()
	unitID, err := occupancy.NewUnitID(raw)
	if err != nil {
		test.Fatalf("unit id: %v", err)
	}
	return unitID
}

func TestClaimUnitSingleWinner(test *testing.T) {
	store := openTestStore(test)
	facility := seedFacility(test, store)
	unit := seedUnit(test, store, facility.FacilityID, "A-1")
	unitID := mustUnitIDValue(test, unit.UnitID)
	first := seedTenant(test, store, "first@test.dev")
	second := seedTenant(test, store, "second@test.dev")

	if err := store.ClaimUnit(context.Background(), unitID, first, testNowUnix, occupancy.AmountCents(testMonthlyFee)); err != nil {
		test.Fatalf("first claim: %v", err)
	}
	err := store.ClaimUnit(context.Background(), unitID, second, testNowUnix, occupancy.AmountCents(testMonthlyFee))
	if !errors.Is(err, occupancy.ErrUnitOccupied) {
		test.Fatalf("expected ErrUnitOccupied, got %v", err)
	}

	claimed, err := store.GetUnit(context.Background(), unitID)
	if err != nil {
		test.Fatalf("get unit: %v", err)
	}
	if claimed.TenantID == nil || claimed.TenantID.String() != first.String() {
		test.Fatalf("expected unit held by first tenant, got %+v", claimed.TenantID)
	}
	if claimed.Status != occupancy.UnitStatusRented || claimed.Available {
		test.Fatalf("expected rented unavailable unit, got status=%s available=%v", claimed.Status, claimed.Available)
	}
	if claimed.BalanceCents.Int64() != testMonthlyFee {
		test.Fatalf("expected move-in balance %d, got %d", testMonthlyFee, claimed.BalanceCents.Int64())
	}
}

func TestClaimUnitConcurrentSingleWinner(test *testing.T) {
	store := openTestStore(test)
	sqlDB, err := store.DB().DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	// One connection serializes the writes so both claims hit the same
	// row state instead of tripping sqlite's busy handler.
	sqlDB.SetMaxOpenConns(1)

	facility := seedFacility(test, store)
	unit := seedUnit(test, store, facility.FacilityID, "A-1")
	unitID := mustUnitIDValue(test, unit.UnitID)
	tenants := []occupancy.TenantID{
		seedTenant(test, store, "first@test.dev"),
		seedTenant(test, store, "second@test.dev"),
	}

	start := make(chan struct{})
	results := make([]error, len(tenants))
	var wg sync.WaitGroup
	for i, tenantID := range tenants {
		wg.Add(1)
		go func(i int, tenantID occupancy.TenantID) {
			defer wg.Done()
			<-start
			results[i] = store.ClaimUnit(context.Background(), unitID, tenantID, testNowUnix, occupancy.AmountCents(testMonthlyFee))
		}(i, tenantID)
	}
	close(start)
	wg.Wait()

	var wins, losses int
	for _, claimErr := range results {
		switch {
		case claimErr == nil:
			wins++
		case errors.Is(claimErr, occupancy.ErrUnitOccupied):
			losses++
		default:
			test.Fatalf("unexpected claim error: %v", claimErr)
		}
	}
	if wins != 1 || losses != 1 {
		test.Fatalf("expected exactly one winner, got wins=%d losses=%d", wins, losses)
	}

	claimed, err := store.GetUnit(context.Background(), unitID)
	if err != nil {
		test.Fatalf("get unit: %v", err)
	}
	if claimed.TenantID == nil {
		test.Fatalf("expected claimed unit to carry a tenant")
	}
	if claimed.Status != occupancy.UnitStatusRented {
		test.Fatalf("expected rented unit, got %s", claimed.Status)
	}
}

func TestListEventsScopedByCompany(test *testing.T) {
	store := openTestStore(test)
	facility := seedFacility(test, store)

	rivalCompany := Company{Name: "Rival Storage", ContactEmail: "ops@rival.test", StripeAccountID: "acct_rival_" + test.Name()}
	if err := store.CreateCompany(context.Background(), &rivalCompany); err != nil {
		test.Fatalf("create rival company: %v", err)
	}
	rivalFacility := StorageFacility{Name: "Dockside", CompanyID: rivalCompany.CompanyID}
	if err := store.CreateFacility(context.Background(), &rivalFacility); err != nil {
		test.Fatalf("create rival facility: %v", err)
	}

	appendUnitEvent := func(rawFacilityID string, message string) {
		test.Helper()
		facilityID, err := occupancy.NewFacilityID(rawFacilityID)
		if err != nil {
			test.Fatalf("facility id: %v", err)
		}
		event, err := occupancy.NewEvent(occupancy.EventTypeUnit, occupancy.EventNameCreated, &facilityID, message, testNowUnix)
		if err != nil {
			test.Fatalf("new event: %v", err)
		}
		if err := store.AppendEvent(context.Background(), event); err != nil {
			test.Fatalf("append event: %v", err)
		}
	}
	appendUnitEvent(facility.FacilityID, "acme unit created")
	appendUnitEvent(rivalFacility.FacilityID, "rival unit created")

	events, err := store.ListEvents(context.Background(), EventFilter{CompanyID: facility.CompanyID}, Page{})
	if err != nil {
		test.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		test.Fatalf("expected 1 event for the company, got %d", len(events))
	}
	if events[0].Message != "acme unit created" {
		test.Fatalf("expected the company's own event, got %q", events[0].Message)
	}
}

func TestClaimUnitUnknownUnit(test *testing.T) {
	store := openTestStore(test)
	tenantID := seedTenant(test, store, "ghost@test.dev")
	err := store.ClaimUnit(context.Background(), mustUnitIDValue(test, "missing"), tenantID, testNowUnix, 0)
	if !errors.Is(err, occupancy.ErrUnitNotFound) {
		test.Fatalf("expected ErrUnitNotFound, got %v", err)
	}
}

func TestReleaseUnitResetsRow(test *testing.T) {
	store := openTestStore(test)
	facility := seedFacility(test, store)
	unit := seedUnit(test, store, facility.FacilityID, "A-2")
	unitID := mustUnitIDValue(test, unit.UnitID)
	tenantID := seedTenant(test, store, "mover@test.dev")

	if err := store.ClaimUnit(context.Background(), unitID, tenantID, testNowUnix, occupancy.AmountCents(testMonthlyFee)); err != nil {
		test.Fatalf("claim: %v", err)
	}
	if err := store.ReleaseUnit(context.Background(), unitID, tenantID, testNowUnix+86400); err != nil {
		test.Fatalf("release: %v", err)
	}

	released, err := store.GetUnit(context.Background(), unitID)
	if err != nil {
		test.Fatalf("get unit: %v", err)
	}
	if released.TenantID != nil || released.Status != occupancy.UnitStatusVacant || !released.Available {
		test.Fatalf("expected vacant available unit, got %+v", released)
	}
	if released.BalanceCents != 0 {
		test.Fatalf("expected zero balance after release, got %d", released.BalanceCents.Int64())
	}

	model, err := store.GetUnitModel(context.Background(), unit.UnitID)
	if err != nil {
		test.Fatalf("get unit model: %v", err)
	}
	if model.LastMoveOutDate == nil {
		test.Fatalf("expected last move-out date stamped")
	}
	if model.MoveInDate != nil {
		test.Fatalf("expected move-in date cleared")
	}
}

func TestReleaseUnitWrongTenant(test *testing.T) {
	store := openTestStore(test)
	facility := seedFacility(test, store)
	unit := seedUnit(test, store, facility.FacilityID, "A-3")
	unitID := mustUnitIDValue(test, unit.UnitID)
	holder := seedTenant(test, store, "holder@test.dev")
	other := seedTenant(test, store, "other@test.dev")

	if err := store.ClaimUnit(context.Background(), unitID, holder, testNowUnix, 0); err != nil {
		test.Fatalf("claim: %v", err)
	}
	err := store.ReleaseUnit(context.Background(), unitID, other, testNowUnix)
	if !errors.Is(err, occupancy.ErrUnitNotHeldByTenant) {
		test.Fatalf("expected ErrUnitNotHeldByTenant, got %v", err)
	}
}

func TestCreateTenantRejectsDuplicateEmail(test *testing.T) {
	store := openTestStore(test)
	seedTenant(test, store, "dup@test.dev")
	input := occupancy.NewTenantInput{FirstName: "Twin", LastName: "Tenant", Email: "dup@test.dev"}
	_, err := store.CreateTenant(context.Background(), input, occupancy.TenantStatusActive, testNowUnix)
	if !errors.Is(err, occupancy.ErrDuplicateName) {
		test.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestDelinquencySweepStatements(test *testing.T) {
	store := openTestStore(test)
	facility := seedFacility(test, store)
	unit := seedUnit(test, store, facility.FacilityID, "B-1")
	unitID := mustUnitIDValue(test, unit.UnitID)
	tenantID := seedTenant(test, store, "late@test.dev")

	if err := store.ClaimUnit(context.Background(), unitID, tenantID, testNowUnix, 0); err != nil {
		test.Fatalf("claim: %v", err)
	}
	if err := store.AddTenantBalance(context.Background(), tenantID, occupancy.AmountCents(testMonthlyFee)); err != nil {
		test.Fatalf("add balance: %v", err)
	}

	units, err := store.MarkDelinquentUnits(context.Background(), testNowUnix)
	if err != nil {
		test.Fatalf("mark units: %v", err)
	}
	tenants, err := store.MarkDelinquentTenants(context.Background(), testNowUnix)
	if err != nil {
		test.Fatalf("mark tenants: %v", err)
	}
	if units != 1 || tenants != 1 {
		test.Fatalf("expected 1 unit and 1 tenant marked, got %d and %d", units, tenants)
	}

	tenant, err := store.GetTenant(context.Background(), tenantID)
	if err != nil {
		test.Fatalf("get tenant: %v", err)
	}
	if tenant.Status != occupancy.TenantStatusDelinquent {
		test.Fatalf("expected delinquent tenant, got %s", tenant.Status)
	}
	marked, err := store.GetUnit(context.Background(), unitID)
	if err != nil {
		test.Fatalf("get unit: %v", err)
	}
	if marked.Status != occupancy.UnitStatusDelinquent {
		test.Fatalf("expected delinquent unit, got %s", marked.Status)
	}
}

func TestSumTenantMonthlyRate(test *testing.T) {
	store := openTestStore(test)
	facility := seedFacility(test, store)
	unitA := seedUnit(test, store, facility.FacilityID, "C-1")
	unitB := seedUnit(test, store, facility.FacilityID, "C-2")
	tenantID := seedTenant(test, store, "rates@test.dev")

	for _, raw := range []string{unitA.UnitID, unitB.UnitID} {
		if err := store.ClaimUnit(context.Background(), mustUnitIDValue(test, raw), tenantID, testNowUnix, 0); err != nil {
			test.Fatalf("claim %s: %v", raw, err)
		}
	}
	total, err := store.SumTenantMonthlyRate(context.Background(), tenantID)
	if err != nil {
		test.Fatalf("sum rate: %v", err)
	}
	if total.Int64() != 2*testMonthlyFee {
		test.Fatalf("expected %d, got %d", 2*testMonthlyFee, total.Int64())
	}
}

func TestWithTxRollsBackOnError(test *testing.T) {
	store := openTestStore(test)
	boom := errors.New("boom")
	err := store.WithTx(context.Background(), func(ctx context.Context, txStore occupancy.Store) error {
		input := occupancy.NewTenantInput{FirstName: "Tx", LastName: "Tenant", Email: "tx@test.dev"}
		if _, createErr := txStore.CreateTenant(ctx, input, occupancy.TenantStatusActive, testNowUnix); createErr != nil {
			return createErr
		}
		return boom
	})
	if !errors.Is(err, boom) {
		test.Fatalf("expected boom, got %v", err)
	}
	var count int64
	if countErr := store.DB().Model(&Tenant{}).Count(&count).Error; countErr != nil {
		test.Fatalf("count tenants: %v", countErr)
	}
	if count != 0 {
		test.Fatalf("expected rollback to discard tenant, got %d rows", count)
	}
}

func TestListUnitsAvailableOnly(test *testing.T) {
	store := openTestStore(test)
	facility := seedFacility(test, store)
	open := seedUnit(test, store, facility.FacilityID, "D-1")
	taken := seedUnit(test, store, facility.FacilityID, "D-2")
	tenantID := seedTenant(test, store, "lister@test.dev")
	if err := store.ClaimUnit(context.Background(), mustUnitIDValue(test, taken.UnitID), tenantID, testNowUnix, 0); err != nil {
		test.Fatalf("claim: %v", err)
	}

	units, err := store.ListUnits(context.Background(), facility.FacilityID, true, Page{})
	if err != nil {
		test.Fatalf("list units: %v", err)
	}
	if len(units) != 1 || units[0].UnitID != open.UnitID {
		test.Fatalf("expected only the vacant unit, got %+v", units)
	}
}

func TestDeleteFacilityRemovesUnits(test *testing.T) {
	store := openTestStore(test)
	facility := seedFacility(test, store)
	seedUnit(test, store, facility.FacilityID, "E-1")
	facilityID, err := occupancy.NewFacilityID(facility.FacilityID)
	if err != nil {
		test.Fatalf("facility id: %v", err)
	}
	if err := store.DeleteFacility(context.Background(), facilityID); err != nil {
		test.Fatalf("delete facility: %v", err)
	}
	var count int64
	if countErr := store.DB().Model(&StorageUnit{}).Where("facility_id = ?", facility.FacilityID).Count(&count).Error; countErr != nil {
		test.Fatalf("count units: %v", countErr)
	}
	if count != 0 {
		test.Fatalf("expected units removed with facility, got %d", count)
	}
}
