package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/storagehub/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newRunnerWithStore(test *testing.T) (*Runner, *gormstore.Store) {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(test.TempDir()+"/batch.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gormstore.AllModels()...); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	store := gormstore.New(db)
	occupancyService, err := occupancy.NewService(store, func() int64 { return time.Now().Unix() })
	if err != nil {
		test.Fatalf("occupancy service: %v", err)
	}
	runner, err := NewRunner(occupancyService, zap.NewNop())
	if err != nil {
		test.Fatalf("runner: %v", err)
	}
	return runner, store
}

func seedRentedTenant(test *testing.T, store *gormstore.Store, monthlyCents int64) occupancy.TenantID {
	test.Helper()
	company := gormstore.Company{Name: "Batch Co " + test.Name(), ContactEmail: "co@test.dev", StripeAccountID: "acct_" + test.Name()}
	if err := store.CreateCompany(context.Background(), &company); err != nil {
		test.Fatalf("create company: %v", err)
	}
	facility := gormstore.StorageFacility{Name: "Batch Facility " + test.Name(), CompanyID: company.CompanyID}
	if err := store.CreateFacility(context.Background(), &facility); err != nil {
		test.Fatalf("create facility: %v", err)
	}
	unit := gormstore.StorageUnit{FacilityID: facility.FacilityID, UnitNumber: "B-1", PricePerMonthCents: monthlyCents}
	if err := store.CreateUnit(context.Background(), &unit); err != nil {
		test.Fatalf("create unit: %v", err)
	}
	input := occupancy.NewTenantInput{FirstName: "Batch", LastName: "Tenant", Email: "batch@test.dev"}
	tenantID, err := store.CreateTenant(context.Background(), input, occupancy.TenantStatusActive, time.Now().Unix())
	if err != nil {
		test.Fatalf("create tenant: %v", err)
	}
	unitID, err := occupancy.NewUnitID(unit.UnitID)
	if err != nil {
		test.Fatalf("unit id: %v", err)
	}
	if err := store.ClaimUnit(context.Background(), unitID, tenantID, time.Now().Unix(), 0); err != nil {
		test.Fatalf("claim unit: %v", err)
	}
	return tenantID
}

func TestRunAccrualThenSweep(test *testing.T) {
	runner, store := newRunnerWithStore(test)
	tenantID := seedRentedTenant(test, store, 10000)

	accrual, err := runner.RunAccrual(context.Background())
	if err != nil {
		test.Fatalf("accrual: %v", err)
	}
	if accrual.TenantsBilled != 1 || accrual.TotalCents != 10000 {
		test.Fatalf("unexpected accrual result: %+v", accrual)
	}

	sweep, err := runner.RunSweep(context.Background())
	if err != nil {
		test.Fatalf("sweep: %v", err)
	}
	if sweep.Tenants != 1 || sweep.Units != 1 {
		test.Fatalf("unexpected sweep result: %+v", sweep)
	}

	tenant, err := store.GetTenant(context.Background(), tenantID)
	if err != nil {
		test.Fatalf("get tenant: %v", err)
	}
	if tenant.Status != occupancy.TenantStatusDelinquent {
		test.Fatalf("expected delinquent tenant, got %s", tenant.Status)
	}
}

func TestRunSweepWithoutDebtIsEmpty(test *testing.T) {
	runner, store := newRunnerWithStore(test)
	seedRentedTenant(test, store, 10000)

	sweep, err := runner.RunSweep(context.Background())
	if err != nil {
		test.Fatalf("sweep: %v", err)
	}
	if sweep.Tenants != 0 || sweep.Units != 0 {
		test.Fatalf("expected empty sweep, got %+v", sweep)
	}
}

func TestNewRunnerRequiresService(test *testing.T) {
	_, err := NewRunner(nil, zap.NewNop())
	if !errors.Is(err, ErrInvalidRunnerConfig) {
		test.Fatalf("expected ErrInvalidRunnerConfig, got %v", err)
	}
}

func TestScheduleRejectsBadSpec(test *testing.T) {
	runner, _ := newRunnerWithStore(test)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := runner.Schedule(ctx, "not a cron spec", ""); err == nil {
		test.Fatalf("expected error for invalid schedule")
	}
}

func TestScheduleStopsOnContextCancel(test *testing.T) {
	runner, _ := newRunnerWithStore(test)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- runner.Schedule(ctx, "", "")
	}()
	select {
	case err := <-done:
		if err != nil {
			test.Fatalf("schedule returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		test.Fatalf("scheduler did not stop on context cancel")
	}
}
