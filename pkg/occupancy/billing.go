package occupancy

import (
	"context"
	"fmt"
)

// SweepResult reports how many records a delinquency sweep transitioned.
type SweepResult struct {
	Tenants int64
	Units   int64
}

// AccrualResult reports the outcome of a monthly accrual run.
type AccrualResult struct {
	TenantsBilled int64
	TenantsFailed int64
	TotalCents    AmountCents
}

// SweepDelinquency marks every active tenant carrying a positive balance as
// delinquent, together with the units they rent. Both bulk updates run in one
// transaction.
func (service *Service) SweepDelinquency(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		nowUnixUTC := service.nowFn()
		units, err := transactionStore.MarkDelinquentUnits(ctx, nowUnixUTC)
		if err != nil {
			return err
		}
		tenants, err := transactionStore.MarkDelinquentTenants(ctx, nowUnixUTC)
		if err != nil {
			return err
		}
		result = SweepResult{Tenants: tenants, Units: units}
		if tenants == 0 && units == 0 {
			return nil
		}
		return service.appendEvent(ctx, transactionStore, EventTypeBilling, EventNameMarkedDelinquent, nil,
			fmt.Sprintf("delinquency sweep: %d tenant(s), %d unit(s)", tenants, units), nowUnixUTC)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationSweep,
		Error:     operationError,
	})
	return result, operationError
}

// AccrueMonthly charges every active or delinquent tenant one month of rent
// for each unit they hold. Each tenant accrues in its own transaction; a
// failing tenant is counted and skipped instead of aborting the run.
func (service *Service) AccrueMonthly(ctx context.Context) (AccrualResult, error) {
	tenantIDs, err := service.store.ListBillableTenantIDs(ctx)
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationAccrue, Error: err})
		return AccrualResult{}, err
	}
	var result AccrualResult
	for _, tenantID := range tenantIDs {
		charged, accrueErr := service.accrueTenant(ctx, tenantID)
		service.logOperation(ctx, OperationLog{
			Operation: operationAccrue,
			TenantID:  tenantID,
			Amount:    charged,
			Error:     accrueErr,
		})
		if accrueErr != nil {
			result.TenantsFailed++
			continue
		}
		if charged > 0 {
			result.TenantsBilled++
			result.TotalCents += charged
		}
	}
	return result, nil
}

func (service *Service) accrueTenant(ctx context.Context, tenantID TenantID) (AmountCents, error) {
	var charged AmountCents
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		monthlyRate, err := transactionStore.SumTenantMonthlyRate(ctx, tenantID)
		if err != nil {
			return err
		}
		if monthlyRate == 0 {
			return nil
		}
		if err := transactionStore.AddTenantBalance(ctx, tenantID, monthlyRate); err != nil {
			return err
		}
		charged = monthlyRate
		return service.appendEvent(ctx, transactionStore, EventTypeBilling, EventNameBalanceAccrued, nil,
			fmt.Sprintf("tenant %s charged %d cents", tenantID.String(), monthlyRate.Int64()), service.nowFn())
	})
	return charged, operationError
}
