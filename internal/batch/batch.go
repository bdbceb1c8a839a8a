package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/storagehub/pkg/occupancy"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Default schedules: the delinquency sweep runs nightly, accrual on the first
// of each month.
const (
	DefaultSweepSchedule   = "0 2 * * *"
	DefaultAccrualSchedule = "0 3 1 * *"
)

var ErrInvalidRunnerConfig = errors.New("invalid batch runner config")

// Runner executes the billing batch jobs, either once or on a cron schedule.
type Runner struct {
	occupancy *occupancy.Service
	logger    *zap.Logger
}

// NewRunner wires a Runner.
func NewRunner(occupancyService *occupancy.Service, logger *zap.Logger) (*Runner, error) {
	if occupancyService == nil {
		return nil, fmt.Errorf("%w: occupancy dependency is nil", ErrInvalidRunnerConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{occupancy: occupancyService, logger: logger}, nil
}

// RunSweep executes one delinquency sweep.
func (runner *Runner) RunSweep(ctx context.Context) (occupancy.SweepResult, error) {
	result, err := runner.occupancy.SweepDelinquency(ctx)
	if err != nil {
		runner.logger.Error("delinquency sweep failed", zap.Error(err))
		return occupancy.SweepResult{}, err
	}
	runner.logger.Info("delinquency sweep finished",
		zap.Int64("tenants_marked", result.Tenants),
		zap.Int64("units_marked", result.Units))
	return result, nil
}

// RunAccrual executes one monthly accrual pass.
func (runner *Runner) RunAccrual(ctx context.Context) (occupancy.AccrualResult, error) {
	result, err := runner.occupancy.AccrueMonthly(ctx)
	if err != nil {
		runner.logger.Error("monthly accrual failed", zap.Error(err))
		return occupancy.AccrualResult{}, err
	}
	runner.logger.Info("monthly accrual finished",
		zap.Int64("tenants_billed", result.TenantsBilled),
		zap.Int64("tenants_failed", result.TenantsFailed),
		zap.Int64("total_cents", result.TotalCents.Int64()))
	return result, nil
}

// Schedule registers both jobs on a cron scheduler and blocks until the
// context is canceled.
func (runner *Runner) Schedule(ctx context.Context, sweepSchedule string, accrualSchedule string) error {
	if sweepSchedule == "" {
		sweepSchedule = DefaultSweepSchedule
	}
	if accrualSchedule == "" {
		accrualSchedule = DefaultAccrualSchedule
	}
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(sweepSchedule, func() {
		_, _ = runner.RunSweep(ctx)
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	if _, err := scheduler.AddFunc(accrualSchedule, func() {
		_, _ = runner.RunAccrual(ctx)
	}); err != nil {
		return fmt.Errorf("schedule accrual: %w", err)
	}
	scheduler.Start()
	runner.logger.Info("batch scheduler started",
		zap.String("sweep_schedule", sweepSchedule),
		zap.String("accrual_schedule", accrualSchedule))
	<-ctx.Done()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return nil
}
