package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/servifield/servifield/internal/clock"
	collectionsdomain "github.com/servifield/servifield/internal/collections/domain"
	obsmetrics "github.com/servifield/servifield/internal/observability/metrics"
	orderdomain "github.com/servifield/servifield/internal/order/domain"
	policydomain "github.com/servifield/servifield/internal/policy/domain"
	recurringdomain "github.com/servifield/servifield/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	RecurringSvc   recurringdomain.Service
	PolicySvc      policydomain.Service
	CollectionsSvc collectionsdomain.Service
	OrderSvc       orderdomain.Service
	Clock          clock.Clock
	Metrics        *obsmetrics.SchedulerMetrics
	Config         Config `optional:"true"`
}

type Scheduler struct {
	db             *gorm.DB
	log            *zap.Logger
	cfg            Config
	clock          clock.Clock
	metrics        *obsmetrics.SchedulerMetrics
	recurringSvc   recurringdomain.Service
	policySvc      policydomain.Service
	collectionsSvc collectionsdomain.Service
	orderSvc       orderdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.RecurringSvc == nil || p.PolicySvc == nil || p.CollectionsSvc == nil || p.OrderSvc == nil || p.Clock == nil || p.Metrics == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:             p.DB,
		log:            p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:            p.Config.withDefaults(),
		clock:          p.Clock,
		metrics:        p.Metrics,
		recurringSvc:   p.RecurringSvc,
		policySvc:      p.PolicySvc,
		collectionsSvc: p.CollectionsSvc,
		orderSvc:       p.OrderSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(run)
	}
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	s.metrics.AddItemsProcessed(name, run.processedCount)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(run)
	}
	if err == nil {
		return nil
	}

	// treat deadline as soft-timeout: the next tick picks up the remainder
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name)
	if isTimeout {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"generate_expenses", s.isJobEnabled("generate_expenses"), func(ctx context.Context) error {
			return s.runJob(ctx, "generate_expenses", s.cfg.JobTimeout, s.GenerateExpensesJob)
		}},
		{"generate_policy_payments", s.isJobEnabled("generate_policy_payments"), func(ctx context.Context) error {
			return s.runJob(ctx, "generate_policy_payments", s.cfg.JobTimeout, s.GeneratePolicyPaymentsJob)
		}},
		{"generate_payroll", s.isJobEnabled("generate_payroll"), func(ctx context.Context) error {
			return s.runJob(ctx, "generate_payroll", s.cfg.JobTimeout, s.GeneratePayrollJob)
		}},
		{"normalize_due_dates", s.isJobEnabled("normalize_due_dates"), func(ctx context.Context) error {
			return s.runJob(ctx, "normalize_due_dates", s.cfg.JobTimeout, s.NormalizeDueDatesJob)
		}},
		{"activate_orders", s.isJobEnabled("activate_orders"), func(ctx context.Context) error {
			return s.runJob(ctx, "activate_orders", s.cfg.JobTimeout, s.ActivateOrdersJob)
		}},
		// collections run last so the cache reflects everything generated above
		{"rebuild_collections", s.isJobEnabled("rebuild_collections"), func(ctx context.Context) error {
			return s.runJob(ctx, "rebuild_collections", s.cfg.JobTimeout, s.RebuildCollectionsJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty EnabledJobs list means every job runs (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) GenerateExpensesJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "generate_expenses")
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	report, err := s.recurringSvc.GenerateExpenses(ctx)
	run.AddProcessed(report.Processed)
	if err != nil {
		s.logJobError(run, "generate_expenses", err)
		return err
	}
	if report.Failed > 0 {
		run.errorCount += report.Failed
	}
	return nil
}

func (s *Scheduler) GeneratePolicyPaymentsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "generate_policy_payments")
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	report, err := s.recurringSvc.GeneratePolicyPayments(ctx)
	run.AddProcessed(report.Processed)
	if err != nil {
		s.logJobError(run, "generate_policy_payments", err)
		return err
	}
	if report.Failed > 0 {
		run.errorCount += report.Failed
	}
	return nil
}

func (s *Scheduler) GeneratePayrollJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "generate_payroll")
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	// The weekly guard inside the generator makes the scheduled run
	// idempotent, so force stays off here.
	report, err := s.recurringSvc.GeneratePayroll(ctx, false)
	run.AddProcessed(report.Processed)
	if err != nil {
		s.logJobError(run, "generate_payroll", err)
		return err
	}
	if report.Failed > 0 {
		run.errorCount += report.Failed
	}
	return nil
}

func (s *Scheduler) NormalizeDueDatesJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "normalize_due_dates")
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	result, err := s.policySvc.NormalizeDueDates(ctx, false)
	run.AddProcessed(result.Checked)
	if err != nil {
		s.logJobError(run, "normalize_due_dates", err)
		return err
	}
	return nil
}

func (s *Scheduler) ActivateOrdersJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "activate_orders")
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	result, err := s.orderSvc.ActivateScheduledOrders(ctx)
	run.AddProcessed(result.Processed)
	if err != nil {
		s.logJobError(run, "activate_orders", err)
		return err
	}
	if result.Failed > 0 {
		run.errorCount += result.Failed
	}
	return nil
}

func (s *Scheduler) RebuildCollectionsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "rebuild_collections")
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	result, err := s.collectionsSvc.Rebuild(ctx)
	run.AddProcessed(result.RowsCached)
	if err != nil {
		s.logJobError(run, "rebuild_collections", err)
		return err
	}
	return nil
}
