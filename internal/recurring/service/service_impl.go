package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servifield/servifield/internal/clock"
	policydomain "github.com/servifield/servifield/internal/policy/domain"
	recurringdomain "github.com/servifield/servifield/internal/recurring/domain"
	"github.com/servifield/servifield/internal/scheduler/guard"
	"github.com/servifield/servifield/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) recurringdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("recurring.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) today() time.Time {
	now := s.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// GenerateExpenses creates one expense per due fixed-expense template. The
// date filter is the idempotency guard: a created instance advances the
// template's anchor past today, so a re-run within the same window selects
// nothing.
func (s *Service) GenerateExpenses(ctx context.Context) (recurringdomain.RunReport, error) {
	today := s.today()
	report := recurringdomain.RunReport{Timestamp: s.clock.Now()}

	var templates []recurringdomain.ExpenseTemplate
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, name, amount, classification, next_run_date, last_run_date, active
		 FROM expense_templates
		 WHERE active = ? AND next_run_date <= ?
		 ORDER BY id`,
		true,
		today,
	).Scan(&templates).Error
	if err != nil {
		return report, err
	}

	for _, template := range templates {
		report.Processed++
		outcome := recurringdomain.TemplateOutcome{
			TemplateID: template.ID,
			Name:       template.Name,
			Status:     recurringdomain.OutcomeOK,
		}

		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(
				`INSERT INTO expenses (
					id, template_id, description, amount, classification, expense_date, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				template.ID,
				template.Name,
				template.Amount,
				template.Classification,
				today,
				s.clock.Now(),
			).Error; err != nil {
				return err
			}
			return s.advanceTemplate(ctx, tx, "expense_templates", template.ID, template.NextRunDate, today)
		})
		if txErr != nil {
			outcome.Status = recurringdomain.OutcomeError
			outcome.Reason = txErr.Error()
			report.Failed++
			s.log.Error("expense generation failed",
				zap.String("template_id", template.ID.String()),
				zap.Error(txErr),
			)
		} else {
			report.Created++
		}
		report.Details = append(report.Details, outcome)
	}

	return report, nil
}

// GeneratePolicyPayments creates the next monthly policy payment for every
// due policy client. The payment period comes from the client's cadence
// anchor and the due date follows the canonical fifth-of-month rule.
func (s *Service) GeneratePolicyPayments(ctx context.Context) (recurringdomain.RunReport, error) {
	today := s.today()
	report := recurringdomain.RunReport{Timestamp: s.clock.Now()}

	var clients []policydomain.PolicyClient
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, client_name, policy_number, monthly_amount, next_run_date, last_run_date, active
		 FROM policy_clients
		 WHERE active = ? AND next_run_date <= ?
		 ORDER BY id`,
		true,
		today,
	).Scan(&clients).Error
	if err != nil {
		return report, err
	}

	for _, client := range clients {
		report.Processed++
		outcome := recurringdomain.TemplateOutcome{
			TemplateID: client.ID,
			Name:       client.PolicyNumber,
			Status:     recurringdomain.OutcomeOK,
		}

		period := client.NextRunDate.UTC()
		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(
				`INSERT INTO policy_payments (
					id, policy_client_id, payment_year, payment_month, due_date,
					amount, status, is_paid, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				client.ID,
				period.Year(),
				int(period.Month()),
				policydomain.CanonicalDueDate(period.Year(), int(period.Month())),
				client.MonthlyAmount,
				policydomain.PolicyPaymentStatusPending,
				false,
				s.clock.Now(),
			).Error; err != nil {
				return err
			}
			return s.advanceTemplate(ctx, tx, "policy_clients", client.ID, client.NextRunDate, today)
		})
		if txErr != nil {
			outcome.Status = recurringdomain.OutcomeError
			outcome.Reason = txErr.Error()
			report.Failed++
			s.log.Error("policy payment generation failed",
				zap.String("policy_client_id", client.ID.String()),
				zap.Error(txErr),
			)
		} else {
			report.Created++
		}
		report.Details = append(report.Details, outcome)
	}

	return report, nil
}

// GeneratePayroll creates this week's payroll row per due schedule. force
// bypasses the date filter for manual on-demand runs; the weekly existence
// check (and the unique index behind it) still prevents duplicates.
func (s *Service) GeneratePayroll(ctx context.Context, force bool) (recurringdomain.RunReport, error) {
	today := s.today()
	weekStart := guard.WeekStart(today)
	report := recurringdomain.RunReport{Timestamp: s.clock.Now()}

	query := `SELECT id, employee_id, employee_name, amount, next_run_date, last_run_date, active
		 FROM payroll_schedules
		 WHERE active = ?`
	args := []any{true}
	if !force {
		query += ` AND next_run_date <= ?`
		args = append(args, today)
	}
	query += ` ORDER BY id`

	var schedules []recurringdomain.PayrollSchedule
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&schedules).Error; err != nil {
		return report, err
	}

	for _, schedule := range schedules {
		report.Processed++
		outcome := recurringdomain.TemplateOutcome{
			TemplateID: schedule.ID,
			Name:       schedule.EmployeeName,
			Status:     recurringdomain.OutcomeOK,
		}

		var existing int64
		err := s.db.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM payroll_records WHERE employee_id = ? AND week_start = ?`,
			schedule.EmployeeID,
			weekStart,
		).Scan(&existing).Error
		if err != nil {
			outcome.Status = recurringdomain.OutcomeError
			outcome.Reason = err.Error()
			report.Failed++
			report.Details = append(report.Details, outcome)
			continue
		}
		if existing > 0 {
			outcome.Status = recurringdomain.OutcomeSkipped
			outcome.Reason = "payroll already generated this week"
			report.Skipped++
			report.Details = append(report.Details, outcome)
			continue
		}

		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(
				`INSERT INTO payroll_records (
					id, schedule_id, employee_id, amount, pay_date, week_start, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				schedule.ID,
				schedule.EmployeeID,
				schedule.Amount,
				today,
				weekStart,
				s.clock.Now(),
			).Error; err != nil {
				return err
			}
			return s.advanceTemplate(ctx, tx, "payroll_schedules", schedule.ID, schedule.NextRunDate, today)
		})
		switch {
		case txErr == nil:
			report.Created++
		case db.IsDuplicateKeyErr(txErr):
			// Lost the race against a concurrent run; the unique index held.
			outcome.Status = recurringdomain.OutcomeSkipped
			outcome.Reason = "payroll already generated this week"
			report.Skipped++
		default:
			outcome.Status = recurringdomain.OutcomeError
			outcome.Reason = txErr.Error()
			report.Failed++
			s.log.Error("payroll generation failed",
				zap.String("schedule_id", schedule.ID.String()),
				zap.Error(txErr),
			)
		}
		report.Details = append(report.Details, outcome)
	}

	return report, nil
}

// advanceTemplate moves a template's cadence anchor one calendar month past
// its current value and stamps the run date. Running inside the instance's
// transaction keeps creation and advancement atomic, so a template is never
// left half-advanced.
func (s *Service) advanceTemplate(ctx context.Context, tx *gorm.DB, table string, id snowflake.ID, nextRunDate, today time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE `+table+` SET next_run_date = ?, last_run_date = ?, updated_at = ? WHERE id = ?`,
		recurringdomain.NextMonthlyRun(nextRunDate),
		today,
		s.clock.Now(),
		id,
	).Error
}
