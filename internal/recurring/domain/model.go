package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Outcome of processing one recurring template.
type OutcomeStatus string

const (
	// OutcomeOK means the obligation instance was created and the template
	// advanced to the next period.
	OutcomeOK OutcomeStatus = "ok"
	// OutcomeSkipped means an instance already existed for the period.
	OutcomeSkipped OutcomeStatus = "skipped"
	// OutcomeError means nothing was created; the template stays unadvanced
	// and is retried on the next run.
	OutcomeError OutcomeStatus = "error"
	// OutcomePartial means the instance exists but the template failed to
	// advance and needs manual correction before it duplicates.
	OutcomePartial OutcomeStatus = "partial"
)

// ExpenseTemplate is a fixed monthly expense schedule.
type ExpenseTemplate struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	Name           string          `gorm:"type:text;not null"`
	Amount         decimal.Decimal `gorm:"type:numeric;not null"`
	Classification string          `gorm:"type:text;not null"`
	NextRunDate    time.Time       `gorm:"not null;index"`
	LastRunDate    *time.Time
	Active         bool      `gorm:"not null;default:true;index"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ExpenseTemplate) TableName() string { return "expense_templates" }

// Expense is one generated fixed-expense instance, dated the day it was
// generated.
type Expense struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	TemplateID     snowflake.ID    `gorm:"not null;index"`
	Description    string          `gorm:"type:text;not null"`
	Amount         decimal.Decimal `gorm:"type:numeric;not null"`
	Classification string          `gorm:"type:text;not null"`
	ExpenseDate    time.Time       `gorm:"not null"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Expense) TableName() string { return "expenses" }

// PayrollSchedule is a technician's recurring payroll template.
type PayrollSchedule struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	EmployeeID   snowflake.ID    `gorm:"not null;index"`
	EmployeeName string          `gorm:"type:text;not null"`
	Amount       decimal.Decimal `gorm:"type:numeric;not null"`
	NextRunDate  time.Time       `gorm:"not null;index"`
	LastRunDate  *time.Time
	Active       bool      `gorm:"not null;default:true;index"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PayrollSchedule) TableName() string { return "payroll_schedules" }

// PayrollRecord is one generated payroll row. The unique index on
// (employee_id, week_start) is the second line of defense behind the weekly
// existence check.
type PayrollRecord struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	ScheduleID snowflake.ID    `gorm:"not null;index"`
	EmployeeID snowflake.ID    `gorm:"not null;uniqueIndex:ux_payroll_employee_week,priority:1"`
	Amount     decimal.Decimal `gorm:"type:numeric;not null"`
	PayDate    time.Time       `gorm:"not null"`
	WeekStart  time.Time       `gorm:"not null;uniqueIndex:ux_payroll_employee_week,priority:2"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PayrollRecord) TableName() string { return "payroll_records" }

// TemplateOutcome is the per-template detail line of a generator run.
type TemplateOutcome struct {
	TemplateID snowflake.ID  `json:"template_id"`
	Name       string        `json:"name,omitempty"`
	Status     OutcomeStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
}

// RunReport aggregates one generator run. Per-template failures live in
// Details; only infrastructure failure is surfaced as an error.
type RunReport struct {
	Processed int               `json:"processed"`
	Created   int               `json:"created"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Details   []TemplateOutcome `json:"details"`
	Timestamp time.Time         `json:"timestamp"`
}

// Service generates the next occurrence of each due recurring template
// exactly once per period.
type Service interface {
	GenerateExpenses(ctx context.Context) (RunReport, error)
	GeneratePolicyPayments(ctx context.Context) (RunReport, error)
	GeneratePayroll(ctx context.Context, force bool) (RunReport, error)
}

// NextMonthlyRun advances a cadence anchor by exactly one calendar month in
// UTC, preserving day-of-month semantics (overflow days spill into the next
// month the way civil date arithmetic does).
func NextMonthlyRun(anchor time.Time) time.Time {
	anchor = anchor.UTC()
	return time.Date(anchor.Year(), anchor.Month()+1, anchor.Day(), 0, 0, 0, 0, time.UTC)
}
