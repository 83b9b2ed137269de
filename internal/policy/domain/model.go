package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PolicyPaymentStatus values for schedule entries.
const (
	PolicyPaymentStatusPending = "pendiente"
	PolicyPaymentStatusPaid    = "pagado"
)

// CanonicalDueDay is the day of month every policy payment is due.
const CanonicalDueDay = 5

// PolicyClient is a client holding a maintenance policy. The cadence anchor
// fields make it a recurring template for monthly policy payments.
type PolicyClient struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	ClientName    string          `gorm:"type:text;not null"`
	PolicyNumber  string          `gorm:"type:text;not null;uniqueIndex"`
	MonthlyAmount decimal.Decimal `gorm:"type:numeric;not null"`
	NextRunDate   time.Time       `gorm:"not null;index"`
	LastRunDate   *time.Time
	Active        bool      `gorm:"not null;default:true;index"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PolicyClient) TableName() string { return "policy_clients" }

// PolicyPayment is one generated monthly obligation for a policy client.
type PolicyPayment struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	PolicyClientID snowflake.ID    `gorm:"not null;index"`
	PaymentYear    int             `gorm:"not null"`
	PaymentMonth   int             `gorm:"not null"`
	DueDate        time.Time       `gorm:"not null"`
	Amount         decimal.Decimal `gorm:"type:numeric;not null"`
	Status         string          `gorm:"type:text;not null;index"`
	IsPaid         bool            `gorm:"not null;default:false;index"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PolicyPayment) TableName() string { return "policy_payments" }

// PendingCollection is a dependent collection record keyed by policy client
// and due date; the normalizer cascades due-date corrections into it.
type PendingCollection struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	PolicyClientID snowflake.ID    `gorm:"not null;index"`
	DueDate        time.Time       `gorm:"not null"`
	Status         string          `gorm:"type:text;not null"`
	Amount         decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PendingCollection) TableName() string { return "pending_collections" }

// CanonicalDueDate derives the due date rule from a payment period: the 5th
// day of (year, month), UTC.
func CanonicalDueDate(year, month int) time.Time {
	return time.Date(year, time.Month(month), CanonicalDueDay, 0, 0, 0, 0, time.UTC)
}

// NormalizeResult reports one normalizer run. In dry-run mode Updated carries
// the would-be correction count and nothing is written.
type NormalizeResult struct {
	Checked   int       `json:"checked"`
	Updated   int       `json:"updated"`
	DryRun    bool      `json:"dry_run"`
	Timestamp time.Time `json:"timestamp"`
}

// Service normalizes drifted due dates on unpaid policy payments.
type Service interface {
	NormalizeDueDates(ctx context.Context, dryRun bool) (NormalizeResult, error)
}
