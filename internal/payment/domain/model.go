package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Income classification values.
const (
	ClassificationFiscal    = "fiscal"
	ClassificationNonFiscal = "no_fiscal"
)

var (
	ErrIncomeNotFound  = errors.New("income_not_found")
	ErrNoPaymentsFound = errors.New("no_payments_found")
	ErrInvalidIncomeID = errors.New("invalid_income_id")
	ErrInvalidOrderID  = errors.New("invalid_order_id")
)

// Payment applies money from one income against one order's debt. Rows are
// deleted only by the reversal engine.
type Payment struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	OrderID   snowflake.ID    `gorm:"not null;index"`
	IncomeID  snowflake.ID    `gorm:"not null;index"`
	Amount    decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Payment) TableName() string { return "order_payments" }

// Income is a recorded inbound monetary transaction. One income backs zero or
// more order payments (more than one in bulk-payment scenarios).
type Income struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	Amount         decimal.Decimal `gorm:"type:numeric;not null"`
	Classification string          `gorm:"type:text;not null"`
	IncomeDate     time.Time       `gorm:"not null"`
	Description    string          `gorm:"type:text"`
	Status         string          `gorm:"type:text;not null"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Income) TableName() string { return "incomes" }

// ReverseResult reports a completed reversal of one income.
type ReverseResult struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	IncomeID     snowflake.ID    `json:"income_id"`
	Amount       decimal.Decimal `json:"amount"`
	OrderNumbers []string        `json:"order_numbers"`
}

// ReverseAllResult reports reversing every payment on one order.
type ReverseAllResult struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	OrderNumber   string          `json:"order_number"`
	Reversed      int             `json:"reversed"`
	Failed        int             `json:"failed"`
	TotalReversed decimal.Decimal `json:"total_reversed"`
}

// Service is the payment reversal engine.
type Service interface {
	Reverse(ctx context.Context, incomeID snowflake.ID, description string) (ReverseResult, error)
	ReverseAllForOrder(ctx context.Context, orderID snowflake.ID) (ReverseAllResult, error)
}

// Repository is the raw persistence surface used by the reversal engine. All
// methods run against the handle they are given so callers control
// transaction scope.
type Repository interface {
	FindIncome(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Income, error)
	FindPaymentsByIncome(ctx context.Context, db *gorm.DB, incomeID snowflake.ID) ([]Payment, error)
	FindPaymentsByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Payment, error)
	DeletePaymentsByIncome(ctx context.Context, db *gorm.DB, incomeID snowflake.ID) (int64, error)
	DeleteIncome(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	TouchOrders(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID, now time.Time) error
	OrderNumbers(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) ([]string, error)
}
