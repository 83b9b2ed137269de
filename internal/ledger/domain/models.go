package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// OrderSummary is the derived payment state of a single order. The balance is
// never stored; it is recomputed from the payment rows on every read.
type OrderSummary struct {
	OrderID          snowflake.ID    `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	Total            decimal.Decimal `json:"total"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	IsFullyPaid      bool            `json:"is_fully_paid"`
	PaymentCount     int             `json:"payment_count"`
}

// CashbackSummary is the reward earned on an order's recorded payments.
type CashbackSummary struct {
	OrderID   snowflake.ID    `json:"order_id"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Rate      decimal.Decimal `json:"rate"`
	Reward    decimal.Decimal `json:"reward"`
}

// Service exposes read-only projections over an order's payment records.
type Service interface {
	OrderSummary(ctx context.Context, orderID snowflake.ID) (OrderSummary, error)
	CashbackSummary(ctx context.Context, orderID snowflake.ID) (CashbackSummary, error)
}

// Summarize folds a list of payment amounts into the derived balance state.
// A non-positive total means the order total is unset, not settled: the
// remaining balance passes through unchanged and the order is never reported
// as fully paid.
func Summarize(total decimal.Decimal, amounts []decimal.Decimal) (totalPaid, remaining decimal.Decimal, fullyPaid bool) {
	totalPaid = decimal.Zero
	for _, amount := range amounts {
		totalPaid = totalPaid.Add(amount)
	}
	if total.Sign() <= 0 {
		return totalPaid, total, false
	}
	remaining = total.Sub(totalPaid)
	if remaining.Sign() < 0 {
		remaining = decimal.Zero
	}
	return totalPaid, remaining, remaining.IsZero()
}
