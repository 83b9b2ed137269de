package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/servifield/servifield/internal/config"
	ledgerdomain "github.com/servifield/servifield/internal/ledger/domain"
	orderdomain "github.com/servifield/servifield/internal/order/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
	Cfg config.Config
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	cashbackRate decimal.Decimal
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("ledger.service"),
		cashbackRate: p.Cfg.CashbackRate,
	}
}

type orderRow struct {
	ID          snowflake.ID
	OrderNumber string
	TotalCost   decimal.Decimal
}

func (s *Service) OrderSummary(ctx context.Context, orderID snowflake.ID) (ledgerdomain.OrderSummary, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return ledgerdomain.OrderSummary{}, err
	}

	amounts, err := s.paymentAmounts(ctx, orderID)
	if err != nil {
		return ledgerdomain.OrderSummary{}, err
	}

	totalPaid, remaining, fullyPaid := ledgerdomain.Summarize(order.TotalCost, amounts)
	return ledgerdomain.OrderSummary{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		Total:            order.TotalCost,
		TotalPaid:        totalPaid,
		RemainingBalance: remaining,
		IsFullyPaid:      fullyPaid,
		PaymentCount:     len(amounts),
	}, nil
}

func (s *Service) CashbackSummary(ctx context.Context, orderID snowflake.ID) (ledgerdomain.CashbackSummary, error) {
	if _, err := s.loadOrder(ctx, orderID); err != nil {
		return ledgerdomain.CashbackSummary{}, err
	}

	amounts, err := s.paymentAmounts(ctx, orderID)
	if err != nil {
		return ledgerdomain.CashbackSummary{}, err
	}

	totalPaid := decimal.Zero
	for _, amount := range amounts {
		totalPaid = totalPaid.Add(amount)
	}

	return ledgerdomain.CashbackSummary{
		OrderID:   orderID,
		TotalPaid: totalPaid,
		Rate:      s.cashbackRate,
		Reward:    totalPaid.Mul(s.cashbackRate).Round(2),
	}, nil
}

func (s *Service) loadOrder(ctx context.Context, orderID snowflake.ID) (*orderRow, error) {
	var order orderRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, order_number, total_cost
		 FROM orders
		 WHERE id = ? AND deleted_at IS NULL
		 LIMIT 1`,
		orderID,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, orderdomain.ErrOrderNotFound
	}
	return &order, nil
}

func (s *Service) paymentAmounts(ctx context.Context, orderID snowflake.ID) ([]decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := s.db.WithContext(ctx).Raw(
		`SELECT amount FROM order_payments WHERE order_id = ? ORDER BY created_at ASC, id ASC`,
		orderID,
	).Scan(&amounts).Error
	if err != nil {
		return nil, err
	}
	return amounts, nil
}
