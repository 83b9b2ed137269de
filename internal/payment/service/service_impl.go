package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/servifield/servifield/internal/audit/domain"
	"github.com/servifield/servifield/internal/clock"
	paymentdomain "github.com/servifield/servifield/internal/payment/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	AuditSvc auditdomain.Service
	Repo     paymentdomain.Repository
	Clock    clock.Clock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	auditSvc auditdomain.Service
	repo     paymentdomain.Repository
	clock    clock.Clock
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		auditSvc: p.AuditSvc,
		repo:     p.Repo,
		clock:    p.Clock,
	}
}

// Reverse removes every payment funded by the income, invalidates the owning
// orders' cached state by touching their modification timestamp, and deletes
// the income, all in one transaction. The audit entry is written after commit
// and is best-effort: a logging failure never undoes the reversal.
func (s *Service) Reverse(ctx context.Context, incomeID snowflake.ID, description string) (paymentdomain.ReverseResult, error) {
	if incomeID == 0 {
		return paymentdomain.ReverseResult{}, paymentdomain.ErrInvalidIncomeID
	}

	income, err := s.repo.FindIncome(ctx, s.db, incomeID)
	if err != nil {
		return paymentdomain.ReverseResult{}, err
	}
	if income == nil {
		return paymentdomain.ReverseResult{}, paymentdomain.ErrIncomeNotFound
	}

	now := s.clock.Now()
	var orderIDs []snowflake.ID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payments, err := s.repo.FindPaymentsByIncome(ctx, tx, incomeID)
		if err != nil {
			return err
		}

		if len(payments) > 0 {
			if _, err := s.repo.DeletePaymentsByIncome(ctx, tx, incomeID); err != nil {
				return err
			}
			orderIDs = distinctOrderIDs(payments)
			if err := s.repo.TouchOrders(ctx, tx, orderIDs, now); err != nil {
				return err
			}
		}

		deleted, err := s.repo.DeleteIncome(ctx, tx, incomeID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return paymentdomain.ErrIncomeNotFound
		}
		return nil
	})
	if err != nil {
		return paymentdomain.ReverseResult{}, err
	}

	orderNumbers, err := s.repo.OrderNumbers(ctx, s.db, orderIDs)
	if err != nil {
		s.log.Warn("failed to resolve order numbers after reversal",
			zap.String("income_id", incomeID.String()),
			zap.Error(err),
		)
		orderNumbers = nil
	}

	if description == "" {
		description = fmt.Sprintf("reversal of income %s", incomeID)
	}
	s.logReversal(ctx, income, description)

	return paymentdomain.ReverseResult{
		Success:      true,
		Message:      "payment reversed",
		IncomeID:     incomeID,
		Amount:       income.Amount,
		OrderNumbers: orderNumbers,
	}, nil
}

// ReverseAllForOrder groups the order's payments by funding income and issues
// one reversal per income concurrently.
func (s *Service) ReverseAllForOrder(ctx context.Context, orderID snowflake.ID) (paymentdomain.ReverseAllResult, error) {
	if orderID == 0 {
		return paymentdomain.ReverseAllResult{}, paymentdomain.ErrInvalidOrderID
	}

	payments, err := s.repo.FindPaymentsByOrder(ctx, s.db, orderID)
	if err != nil {
		return paymentdomain.ReverseAllResult{}, err
	}
	if len(payments) == 0 {
		return paymentdomain.ReverseAllResult{}, paymentdomain.ErrNoPaymentsFound
	}

	incomeIDs := distinctIncomeIDs(payments)

	var (
		mu            sync.Mutex
		wg            sync.WaitGroup
		reversed      int
		failed        int
		totalReversed = decimal.Zero
	)
	for _, incomeID := range incomeIDs {
		wg.Add(1)
		go func(id snowflake.ID) {
			defer wg.Done()
			result, err := s.Reverse(ctx, id, "")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				s.log.Warn("reversal failed for income",
					zap.String("income_id", id.String()),
					zap.String("order_id", orderID.String()),
					zap.Error(err),
				)
				return
			}
			reversed++
			totalReversed = totalReversed.Add(result.Amount)
		}(incomeID)
	}
	wg.Wait()

	numbers, err := s.repo.OrderNumbers(ctx, s.db, []snowflake.ID{orderID})
	if err != nil {
		s.log.Warn("failed to resolve order number", zap.String("order_id", orderID.String()), zap.Error(err))
	}
	orderNumber := ""
	if len(numbers) > 0 {
		orderNumber = numbers[0]
	}

	return paymentdomain.ReverseAllResult{
		Success:       failed == 0,
		Message:       fmt.Sprintf("reversed %d of %d incomes", reversed, len(incomeIDs)),
		OrderNumber:   orderNumber,
		Reversed:      reversed,
		Failed:        failed,
		TotalReversed: totalReversed,
	}, nil
}

func (s *Service) logReversal(ctx context.Context, income *paymentdomain.Income, description string) {
	snapshot, err := json.Marshal(income)
	if err != nil {
		s.log.Warn("failed to snapshot income for audit log", zap.Error(err))
		snapshot = nil
	}
	entry := &auditdomain.FinancialOperationLog{
		Operation:      auditdomain.OperationReverse,
		SourceTable:    paymentdomain.Income{}.TableName(),
		RecordID:       income.ID,
		Snapshot:       datatypes.JSON(snapshot),
		Description:    description,
		Amount:         income.Amount,
		Classification: income.Classification,
		OperationDate:  income.IncomeDate,
	}
	// Best-effort: the audit service already logs its own failures.
	_ = s.auditSvc.Log(ctx, entry)
}

func distinctOrderIDs(payments []paymentdomain.Payment) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(payments))
	ids := make([]snowflake.ID, 0, len(payments))
	for _, payment := range payments {
		if _, ok := seen[payment.OrderID]; ok {
			continue
		}
		seen[payment.OrderID] = struct{}{}
		ids = append(ids, payment.OrderID)
	}
	return ids
}

func distinctIncomeIDs(payments []paymentdomain.Payment) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(payments))
	ids := make([]snowflake.ID, 0, len(payments))
	for _, payment := range payments {
		if _, ok := seen[payment.IncomeID]; ok {
			continue
		}
		seen[payment.IncomeID] = struct{}{}
		ids = append(ids, payment.IncomeID)
	}
	return ids
}
