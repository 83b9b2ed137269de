package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servifield/servifield/internal/clock"
	collectionsdomain "github.com/servifield/servifield/internal/collections/domain"
	orderdomain "github.com/servifield/servifield/internal/order/domain"
	policydomain "github.com/servifield/servifield/internal/policy/domain"
	"github.com/shopspring/decimal"
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

func NewService(p Params) collectionsdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("collections.builder"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

type pendingOrderRow struct {
	ID            snowflake.ID
	OrderNumber   string
	ClientName    string
	EstimatedCost decimal.Decimal
	DeliveryDate  *time.Time
	Paid          decimal.Decimal
}

type pendingPolicyRow struct {
	PolicyClientID snowflake.ID
	ClientName     string
	PolicyNumber   string
	Amount         decimal.Decimal
	DueDate        time.Time
}

// Rebuild deletes the whole cache and reinserts one row per order with a
// positive pending balance and one row per unpaid policy period. Everything
// runs in one transaction: a mid-run failure rolls back rather than leaving
// a half-deleted cache behind.
func (s *Service) Rebuild(ctx context.Context) (collectionsdomain.RebuildResult, error) {
	now := s.clock.Now()
	result := collectionsdomain.RebuildResult{Timestamp: now}

	orders, err := s.fetchPendingOrders(ctx)
	if err != nil {
		return result, err
	}
	policies, err := s.fetchPendingPolicies(ctx)
	if err != nil {
		return result, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM collections_cache`).Error; err != nil {
			return err
		}

		for _, order := range orders {
			result.OrdersProcessed++
			pending := order.EstimatedCost.Sub(order.Paid)
			if pending.Sign() <= 0 {
				continue
			}
			overdue := order.DeliveryDate != nil && order.DeliveryDate.Before(now)
			if err := s.insertEntry(ctx, tx, collectionsdomain.CacheEntry{
				SourceType:      collectionsdomain.SourceTypeOrder,
				SourceID:        order.ID,
				AmountPending:   pending,
				DueDate:         order.DeliveryDate,
				Overdue:         overdue,
				ClientName:      order.ClientName,
				ReferenceNumber: order.OrderNumber,
			}, now); err != nil {
				return err
			}
			result.RowsCached++
		}

		for _, policy := range policies {
			result.PoliciesProcessed++
			due := policy.DueDate
			if err := s.insertEntry(ctx, tx, collectionsdomain.CacheEntry{
				SourceType:      collectionsdomain.SourceTypePolicy,
				SourceID:        policy.PolicyClientID,
				AmountPending:   policy.Amount,
				DueDate:         &due,
				Overdue:         due.Before(now),
				ClientName:      policy.ClientName,
				ReferenceNumber: policy.PolicyNumber,
			}, now); err != nil {
				return err
			}
			result.RowsCached++
		}

		return nil
	})
	if err != nil {
		return collectionsdomain.RebuildResult{Timestamp: now}, err
	}

	s.log.Info("collections cache rebuilt",
		zap.Int("orders_processed", result.OrdersProcessed),
		zap.Int("policies_processed", result.PoliciesProcessed),
		zap.Int("rows_cached", result.RowsCached),
	)
	return result, nil
}

func (s *Service) fetchPendingOrders(ctx context.Context) ([]pendingOrderRow, error) {
	statuses := make([]string, 0, len(orderdomain.CollectibleStatuses))
	for _, status := range orderdomain.CollectibleStatuses {
		statuses = append(statuses, string(status))
	}

	var rows []pendingOrderRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT o.id, o.order_number, o.client_name, o.estimated_cost, o.delivery_date,
		        COALESCE(SUM(p.amount), 0) AS paid
		 FROM orders o
		 LEFT JOIN order_payments p ON p.order_id = o.id
		 WHERE o.deleted_at IS NULL AND o.status IN ?
		 GROUP BY o.id, o.order_number, o.client_name, o.estimated_cost, o.delivery_date
		 ORDER BY o.id`,
		statuses,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) fetchPendingPolicies(ctx context.Context) ([]pendingPolicyRow, error) {
	var rows []pendingPolicyRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT pp.policy_client_id, pc.client_name, pc.policy_number, pp.amount, pp.due_date
		 FROM policy_payments pp
		 JOIN policy_clients pc ON pc.id = pp.policy_client_id
		 WHERE pc.active = ? AND pp.status = ?
		 ORDER BY pp.id`,
		true,
		policydomain.PolicyPaymentStatusPending,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) insertEntry(ctx context.Context, tx *gorm.DB, entry collectionsdomain.CacheEntry, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO collections_cache (
			id, source_type, source_id, amount_pending, due_date,
			overdue, client_name, reference_number, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.genID.Generate(),
		entry.SourceType,
		entry.SourceID,
		entry.AmountPending,
		entry.DueDate,
		entry.Overdue,
		entry.ClientName,
		entry.ReferenceNumber,
		now,
	).Error
}
