package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servifield/servifield/internal/clock"
	orderdomain "github.com/servifield/servifield/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// activationNote is the fixed note written on every automatic transition.
const activationNote = "activated automatically on scheduled date"

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

func NewService(p Params) orderdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("order.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

type dueOrderRow struct {
	ID     snowflake.ID
	Status orderdomain.OrderStatus
}

// ActivateScheduledOrders moves every waiting order whose scheduled date has
// arrived into en_proceso and writes a system-initiated status log entry. A
// failure on one order skips it and the batch continues.
func (s *Service) ActivateScheduledOrders(ctx context.Context) (orderdomain.ActivationResult, error) {
	now := s.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	result := orderdomain.ActivationResult{Timestamp: now}

	var due []dueOrderRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, status
		 FROM orders
		 WHERE status = ? AND scheduled_date <= ? AND deleted_at IS NULL
		 ORDER BY id`,
		orderdomain.OrderStatusWaiting,
		today,
	).Scan(&due).Error
	if err != nil {
		return result, err
	}

	for _, order := range due {
		result.Processed++
		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Exec(
				`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
				orderdomain.OrderStatusActive,
				now,
				order.ID,
				orderdomain.OrderStatusWaiting,
			)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Another actor already moved it; nothing to log.
				return nil
			}
			return tx.Exec(
				`INSERT INTO order_status_logs (
					id, order_id, previous_status, new_status, changed_by, note, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				order.ID,
				orderdomain.OrderStatusWaiting,
				orderdomain.OrderStatusActive,
				nil,
				activationNote,
				now,
			).Error
		})
		if txErr != nil {
			result.Failed++
			s.log.Error("failed to activate scheduled order",
				zap.String("order_id", order.ID.String()),
				zap.Error(txErr),
			)
			continue
		}
		result.Activated++
	}

	return result, nil
}
