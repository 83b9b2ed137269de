package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servifield/servifield/internal/clock"
	policydomain "github.com/servifield/servifield/internal/policy/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// correctionBatchSize caps how many due-date fixes are applied per transaction.
const correctionBatchSize = 100

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func NewService(p Params) policydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("policy.normalizer"),
		clock: p.Clock,
	}
}

type unpaidRow struct {
	ID             snowflake.ID
	PolicyClientID snowflake.ID
	PaymentYear    int
	PaymentMonth   int
	DueDate        time.Time
}

type correction struct {
	id             snowflake.ID
	policyClientID snowflake.ID
	oldDueDate     time.Time
	newDueDate     time.Time
}

// NormalizeDueDates corrects every unpaid policy payment whose due date has
// drifted from the canonical rule (5th of its payment period). Corrections
// are applied in fixed-size batches and then cascaded, best-effort, into the
// pending collection records that still reference the old due date.
func (s *Service) NormalizeDueDates(ctx context.Context, dryRun bool) (policydomain.NormalizeResult, error) {
	now := s.clock.Now()

	var rows []unpaidRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, policy_client_id, payment_year, payment_month, due_date
		 FROM policy_payments
		 WHERE is_paid = ?
		 ORDER BY id`,
		false,
	).Scan(&rows).Error
	if err != nil {
		return policydomain.NormalizeResult{}, err
	}

	corrections := make([]correction, 0)
	for _, row := range rows {
		canonical := policydomain.CanonicalDueDate(row.PaymentYear, row.PaymentMonth)
		if row.DueDate.UTC().Truncate(24 * time.Hour).Equal(canonical) {
			continue
		}
		corrections = append(corrections, correction{
			id:             row.ID,
			policyClientID: row.PolicyClientID,
			oldDueDate:     row.DueDate,
			newDueDate:     canonical,
		})
	}

	result := policydomain.NormalizeResult{
		Checked:   len(rows),
		DryRun:    dryRun,
		Timestamp: now,
	}

	if dryRun {
		result.Updated = len(corrections)
		s.log.Info("due-date normalization dry run",
			zap.Int("checked", result.Checked),
			zap.Int("would_update", result.Updated),
		)
		return result, nil
	}

	for start := 0; start < len(corrections); start += correctionBatchSize {
		end := start + correctionBatchSize
		if end > len(corrections) {
			end = len(corrections)
		}
		batch := corrections[start:end]

		applied := 0
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, fix := range batch {
				res := tx.Exec(
					`UPDATE policy_payments SET due_date = ? WHERE id = ?`,
					fix.newDueDate,
					fix.id,
				)
				if res.Error != nil {
					return res.Error
				}
				applied += int(res.RowsAffected)
			}
			return nil
		})
		if err != nil {
			return result, err
		}
		result.Updated += applied

		for _, fix := range batch {
			s.cascadeCorrection(ctx, fix)
		}
	}

	s.log.Info("due-date normalization applied",
		zap.Int("checked", result.Checked),
		zap.Int("updated", result.Updated),
	)
	return result, nil
}

// cascadeCorrection propagates one due-date fix to the pending collection
// records for the same policy client and old due date. Failures are logged
// and not reported; the primary correction already committed.
func (s *Service) cascadeCorrection(ctx context.Context, fix correction) {
	err := s.db.WithContext(ctx).Exec(
		`UPDATE pending_collections
		 SET due_date = ?
		 WHERE policy_client_id = ? AND due_date = ? AND status = ?`,
		fix.newDueDate,
		fix.policyClientID,
		fix.oldDueDate,
		policydomain.PolicyPaymentStatusPending,
	).Error
	if err != nil {
		s.log.Warn("failed to cascade due-date correction",
			zap.String("policy_client_id", fix.policyClientID.String()),
			zap.Time("old_due_date", fix.oldDueDate),
			zap.Error(err),
		)
	}
}
