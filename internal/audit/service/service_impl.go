package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/servifield/servifield/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
	}
}

func (s *Service) Log(ctx context.Context, entry *auditdomain.FinancialOperationLog) error {
	if entry == nil {
		return nil
	}
	if entry.ID == 0 {
		entry.ID = s.genID.Generate()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO financial_operation_logs (
			id, operation, table_name, record_id, snapshot,
			description, amount, classification, operation_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Operation,
		entry.SourceTable,
		entry.RecordID,
		entry.Snapshot,
		entry.Description,
		entry.Amount,
		entry.Classification,
		entry.OperationDate,
		entry.CreatedAt,
	).Error
	if err != nil {
		s.log.Warn("failed to append financial operation log",
			zap.String("operation", entry.Operation),
			zap.String("record_id", entry.RecordID.String()),
			zap.Error(err),
		)
	}
	return err
}
