package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	OperationReverse = "reverse"
)

// FinancialOperationLog is an immutable audit record for a mutating financial
// action. OperationDate keeps the affected record's own date; CreatedAt keeps
// when the operation ran. Both are preserved on purpose.
type FinancialOperationLog struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	Operation      string          `gorm:"type:text;not null;index"`
	SourceTable    string          `gorm:"column:table_name;type:text;not null"`
	RecordID       snowflake.ID    `gorm:"not null;index"`
	Snapshot       datatypes.JSON  `gorm:"type:jsonb"`
	Description    string          `gorm:"type:text"`
	Amount         decimal.Decimal `gorm:"type:numeric;not null"`
	Classification string          `gorm:"type:text"`
	OperationDate  time.Time       `gorm:"not null"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (FinancialOperationLog) TableName() string { return "financial_operation_logs" }

// Service appends financial operation log entries. Callers treat failures as
// non-fatal; the log never blocks the operation it describes.
type Service interface {
	Log(ctx context.Context, entry *FinancialOperationLog) error
}
