package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Cache row source types.
const (
	SourceTypeOrder  = "order"
	SourceTypePolicy = "policy"
)

// CacheEntry is one denormalized pending-amount snapshot row. Entries carry
// no identity across rebuilds; the table content after a run is exactly the
// set of currently-pending items.
type CacheEntry struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	SourceType      string          `gorm:"type:text;not null;index"`
	SourceID        snowflake.ID    `gorm:"not null;index"`
	AmountPending   decimal.Decimal `gorm:"type:numeric;not null"`
	DueDate         *time.Time
	Overdue         bool      `gorm:"not null;default:false"`
	ClientName      string    `gorm:"type:text;not null"`
	ReferenceNumber string    `gorm:"type:text;not null"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CacheEntry) TableName() string { return "collections_cache" }

// RebuildResult reports one full cache rebuild.
type RebuildResult struct {
	OrdersProcessed   int       `json:"orders_processed"`
	PoliciesProcessed int       `json:"policies_processed"`
	RowsCached        int       `json:"rows_cached"`
	Timestamp         time.Time `json:"timestamp"`
}

// Service rebuilds the collections cache from scratch.
type Service interface {
	Rebuild(ctx context.Context) (RebuildResult, error)
}
