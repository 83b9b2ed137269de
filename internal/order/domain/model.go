package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a service order.
type OrderStatus string

const (
	OrderStatusWaiting   OrderStatus = "en_espera"
	OrderStatusActive    OrderStatus = "en_proceso"
	OrderStatusFinished  OrderStatus = "terminado"
	OrderStatusDelivered OrderStatus = "entregado"
	OrderStatusCanceled  OrderStatus = "cancelado"
)

// CollectibleStatuses are the states in which an order still owes money.
// Delivered and canceled orders drop out of collections.
var CollectibleStatuses = []OrderStatus{
	OrderStatusWaiting,
	OrderStatusActive,
	OrderStatusFinished,
}

var (
	ErrOrderNotFound = errors.New("order_not_found")
	ErrInvalidOrder  = errors.New("invalid_order")
)

// Order is a service order. Orders are never physically deleted; DeletedAt
// marks soft deletion.
type Order struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	OrderNumber   string          `gorm:"type:text;not null;uniqueIndex"`
	ClientName    string          `gorm:"type:text;not null"`
	EstimatedCost decimal.Decimal `gorm:"type:numeric;not null"`
	TotalCost     decimal.Decimal `gorm:"type:numeric;not null"`
	DeliveryDate  *time.Time
	ScheduledDate *time.Time
	Status        OrderStatus `gorm:"type:text;not null;index"`
	DeletedAt     *time.Time  `gorm:"index"`
	CreatedAt     time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }

// OrderStatusLog records a single status transition. ChangedBy is nil when
// the transition was system-initiated.
type OrderStatusLog struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OrderID        snowflake.ID `gorm:"not null;index"`
	PreviousStatus OrderStatus  `gorm:"type:text;not null"`
	NewStatus      OrderStatus  `gorm:"type:text;not null"`
	ChangedBy      *string      `gorm:"type:text"`
	Note           string       `gorm:"type:text"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderStatusLog) TableName() string { return "order_status_logs" }

// ActivationResult summarizes one run of the scheduled-order activation job.
type ActivationResult struct {
	Processed int       `json:"processed"`
	Activated int       `json:"activated"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// Service drives time-based order lifecycle transitions.
type Service interface {
	ActivateScheduledOrders(ctx context.Context) (ActivationResult, error)
}
