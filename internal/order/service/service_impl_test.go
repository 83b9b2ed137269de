package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/servifield/servifield/internal/clock"
	"github.com/servifield/servifield/internal/migration"
	orderdomain "github.com/servifield/servifield/internal/order/domain"
	orderservice "github.com/servifield/servifield/internal/order/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migration.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newService(t *testing.T, db *gorm.DB, now time.Time) (orderdomain.Service, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := orderservice.NewService(orderservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(now),
	})
	return svc, node
}

func seedOrder(t *testing.T, db *gorm.DB, node *snowflake.Node, status orderdomain.OrderStatus, scheduled *time.Time) snowflake.ID {
	t.Helper()
	id := node.Generate()
	if err := db.Exec(
		`INSERT INTO orders (id, order_number, client_name, estimated_cost, total_cost, scheduled_date, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, fmt.Sprintf("ORD-%d", id), "Cliente", "100", "100", scheduled, status, time.Now(), time.Now(),
	).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return id
}

func TestActivateScheduledOrders(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	svc, node := newService(t, db, now)

	yesterday := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)

	dueID := seedOrder(t, db, node, orderdomain.OrderStatusWaiting, &yesterday)
	dueTodayID := seedOrder(t, db, node, orderdomain.OrderStatusWaiting, &today)
	futureID := seedOrder(t, db, node, orderdomain.OrderStatusWaiting, &tomorrow)
	activeID := seedOrder(t, db, node, orderdomain.OrderStatusActive, &yesterday)

	result, err := svc.ActivateScheduledOrders(context.Background())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if result.Processed != 2 || result.Activated != 2 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	status := func(id snowflake.ID) orderdomain.OrderStatus {
		var s orderdomain.OrderStatus
		if err := db.Raw(`SELECT status FROM orders WHERE id = ?`, id).Scan(&s).Error; err != nil {
			t.Fatalf("scan status: %v", err)
		}
		return s
	}
	if status(dueID) != orderdomain.OrderStatusActive {
		t.Fatalf("expected due order activated, got %s", status(dueID))
	}
	if status(dueTodayID) != orderdomain.OrderStatusActive {
		t.Fatalf("an order scheduled for today is due, got %s", status(dueTodayID))
	}
	if status(futureID) != orderdomain.OrderStatusWaiting {
		t.Fatalf("future order must stay waiting, got %s", status(futureID))
	}
	if status(activeID) != orderdomain.OrderStatusActive {
		t.Fatalf("active order untouched, got %s", status(activeID))
	}
}

func TestActivateWritesSystemStatusLog(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	svc, node := newService(t, db, now)

	yesterday := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	orderID := seedOrder(t, db, node, orderdomain.OrderStatusWaiting, &yesterday)

	if _, err := svc.ActivateScheduledOrders(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}

	var row struct {
		PreviousStatus string
		NewStatus      string
		ChangedBy      *string
		Note           string
	}
	if err := db.Raw(
		`SELECT previous_status, new_status, changed_by, note FROM order_status_logs WHERE order_id = ?`,
		orderID,
	).Scan(&row).Error; err != nil {
		t.Fatalf("scan status log: %v", err)
	}
	if row.PreviousStatus != string(orderdomain.OrderStatusWaiting) || row.NewStatus != string(orderdomain.OrderStatusActive) {
		t.Fatalf("unexpected transition %s -> %s", row.PreviousStatus, row.NewStatus)
	}
	if row.ChangedBy != nil {
		t.Fatalf("system transitions carry no actor, got %v", *row.ChangedBy)
	}
	if row.Note == "" {
		t.Fatal("expected an explanatory note on the log entry")
	}
}

func TestActivateIgnoresSoftDeletedOrders(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	svc, node := newService(t, db, now)

	yesterday := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	orderID := seedOrder(t, db, node, orderdomain.OrderStatusWaiting, &yesterday)
	if err := db.Exec(`UPDATE orders SET deleted_at = ? WHERE id = ?`, now, orderID).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	result, err := svc.ActivateScheduledOrders(context.Background())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if result.Processed != 0 {
		t.Fatalf("soft-deleted order must not be processed, got %+v", result)
	}
}

func TestActivateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	svc, node := newService(t, db, now)

	yesterday := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	orderID := seedOrder(t, db, node, orderdomain.OrderStatusWaiting, &yesterday)

	if _, err := svc.ActivateScheduledOrders(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := svc.ActivateScheduledOrders(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var logs int64
	if err := db.Raw(`SELECT COUNT(1) FROM order_status_logs WHERE order_id = ?`, orderID).Scan(&logs).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if logs != 1 {
		t.Fatalf("expected a single status log entry, got %d", logs)
	}
}
