package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/servifield/servifield/internal/clock"
	collectionsservice "github.com/servifield/servifield/internal/collections/service"
	"github.com/servifield/servifield/internal/migration"
	obsmetrics "github.com/servifield/servifield/internal/observability/metrics"
	orderservice "github.com/servifield/servifield/internal/order/service"
	policyservice "github.com/servifield/servifield/internal/policy/service"
	recurringservice "github.com/servifield/servifield/internal/recurring/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestScheduler(t *testing.T, now time.Time, cfg Config) (*Scheduler, *gorm.DB, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migration.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fake := clock.NewFakeClock(now)
	log := zap.NewNop()

	recurringSvc := recurringservice.NewService(recurringservice.Params{DB: db, Log: log, GenID: node, Clock: fake})
	policySvc := policyservice.NewService(policyservice.Params{DB: db, Log: log, Clock: fake})
	collectionsSvc := collectionsservice.NewService(collectionsservice.Params{DB: db, Log: log, GenID: node, Clock: fake})
	orderSvc := orderservice.NewService(orderservice.Params{DB: db, Log: log, GenID: node, Clock: fake})

	sched, err := New(Params{
		DB:             db,
		Log:            log,
		RecurringSvc:   recurringSvc,
		PolicySvc:      policySvc,
		CollectionsSvc: collectionsSvc,
		OrderSvc:       orderSvc,
		Clock:          fake,
		Metrics:        obsmetrics.NewSchedulerMetrics(prometheus.NewRegistry()),
		Config:         cfg,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched, db, fake, node
}

func TestRunOnceDrivesAllJobs(t *testing.T) {
	now := time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC)
	sched, db, _, node := newTestScheduler(t, now, Config{})

	// One due expense template and one waiting order due for activation.
	if err := db.Exec(
		`INSERT INTO expense_templates (id, name, amount, classification, next_run_date, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		node.Generate(), "Renta local", "5000", "fiscal",
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true, time.Now(), time.Now(),
	).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}
	scheduled := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	if err := db.Exec(
		`INSERT INTO orders (id, order_number, client_name, estimated_cost, total_cost, scheduled_date, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.Generate(), "ORD-500", "Cliente", "900", "900", scheduled, "en_espera", time.Now(), time.Now(),
	).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	var expenses int64
	if err := db.Raw(`SELECT COUNT(1) FROM expenses`).Scan(&expenses).Error; err != nil {
		t.Fatalf("count expenses: %v", err)
	}
	if expenses != 1 {
		t.Fatalf("expected 1 generated expense, got %d", expenses)
	}

	var status string
	if err := db.Raw(`SELECT status FROM orders`).Scan(&status).Error; err != nil {
		t.Fatalf("scan status: %v", err)
	}
	if status != "en_proceso" {
		t.Fatalf("expected order activated, got %s", status)
	}

	// Collections runs last, so it sees the still-unpaid activated order.
	var cached int64
	if err := db.Raw(`SELECT COUNT(1) FROM collections_cache`).Scan(&cached).Error; err != nil {
		t.Fatalf("count cache: %v", err)
	}
	if cached != 1 {
		t.Fatalf("expected the unpaid order in the cache, got %d rows", cached)
	}
}

func TestRunOnceHonorsEnabledJobs(t *testing.T) {
	now := time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC)
	sched, db, _, node := newTestScheduler(t, now, Config{EnabledJobs: []string{"rebuild_collections"}})

	if err := db.Exec(
		`INSERT INTO expense_templates (id, name, amount, classification, next_run_date, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		node.Generate(), "Renta local", "5000", "fiscal",
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true, time.Now(), time.Now(),
	).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	var expenses int64
	if err := db.Raw(`SELECT COUNT(1) FROM expenses`).Scan(&expenses).Error; err != nil {
		t.Fatalf("count expenses: %v", err)
	}
	if expenses != 0 {
		t.Fatalf("disabled job must not generate, got %d expenses", expenses)
	}
}

func TestRunOnceIsIdempotentAcrossTicks(t *testing.T) {
	now := time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC)
	sched, db, fake, node := newTestScheduler(t, now, Config{})

	if err := db.Exec(
		`INSERT INTO expense_templates (id, name, amount, classification, next_run_date, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		node.Generate(), "Renta local", "5000", "fiscal",
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true, time.Now(), time.Now(),
	).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	fake.Advance(24 * time.Hour)
	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}

	var expenses int64
	if err := db.Raw(`SELECT COUNT(1) FROM expenses`).Scan(&expenses).Error; err != nil {
		t.Fatalf("count expenses: %v", err)
	}
	// The anchor moved to 2024-02-05, so the next day's tick creates nothing.
	if expenses != 1 {
		t.Fatalf("expected a single expense across ticks, got %d", expenses)
	}
}
