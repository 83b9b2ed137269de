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
	policydomain "github.com/servifield/servifield/internal/policy/domain"
	policyservice "github.com/servifield/servifield/internal/policy/service"
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

func newService(t *testing.T, db *gorm.DB) (policydomain.Service, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := policyservice.NewService(policyservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)),
	})
	return svc, node
}

func seedPayment(t *testing.T, db *gorm.DB, node *snowflake.Node, clientID snowflake.ID, year, month int, dueDate time.Time, isPaid bool) snowflake.ID {
	t.Helper()
	id := node.Generate()
	status := policydomain.PolicyPaymentStatusPending
	if isPaid {
		status = policydomain.PolicyPaymentStatusPaid
	}
	if err := db.Exec(
		`INSERT INTO policy_payments (id, policy_client_id, payment_year, payment_month, due_date, amount, status, is_paid, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, clientID, year, month, dueDate, "1200", status, isPaid, time.Now(),
	).Error; err != nil {
		t.Fatalf("seed policy payment: %v", err)
	}
	return id
}

func TestNormalizeDryRunCountsWithoutWriting(t *testing.T) {
	db := setupTestDB(t)
	svc, node := newService(t, db)
	clientID := node.Generate()

	drifted := time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)
	paymentID := seedPayment(t, db, node, clientID, 2024, 3, drifted, false)
	seedPayment(t, db, node, clientID, 2024, 4, time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), false)

	result, err := svc.NormalizeDueDates(context.Background(), true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !result.DryRun {
		t.Fatal("expected dry-run result")
	}
	if result.Checked != 2 || result.Updated != 1 {
		t.Fatalf("expected checked 2 / would-update 1, got %+v", result)
	}

	var dueDate time.Time
	if err := db.Raw(`SELECT due_date FROM policy_payments WHERE id = ?`, paymentID).Scan(&dueDate).Error; err != nil {
		t.Fatalf("scan due date: %v", err)
	}
	if !dueDate.Equal(drifted) {
		t.Fatalf("dry run must not mutate: expected %s, got %s", drifted, dueDate)
	}
}

func TestNormalizeCorrectsDriftedUnpaidOnly(t *testing.T) {
	db := setupTestDB(t)
	svc, node := newService(t, db)
	clientID := node.Generate()

	driftedID := seedPayment(t, db, node, clientID, 2024, 3, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), false)
	paidDrifted := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	paidID := seedPayment(t, db, node, clientID, 2024, 2, paidDrifted, true)

	result, err := svc.NormalizeDueDates(context.Background(), false)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("expected 1 update, got %+v", result)
	}

	var dueDate time.Time
	if err := db.Raw(`SELECT due_date FROM policy_payments WHERE id = ?`, driftedID).Scan(&dueDate).Error; err != nil {
		t.Fatalf("scan corrected due date: %v", err)
	}
	if !dueDate.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected canonical 2024-03-05, got %s", dueDate)
	}

	if err := db.Raw(`SELECT due_date FROM policy_payments WHERE id = ?`, paidID).Scan(&dueDate).Error; err != nil {
		t.Fatalf("scan paid due date: %v", err)
	}
	if !dueDate.Equal(paidDrifted) {
		t.Fatalf("paid rows are history and must stay untouched, got %s", dueDate)
	}
}

func TestNormalizeReachesFixedPoint(t *testing.T) {
	db := setupTestDB(t)
	svc, node := newService(t, db)
	clientID := node.Generate()

	seedPayment(t, db, node, clientID, 2024, 3, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), false)

	if _, err := svc.NormalizeDueDates(context.Background(), false); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	result, err := svc.NormalizeDueDates(context.Background(), false)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if result.Updated != 0 {
		t.Fatalf("second pass must find nothing to fix, got %+v", result)
	}
}

func TestNormalizeCascadesToPendingCollections(t *testing.T) {
	db := setupTestDB(t)
	svc, node := newService(t, db)
	clientID := node.Generate()

	drifted := time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)
	seedPayment(t, db, node, clientID, 2024, 3, drifted, false)

	if err := db.Exec(
		`INSERT INTO pending_collections (id, policy_client_id, due_date, status, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		node.Generate(), clientID, drifted, policydomain.PolicyPaymentStatusPending, "1200", time.Now(),
	).Error; err != nil {
		t.Fatalf("seed pending collection: %v", err)
	}

	if _, err := svc.NormalizeDueDates(context.Background(), false); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	var dueDate time.Time
	if err := db.Raw(`SELECT due_date FROM pending_collections WHERE policy_client_id = ?`, clientID).Scan(&dueDate).Error; err != nil {
		t.Fatalf("scan cascaded due date: %v", err)
	}
	if !dueDate.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected cascaded due date 2024-03-05, got %s", dueDate)
	}
}

func TestCanonicalDueDate(t *testing.T) {
	got := policydomain.CanonicalDueDate(2024, 11)
	want := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
