package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/servifield/servifield/internal/audit/domain"
	collectionsdomain "github.com/servifield/servifield/internal/collections/domain"
	orderdomain "github.com/servifield/servifield/internal/order/domain"
	paymentdomain "github.com/servifield/servifield/internal/payment/domain"
	policydomain "github.com/servifield/servifield/internal/policy/domain"
	recurringdomain "github.com/servifield/servifield/internal/recurring/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded SQL migrations against Postgres so the
// service is usable out of the box for local and self-hosted setups.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate covers the MySQL and SQLite dialects, where the versioned
// Postgres migrations do not apply. Tests lean on this path.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&orderdomain.Order{},
		&orderdomain.OrderStatusLog{},
		&paymentdomain.Income{},
		&paymentdomain.Payment{},
		&auditdomain.FinancialOperationLog{},
		&recurringdomain.ExpenseTemplate{},
		&recurringdomain.Expense{},
		&recurringdomain.PayrollSchedule{},
		&recurringdomain.PayrollRecord{},
		&policydomain.PolicyClient{},
		&policydomain.PolicyPayment{},
		&policydomain.PendingCollection{},
		&collectionsdomain.CacheEntry{},
	)
}
