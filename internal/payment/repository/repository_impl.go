package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servifield/servifield/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindIncome(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Income, error) {
	var item domain.Income
	err := db.WithContext(ctx).Raw(
		`SELECT id, amount, classification, income_date, description, status, created_at
		 FROM incomes
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindPaymentsByIncome(ctx context.Context, db *gorm.DB, incomeID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, income_id, amount, created_at
		 FROM order_payments
		 WHERE income_id = ?
		 ORDER BY id`,
		incomeID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindPaymentsByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, income_id, amount, created_at
		 FROM order_payments
		 WHERE order_id = ?
		 ORDER BY id`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DeletePaymentsByIncome(ctx context.Context, db *gorm.DB, incomeID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM order_payments WHERE income_id = ?`,
		incomeID,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) DeleteIncome(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM incomes WHERE id = ?`,
		id,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) TouchOrders(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID, now time.Time) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET updated_at = ? WHERE id IN ?`,
		now,
		orderIDs,
	).Error
}

func (r *repo) OrderNumbers(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) ([]string, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var numbers []string
	err := db.WithContext(ctx).Raw(
		`SELECT order_number FROM orders WHERE id IN ? ORDER BY order_number`,
		orderIDs,
	).Scan(&numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}
