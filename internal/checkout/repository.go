package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmadesk/pharmadesk/internal/debts"
	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/sales"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Repository holds the writes a commit performs. Every method is meant to be
// called on the Repository handed to WithTx.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	InsertSale(ctx context.Context, sale sales.Sale) error
	DecrementStock(ctx context.Context, productID string, qty int) error
	InsertDebt(ctx context.Context, d debts.Debt) error
	AdjustCustomerDebt(ctx context.Context, customerID string, delta shared.Money) error
	RecordPurchase(ctx context.Context, customerID string, total shared.Money, points int64, at time.Time) error
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL commit repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// WithTx runs fn in a read committed transaction so the conditional stock
// decrement sees rows committed by concurrent checkouts.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTxLevel(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) InsertSale(ctx context.Context, sale sales.Sale) error {
	return sales.Insert(ctx, r.db, sale)
}

// DecrementStock subtracts qty only when enough stock remains.
func (r *repository) DecrementStock(ctx context.Context, productID string, qty int) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET quantity = quantity - $1, updated_at = NOW()
		WHERE id = $2 AND quantity >= $1`, qty, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if !exists {
		return fmt.Errorf("product %s: %w", productID, shared.ErrNotFound)
	}
	return fmt.Errorf("%w: product %s", shared.ErrInsufficientStock, productID)
}

func (r *repository) InsertDebt(ctx context.Context, d debts.Debt) error {
	return debts.Insert(ctx, r.db, d)
}

func (r *repository) AdjustCustomerDebt(ctx context.Context, customerID string, delta shared.Money) error {
	return debts.AdjustCustomerDebt(ctx, r.db, customerID, delta)
}

// RecordPurchase bumps the customer's running totals. A missing customer is NotFound.
func (r *repository) RecordPurchase(ctx context.Context, customerID string, total shared.Money, points int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE customers
		SET total_purchases = total_purchases + $2, loyalty_points = loyalty_points + $3, last_visit = $4, updated_at = $4
		WHERE id = $1`, customerID, int64(total), points, at)
	if err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", customerID, shared.ErrNotFound)
	}
	return nil
}
