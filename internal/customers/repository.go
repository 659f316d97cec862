package customers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Repository persists customers.
type Repository interface {
	List(ctx context.Context) ([]Customer, error)
	Get(ctx context.Context, id string) (Customer, error)
	Create(ctx context.Context, c Customer) error
	Update(ctx context.Context, id string, updates map[string]any) error
	Delete(ctx context.Context, id string) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository returns a PostgreSQL customer repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const customerColumns = `id, name, phone, email, address, total_purchases, total_debt, loyalty_points, last_visit, created_at, updated_at`

var updatable = map[string]bool{"name": true, "phone": true, "email": true, "address": true}

// ScanCustomer reads a row selected with the customer column list.
func ScanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	var purchases, debt int64
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &purchases, &debt,
		&c.LoyaltyPoints, &c.LastVisit, &c.CreatedAt, &c.UpdatedAt)
	c.TotalPurchases = shared.Money(purchases)
	c.TotalDebt = shared.Money(debt)
	return c, err
}

func (r *repository) List(ctx context.Context) ([]Customer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Customer{}
	for rows.Next() {
		c, err := ScanCustomer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (Customer, error) {
	c, err := ScanCustomer(r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return Customer{}, fmt.Errorf("customer %s: %w", id, shared.ErrNotFound)
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, c Customer) error {
	_, err := r.db.Exec(ctx, `INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.Name, c.Phone, c.Email, c.Address, int64(c.TotalPurchases), int64(c.TotalDebt),
		c.LoyaltyPoints, c.LastVisit, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *repository) Update(ctx context.Context, id string, updates map[string]any) error {
	query := "UPDATE customers SET updated_at = $1"
	args := []any{time.Now().UTC()}
	for _, col := range []string{"name", "phone", "email", "address"} {
		if v, ok := updates[col]; ok {
			args = append(args, v)
			query += fmt.Sprintf(", %s = $%d", col, len(args))
		}
	}
	for col := range updates {
		if !updatable[col] {
			return fmt.Errorf("%w: field %s is not editable", shared.ErrInvalidInput, strings.ToLower(col))
		}
	}
	args = append(args, id)
	query += fmt.Sprintf(" WHERE id = $%d", len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", id, shared.ErrNotFound)
	}
	return nil
}
