package suppliers

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Repository persists suppliers.
type Repository interface {
	List(ctx context.Context) ([]Supplier, error)
	Get(ctx context.Context, id string) (Supplier, error)
	Create(ctx context.Context, s Supplier) error
	Update(ctx context.Context, id string, updates map[string]any) error
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db db.DBTX
}

// NewRepository returns a PostgreSQL supplier repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const selectSuppliers = `SELECT s.id, s.name, s.contact_person, s.phone, s.email, s.address, s.status,
		(SELECT COUNT(*) FROM products p WHERE p.supplier_id = s.id)::INT,
		s.last_order_date, s.created_at, s.updated_at
	FROM suppliers s`

var columnOrder = []string{"name", "contact_person", "phone", "email", "address", "status", "last_order_date"}

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Phone, &s.Email, &s.Address, &s.Status,
		&s.ProductCount, &s.LastOrderDate, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *repository) List(ctx context.Context) ([]Supplier, error) {
	rows, err := r.db.Query(ctx, selectSuppliers+` ORDER BY s.name, s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Supplier{}
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (Supplier, error) {
	s, err := scanSupplier(r.db.QueryRow(ctx, selectSuppliers+` WHERE s.id = $1`, id))
	if db.IsNoRows(err) {
		return Supplier{}, fmt.Errorf("supplier %s: %w", id, shared.ErrNotFound)
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, s Supplier) error {
	_, err := r.db.Exec(ctx, `INSERT INTO suppliers (id, name, contact_person, phone, email, address, status, last_order_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.Name, s.ContactPerson, s.Phone, s.Email, s.Address, s.Status, s.LastOrderDate, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *repository) Update(ctx context.Context, id string, updates map[string]any) error {
	query := "UPDATE suppliers SET updated_at = $1"
	args := []any{time.Now().UTC()}
	for _, col := range columnOrder {
		if v, ok := updates[col]; ok {
			args = append(args, v)
			query += fmt.Sprintf(", %s = $%d", col, len(args))
		}
	}
	args = append(args, id)
	query += fmt.Sprintf(" WHERE id = $%d", len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %s: %w", id, shared.ErrNotFound)
	}
	return nil
}
