package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Repository persists products.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	FindByBarcode(ctx context.Context, barcode string) (Product, error)
	SearchPrefix(ctx context.Context, column, lower, upper string) ([]Product, error)
	Create(ctx context.Context, p Product) error
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

// NewRepository returns a PostgreSQL product repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const productColumns = `id, name, barcode, price, purchase_price, quantity, unit_type, active_ingredient, expiry_date, supplier_id, created_at, updated_at`

// updatable lists the columns Update accepts, in a fixed order.
var updatable = []string{"name", "barcode", "price", "purchase_price", "quantity", "unit_type", "active_ingredient", "expiry_date", "supplier_id"}

// ScanProduct reads a row selected with the product column list.
func ScanProduct(row pgx.Row) (Product, error) {
	var p Product
	var price, purchase int64
	err := row.Scan(&p.ID, &p.Name, &p.Barcode, &price, &purchase, &p.Quantity, &p.UnitType,
		&p.ActiveIngredient, &p.ExpiryDate, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt)
	p.Price = shared.Money(price)
	p.PurchasePrice = shared.Money(purchase)
	return p, err
}

func (r *repository) query(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := ScanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *repository) List(ctx context.Context) ([]Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name COLLATE "C", id`)
}

func (r *repository) Get(ctx context.Context, id string) (Product, error) {
	p, err := ScanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return Product{}, fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
	}
	return p, err
}

func (r *repository) FindByBarcode(ctx context.Context, barcode string) (Product, error) {
	p, err := ScanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1 ORDER BY created_at LIMIT 1`, barcode))
	if db.IsNoRows(err) {
		return Product{}, fmt.Errorf("barcode %s: %w", barcode, shared.ErrNotFound)
	}
	return p, err
}

// SearchPrefix returns products whose column lies in [lower, upper). An empty upper is unbounded.
func (r *repository) SearchPrefix(ctx context.Context, column, lower, upper string) ([]Product, error) {
	if column != "name" && column != "barcode" {
		return nil, fmt.Errorf("%w: unsupported search column %q", shared.ErrInvalidInput, column)
	}
	cond := fmt.Sprintf(`%s COLLATE "C" >= $1`, column)
	args := []any{lower}
	if upper != "" {
		cond += fmt.Sprintf(` AND %s COLLATE "C" < $2`, column)
		args = append(args, upper)
	}
	return r.query(ctx, fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY %s COLLATE "C", id`, productColumns, cond, column), args...)
}

func (r *repository) Create(ctx context.Context, p Product) error {
	_, err := r.db.Exec(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Name, p.Barcode, int64(p.Price), int64(p.PurchasePrice), p.Quantity, p.UnitType,
		p.ActiveIngredient, p.ExpiryDate, p.SupplierID, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *repository) Update(ctx context.Context, id string, updates map[string]any) error {
	if unknown := unknownColumns(updates); len(unknown) > 0 {
		return fmt.Errorf("%w: unknown fields %s", shared.ErrInvalidInput, strings.Join(unknown, ", "))
	}
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}
	for _, col := range updatable {
		v, ok := updates[col]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, id)
	tag, err := r.db.Exec(ctx, fmt.Sprintf("UPDATE products SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

func unknownColumns(updates map[string]any) []string {
	var unknown []string
	for col := range updates {
		found := false
		for _, allowed := range updatable {
			if col == allowed {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, col)
		}
	}
	sort.Strings(unknown)
	return unknown
}
