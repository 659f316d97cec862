package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Password hashes never leave the database.
var dumpQueries = map[string]string{
	"products":  `SELECT * FROM products ORDER BY id`,
	"sales":     `SELECT s.*, COALESCE((SELECT json_agg(l ORDER BY l.line_no) FROM sale_lines l WHERE l.sale_id = s.id), '[]'::json) AS lines FROM sales s ORDER BY s.created_at, s.id`,
	"customers": `SELECT * FROM customers ORDER BY id`,
	"suppliers": `SELECT * FROM suppliers ORDER BY id`,
	"debts":     `SELECT * FROM debts ORDER BY debt_date, id`,
	"users":     `SELECT id, email, name, role, is_active, created_at, updated_at FROM users ORDER BY id`,
}

type backupRepository struct {
	pool *pgxpool.Pool
}

// NewBackupRepository returns the PostgreSQL backup repository.
func NewBackupRepository(pool *pgxpool.Pool) BackupRepository {
	return &backupRepository{pool: pool}
}

func (r *backupRepository) Dump(ctx context.Context, collection string) ([]map[string]any, error) {
	query, ok := dumpQueries[collection]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", shared.ErrInvalidInput, collection)
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToMap)
}

func (r *backupRepository) DatabaseSize(ctx context.Context) (int64, error) {
	return db.DatabaseSize(ctx, r.pool)
}

func (r *backupRepository) RestoreProducts(ctx context.Context, products []RestoreProduct) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, p := range products {
			var expiry any
			if p.ExpiryDate != nil {
				t, err := ParseBackupDate(*p.ExpiryDate)
				if err != nil {
					return err
				}
				if t != nil {
					expiry = *t
				}
			}
			unit := p.UnitType
			if unit == "" {
				unit = "box"
			}
			if _, err := tx.Exec(ctx, `INSERT INTO products (id, name, barcode, price, purchase_price, quantity, unit_type, active_ingredient, expiry_date, supplier_id, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, barcode = EXCLUDED.barcode, price = EXCLUDED.price,
					purchase_price = EXCLUDED.purchase_price, quantity = EXCLUDED.quantity, unit_type = EXCLUDED.unit_type,
					active_ingredient = EXCLUDED.active_ingredient, expiry_date = EXCLUDED.expiry_date,
					supplier_id = EXCLUDED.supplier_id, updated_at = NOW()`,
				p.ID, p.Name, p.Barcode, p.Price, p.PurchasePrice, p.Quantity, unit, p.ActiveIngredient, expiry, p.SupplierID); err != nil {
				return fmt.Errorf("upsert product %s: %w", p.ID, err)
			}
		}
		return nil
	})
}
