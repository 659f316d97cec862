package debts

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Repository persists debts and payments.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filter Filter) ([]Debt, error)
	Get(ctx context.Context, id string) (Debt, error)
	LockForUpdate(ctx context.Context, id string) (Debt, error)
	Save(ctx context.Context, d Debt) error
	InsertPayment(ctx context.Context, p Payment) error
	Payments(ctx context.Context, debtID string) ([]Payment, error)
	PaidBetween(ctx context.Context, from, to time.Time) (shared.Money, error)
	AdjustCustomerDebt(ctx context.Context, customerID string, delta shared.Money) error
	ReconcileCustomerDebt(ctx context.Context) (int64, error)
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL debt repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// WithTx runs fn in a read committed transaction; row locks serialise payments.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTxLevel(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const debtColumns = `id, customer_id, sale_id, invoice_number, amount, amount_paid, remaining_amount, status, debt_date, updated_at`

func scanDebt(row pgx.Row) (Debt, error) {
	var d Debt
	var amount, paid, remaining int64
	err := row.Scan(&d.ID, &d.CustomerID, &d.SaleID, &d.InvoiceNumber, &amount, &paid, &remaining, &d.Status, &d.DebtDate, &d.UpdatedAt)
	d.Amount, d.AmountPaid, d.RemainingAmount = shared.Money(amount), shared.Money(paid), shared.Money(remaining)
	return d, err
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE TRUE`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	query += " ORDER BY debt_date DESC, id"
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Debt{}
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (Debt, error) {
	return r.one(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = $1`, id)
}

func (r *repository) LockForUpdate(ctx context.Context, id string) (Debt, error) {
	return r.one(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) one(ctx context.Context, query, id string) (Debt, error) {
	d, err := scanDebt(r.db.QueryRow(ctx, query, id))
	if db.IsNoRows(err) {
		return Debt{}, fmt.Errorf("debt %s: %w", id, shared.ErrNotFound)
	}
	return d, err
}

func (r *repository) Save(ctx context.Context, d Debt) error {
	tag, err := r.db.Exec(ctx, `UPDATE debts SET amount_paid = $2, remaining_amount = $3, status = $4, updated_at = $5 WHERE id = $1`,
		d.ID, int64(d.AmountPaid), int64(d.RemainingAmount), d.Status, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("debt %s: %w", d.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) InsertPayment(ctx context.Context, p Payment) error {
	_, err := r.db.Exec(ctx, `INSERT INTO debt_payments (id, debt_id, customer_id, amount, received_by, paid_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`, p.ID, p.DebtID, p.CustomerID, int64(p.Amount), p.ReceivedBy, p.PaidAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *repository) Payments(ctx context.Context, debtID string) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, debt_id, customer_id, amount, COALESCE(received_by, ''), paid_at
		FROM debt_payments WHERE debt_id = $1 ORDER BY paid_at, id`, debtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Payment{}
	for rows.Next() {
		var p Payment
		var amount int64
		if err := rows.Scan(&p.ID, &p.DebtID, &p.CustomerID, &amount, &p.ReceivedBy, &p.PaidAt); err != nil {
			return nil, err
		}
		p.Amount = shared.Money(amount)
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *repository) PaidBetween(ctx context.Context, from, to time.Time) (shared.Money, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM debt_payments WHERE paid_at >= $1 AND paid_at < $2`, from, to).Scan(&total)
	return shared.Money(total), err
}

// AdjustCustomerDebt shifts the customer's debt mirror. A missing customer is tolerated.
func (r *repository) AdjustCustomerDebt(ctx context.Context, customerID string, delta shared.Money) error {
	return AdjustCustomerDebt(ctx, r.db, customerID, delta)
}

// ReconcileCustomerDebt rewrites every customer's debt mirror from the ledger and returns the rows changed.
func (r *repository) ReconcileCustomerDebt(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE customers c SET total_debt = s.remaining, updated_at = NOW()
		FROM (
			SELECT c2.id, COALESCE(SUM(d.remaining_amount), 0)::BIGINT AS remaining
			FROM customers c2 LEFT JOIN debts d ON d.customer_id = c2.id
			GROUP BY c2.id
		) s
		WHERE c.id = s.id AND c.total_debt <> s.remaining`)
	if err != nil {
		return 0, fmt.Errorf("reconcile customer debt: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Insert writes a new debt using q, typically the checkout transaction.
func Insert(ctx context.Context, q db.DBTX, d Debt) error {
	_, err := q.Exec(ctx, `INSERT INTO debts (`+debtColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.CustomerID, d.SaleID, d.InvoiceNumber, int64(d.Amount), int64(d.AmountPaid), int64(d.RemainingAmount), d.Status, d.DebtDate, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert debt: %w", err)
	}
	return nil
}

// AdjustCustomerDebt adds delta to customers.total_debt using q.
func AdjustCustomerDebt(ctx context.Context, q db.DBTX, customerID string, delta shared.Money) error {
	_, err := q.Exec(ctx, `UPDATE customers SET total_debt = total_debt + $2, updated_at = NOW() WHERE id = $1`, customerID, int64(delta))
	if err != nil {
		return fmt.Errorf("adjust customer debt: %w", err)
	}
	return nil
}
