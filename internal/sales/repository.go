package sales

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Repository reads committed sales.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]Sale, error)
	Get(ctx context.Context, id string) (Sale, error)
	GetByInvoice(ctx context.Context, number string) (Sale, error)
}

type repository struct {
	db db.DBTX
}

// NewRepository returns a PostgreSQL sale reader.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const saleColumns = `id, invoice_number, subtotal, discount, tax, total, tax_rate_bp, payment_method, COALESCE(customer_id, ''), COALESCE(seller_id, ''), status, created_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	var subtotal, discount, tax, total, rate int64
	err := row.Scan(&s.ID, &s.InvoiceNumber, &subtotal, &discount, &tax, &total, &rate,
		&s.PaymentMethod, &s.CustomerID, &s.SellerID, &s.Status, &s.CreatedAt)
	s.Subtotal, s.Discount, s.Tax, s.Total = shared.Money(subtotal), shared.Money(discount), shared.Money(tax), shared.Money(total)
	s.TaxRate = shared.BasisPoints(rate)
	return s, err
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE TRUE`
	var args []any
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	list := []Sale{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachLines(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) Get(ctx context.Context, id string) (Sale, error) {
	return r.getOne(ctx, "id", id)
}

func (r *repository) GetByInvoice(ctx context.Context, number string) (Sale, error) {
	return r.getOne(ctx, "invoice_number", number)
}

func (r *repository) getOne(ctx context.Context, column, value string) (Sale, error) {
	s, err := scanSale(r.db.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE `+column+` = $1`, value))
	if err != nil {
		if db.IsNoRows(err) {
			return Sale{}, fmt.Errorf("sale %s: %w", value, shared.ErrNotFound)
		}
		return Sale{}, err
	}
	list := []Sale{s}
	if err := r.attachLines(ctx, list); err != nil {
		return Sale{}, err
	}
	return list[0], nil
}

func (r *repository) attachLines(ctx context.Context, list []Sale) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	index := make(map[string]int, len(list))
	for i, s := range list {
		ids[i] = s.ID
		index[s.ID] = i
		list[i].Lines = []Line{}
	}
	rows, err := r.db.Query(ctx, `SELECT sale_id, product_id, name, barcode, unit_price, quantity, unit
		FROM sale_lines WHERE sale_id = ANY($1) ORDER BY sale_id, line_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var saleID string
		var l Line
		var price int64
		if err := rows.Scan(&saleID, &l.ProductID, &l.Name, &l.Barcode, &price, &l.Quantity, &l.Unit); err != nil {
			return err
		}
		l.UnitPrice = shared.Money(price)
		i := index[saleID]
		list[i].Lines = append(list[i].Lines, l)
	}
	return rows.Err()
}

// Insert writes a sale and its lines using q, typically a transaction.
func Insert(ctx context.Context, q db.DBTX, s Sale) error {
	var customerID any
	if s.CustomerID != "" {
		customerID = s.CustomerID
	}
	_, err := q.Exec(ctx, `INSERT INTO sales (id, invoice_number, subtotal, discount, tax, total, tax_rate_bp, payment_method, customer_id, seller_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)`,
		s.ID, s.InvoiceNumber, int64(s.Subtotal), int64(s.Discount), int64(s.Tax), int64(s.Total), int64(s.TaxRate),
		s.PaymentMethod, customerID, s.SellerID, s.Status, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	for i, l := range s.Lines {
		if _, err := q.Exec(ctx, `INSERT INTO sale_lines (sale_id, line_no, product_id, name, barcode, unit_price, quantity, unit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.ID, i+1, l.ProductID, l.Name, l.Barcode, int64(l.UnitPrice), l.Quantity, l.Unit); err != nil {
			return fmt.Errorf("insert sale line: %w", err)
		}
	}
	return nil
}
