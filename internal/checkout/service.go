package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/internal/catalog"
	"github.com/pharmadesk/pharmadesk/internal/customers"
	"github.com/pharmadesk/pharmadesk/internal/debts"
	"github.com/pharmadesk/pharmadesk/internal/sales"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

const commitLockTTL = 15 * time.Second

// ProductReader re-reads products when lines are added.
type ProductReader interface {
	Product(ctx context.Context, id string) (catalog.Product, error)
	FindByBarcode(ctx context.Context, barcode string) (catalog.ProductView, error)
}

// TaxSource supplies the current tax rate.
type TaxSource interface {
	TaxRate(ctx context.Context) (shared.BasisPoints, error)
}

// StaticTax is a fixed tax rate.
type StaticTax shared.BasisPoints

// TaxRate implements TaxSource.
func (t StaticTax) TaxRate(context.Context) (shared.BasisPoints, error) {
	return shared.BasisPoints(t), nil
}

// IdempotencyGuard rejects replays of the same client key.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Locker serialises commits of one session.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// CheckoutObserver receives commit outcomes for metrics.
type CheckoutObserver interface {
	ObserveCheckout(method, result string, total int64)
}

// Commit outcome labels.
const (
	resultCommitted         = "committed"
	resultInsufficientStock = "insufficient_stock"
	resultRejected          = "rejected"
	resultFailed            = "failed"
)

// Options carries the service collaborators. Store, Products and Invoices are required.
type Options struct {
	Store       CartStore
	Products    ProductReader
	Tax         TaxSource
	Invoices    *InvoiceNumberer
	Idempotency IdempotencyGuard
	Locker      Locker
	Notifier    shared.Notifier
	Audit       shared.AuditRecorder
	Observer    CheckoutObserver
	Logger      *slog.Logger
}

// Service assembles carts and commits them as sales.
type Service struct {
	repo     Repository
	store    CartStore
	products ProductReader
	tax      TaxSource
	invoices *InvoiceNumberer
	idem     IdempotencyGuard
	locker   Locker
	notifier shared.Notifier
	audit    shared.AuditRecorder
	observer CheckoutObserver
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires the checkout service.
func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:     repo,
		store:    opts.Store,
		products: opts.Products,
		tax:      opts.Tax,
		invoices: opts.Invoices,
		idem:     opts.Idempotency,
		locker:   opts.Locker,
		notifier: opts.Notifier,
		audit:    opts.Audit,
		observer: opts.Observer,
		logger:   opts.Logger,
		validate: validator.New(),
		now:      time.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tax == nil {
		s.tax = StaticTax(1500)
	}
	if s.notifier == nil {
		s.notifier = shared.LogNotifier{Logger: s.logger}
	}
	if s.audit == nil {
		s.audit = shared.NopAudit{}
	}
	return s
}

// Cart returns the session's cart with freshly computed totals.
func (s *Service) Cart(ctx context.Context, sessionID string) (View, error) {
	cart, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, cart)
}

// Totals returns only the computed totals.
func (s *Service) Totals(ctx context.Context, sessionID string) (Totals, error) {
	v, err := s.Cart(ctx, sessionID)
	return v.Totals, err
}

// AddLine adds a product by id.
func (s *Service) AddLine(ctx context.Context, sessionID string, req AddLineRequest) (View, error) {
	if err := shared.Validate(s.validate, req); err != nil {
		return View{}, err
	}
	product, err := s.products.Product(ctx, req.ProductID)
	if err != nil {
		return View{}, err
	}
	return s.add(ctx, sessionID, product, req.quantity())
}

// Scan adds a product by exact barcode.
func (s *Service) Scan(ctx context.Context, sessionID string, req ScanRequest) (View, error) {
	if err := shared.Validate(s.validate, req); err != nil {
		return View{}, err
	}
	found, err := s.products.FindByBarcode(ctx, req.Barcode)
	if err != nil {
		return View{}, err
	}
	return s.add(ctx, sessionID, found.Product, req.quantity())
}

func (s *Service) add(ctx context.Context, sessionID string, product catalog.Product, qty int) (View, error) {
	return s.mutate(ctx, sessionID, func(cart *Cart) error {
		return cart.AddLine(product, qty)
	})
}

// SetQuantity changes a line quantity. Only increases are checked against current stock.
func (s *Service) SetQuantity(ctx context.Context, sessionID string, index, qty int) (View, error) {
	return s.mutate(ctx, sessionID, func(cart *Cart) error {
		if index >= 0 && index < len(cart.Lines) && qty > cart.Lines[index].Quantity {
			product, err := s.products.Product(ctx, cart.Lines[index].ProductID)
			if err != nil {
				return err
			}
			if qty > product.Quantity {
				return fmt.Errorf("%w: %s has %d on hand, cart needs %d", shared.ErrInsufficientStock, product.Name, product.Quantity, qty)
			}
		}
		return cart.SetQuantity(index, qty)
	})
}

// RemoveLine drops a line.
func (s *Service) RemoveLine(ctx context.Context, sessionID string, index int) (View, error) {
	return s.mutate(ctx, sessionID, func(cart *Cart) error {
		return cart.RemoveLine(index)
	})
}

// SetDiscount replaces the cart discount.
func (s *Service) SetDiscount(ctx context.Context, sessionID string, req DiscountRequest) (View, error) {
	if err := shared.Validate(s.validate, req); err != nil {
		return View{}, err
	}
	d := req.discount()
	return s.mutate(ctx, sessionID, func(cart *Cart) error {
		return cart.SetDiscount(d)
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.store.Clear(ctx, sessionID)
}

// Hold parks the current cart in the single temporary slot. The active cart is kept.
func (s *Service) Hold(ctx context.Context, sessionID string) error {
	cart, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if cart.Empty() {
		return shared.ErrEmptyCart
	}
	if err := s.store.Hold(ctx, sessionID, cart); err != nil {
		return err
	}
	s.notifier.Notify(ctx, shared.NoticeSuccess, "Cart held")
	return nil
}

// Resume replaces the active cart with the held one and empties the slot.
func (s *Service) Resume(ctx context.Context, sessionID string) (View, error) {
	held, err := s.store.TakeHeld(ctx, sessionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.notifier.Notify(ctx, shared.NoticeInfo, "No held cart")
		}
		return View{}, err
	}
	if err := s.store.Save(ctx, sessionID, held); err != nil {
		return View{}, err
	}
	s.notifier.Notify(ctx, shared.NoticeSuccess, "Held cart restored")
	return s.view(ctx, held)
}

// LastInvoice returns the most recent sale committed from this session.
func (s *Service) LastInvoice(ctx context.Context, sessionID string) (sales.Sale, error) {
	return s.store.LastInvoice(ctx, sessionID)
}

// Commit turns the cart into a sale. Sale, stock, customer and debt writes
// share one transaction; a failure leaves no trace.
func (s *Service) Commit(ctx context.Context, sessionID string, req CommitRequest, idempotencyKey string) (sales.Sale, error) {
	if err := shared.Validate(s.validate, req); err != nil {
		s.observe(req.PaymentMethod, resultRejected, 0)
		return sales.Sale{}, err
	}
	if req.PaymentMethod == sales.PaymentCredit && req.CustomerID == "" {
		s.observe(req.PaymentMethod, resultRejected, 0)
		return sales.Sale{}, fmt.Errorf("%w: credit sale requires a customer", shared.ErrInvalidInput)
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.CheckoutLockKey(sessionID), commitLockTTL)
		if err != nil {
			return sales.Sale{}, err
		}
		defer release()
	}

	// Claimed before the cart is read: a replay after a commit finds the cart empty.
	if idempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idempotencyKey, shared.IdempotencyCheckout); err != nil {
			return sales.Sale{}, err
		}
	}
	releaseKey := func() {
		if idempotencyKey == "" || s.idem == nil {
			return
		}
		if err := s.idem.Delete(ctx, idempotencyKey, shared.IdempotencyCheckout); err != nil {
			s.logger.Warn("release idempotency key", slog.Any("error", err))
		}
	}

	cart, err := s.store.Load(ctx, sessionID)
	if err != nil {
		releaseKey()
		return sales.Sale{}, err
	}
	if cart.Empty() {
		releaseKey()
		s.observe(req.PaymentMethod, resultRejected, 0)
		return sales.Sale{}, shared.ErrEmptyCart
	}
	rate, err := s.tax.TaxRate(ctx)
	if err != nil {
		releaseKey()
		return sales.Sale{}, fmt.Errorf("load tax rate: %w", err)
	}

	sale := s.buildSale(ctx, cart, rate, req)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		for _, l := range decrementOrder(sale.Lines) {
			if err := tx.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		if sale.CustomerID != "" {
			if err := tx.RecordPurchase(ctx, sale.CustomerID, sale.Total, customers.LoyaltyPointsFor(sale.Total), sale.CreatedAt); err != nil {
				return err
			}
		}
		if sale.PaymentMethod == sales.PaymentCredit {
			debt := debts.New(uuid.NewString(), sale.CustomerID, sale.ID, sale.InvoiceNumber, sale.Total, sale.CreatedAt)
			if err := tx.InsertDebt(ctx, debt); err != nil {
				return err
			}
			if sale.Total > 0 {
				if err := tx.AdjustCustomerDebt(ctx, sale.CustomerID, sale.Total); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		releaseKey()
		switch {
		case errors.Is(err, shared.ErrInsufficientStock):
			s.observe(sale.PaymentMethod, resultInsufficientStock, 0)
		case errors.Is(err, shared.ErrNotFound):
			s.observe(sale.PaymentMethod, resultRejected, 0)
		default:
			s.observe(sale.PaymentMethod, resultFailed, 0)
		}
		return sales.Sale{}, err
	}

	s.observe(sale.PaymentMethod, resultCommitted, int64(sale.Total))
	if err := s.store.Clear(ctx, sessionID); err != nil {
		s.logger.Warn("clear cart after commit", slog.Any("error", err), slog.String("invoice", sale.InvoiceNumber))
	}
	if err := s.store.SaveLastInvoice(ctx, sessionID, sale); err != nil {
		s.logger.Warn("save last invoice", slog.Any("error", err), slog.String("invoice", sale.InvoiceNumber))
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  sale.SellerID,
		Action:   "checkout.commit",
		Entity:   "sale",
		EntityID: sale.ID,
		Meta: map[string]any{
			"invoice":        sale.InvoiceNumber,
			"total":          sale.Total.String(),
			"payment_method": sale.PaymentMethod,
			"customer_id":    sale.CustomerID,
		},
		At: sale.CreatedAt,
	}); err != nil {
		s.logger.Warn("audit checkout", slog.Any("error", err))
	}
	s.notifier.Notify(ctx, shared.NoticeSuccess, fmt.Sprintf("Sale %s completed, total %s", sale.InvoiceNumber, sale.Total))
	return sale, nil
}

func (s *Service) buildSale(ctx context.Context, cart Cart, rate shared.BasisPoints, req CommitRequest) sales.Sale {
	totals := cart.Totals(rate)
	now := s.now().UTC()
	lines := make([]sales.Line, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, sales.Line{
			ProductID: l.ProductID,
			Name:      l.Name,
			Barcode:   l.Barcode,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Unit:      l.Unit,
		})
	}
	return sales.Sale{
		ID:            uuid.NewString(),
		InvoiceNumber: s.invoices.Next(now),
		Lines:         lines,
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		Tax:           totals.Tax,
		Total:         totals.Total,
		TaxRate:       rate,
		PaymentMethod: req.PaymentMethod,
		CustomerID:    req.CustomerID,
		SellerID:      shared.ActorID(ctx),
		Status:        sales.StatusFor(req.PaymentMethod),
		CreatedAt:     now,
	}
}

// decrementOrder returns lines sorted by product id so concurrent commits
// touch product rows in the same order.
func decrementOrder(lines []sales.Line) []sales.Line {
	out := append([]sales.Line(nil), lines...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func (s *Service) mutate(ctx context.Context, sessionID string, fn func(*Cart) error) (View, error) {
	cart, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	if err := fn(&cart); err != nil {
		return View{}, err
	}
	if err := s.store.Save(ctx, sessionID, cart); err != nil {
		return View{}, err
	}
	return s.view(ctx, cart)
}

func (s *Service) view(ctx context.Context, cart Cart) (View, error) {
	rate, err := s.tax.TaxRate(ctx)
	if err != nil {
		return View{}, fmt.Errorf("load tax rate: %w", err)
	}
	if cart.Lines == nil {
		cart.Lines = []CartLine{}
	}
	return View{Lines: cart.Lines, Discount: cart.Discount, Totals: cart.Totals(rate)}, nil
}

func (s *Service) observe(method, result string, total int64) {
	if s.observer != nil {
		s.observer.ObserveCheckout(method, result, total)
	}
}
