package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pharmadesk/pharmadesk/internal/catalog"
	"github.com/pharmadesk/pharmadesk/internal/customers"
	"github.com/pharmadesk/pharmadesk/internal/debts"
	"github.com/pharmadesk/pharmadesk/internal/sales"
	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// world is an in-memory store. WithTx holds the mutex for the whole
// transaction and restores a snapshot when fn fails.
type world struct {
	mu        sync.Mutex
	products  map[string]catalog.Product
	customers map[string]customers.Customer
	sales     []sales.Sale
	debts     []debts.Debt
}

func newWorld() *world {
	return &world{products: map[string]catalog.Product{}, customers: map[string]customers.Customer{}}
}

func (w *world) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	products := make(map[string]catalog.Product, len(w.products))
	for k, v := range w.products {
		products[k] = v
	}
	custs := make(map[string]customers.Customer, len(w.customers))
	for k, v := range w.customers {
		custs[k] = v
	}
	saleList := append([]sales.Sale(nil), w.sales...)
	debtList := append([]debts.Debt(nil), w.debts...)
	if err := fn(ctx, w); err != nil {
		w.products, w.customers, w.sales, w.debts = products, custs, saleList, debtList
		return err
	}
	return nil
}

func (w *world) InsertSale(_ context.Context, sale sales.Sale) error {
	w.sales = append(w.sales, sale)
	return nil
}

func (w *world) DecrementStock(_ context.Context, productID string, qty int) error {
	p, ok := w.products[productID]
	if !ok {
		return shared.ErrNotFound
	}
	if p.Quantity < qty {
		return fmt.Errorf("%w: product %s", shared.ErrInsufficientStock, productID)
	}
	p.Quantity -= qty
	w.products[productID] = p
	return nil
}

func (w *world) InsertDebt(_ context.Context, d debts.Debt) error {
	w.debts = append(w.debts, d)
	return nil
}

func (w *world) AdjustCustomerDebt(_ context.Context, customerID string, delta shared.Money) error {
	c := w.customers[customerID]
	c.TotalDebt += delta
	w.customers[customerID] = c
	return nil
}

func (w *world) RecordPurchase(_ context.Context, customerID string, total shared.Money, points int64, at time.Time) error {
	c, ok := w.customers[customerID]
	if !ok {
		return shared.ErrNotFound
	}
	c.TotalPurchases += total
	c.LoyaltyPoints += points
	c.LastVisit = &at
	w.customers[customerID] = c
	return nil
}

func (w *world) Product(_ context.Context, id string) (catalog.Product, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.products[id]
	if !ok {
		return catalog.Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (w *world) FindByBarcode(_ context.Context, barcode string) (catalog.ProductView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.products {
		if p.Barcode == barcode {
			return catalog.ProductView{Product: p}, nil
		}
	}
	return catalog.ProductView{}, shared.ErrNotFound
}

func (w *world) stock(id string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.products[id].Quantity
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[module+"/"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+"/"+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+"/"+key)
	return nil
}

func (m *memoryIdempotency) claimed(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[shared.IdempotencyCheckout+"/"+key]
}

type observerSpy struct {
	mu      sync.Mutex
	results []string
}

func (o *observerSpy) ObserveCheckout(method, result string, _ int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, method+"/"+result)
}

type noticeSpy struct {
	mu       sync.Mutex
	messages []string
}

func (n *noticeSpy) Notify(_ context.Context, kind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, kind+": "+message)
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, shared.ErrLocked
}

type CheckoutSuite struct {
	suite.Suite
	world    *world
	idem     *memoryIdempotency
	observer *observerSpy
	notices  *noticeSpy
	svc      *Service
	ctx      context.Context
}

func TestCheckoutSuite(t *testing.T) {
	suite.Run(t, new(CheckoutSuite))
}

func (s *CheckoutSuite) SetupTest() {
	s.world = newWorld()
	s.world.products["p1"] = catalog.Product{ID: "p1", Name: "Amoxicillin 500mg", Barcode: "6281001", Price: 2000, Quantity: 10, UnitType: "box"}
	s.world.products["p2"] = catalog.Product{ID: "p2", Name: "Vitamin C", Barcode: "6281002", Price: 1000, Quantity: 4, UnitType: "strip"}
	s.world.customers["c1"] = customers.Customer{ID: "c1", Name: "Huda"}
	s.idem = &memoryIdempotency{keys: map[string]bool{}}
	s.observer = &observerSpy{}
	s.notices = &noticeSpy{}

	store, _ := newRedisStore(s.T())
	invoices, err := NewInvoiceNumberer(1)
	s.Require().NoError(err)
	s.svc = NewService(s.world, Options{
		Store:       store,
		Products:    s.world,
		Tax:         StaticTax(1500),
		Invoices:    invoices,
		Idempotency: s.idem,
		Notifier:    s.notices,
		Observer:    s.observer,
	})
	s.svc.now = func() time.Time { return time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC) }

	sess := &shared.Session{ID: "sess-1"}
	sess.SetUser("seller-1", "assistant")
	s.ctx = shared.ContextWithSession(context.Background(), sess)
}

func (s *CheckoutSuite) add(sid, productID string, qty int) View {
	v, err := s.svc.AddLine(s.ctx, sid, AddLineRequest{ProductID: productID, Quantity: qty})
	s.Require().NoError(err)
	return v
}

func (s *CheckoutSuite) TestCreditSaleEndToEnd() {
	s.add("sess-1", "p1", 3)
	view := s.add("sess-1", "p1", 2)
	s.Require().Len(view.Lines, 1)
	s.Equal(5, view.Lines[0].Quantity)
	s.Equal(shared.Money(10000), view.Totals.Subtotal)
	s.Equal(shared.Money(11500), view.Totals.Total)

	sale, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCredit, CustomerID: "c1"}, "")
	s.Require().NoError(err)

	s.Equal(shared.Money(11500), sale.Total)
	s.Equal(shared.Money(1500), sale.Tax)
	s.Equal(sales.StatusDebt, sale.Status)
	s.Equal("seller-1", sale.SellerID)
	s.Regexp(`^INV-2024-\d+$`, sale.InvoiceNumber)

	s.Require().Len(s.world.debts, 1)
	debt := s.world.debts[0]
	s.Equal(shared.Money(11500), debt.Amount)
	s.Equal(shared.Money(11500), debt.RemainingAmount)
	s.Equal(shared.Money(0), debt.AmountPaid)
	s.Equal(debts.StatusOutstanding, debt.Status)
	s.Equal(sale.ID, debt.SaleID)
	s.Equal(sale.InvoiceNumber, debt.InvoiceNumber)

	customer := s.world.customers["c1"]
	s.Equal(shared.Money(11500), customer.TotalDebt)
	s.Equal(shared.Money(11500), customer.TotalPurchases)
	s.Equal(int64(115), customer.LoyaltyPoints)
	s.Require().NotNil(customer.LastVisit)

	s.Equal(5, s.world.stock("p1"))

	cart, err := s.svc.Cart(s.ctx, "sess-1")
	s.Require().NoError(err)
	s.Empty(cart.Lines)

	last, err := s.svc.LastInvoice(s.ctx, "sess-1")
	s.Require().NoError(err)
	s.Equal(sale.InvoiceNumber, last.InvoiceNumber)

	s.Contains(s.notices.messages, fmt.Sprintf("success: Sale %s completed, total 115.00", sale.InvoiceNumber))
	s.Equal([]string{"credit_sale/committed"}, s.observer.results)
}

func (s *CheckoutSuite) TestCashSaleWithoutCustomer() {
	s.add("sess-1", "p2", 2)
	sale, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCash}, "")
	s.Require().NoError(err)

	s.Equal(sales.StatusPaid, sale.Status)
	s.Empty(s.world.debts)
	s.Equal(2, s.world.stock("p2"))
	s.Equal(shared.Money(0), s.world.customers["c1"].TotalPurchases)
}

func (s *CheckoutSuite) TestCommitUsesPriceCapturedAtAdd() {
	s.add("sess-1", "p1", 1)
	s.world.mu.Lock()
	p := s.world.products["p1"]
	p.Price = 9900
	s.world.products["p1"] = p
	s.world.mu.Unlock()

	sale, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCard}, "")
	s.Require().NoError(err)
	s.Equal(shared.Money(2000), sale.Subtotal)
}

func (s *CheckoutSuite) TestCreditSaleRequiresCustomer() {
	s.add("sess-1", "p1", 1)
	_, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCredit}, "")
	s.ErrorIs(err, shared.ErrInvalidInput)
	s.Empty(s.world.sales)
}

func (s *CheckoutSuite) TestEmptyCart() {
	_, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCash}, "")
	s.ErrorIs(err, shared.ErrEmptyCart)
	s.Equal([]string{"cash/rejected"}, s.observer.results)
}

func (s *CheckoutSuite) TestUnknownPaymentMethod() {
	s.add("sess-1", "p1", 1)
	_, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: "voucher"}, "")
	s.ErrorIs(err, shared.ErrInvalidInput)
}

func (s *CheckoutSuite) TestFailedCommitLeavesNoTrace() {
	s.add("sess-1", "p1", 2)
	s.add("sess-1", "p2", 1)

	_, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCredit, CustomerID: "ghost"}, "key-1")
	s.Require().ErrorIs(err, shared.ErrNotFound)

	s.Empty(s.world.sales)
	s.Empty(s.world.debts)
	s.Equal(10, s.world.stock("p1"))
	s.Equal(4, s.world.stock("p2"))
	s.False(s.idem.claimed("key-1"), "failed commit releases its idempotency key")

	cart, err := s.svc.Cart(s.ctx, "sess-1")
	s.Require().NoError(err)
	s.Len(cart.Lines, 2)
}

func (s *CheckoutSuite) TestStockChangedSinceAdd() {
	s.add("sess-1", "p2", 3)
	s.world.mu.Lock()
	p := s.world.products["p2"]
	p.Quantity = 1
	s.world.products["p2"] = p
	s.world.mu.Unlock()

	_, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCash}, "")
	s.ErrorIs(err, shared.ErrInsufficientStock)
	s.Equal(1, s.world.stock("p2"))
	s.Equal([]string{"cash/insufficient_stock"}, s.observer.results)
}

func (s *CheckoutSuite) TestIdempotencyKeyRejectsReplay() {
	s.add("sess-1", "p1", 1)
	_, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCash}, "key-2")
	s.Require().NoError(err)

	s.add("sess-1", "p1", 1)
	_, err = s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCash}, "key-2")
	s.ErrorIs(err, shared.ErrIdempotencyConflict)
	s.Len(s.world.sales, 1)
	s.Equal(9, s.world.stock("p1"))
}

func (s *CheckoutSuite) TestReplayOnEmptiedCartReportsDuplicate() {
	s.add("sess-1", "p1", 1)
	req := CommitRequest{PaymentMethod: sales.PaymentCash}
	_, err := s.svc.Commit(s.ctx, "sess-1", req, "retry-key")
	s.Require().NoError(err)

	_, err = s.svc.Commit(s.ctx, "sess-1", req, "retry-key")
	s.ErrorIs(err, shared.ErrIdempotencyConflict)
	s.NotErrorIs(err, shared.ErrEmptyCart)
	s.Len(s.world.sales, 1)
}

func (s *CheckoutSuite) TestEmptyCartReleasesKey() {
	_, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCash}, "early-key")
	s.Require().ErrorIs(err, shared.ErrEmptyCart)
	s.False(s.idem.claimed("early-key"))

	s.add("sess-1", "p1", 1)
	_, err = s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCash}, "early-key")
	s.NoError(err)
}

func (s *CheckoutSuite) TestKeyUsedForPaymentDoesNotBlockCheckout() {
	s.Require().NoError(s.idem.CheckAndInsert(s.ctx, "shared-key", shared.IdempotencyPayment))
	s.add("sess-1", "p1", 1)
	_, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCash}, "shared-key")
	s.NoError(err)
}

func (s *CheckoutSuite) TestFreeCreditSaleOpensSettledDebt() {
	s.add("sess-1", "p2", 1)
	_, err := s.svc.SetDiscount(s.ctx, "sess-1", DiscountRequest{Mode: DiscountPercent, Value: decimal.RequireFromString("100")})
	s.Require().NoError(err)

	sale, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCredit, CustomerID: "c1"}, "")
	s.Require().NoError(err)
	s.Equal(shared.Money(0), sale.Total)

	s.Require().Len(s.world.debts, 1)
	s.Equal(debts.StatusPaid, s.world.debts[0].Status)
	s.Equal(shared.Money(0), s.world.debts[0].RemainingAmount)
	s.Equal(shared.Money(0), s.world.customers["c1"].TotalDebt)
}

func (s *CheckoutSuite) TestLoweringQuantitySkipsProductLookup() {
	s.add("sess-1", "p1", 3)
	s.world.mu.Lock()
	delete(s.world.products, "p1")
	s.world.mu.Unlock()

	view, err := s.svc.SetQuantity(s.ctx, "sess-1", 0, 1)
	s.Require().NoError(err)
	s.Equal(1, view.Lines[0].Quantity)

	_, err = s.svc.SetQuantity(s.ctx, "sess-1", 0, 2)
	s.ErrorIs(err, shared.ErrNotFound)
}

func (s *CheckoutSuite) TestBusySessionLock() {
	s.svc.locker = busyLocker{}
	s.add("sess-1", "p1", 1)
	_, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCash}, "")
	s.ErrorIs(err, shared.ErrLocked)
	s.Empty(s.world.sales)
}

func (s *CheckoutSuite) TestScanAddsByBarcode() {
	view, err := s.svc.Scan(s.ctx, "sess-1", ScanRequest{Barcode: "6281002"})
	s.Require().NoError(err)
	s.Require().Len(view.Lines, 1)
	s.Equal("p2", view.Lines[0].ProductID)
	s.Equal(1, view.Lines[0].Quantity)

	_, err = s.svc.Scan(s.ctx, "sess-1", ScanRequest{Barcode: "000"})
	s.ErrorIs(err, shared.ErrNotFound)
}

func (s *CheckoutSuite) TestSetQuantityChecksStock() {
	s.add("sess-1", "p2", 1)
	_, err := s.svc.SetQuantity(s.ctx, "sess-1", 0, 5)
	s.ErrorIs(err, shared.ErrInsufficientStock)

	view, err := s.svc.SetQuantity(s.ctx, "sess-1", 0, 4)
	s.Require().NoError(err)
	s.Equal(4, view.Lines[0].Quantity)

	view, err = s.svc.SetQuantity(s.ctx, "sess-1", 0, 0)
	s.Require().NoError(err)
	s.Empty(view.Lines)
}

func (s *CheckoutSuite) TestHoldAndResume() {
	s.ErrorIs(s.svc.Hold(s.ctx, "sess-1"), shared.ErrEmptyCart)

	s.add("sess-1", "p1", 2)
	s.Require().NoError(s.svc.Hold(s.ctx, "sess-1"))
	s.Require().NoError(s.svc.Clear(s.ctx, "sess-1"))
	s.add("sess-1", "p2", 1)

	view, err := s.svc.Resume(s.ctx, "sess-1")
	s.Require().NoError(err)
	s.Require().Len(view.Lines, 1)
	s.Equal("p1", view.Lines[0].ProductID)

	_, err = s.svc.Resume(s.ctx, "sess-1")
	s.ErrorIs(err, shared.ErrNotFound)
}

func (s *CheckoutSuite) TestDiscountAppliesToCommit() {
	s.add("sess-1", "p1", 5)
	_, err := s.svc.SetDiscount(s.ctx, "sess-1", DiscountRequest{Mode: DiscountAmount, Value: decimal.RequireFromString("10")})
	s.Require().NoError(err)

	sale, err := s.svc.Commit(s.ctx, "sess-1", CommitRequest{PaymentMethod: sales.PaymentCash}, "")
	s.Require().NoError(err)
	s.Equal(shared.Money(1000), sale.Discount)
	s.Equal(shared.Money(10350), sale.Total)
}

func TestConcurrentCommitsNeverOversell(t *testing.T) {
	w := newWorld()
	w.products["p1"] = catalog.Product{ID: "p1", Name: "Insulin pen", Price: 5000, Quantity: 5}
	store, _ := newRedisStore(t)
	invoices, err := NewInvoiceNumberer(2)
	require.NoError(t, err)
	svc := NewService(w, Options{Store: store, Products: w, Invoices: invoices})
	ctx := context.Background()

	for _, sid := range []string{"a", "b"} {
		_, err := svc.AddLine(ctx, sid, AddLineRequest{ProductID: "p1", Quantity: 3})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, 2)
	for i, sid := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, sid string) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Commit(ctx, sid, CommitRequest{PaymentMethod: sales.PaymentCash}, "")
		}(i, sid)
	}
	close(start)
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shared.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 2, w.stock("p1"))
	assert.Len(t, w.sales, 1)
}

func TestInvoiceNumbersAreUnique(t *testing.T) {
	n, err := NewInvoiceNumberer(3)
	require.NoError(t, err)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		num := n.Next(at)
		require.False(t, seen[num], num)
		seen[num] = true
	}
	_, err = NewInvoiceNumberer(4096)
	require.Error(t, err)
}
