package debts

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// memoryRepo serialises transactions with a mutex, which stands in for the row lock.
type memoryRepo struct {
	mu        sync.Mutex
	debts     map[string]Debt
	payments  []Payment
	customers map[string]shared.Money
	failSave  bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{debts: map[string]Debt{}, customers: map[string]shared.Money{}}
}

type txRepo struct{ *memoryRepo }

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	debts := make(map[string]Debt, len(m.debts))
	for k, v := range m.debts {
		debts[k] = v
	}
	customers := make(map[string]shared.Money, len(m.customers))
	for k, v := range m.customers {
		customers[k] = v
	}
	payments := append([]Payment(nil), m.payments...)
	if err := fn(ctx, txRepo{m}); err != nil {
		m.debts, m.customers, m.payments = debts, customers, payments
		return err
	}
	return nil
}

func (m *memoryRepo) List(_ context.Context, filter Filter) ([]Debt, error) {
	out := []Debt{}
	for _, d := range m.debts {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.CustomerID != "" && d.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (Debt, error) {
	d, ok := m.debts[id]
	if !ok {
		return Debt{}, shared.ErrNotFound
	}
	return d, nil
}

func (m *memoryRepo) LockForUpdate(ctx context.Context, id string) (Debt, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) Save(_ context.Context, d Debt) error {
	if m.failSave {
		return errors.New("connection reset")
	}
	m.debts[d.ID] = d
	return nil
}

func (m *memoryRepo) InsertPayment(_ context.Context, p Payment) error {
	m.payments = append(m.payments, p)
	return nil
}

func (m *memoryRepo) Payments(_ context.Context, debtID string) ([]Payment, error) {
	out := []Payment{}
	for _, p := range m.payments {
		if p.DebtID == debtID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) PaidBetween(_ context.Context, from, to time.Time) (shared.Money, error) {
	var total shared.Money
	for _, p := range m.payments {
		if !p.PaidAt.Before(from) && p.PaidAt.Before(to) {
			total += p.Amount
		}
	}
	return total, nil
}

func (m *memoryRepo) AdjustCustomerDebt(_ context.Context, customerID string, delta shared.Money) error {
	m.customers[customerID] += delta
	return nil
}

func (m *memoryRepo) ReconcileCustomerDebt(context.Context) (int64, error) {
	sums := map[string]shared.Money{}
	for _, d := range m.debts {
		sums[d.CustomerID] += d.RemainingAmount
	}
	var changed int64
	for id, v := range m.customers {
		if v != sums[id] {
			m.customers[id] = sums[id]
			changed++
		}
	}
	return changed, nil
}

type observerSpy struct {
	mu      sync.Mutex
	results []string
}

func (o *observerSpy) ObservePayment(result string, _ int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func seeded(remaining shared.Money) (*memoryRepo, *Service, *observerSpy) {
	repo := newMemoryRepo()
	d := New("d1", "c1", "s1", "INV-2024-1", remaining, testNow.AddDate(0, 0, -3))
	repo.debts[d.ID] = d
	repo.customers["c1"] = remaining
	spy := &observerSpy{}
	svc := NewService(repo, Options{Observer: spy})
	svc.now = func() time.Time { return testNow }
	return repo, svc, spy
}

func TestApplyPaymentFullSettles(t *testing.T) {
	repo, svc, spy := seeded(5000)

	debt, err := svc.ApplyPayment(context.Background(), "d1", 5000, "")
	require.NoError(t, err)

	assert.Equal(t, StatusPaid, debt.Status)
	assert.Equal(t, shared.Money(0), debt.RemainingAmount)
	assert.Equal(t, shared.Money(5000), debt.AmountPaid)
	assert.Equal(t, shared.Money(0), repo.customers["c1"])
	require.Len(t, repo.payments, 1)
	assert.Equal(t, shared.Money(5000), repo.payments[0].Amount)
	assert.Equal(t, []string{resultCommitted}, spy.results)
}

func TestApplyPaymentPartial(t *testing.T) {
	repo, svc, _ := seeded(5000)

	debt, err := svc.ApplyPayment(context.Background(), "d1", 2000, "")
	require.NoError(t, err)

	assert.Equal(t, StatusPartiallyPaid, debt.Status)
	assert.Equal(t, shared.Money(3000), debt.RemainingAmount)
	assert.Equal(t, shared.Money(3000), repo.customers["c1"])
	assert.Equal(t, debt.Amount, debt.AmountPaid+debt.RemainingAmount)
}

func TestApplyPaymentOverPaymentLeavesStateUntouched(t *testing.T) {
	repo, svc, spy := seeded(5000)
	before := repo.debts["d1"]

	_, err := svc.ApplyPayment(context.Background(), "d1", 6000, "")
	require.ErrorIs(t, err, shared.ErrOverPayment)

	assert.Equal(t, before, repo.debts["d1"])
	assert.Equal(t, shared.Money(5000), repo.customers["c1"])
	assert.Empty(t, repo.payments)
	assert.Equal(t, []string{resultRejected}, spy.results)
}

func TestApplyPaymentRejectsNonPositive(t *testing.T) {
	_, svc, _ := seeded(5000)
	for _, amount := range []shared.Money{0, -100} {
		_, err := svc.ApplyPayment(context.Background(), "d1", amount, "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	}
}

func TestApplyPaymentUnknownDebt(t *testing.T) {
	_, svc, _ := seeded(5000)
	_, err := svc.ApplyPayment(context.Background(), "nope", 100, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyPaymentRollsBackOnStoreFailure(t *testing.T) {
	repo, svc, spy := seeded(5000)
	repo.failSave = true

	_, err := svc.ApplyPayment(context.Background(), "d1", 1000, "")
	require.Error(t, err)
	assert.Equal(t, shared.Money(5000), repo.customers["c1"])
	assert.Empty(t, repo.payments)
	assert.Equal(t, []string{resultFailed}, spy.results)
}

func TestConcurrentPaymentsCannotOverpay(t *testing.T) {
	repo, svc, _ := seeded(5000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ApplyPayment(context.Background(), "d1", 3000, "")
		}(i)
	}
	wg.Wait()

	succeeded, overpaid := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, shared.ErrOverPayment):
			overpaid++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, overpaid)
	assert.Equal(t, shared.Money(2000), repo.debts["d1"].RemainingAmount)
}

type idemStub struct {
	seen    map[string]bool
	deleted []string
}

func (s *idemStub) CheckAndInsert(_ context.Context, key, module string) error {
	if s.seen[module+"/"+key] {
		return shared.ErrIdempotencyConflict
	}
	s.seen[module+"/"+key] = true
	return nil
}

func (s *idemStub) Delete(_ context.Context, key, module string) error {
	delete(s.seen, module+"/"+key)
	s.deleted = append(s.deleted, module+"/"+key)
	return nil
}

func TestIdempotencyKeyReplayRejected(t *testing.T) {
	repo, _, _ := seeded(5000)
	idem := &idemStub{seen: map[string]bool{}}
	svc := NewService(repo, Options{Idempotency: idem})
	svc.now = func() time.Time { return testNow }

	_, err := svc.ApplyPayment(context.Background(), "d1", 1000, "key-1")
	require.NoError(t, err)
	_, err = svc.ApplyPayment(context.Background(), "d1", 1000, "key-1")
	assert.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	assert.Len(t, repo.payments, 1)

	_, err = svc.ApplyPayment(context.Background(), "d1", 9000, "key-2")
	assert.ErrorIs(t, err, shared.ErrOverPayment)
	assert.Equal(t, []string{shared.IdempotencyPayment + "/key-2"}, idem.deleted)
}

func TestSummaryIncludesPaidThisMonth(t *testing.T) {
	repo, svc, _ := seeded(5000)
	repo.debts["d2"] = New("d2", "c2", "s2", "INV-2024-2", 3000, testNow)
	repo.debts["d3"] = Debt{ID: "d3", CustomerID: "c3", Amount: 1000, AmountPaid: 1000, Status: StatusPaid}
	repo.payments = append(repo.payments,
		Payment{ID: "p-old", DebtID: "d3", Amount: 1000, PaidAt: time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC)},
	)

	_, err := svc.ApplyPayment(context.Background(), "d1", 1500, "")
	require.NoError(t, err)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, shared.Money(9000), summary.TotalAmount)
	assert.Equal(t, shared.Money(6500), summary.TotalOutstanding)
	assert.Equal(t, 2, summary.CustomersWithDebt)
	assert.Equal(t, shared.Money(1500), summary.PaidThisMonth)

	again, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary, again)
}

func TestOverdueExcludesTodayAndPaid(t *testing.T) {
	repo, svc, _ := seeded(5000)
	repo.debts["today"] = New("today", "c2", "s2", "INV-2024-2", 1000, testNow)
	repo.debts["settled"] = Debt{ID: "settled", DebtDate: testNow.AddDate(0, 0, -10), Status: StatusPaid}

	overdue, err := svc.Overdue(context.Background())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "d1", overdue[0].ID)
}

func TestReconcileMirror(t *testing.T) {
	repo, svc, _ := seeded(5000)
	repo.customers["c1"] = 123
	changed, err := svc.ReconcileMirror(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)
	assert.Equal(t, shared.Money(5000), repo.customers["c1"])
}

func TestNewZeroDebtIsSettled(t *testing.T) {
	d := New("d0", "c1", "s0", "INV-2024-0", 0, testNow)
	assert.Equal(t, StatusPaid, d.Status)
	assert.False(t, d.IsOverdue(testNow.AddDate(0, 0, 5)))

	open := New("d1", "c1", "s1", "INV-2024-1", 100, testNow)
	assert.Equal(t, StatusOutstanding, open.Status)
}
