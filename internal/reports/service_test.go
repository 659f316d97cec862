package reports

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadesk/pharmadesk/internal/catalog"
	"github.com/pharmadesk/pharmadesk/internal/customers"
	"github.com/pharmadesk/pharmadesk/internal/debts"
	"github.com/pharmadesk/pharmadesk/internal/sales"
)

type fixture struct {
	products  []catalog.Product
	sales     []sales.Sale
	debts     []debts.Debt
	customers []customers.Customer
	calls     atomic.Int32
	gate      chan struct{}
	err       error
}

type productLister struct{ *fixture }

func (f productLister) List(context.Context) ([]catalog.Product, error) {
	return f.products, f.err
}

type saleLister struct{ *fixture }

func (f saleLister) List(ctx context.Context, _ sales.Filter) ([]sales.Sale, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.sales, nil
}

type debtLister struct{ *fixture }

func (f debtLister) List(context.Context, debts.Filter) ([]debts.Debt, error) {
	return f.debts, nil
}

type customerLister struct{ *fixture }

func (f customerLister) List(context.Context) ([]customers.Customer, error) {
	return f.customers, nil
}

func newFixtureService(f *fixture) *Service {
	svc := NewService(Sources{
		Products:  productLister{f},
		Sales:     saleLister{f},
		Debts:     debtLister{f},
		Customers: customerLister{f},
	}, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func sampleFixture() *fixture {
	return &fixture{
		products: []catalog.Product{{ID: "p1", Name: "Panadol", Quantity: 2, Price: 500}},
		sales: []sales.Sale{
			sale(2300, now, line("p1", 2, 1000)),
			sale(1150, now.AddDate(0, 0, -20), line("p2", 1, 1000)),
		},
		debts:     []debts.Debt{{ID: "d1", RemainingAmount: 1150, DebtDate: now.AddDate(0, 0, -20)}},
		customers: []customers.Customer{{ID: "c1", TotalPurchases: 3450, LoyaltyPoints: 34, CreatedAt: now}},
	}
}

func TestReportsAreIdempotent(t *testing.T) {
	svc := newFixtureService(sampleFixture())
	ctx := context.Background()

	first, err := svc.Overview(ctx)
	require.NoError(t, err)
	second, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	s1, err := svc.Sales(ctx)
	require.NoError(t, err)
	s2, err := svc.Sales(ctx)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Equal(t, first.Sales, s1)
}

func TestConcurrentRequestsShareOneLoad(t *testing.T) {
	f := sampleFixture()
	f.gate = make(chan struct{})
	svc := newFixtureService(f)

	var wg, started sync.WaitGroup
	results := make([]SalesReport, 4)
	for i := range results {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			r, err := svc.Sales(context.Background())
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	started.Wait()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}

	_, err := svc.Sales(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load(), "results are not cached")
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	f := sampleFixture()
	f.gate = make(chan struct{})
	svc := newFixtureService(f)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Sales(leaderCtx)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	type outcome struct {
		report SalesReport
		err    error
	}
	follower := make(chan outcome, 1)
	go func() {
		r, err := svc.Sales(context.Background())
		follower <- outcome{r, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(f.gate)
	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, 2, got.report.Count)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestLoadErrorPropagates(t *testing.T) {
	f := sampleFixture()
	f.err = errors.New("connection refused")
	svc := newFixtureService(f)

	_, err := svc.Inventory(context.Background())
	require.ErrorContains(t, err, "load products")
}

func TestThresholdsComeFromSource(t *testing.T) {
	f := sampleFixture()
	svc := newFixtureService(f)
	svc.src.Thresholds = StaticThresholds{LowStock: 1, ExpiryDays: 30}

	r, err := svc.Inventory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, r.LowStock)

	svc.src.Thresholds = StaticThresholds{LowStock: 5, ExpiryDays: 30}
	r, err = svc.Inventory(context.Background())
	require.NoError(t, err)
	assert.Len(t, r.LowStock, 1)
}
