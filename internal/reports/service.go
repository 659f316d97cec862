package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pharmadesk/pharmadesk/internal/catalog"
	"github.com/pharmadesk/pharmadesk/internal/customers"
	"github.com/pharmadesk/pharmadesk/internal/debts"
	"github.com/pharmadesk/pharmadesk/internal/sales"
)

// ProductLister loads the catalog.
type ProductLister interface {
	List(ctx context.Context) ([]catalog.Product, error)
}

// SaleLister loads sales.
type SaleLister interface {
	List(ctx context.Context, filter sales.Filter) ([]sales.Sale, error)
}

// DebtLister loads debts.
type DebtLister interface {
	List(ctx context.Context, filter debts.Filter) ([]debts.Debt, error)
}

// CustomerLister loads customers.
type CustomerLister interface {
	List(ctx context.Context) ([]customers.Customer, error)
}

// ThresholdSource supplies the current report thresholds.
type ThresholdSource interface {
	ReportThresholds(ctx context.Context) (Thresholds, error)
}

// StaticThresholds is a fixed ThresholdSource.
type StaticThresholds Thresholds

// ReportThresholds implements ThresholdSource.
func (s StaticThresholds) ReportThresholds(context.Context) (Thresholds, error) {
	return Thresholds(s), nil
}

// Sources groups the collections reports read from.
type Sources struct {
	Products   ProductLister
	Sales      SaleLister
	Debts      DebtLister
	Customers  CustomerLister
	Thresholds ThresholdSource
}

// Overview bundles every report.
type Overview struct {
	Sales       SalesReport     `json:"sales"`
	Inventory   InventoryReport `json:"inventory"`
	Debts       DebtsReport     `json:"debts"`
	Customers   CustomersReport `json:"customers"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Service computes reports on demand. Nothing is cached: concurrent identical
// requests share one computation, later requests recompute.
type Service struct {
	src    Sources
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewService wires the report service.
func NewService(src Sources, logger *slog.Logger) *Service {
	if src.Thresholds == nil {
		src.Thresholds = StaticThresholds(DefaultThresholds())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, logger: logger, now: time.Now}
}

type snapshot struct {
	products   []catalog.Product
	sales      []sales.Sale
	debts      []debts.Debt
	customers  []customers.Customer
	thresholds Thresholds
}

type need struct {
	products, sales, debts, customers bool
}

// load reads the requested collections in parallel.
func (s *Service) load(ctx context.Context, n need) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	if n.products {
		g.Go(func() (err error) {
			snap.products, err = s.src.Products.List(gctx)
			return wrap("products", err)
		})
	}
	if n.sales {
		g.Go(func() (err error) {
			snap.sales, err = s.src.Sales.List(gctx, sales.Filter{})
			return wrap("sales", err)
		})
	}
	if n.debts {
		g.Go(func() (err error) {
			snap.debts, err = s.src.Debts.List(gctx, debts.Filter{})
			return wrap("debts", err)
		})
	}
	if n.customers {
		g.Go(func() (err error) {
			snap.customers, err = s.src.Customers.List(gctx)
			return wrap("customers", err)
		})
	}
	g.Go(func() (err error) {
		snap.thresholds, err = s.src.Thresholds.ReportThresholds(gctx)
		return wrap("thresholds", err)
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}

// run shares one computation between concurrent callers of key. The
// computation is detached from any single caller's cancellation; each caller
// stops waiting when its own context ends.
func run[T any](ctx context.Context, s *Service, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ch := s.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("report computation shared", slog.String("report", key))
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Sales builds the sales report.
func (s *Service) Sales(ctx context.Context) (SalesReport, error) {
	return run(ctx, s, "sales", func(ctx context.Context) (SalesReport, error) {
		snap, err := s.load(ctx, need{sales: true})
		if err != nil {
			return SalesReport{}, err
		}
		return BuildSales(snap.sales, s.now()), nil
	})
}

// Inventory builds the inventory report.
func (s *Service) Inventory(ctx context.Context) (InventoryReport, error) {
	return run(ctx, s, "inventory", func(ctx context.Context) (InventoryReport, error) {
		snap, err := s.load(ctx, need{products: true})
		if err != nil {
			return InventoryReport{}, err
		}
		return BuildInventory(snap.products, snap.thresholds, s.now()), nil
	})
}

// Debts builds the debts report.
func (s *Service) Debts(ctx context.Context) (DebtsReport, error) {
	return run(ctx, s, "debts", func(ctx context.Context) (DebtsReport, error) {
		snap, err := s.load(ctx, need{debts: true})
		if err != nil {
			return DebtsReport{}, err
		}
		return BuildDebts(snap.debts, s.now()), nil
	})
}

// Customers builds the customers report.
func (s *Service) Customers(ctx context.Context) (CustomersReport, error) {
	return run(ctx, s, "customers", func(ctx context.Context) (CustomersReport, error) {
		snap, err := s.load(ctx, need{customers: true})
		if err != nil {
			return CustomersReport{}, err
		}
		return BuildCustomers(snap.customers, snap.thresholds, s.now()), nil
	})
}

// Overview builds every report from one parallel load.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	return run(ctx, s, "overview", func(ctx context.Context) (Overview, error) {
		snap, err := s.load(ctx, need{products: true, sales: true, debts: true, customers: true})
		if err != nil {
			return Overview{}, err
		}
		now := s.now()
		return Overview{
			Sales:       BuildSales(snap.sales, now),
			Inventory:   BuildInventory(snap.products, snap.thresholds, now),
			Debts:       BuildDebts(snap.debts, now),
			Customers:   BuildCustomers(snap.customers, snap.thresholds, now),
			GeneratedAt: now.UTC(),
		}, nil
	})
}
