package debts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// IdempotencyGuard rejects replays of the same client key.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// PaymentObserver receives payment outcomes for metrics.
type PaymentObserver interface {
	ObservePayment(result string, amount int64)
}

// Payment outcome labels.
const (
	resultCommitted = "committed"
	resultRejected  = "rejected"
	resultFailed    = "failed"
)

// Service implements the debt ledger.
type Service struct {
	repo     Repository
	idem     IdempotencyGuard
	notifier shared.Notifier
	audit    shared.AuditRecorder
	observer PaymentObserver
	logger   *slog.Logger
	now      func() time.Time
}

// Options carries optional collaborators.
type Options struct {
	Idempotency IdempotencyGuard
	Notifier    shared.Notifier
	Audit       shared.AuditRecorder
	Observer    PaymentObserver
	Logger      *slog.Logger
}

// NewService wires the ledger.
func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:     repo,
		idem:     opts.Idempotency,
		notifier: opts.Notifier,
		audit:    opts.Audit,
		observer: opts.Observer,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.notifier == nil {
		s.notifier = shared.LogNotifier{Logger: s.logger}
	}
	if s.audit == nil {
		s.audit = shared.NopAudit{}
	}
	return s
}

// List returns debts matching filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Debt, error) {
	switch filter.Status {
	case "", StatusOutstanding, StatusPartiallyPaid, StatusPaid:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// Get returns a debt with its payment history.
func (s *Service) Get(ctx context.Context, id string) (Debt, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Debt{}, err
	}
	payments, err := s.repo.Payments(ctx, id)
	if err != nil {
		return Debt{}, fmt.Errorf("load payments: %w", err)
	}
	d.Payments = payments
	return d, nil
}

// Summary aggregates the ledger including this calendar month's collections.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	list, err := s.repo.List(ctx, Filter{})
	if err != nil {
		return Summary{}, fmt.Errorf("list debts: %w", err)
	}
	from, to := MonthBounds(s.now())
	paid, err := s.repo.PaidBetween(ctx, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("sum payments: %w", err)
	}
	return Summarize(list, paid), nil
}

// Overdue lists unpaid debts dated before today.
func (s *Service) Overdue(ctx context.Context) ([]Debt, error) {
	list, err := s.repo.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := []Debt{}
	for _, d := range list {
		if d.IsOverdue(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

// ApplyPayment records a payment against a debt. The debt row is locked for
// the duration of the transaction so concurrent payments see each other.
func (s *Service) ApplyPayment(ctx context.Context, debtID string, amount shared.Money, idempotencyKey string) (Debt, error) {
	if amount <= 0 {
		s.observe(resultRejected, 0)
		return Debt{}, fmt.Errorf("%w: payment amount must be positive", shared.ErrInvalidInput)
	}
	if idempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idempotencyKey, shared.IdempotencyPayment); err != nil {
			return Debt{}, err
		}
	}

	var updated Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.LockForUpdate(ctx, debtID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		next, err := current.Apply(amount, now)
		if err != nil {
			return err
		}
		if err := tx.Save(ctx, next); err != nil {
			return err
		}
		if err := tx.InsertPayment(ctx, Payment{
			ID:         uuid.NewString(),
			DebtID:     next.ID,
			CustomerID: next.CustomerID,
			Amount:     amount,
			ReceivedBy: shared.ActorID(ctx),
			PaidAt:     now,
		}); err != nil {
			return err
		}
		if err := tx.AdjustCustomerDebt(ctx, next.CustomerID, -amount); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		if idempotencyKey != "" && s.idem != nil {
			if delErr := s.idem.Delete(ctx, idempotencyKey, shared.IdempotencyPayment); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		if errors.Is(err, shared.ErrOverPayment) || errors.Is(err, shared.ErrInvalidInput) || errors.Is(err, shared.ErrNotFound) {
			s.observe(resultRejected, 0)
		} else {
			s.observe(resultFailed, 0)
		}
		return Debt{}, err
	}

	s.observe(resultCommitted, int64(amount))
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   "debt.payment",
		Entity:   "debt",
		EntityID: updated.ID,
		Meta:     map[string]any{"amount": amount.String(), "remaining": updated.RemainingAmount.String(), "status": updated.Status},
	}); err != nil {
		s.logger.Warn("audit payment", slog.Any("error", err))
	}
	s.notifier.Notify(ctx, shared.NoticeSuccess, fmt.Sprintf("Payment of %s recorded for %s, remaining %s", amount, updated.InvoiceNumber, updated.RemainingAmount))
	return updated, nil
}

// ReconcileMirror rewrites customers.total_debt from the ledger.
func (s *Service) ReconcileMirror(ctx context.Context) (int64, error) {
	return s.repo.ReconcileCustomerDebt(ctx)
}

func (s *Service) observe(result string, amount int64) {
	if s.observer != nil {
		s.observer.ObservePayment(result, amount)
	}
}
