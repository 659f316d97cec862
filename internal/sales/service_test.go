package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

type stubRepo struct {
	sales  []Sale
	filter Filter
}

func (s *stubRepo) List(_ context.Context, filter Filter) ([]Sale, error) {
	s.filter = filter
	out := []Sale{}
	for _, sale := range s.sales {
		if filter.CustomerID == "" || sale.CustomerID == filter.CustomerID {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (s *stubRepo) Get(_ context.Context, id string) (Sale, error) {
	for _, sale := range s.sales {
		if sale.ID == id {
			return sale, nil
		}
	}
	return Sale{}, shared.ErrNotFound
}

func (s *stubRepo) GetByInvoice(_ context.Context, number string) (Sale, error) {
	for _, sale := range s.sales {
		if sale.InvoiceNumber == number {
			return sale, nil
		}
	}
	return Sale{}, shared.ErrNotFound
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusDebt, StatusFor(PaymentCredit))
	assert.Equal(t, StatusPaid, StatusFor(PaymentCash))
	assert.Equal(t, StatusPaid, StatusFor(PaymentCard))
	assert.True(t, ValidPaymentMethod("credit_sale"))
	assert.False(t, ValidPaymentMethod("cheque"))
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, shared.Money(6000), Line{UnitPrice: 2000, Quantity: 3}.Total())
}

func TestForCustomerFilters(t *testing.T) {
	repo := &stubRepo{sales: []Sale{{ID: "s1", CustomerID: "c1"}, {ID: "s2", CustomerID: "c2"}, {ID: "s3"}}}
	svc := NewService(repo)

	list, err := svc.ForCustomer(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)
	assert.Equal(t, "c1", repo.filter.CustomerID)
}

func TestListRejectsInvertedRange(t *testing.T) {
	svc := NewService(&stubRepo{})
	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.List(context.Background(), Filter{From: &from, To: &to})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2024-03-05", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), *day)

	none, err := ParseDay("", time.UTC)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = ParseDay("05/03/2024", time.UTC)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestByInvoiceNotFound(t *testing.T) {
	svc := NewService(&stubRepo{sales: []Sale{{ID: "s1", InvoiceNumber: "INV-2024-1"}}})
	sale, err := svc.ByInvoice(context.Background(), "INV-2024-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sale.ID)
	_, err = svc.ByInvoice(context.Background(), "INV-2024-2")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
