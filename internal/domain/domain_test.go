package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusCancelled, OrderStatusPending, true},
		{OrderStatusPaid, OrderStatusRefunded, true},
		{OrderStatusProcessing, OrderStatusRefunded, true},
		{OrderStatusShipped, OrderStatusRefunded, true},
		{OrderStatusPaid, OrderStatusPending, true},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusRefunded, false},
		{OrderStatusRefunded, OrderStatusPaid, false},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusPending, OrderStatusRefunded, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s->%s", tc.from, tc.to), func(t *testing.T) {
			assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestOrderPreStates(t *testing.T) {
	assert.ElementsMatch(t, []OrderStatus{OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped}, OrderPreStates(OrderStatusRefunded))
	assert.ElementsMatch(t, []OrderStatus{OrderStatusCancelled, OrderStatusPaid}, OrderPreStates(OrderStatusPending))
	assert.Empty(t, OrderPreStates("bogus"))
}

func TestLinesTotal_Exact(t *testing.T) {
	lines := []OrderLine{
		{Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
		{Quantity: 1, UnitPrice: decimal.RequireFromString("0.20")},
		{Quantity: 7, UnitPrice: decimal.RequireFromString("19.99")},
	}
	total := LinesTotal(lines)
	assert.True(t, total.Equal(decimal.RequireFromString("140.43")), "got %s", total)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(9999), ToMinorUnits(decimal.RequireFromString("99.99"), "USD"))
	assert.Equal(t, int64(1000), ToMinorUnits(decimal.RequireFromString("1000"), "jpy"))
	assert.Equal(t, int64(1235), ToMinorUnits(decimal.RequireFromString("1.2345"), "KWD"))
	assert.True(t, FromMinorUnits(9999, "USD").Equal(decimal.RequireFromString("99.99")))
	assert.Equal(t, "10.50", FormatAmount(decimal.RequireFromString("10.5"), "EUR"))
	assert.Equal(t, "500", FormatAmount(decimal.RequireFromString("500"), "JPY"))
}

func TestErrors_Is(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &InvalidTransitionError{Entity: "order", ID: "1", From: "delivered", To: "pending"})
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "delivered", ite.From)

	assert.True(t, errors.Is(NewValidationError("quantity", "must be positive"), ErrValidation))
	assert.True(t, errors.Is(&ProviderError{Provider: ProviderStripe, Message: "declined"}, ErrProviderRejected))
	assert.True(t, errors.Is(&ProviderError{Provider: ProviderStripe, Temporary: true}, ErrProviderUnavailable))
	assert.False(t, errors.Is(&ProviderError{Provider: ProviderStripe, Temporary: true}, ErrProviderRejected))
}

func TestPaymentPreStates(t *testing.T) {
	assert.Equal(t, []PaymentStatus{PaymentStatusCompleted}, PaymentPreStates(PaymentStatusRefunded))
	assert.Nil(t, PaymentPreStates(PaymentStatusPending))

	to, ok := OrderStatusFor(PaymentStatusFailed)
	assert.True(t, ok)
	assert.Equal(t, OrderStatusPending, to)
}

func TestPayment_RefundTarget(t *testing.T) {
	ext, ref := "cs_1", "pi_1"
	assert.Equal(t, "cs_1", Payment{ExternalID: &ext}.RefundTarget())
	assert.Equal(t, "pi_1", Payment{ExternalID: &ext, ProviderReference: &ref}.RefundTarget())
}

func TestPaymentStatus_Supersedes(t *testing.T) {
	assert.True(t, PaymentStatusRefunded.Supersedes(PaymentStatusCompleted))
	assert.True(t, PaymentStatusRefunded.Supersedes(PaymentStatusFailed))
	assert.True(t, PaymentStatusCompleted.Supersedes(PaymentStatusPending))
	assert.False(t, PaymentStatusRefunded.Supersedes(PaymentStatusRefunded))
	assert.False(t, PaymentStatusPending.Supersedes(PaymentStatusRefunded))
	assert.False(t, PaymentStatusFailed.Supersedes(PaymentStatusCompleted))
}
