package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusCancelled, false},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusDelivered, OrderStatusRefunded, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusRefunded, OrderStatusConfirmed, false},
		{OrderStatusShipped, OrderStatusRefunded, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Fatalf("%s -> %s: expected %v got %v", tt.from, tt.to, tt.ok, got)
		}
	}
}

func TestOrderStatusTerminalAndCancellable(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusCancelled, OrderStatusDelivered, OrderStatusRefunded} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
		if s.IsCancellable() {
			t.Fatalf("%s should not be cancellable", s)
		}
	}
	if !OrderStatusPending.IsCancellable() || !OrderStatusConfirmed.IsCancellable() {
		t.Fatal("pending and confirmed must be cancellable")
	}
	if OrderStatusShipped.IsCancellable() {
		t.Fatal("shipped must not be cancellable")
	}
}

func TestParsePaymentMethodNormalizes(t *testing.T) {
	m, err := ParsePaymentMethod(" COD ")
	if err != nil || m != PaymentMethodCashOnDelivery {
		t.Fatalf("expected cod, got %q err=%v", m, err)
	}
	if _, err := ParsePaymentMethod("venmo"); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestParseCurrencyIgnoresCase(t *testing.T) {
	c, err := ParseCurrency("inr")
	if err != nil || c != CurrencyINR {
		t.Fatalf("expected INR, got %q err=%v", c, err)
	}
}
