package domain

import "testing"

func TestOrderStatusCanTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"pending to processing", OrderStatusPending, OrderStatusProcessing, true},
		{"processing to shipped", OrderStatusProcessing, OrderStatusShipped, true},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"pending skips to shipped", OrderStatusPending, OrderStatusShipped, false},
		{"pending skips to delivered", OrderStatusPending, OrderStatusDelivered, false},
		{"processing skips to delivered", OrderStatusProcessing, OrderStatusDelivered, false},
		{"same status", OrderStatusProcessing, OrderStatusProcessing, true},
		{"backwards", OrderStatusShipped, OrderStatusPending, true},
		{"delivered is terminal", OrderStatusDelivered, OrderStatusShipped, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusPending, false},
		{"cancel via generic update", OrderStatusPending, OrderStatusCancelled, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.allowed {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
			}
		})
	}
}

func TestOrderStatusPredicates(t *testing.T) {
	if !OrderStatusDelivered.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatal("delivered and cancelled must be terminal")
	}
	if OrderStatusShipped.IsTerminal() {
		t.Fatal("shipped must not be terminal")
	}
	if !OrderStatusPending.IsCancellable() || !OrderStatusProcessing.IsCancellable() {
		t.Fatal("pending and processing must be cancellable")
	}
	if OrderStatusShipped.IsCancellable() || OrderStatusDelivered.IsCancellable() || OrderStatusCancelled.IsCancellable() {
		t.Fatal("shipped, delivered and cancelled must not be cancellable")
	}
}

func TestParseOrderStatus(t *testing.T) {
	for _, raw := range []string{"pending", "processing", "shipped", "delivered", "cancelled"} {
		if _, ok := ParseOrderStatus(raw); !ok {
			t.Fatalf("expected %q to parse", raw)
		}
	}
	if _, ok := ParseOrderStatus("refunded"); ok {
		t.Fatal("unknown status must not parse")
	}
}

func TestOrderItemsTotal(t *testing.T) {
	order := Order{Items: []OrderItem{
		{ProductID: "prd_a", Quantity: 2, UnitPrice: 1000},
		{ProductID: "prd_b", Quantity: 1, UnitPrice: 500},
	}}
	if got := order.ItemsTotal(); got != 2500 {
		t.Fatalf("ItemsTotal() = %d, want 2500", got)
	}
}
