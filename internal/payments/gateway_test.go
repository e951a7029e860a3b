package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeGateway struct {
	name    string
	created []SessionRequest
	expired []string
}

func (f *fakeGateway) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	f.created = append(f.created, req)
	return Session{ID: f.name + "-session", URL: "https://pay.example/" + f.name}, nil
}

func (f *fakeGateway) GetSession(_ context.Context, sessionID string) (SessionStatus, error) {
	return SessionStatus{ID: sessionID, PaymentStatus: PaymentStatusPaid}, nil
}

func (f *fakeGateway) ExpireSession(_ context.Context, sessionID string) error {
	f.expired = append(f.expired, sessionID)
	return nil
}

func TestManagerRequiresGateways(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatal("expected error for empty gateway map")
	}
	if _, err := NewManager(map[string]CheckoutGateway{"": &fakeGateway{}}); err == nil {
		t.Fatal("expected error for blank gateway key")
	}
	if _, err := NewManager(map[string]CheckoutGateway{"stripe": nil}); err == nil {
		t.Fatal("expected error for nil gateway")
	}
}

func TestManagerResolvesPreferredProvider(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeGateway{name: "stripe"}
	paypal := &fakeGateway{name: "paypal"}

	manager, err := NewManager(map[string]CheckoutGateway{"stripe": stripe, "paypal": paypal})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	session, err := manager.CreateSession(ctx, PaymentContext{PreferredProvider: "PayPal"}, SessionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Provider != "paypal" {
		t.Fatalf("expected paypal, got %s", session.Provider)
	}
	if len(paypal.created) != 1 || len(stripe.created) != 0 {
		t.Fatal("request routed to the wrong gateway")
	}
}

func TestManagerDefaultsToStripe(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeGateway{name: "stripe"}
	paypal := &fakeGateway{name: "paypal"}

	manager, err := NewManager(map[string]CheckoutGateway{"stripe": stripe, "paypal": paypal})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	session, err := manager.CreateSession(ctx, PaymentContext{}, SessionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Provider != "stripe" {
		t.Fatalf("expected stripe default, got %s", session.Provider)
	}
}

func TestManagerCurrencyRoutes(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeGateway{name: "stripe"}
	paypal := &fakeGateway{name: "paypal"}

	manager, err := NewManager(
		map[string]CheckoutGateway{"stripe": stripe, "paypal": paypal},
		WithCurrencyRoutes(map[string]string{"eur": "paypal"}),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	session, err := manager.CreateSession(ctx, PaymentContext{Currency: "EUR"}, SessionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Provider != "paypal" {
		t.Fatalf("expected paypal via currency route, got %s", session.Provider)
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeGateway{name: "stripe"}
	paypal := &fakeGateway{name: "paypal"}

	manager, err := NewManager(
		map[string]CheckoutGateway{"stripe": stripe, "paypal": paypal},
		WithDefaultProvider("missing"),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := manager.CreateSession(ctx, PaymentContext{PreferredProvider: "square"}, SessionRequest{}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestManagerBoundGateway(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeGateway{name: "stripe"}

	manager, err := NewManager(map[string]CheckoutGateway{"stripe": stripe})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	bound := manager.Bound(PaymentContext{Currency: "usd"})

	if _, err := bound.CreateSession(ctx, SessionRequest{Currency: "usd"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	status, err := bound.GetSession(ctx, "stripe-session")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !status.PaymentStatus.Paid() {
		t.Fatalf("expected paid status, got %s", status.PaymentStatus)
	}
	if err := bound.ExpireSession(ctx, "stripe-session"); err != nil {
		t.Fatalf("ExpireSession: %v", err)
	}
	if len(stripe.expired) != 1 {
		t.Fatalf("expected one expiry, got %d", len(stripe.expired))
	}
}
