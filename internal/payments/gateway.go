package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PaymentStatus enumerates the normalised session payment states shared across gateways.
type PaymentStatus string

const (
	// PaymentStatusUnpaid indicates the session is awaiting customer payment.
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	// PaymentStatusPaid indicates the gateway reports the payment as settled.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusNoPaymentRequired indicates the session completes without a charge.
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// Paid reports whether the status represents a settled payment.
func (s PaymentStatus) Paid() bool {
	return s == PaymentStatusPaid
}

// ErrUnsupportedProvider is returned when the manager cannot locate a gateway.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// CheckoutLineItem describes a single line item to include in a checkout session.
type CheckoutLineItem struct {
	Name       string
	Quantity   int64
	UnitAmount int64
	Currency   string
}

// SessionRequest captures the payload required to create a checkout session.
type SessionRequest struct {
	Currency       string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// Session represents the gateway session returned to the client.
type Session struct {
	ID        string
	Provider  string
	URL       string
	ExpiresAt time.Time
}

// SessionStatus reports the payment state of an existing session.
type SessionStatus struct {
	ID            string
	PaymentStatus PaymentStatus
}

// CheckoutGateway defines the contract for checkout session adapters to implement.
type CheckoutGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	GetSession(ctx context.Context, sessionID string) (SessionStatus, error)
	ExpireSession(ctx context.Context, sessionID string) error
}

// Manager coordinates gateway selection and exposes the aggregated interface.
type Manager struct {
	gateways        map[string]CheckoutGateway
	defaultProvider string
	currencyRoutes  map[string]string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the default gateway for currencies without explicit routing.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = provider
	}
}

// WithCurrencyRoutes configures static currency to gateway mappings.
func WithCurrencyRoutes(routes map[string]string) ManagerOption {
	return func(m *Manager) {
		if len(routes) == 0 {
			return
		}
		if m.currencyRoutes == nil {
			m.currencyRoutes = make(map[string]string, len(routes))
		}
		for k, v := range routes {
			m.currencyRoutes[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
}

// NewManager constructs a Manager over the supplied gateways.
func NewManager(gateways map[string]CheckoutGateway, opts ...ManagerOption) (*Manager, error) {
	if len(gateways) == 0 {
		return nil, errors.New("payments: at least one gateway is required")
	}
	copyMap := make(map[string]CheckoutGateway, len(gateways))
	for k, v := range gateways {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid gateway registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{
		gateways: copyMap,
	}
	if _, ok := copyMap["stripe"]; ok {
		m.defaultProvider = "stripe"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// PaymentContext defines the hints available when selecting a gateway.
type PaymentContext struct {
	PreferredProvider string
	Currency          string
}

func (m *Manager) resolveGateway(ctx PaymentContext) (string, CheckoutGateway, error) {
	if m == nil {
		return "", nil, errors.New("payments: manager is nil")
	}
	if len(m.gateways) == 0 {
		return "", nil, errors.New("payments: no gateways registered")
	}
	if provider := strings.TrimSpace(strings.ToLower(ctx.PreferredProvider)); provider != "" {
		if g, ok := m.gateways[provider]; ok {
			return provider, g, nil
		}
	}
	currency := strings.ToUpper(strings.TrimSpace(ctx.Currency))
	if currency != "" && m.currencyRoutes != nil {
		if providerKey, ok := m.currencyRoutes[currency]; ok {
			provider := strings.TrimSpace(strings.ToLower(providerKey))
			if g, ok := m.gateways[provider]; ok {
				return provider, g, nil
			}
		}
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultProvider)); def != "" {
		if g, ok := m.gateways[def]; ok {
			return def, g, nil
		}
	}
	if len(m.gateways) == 1 {
		for key, g := range m.gateways {
			return key, g, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// CreateSession delegates to the resolved gateway.
func (m *Manager) CreateSession(ctx context.Context, paymentCtx PaymentContext, req SessionRequest) (Session, error) {
	key, gateway, err := m.resolveGateway(paymentCtx)
	if err != nil {
		return Session{}, err
	}
	session, err := gateway.CreateSession(ctx, req)
	if err != nil {
		return Session{}, err
	}
	session.Provider = key
	return session, nil
}

// GetSession delegates to the resolved gateway.
func (m *Manager) GetSession(ctx context.Context, paymentCtx PaymentContext, sessionID string) (SessionStatus, error) {
	_, gateway, err := m.resolveGateway(paymentCtx)
	if err != nil {
		return SessionStatus{}, err
	}
	return gateway.GetSession(ctx, sessionID)
}

// ExpireSession delegates to the resolved gateway.
func (m *Manager) ExpireSession(ctx context.Context, paymentCtx PaymentContext, sessionID string) error {
	_, gateway, err := m.resolveGateway(paymentCtx)
	if err != nil {
		return err
	}
	return gateway.ExpireSession(ctx, sessionID)
}

// Bound fixes the payment context and returns a plain CheckoutGateway view of
// the manager, for callers that should not care about provider selection.
func (m *Manager) Bound(paymentCtx PaymentContext) CheckoutGateway {
	return &boundGateway{manager: m, paymentCtx: paymentCtx}
}

type boundGateway struct {
	manager    *Manager
	paymentCtx PaymentContext
}

func (b *boundGateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	return b.manager.CreateSession(ctx, b.paymentCtx, req)
}

func (b *boundGateway) GetSession(ctx context.Context, sessionID string) (SessionStatus, error) {
	return b.manager.GetSession(ctx, b.paymentCtx, sessionID)
}

func (b *boundGateway) ExpireSession(ctx context.Context, sessionID string) error {
	return b.manager.ExpireSession(ctx, b.paymentCtx, sessionID)
}
