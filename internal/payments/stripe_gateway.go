package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe gateway operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
}

// StripeGatewayConfig configures the StripeGateway.
type StripeGatewayConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   StripeLogger
	Clock    func() time.Time

	// Sessions overrides the Stripe session API, primarily for tests.
	Sessions stripeSessionAPI
}

// StripeGateway implements the CheckoutGateway interface using Stripe Checkout.
type StripeGateway struct {
	sessions stripeSessionAPI
	clock    func() time.Time
	logger   StripeLogger
}

// NewStripeGateway constructs a Stripe gateway using the given configuration.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Sessions == nil {
		return nil, errors.New("stripe: api key is required")
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sc := client.New(apiKey, cfg.Backends)
		sessions = sc.CheckoutSessions
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeGateway{
		sessions: sessions,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateSession creates a Stripe Checkout session with one line per item.
func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if g == nil || g.sessions == nil {
		return Session{}, errors.New("stripe: gateway is nil")
	}
	if len(req.Items) == 0 {
		return Session{}, errors.New("stripe: at least one line item is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}

	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(defaultString(item.Currency, req.Currency))),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}
	params.LineItems = lineItems

	session, err := g.sessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	g.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": session.ID,
		"currency":  session.Currency,
	})

	result := Session{
		ID:  session.ID,
		URL: session.URL,
	}
	if session.ExpiresAt > 0 {
		result.ExpiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return result, nil
}

// GetSession retrieves the payment status of an existing session.
func (g *StripeGateway) GetSession(ctx context.Context, sessionID string) (SessionStatus, error) {
	if g == nil || g.sessions == nil {
		return SessionStatus{}, errors.New("stripe: gateway is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SessionStatus{}, errors.New("stripe: session id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := g.sessions.Get(sessionID, params)
	if err != nil {
		return SessionStatus{}, fmt.Errorf("stripe: get checkout session: %w", err)
	}

	return SessionStatus{
		ID:            session.ID,
		PaymentStatus: normalizePaymentStatus(session.PaymentStatus),
	}, nil
}

// ExpireSession expires an open session so the hosted page stops accepting payment.
func (g *StripeGateway) ExpireSession(ctx context.Context, sessionID string) error {
	if g == nil || g.sessions == nil {
		return errors.New("stripe: gateway is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("stripe: session id is required")
	}

	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := g.sessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("stripe: expire checkout session: %w", err)
	}

	g.logger(ctx, "payments.stripe.session.expired", map[string]any{
		"sessionId": sessionID,
	})
	return nil
}

func normalizePaymentStatus(status stripe.CheckoutSessionPaymentStatus) PaymentStatus {
	switch status {
	case stripe.CheckoutSessionPaymentStatusPaid:
		return PaymentStatusPaid
	case stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return PaymentStatusNoPaymentRequired
	default:
		return PaymentStatusUnpaid
	}
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
