package services

import (
	"context"
	"errors"
	"time"

	"github.com/melodio/api/internal/repositories"
)

const (
	defaultPendingTTL    = 24 * time.Hour
	defaultSweepInterval = time.Hour
	defaultSweepBatch    = 100
)

// OrderExpiryDeps bundles collaborators required to construct the expiry worker.
type OrderExpiryDeps struct {
	Orders   repositories.OrderRepository
	Service  OrderService
	TTL      time.Duration
	Interval time.Duration
	Batch    int
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// OrderExpiryWorker cancels orders that sat in pending longer than the TTL,
// restoring their reserved stock through the regular cancellation path.
type OrderExpiryWorker struct {
	orders   repositories.OrderRepository
	service  OrderService
	ttl      time.Duration
	interval time.Duration
	batch    int
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewOrderExpiryWorker wires dependencies into an expiry worker.
func NewOrderExpiryWorker(deps OrderExpiryDeps) (*OrderExpiryWorker, error) {
	if deps.Orders == nil {
		return nil, errors.New("order expiry: order repository is required")
	}
	if deps.Service == nil {
		return nil, errors.New("order expiry: order service is required")
	}

	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	batch := deps.Batch
	if batch <= 0 {
		batch = defaultSweepBatch
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &OrderExpiryWorker{
		orders:   deps.Orders,
		service:  deps.Service,
		ttl:      ttl,
		interval: interval,
		batch:    batch,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Run sweeps on the configured interval until the context is cancelled.
func (w *OrderExpiryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil {
				w.logger(ctx, "order.expiry.sweep.failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// SweepOnce cancels one batch of stale pending orders and reports how many were
// cancelled. Individual failures are logged and skipped so one stuck order does
// not block the rest of the batch.
func (w *OrderExpiryWorker) SweepOnce(ctx context.Context) (int, error) {
	cutoff := w.clock().Add(-w.ttl)

	stale, err := w.orders.ListStalePending(ctx, cutoff, w.batch)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	cancelled := 0
	for _, order := range stale {
		if _, err := w.service.Cancel(ctx, CancelOrderCommand{OrderID: order.ID}); err != nil {
			// ErrOrderNotCancellable means a concurrent confirm or cancel won; skip it.
			if errors.Is(err, ErrOrderNotCancellable) || errors.Is(err, ErrOrderNotFound) {
				continue
			}
			w.logger(ctx, "order.expiry.cancel.failed", map[string]any{
				"order": order.ID,
				"error": err.Error(),
			})
			continue
		}
		cancelled++
	}

	w.logger(ctx, "order.expiry.swept", map[string]any{
		"stale":     len(stale),
		"cancelled": cancelled,
		"cutoff":    cutoff.Format(time.RFC3339),
	})
	return cancelled, nil
}
