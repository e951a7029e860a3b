package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/melodio/api/internal/domain"
	"github.com/melodio/api/internal/payments"
	"github.com/melodio/api/internal/repositories"
)

const (
	orderEventCreated          = "order.created"
	orderEventCheckoutCreated  = "order.checkout.created"
	orderEventPaymentConfirmed = "order.payment.confirmed"
	orderEventStatusChanged    = "order.status.changed"
	orderEventCancelled        = "order.cancelled"

	orderIDPrefix          = "ord_"
	trackingNumberPrefix   = "TRK"
	defaultPaymentCurrency = "usd"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located for the caller.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates a rejected status transition.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderNotCancellable indicates the order has progressed past the cancellable states.
	ErrOrderNotCancellable = errors.New("order: not cancellable")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrCheckoutNotPaid indicates the gateway has not settled the session yet.
	ErrCheckoutNotPaid = errors.New("order: checkout session not paid")
	// ErrUserNotFound indicates the order owner does not exist.
	ErrUserNotFound = errors.New("order: user not found")

	errCheckoutGatewayUnavailable = errors.New("order: checkout gateway not configured")
)

// CheckoutSettings carries the hosted-payment-page endpoints and currency used
// when creating gateway sessions.
type CheckoutSettings struct {
	SuccessURL string
	CancelURL  string
	Currency   string
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Users       repositories.UserRepository
	Carts       CartService
	Inventory   InventoryService
	Gateway     payments.CheckoutGateway
	UnitOfWork  repositories.UnitOfWork
	Checkout    CheckoutSettings
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	users      repositories.UserRepository
	carts      CartService
	inventory  InventoryService
	gateway    payments.CheckoutGateway
	unitOfWork repositories.UnitOfWork
	checkout   CheckoutSettings
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("order service: user repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart service is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	checkout := deps.Checkout
	if strings.TrimSpace(checkout.Currency) == "" {
		checkout.Currency = defaultPaymentCurrency
	}

	return &orderService{
		orders:     deps.Orders,
		users:      deps.Users,
		carts:      deps.Carts,
		inventory:  deps.Inventory,
		gateway:    deps.Gateway,
		unitOfWork: unit,
		checkout:   checkout,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

// CreateOrder builds an order from the user's cart and commits order insert,
// stock reservation, and cart clearing in one transaction.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	shipping := strings.TrimSpace(cmd.ShippingAddress)
	if shipping == "" {
		return domain.Order{}, fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
	}
	paymentMethod := strings.TrimSpace(cmd.PaymentMethod)
	if paymentMethod == "" {
		return domain.Order{}, fmt.Errorf("%w: payment method is required", ErrOrderInvalidInput)
	}

	snapshot, err := s.prepare(ctx, userID)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	order := s.buildOrder(userID, snapshot, now)
	order.ShippingAddress = shipping
	order.BillingAddress = strings.TrimSpace(cmd.BillingAddress)
	order.PaymentMethod = paymentMethod

	if err := s.commitOrder(ctx, order, snapshot); err != nil {
		return domain.Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		UserID:        userID,
		CurrentStatus: string(order.Status),
		OccurredAt:    now,
		Metadata:      map[string]any{"totalAmount": order.TotalAmount},
	})

	return order, nil
}

// CreateCheckout creates the gateway session first and only then commits the
// order, so a gateway failure leaves no orphan order behind.
func (s *orderService) CreateCheckout(ctx context.Context, cmd CreateCheckoutCommand) (CheckoutResult, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return CheckoutResult{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	shipping := strings.TrimSpace(cmd.ShippingAddress)
	if shipping == "" {
		return CheckoutResult{}, fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
	}
	if s.gateway == nil {
		return CheckoutResult{}, errCheckoutGatewayUnavailable
	}

	snapshot, err := s.prepare(ctx, userID)
	if err != nil {
		return CheckoutResult{}, err
	}

	items := make([]payments.CheckoutLineItem, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		items = append(items, payments.CheckoutLineItem{
			Name:       line.Product.Name,
			Quantity:   int64(line.Quantity),
			UnitAmount: line.UnitPrice,
			Currency:   s.checkout.Currency,
		})
	}

	session, err := s.gateway.CreateSession(ctx, payments.SessionRequest{
		Currency:   s.checkout.Currency,
		SuccessURL: s.checkout.SuccessURL,
		CancelURL:  s.checkout.CancelURL,
		Metadata:   map[string]string{"user_id": userID},
		// Keyed on the cart revision so a retried checkout for the same cart
		// reuses the session instead of opening a second charge.
		IdempotencyKey: "checkout-" + snapshot.Revision,
		Items:          items,
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("order: create checkout session: %w", err)
	}

	now := s.now()
	order := s.buildOrder(userID, snapshot, now)
	order.ShippingAddress = shipping
	order.BillingAddress = strings.TrimSpace(cmd.BillingAddress)
	order.PaymentMethod = "card"
	order.CheckoutSessionID = session.ID

	if err := s.commitOrder(ctx, order, snapshot); err != nil {
		s.expireSession(ctx, order.CheckoutSessionID)
		return CheckoutResult{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCheckoutCreated,
		OrderID:       order.ID,
		UserID:        userID,
		CurrentStatus: string(order.Status),
		OccurredAt:    now,
		Metadata:      map[string]any{"sessionId": session.ID},
	})

	return CheckoutResult{Order: order, CheckoutURL: session.URL}, nil
}

// ConfirmCheckout promotes the order to processing once the gateway reports the
// session as paid. Unpaid sessions leave the order untouched and the call can
// be retried.
func (s *orderService) ConfirmCheckout(ctx context.Context, sessionID string) (domain.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Order{}, fmt.Errorf("%w: session id is required", ErrOrderInvalidInput)
	}
	if s.gateway == nil {
		return domain.Order{}, errCheckoutGatewayUnavailable
	}

	order, err := s.orders.FindByCheckoutSessionID(ctx, sessionID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	if order.PaymentStatus == domain.PaymentStatusPaid {
		return order, nil
	}

	status, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order: get checkout session: %w", err)
	}
	if !status.PaymentStatus.Paid() {
		return domain.Order{}, fmt.Errorf("%w: session %s is %s", ErrCheckoutNotPaid, sessionID, status.PaymentStatus)
	}

	observed := order.Status
	now := s.now()

	var confirmed domain.Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, order.ID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if current.PaymentStatus == domain.PaymentStatusPaid {
			confirmed = current
			return nil
		}
		if current.Status != observed || current.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: order %s changed status during confirmation", ErrOrderConflict, order.ID)
		}

		current.Status = domain.OrderStatusProcessing
		current.PaymentStatus = domain.PaymentStatusPaid
		current.UpdatedAt = now
		if err := s.orders.Update(txCtx, current); err != nil {
			return s.mapRepositoryError(err)
		}
		confirmed = current
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventPaymentConfirmed,
		OrderID:        confirmed.ID,
		UserID:         confirmed.UserID,
		PreviousStatus: string(observed),
		CurrentStatus:  string(confirmed.Status),
		OccurredAt:     now,
		Metadata:       map[string]any{"sessionId": sessionID},
	})

	return confirmed, nil
}

// UpdateStatus moves the order at most one step forward along the fulfillment
// sequence. Cancellation is rejected here; Cancel owns that path.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if _, ok := domain.ParseOrderStatus(string(cmd.Status)); !ok {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	now := s.now()
	var updated domain.Order
	var previous domain.OrderStatus

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.findOwned(txCtx, cmd.UserID, orderID)
		if err != nil {
			return err
		}

		if !order.Status.CanTransition(cmd.Status) {
			return fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, cmd.Status)
		}

		previous = order.Status
		order.Status = cmd.Status
		order.UpdatedAt = now
		if cmd.Status == domain.OrderStatusDelivered {
			order.DeliveredAt = &now
		}

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if previous != updated.Status {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        updated.ID,
			UserID:         updated.UserID,
			PreviousStatus: string(previous),
			CurrentStatus:  string(updated.Status),
			OccurredAt:     now,
		})
	}

	return updated, nil
}

// Cancel marks the order cancelled and restores every reserved item quantity in
// one transaction. An attached gateway session is expired best-effort afterwards.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	var cancelled domain.Order
	var previous domain.OrderStatus

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.findOwned(txCtx, cmd.UserID, orderID)
		if err != nil {
			return err
		}

		if !order.Status.IsCancellable() {
			return fmt.Errorf("%w: status %s", ErrOrderNotCancellable, order.Status)
		}

		if err := s.inventory.Release(txCtx, reservationLines(order.Items)); err != nil {
			return err
		}

		previous = order.Status
		order.Status = domain.OrderStatusCancelled
		order.UpdatedAt = now
		order.CancelledAt = &now
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if cancelled.CheckoutSessionID != "" {
		s.expireSession(ctx, cancelled.CheckoutSessionID)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventCancelled,
		OrderID:        cancelled.ID,
		UserID:         cancelled.UserID,
		PreviousStatus: string(previous),
		CurrentStatus:  string(cancelled.Status),
		OccurredAt:     now,
	})

	return cancelled, nil
}

// GetOrder loads one of the caller's orders.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	return s.findOwned(ctx, userID, orderID)
}

// ListOrders pages through the caller's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, cmd ListOrdersCommand) (domain.CursorPage[domain.Order], error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	page, err := s.orders.ListByUser(ctx, userID, repositories.OrderListFilter{
		Status: cmd.Status,
		Pager:  cmd.Pager,
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// ListOrdersByDateRange returns the caller's orders inside the window plus the
// aggregate amount spent.
func (s *orderService) ListOrdersByDateRange(ctx context.Context, cmd DateRangeCommand) (DateRangeResult, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return DateRangeResult{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if cmd.From.IsZero() || cmd.To.IsZero() {
		return DateRangeResult{}, fmt.Errorf("%w: start and end dates are required", ErrOrderInvalidInput)
	}
	if cmd.To.Before(cmd.From) {
		return DateRangeResult{}, fmt.Errorf("%w: end date precedes start date", ErrOrderInvalidInput)
	}

	from, to := cmd.From.UTC(), cmd.To.UTC()
	orders, err := s.orders.ListByUserInRange(ctx, userID, domain.RangeQuery[time.Time]{
		From: &from,
		To:   &to,
	})
	if err != nil {
		return DateRangeResult{}, s.mapRepositoryError(err)
	}

	result := DateRangeResult{Orders: orders}
	for _, order := range orders {
		result.TotalAmount += order.TotalAmount
	}
	return result, nil
}

func (s *orderService) prepare(ctx context.Context, userID string) (CartSnapshot, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if repositories.IsNotFound(err) {
			return CartSnapshot{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return CartSnapshot{}, s.mapRepositoryError(err)
	}

	snapshot, err := s.carts.Snapshot(ctx, userID)
	if err != nil {
		return CartSnapshot{}, err
	}
	if len(snapshot.Lines) == 0 {
		return CartSnapshot{}, ErrCartEmpty
	}
	return snapshot, nil
}

func (s *orderService) buildOrder(userID string, snapshot CartSnapshot, now time.Time) domain.Order {
	items := make([]domain.OrderItem, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		items = append(items, domain.OrderItem{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}

	return domain.Order{
		ID:             orderIDPrefix + s.newID(),
		UserID:         userID,
		TotalAmount:    snapshot.Total,
		Status:         domain.OrderStatusPending,
		TrackingNumber: fmt.Sprintf("%s%d%s", trackingNumberPrefix, now.UnixMilli(), userID),
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// commitOrder reserves stock, inserts the order, and clears the cart in one
// transaction. The stock reads happen before any write, matching Firestore's
// transaction ordering rules.
func (s *orderService) commitOrder(ctx context.Context, order domain.Order, snapshot CartSnapshot) error {
	lines := make([]ReservationLine, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		lines = append(lines, ReservationLine{ProductID: line.Product.ID, Quantity: line.Quantity})
	}

	return s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.inventory.Reserve(txCtx, lines); err != nil {
			return err
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.carts.ClearCart(txCtx, order.UserID); err != nil {
			return err
		}
		return nil
	})
}

func (s *orderService) findOwned(ctx context.Context, userID, orderID string) (domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if owner := strings.TrimSpace(userID); owner != "" && order.UserID != owner {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *orderService) expireSession(ctx context.Context, sessionID string) {
	if s.gateway == nil || strings.TrimSpace(sessionID) == "" {
		return
	}
	if err := s.gateway.ExpireSession(ctx, sessionID); err != nil {
		s.logger(ctx, "order.session.expire.failed", map[string]any{
			"session": sessionID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func reservationLines(items []domain.OrderItem) []ReservationLine {
	lines := make([]ReservationLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, ReservationLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
