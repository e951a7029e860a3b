package services

import (
	"context"
	"time"

	domain "github.com/melodio/api/internal/domain"
)

// SnapshotLine is one priced cart line inside an order-ready snapshot.
type SnapshotLine struct {
	Product   domain.Product
	Quantity  int
	UnitPrice int64
}

// CartSnapshot is the priced, validated view of a user's cart used to build an order.
type CartSnapshot struct {
	UserID   string
	Lines    []SnapshotLine
	Total    int64
	Revision string
}

// AddCartItemCommand adds quantity of a product to the user's cart, merging with
// an existing line for the same product.
type AddCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

// UpdateCartItemCommand replaces the quantity of an existing cart line.
type UpdateCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

// CartService owns the unsubmitted cart and produces order-ready snapshots.
type CartService interface {
	Snapshot(ctx context.Context, userID string) (CartSnapshot, error)
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (domain.Cart, error)
	UpdateItem(ctx context.Context, cmd UpdateCartItemCommand) (domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// ReservationLine names a product and the quantity to reserve or release.
type ReservationLine struct {
	ProductID string
	Quantity  int
}

// InventoryService adjusts the product stock counters. Both operations are
// expected to run inside the caller's transaction so concurrent reservations
// serialise.
type InventoryService interface {
	Reserve(ctx context.Context, lines []ReservationLine) error
	Release(ctx context.Context, lines []ReservationLine) error
}

// CreateOrderCommand creates an order directly from the user's cart.
type CreateOrderCommand struct {
	UserID          string
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
}

// CreateCheckoutCommand creates an order backed by a hosted checkout session.
type CreateCheckoutCommand struct {
	UserID          string
	ShippingAddress string
	BillingAddress  string
}

// CheckoutResult pairs the created order with the hosted payment page URL.
type CheckoutResult struct {
	Order       domain.Order
	CheckoutURL string
}

// UpdateOrderStatusCommand moves an order along the fulfillment sequence.
type UpdateOrderStatusCommand struct {
	OrderID string
	// UserID scopes the update to the owner when non-empty.
	UserID string
	Status domain.OrderStatus
}

// CancelOrderCommand cancels an order and restores its stock.
type CancelOrderCommand struct {
	OrderID string
	UserID  string
}

// ListOrdersCommand lists a user's orders with optional status filtering.
type ListOrdersCommand struct {
	UserID string
	Status *domain.OrderStatus
	Pager  domain.Pagination
}

// DateRangeCommand bounds a user's order history between two instants.
type DateRangeCommand struct {
	UserID string
	From   time.Time
	To     time.Time
}

// DateRangeResult carries the matching orders plus the aggregate amount spent.
type DateRangeResult struct {
	Orders      []domain.Order
	TotalAmount int64
}

// OrderService manages the order lifecycle from cart snapshot to terminal state.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	CreateCheckout(ctx context.Context, cmd CreateCheckoutCommand) (CheckoutResult, error)
	ConfirmCheckout(ctx context.Context, sessionID string) (domain.Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, cmd ListOrdersCommand) (domain.CursorPage[domain.Order], error)
	ListOrdersByDateRange(ctx context.Context, cmd DateRangeCommand) (DateRangeResult, error)
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"orderId"`
	UserID         string         `json:"userId"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	CurrentStatus  string         `json:"currentStatus,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}
