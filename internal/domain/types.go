package domain

import (
	"time"
)

// OrderStatus enumerates the fulfillment states an order moves through.
type OrderStatus string

const (
	// OrderStatusPending indicates the order is created and awaiting payment or handling.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates payment is settled and the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled and its stock restored. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatusPaid is the payment status recorded once a checkout session settles.
const PaymentStatusPaid = "paid"

// statusSequence is the forward fulfillment path; cancellation sits outside it.
var statusSequence = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// ParseOrderStatus validates a raw status value.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch OrderStatus(raw) {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(raw), true
	}
	return "", false
}

// IsTerminal reports whether no further transition is permitted from the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// IsCancellable reports whether the dedicated cancellation operation may run.
func (s OrderStatus) IsCancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

func (s OrderStatus) sequenceIndex() int {
	for i, status := range statusSequence {
		if status == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether the generic status-update operation may move
// from the current status to target. Cancellation is never reachable this way;
// it carries a restock side effect and has its own operation.
func (s OrderStatus) CanTransition(target OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if target == OrderStatusCancelled {
		return false
	}
	cur, next := s.sequenceIndex(), target.sequenceIndex()
	if cur < 0 || next < 0 {
		return false
	}
	return next-cur <= 1
}

// Order is a committed purchase attempt with frozen pricing and a status.
type Order struct {
	ID                string      `firestore:"id"`
	UserID            string      `firestore:"userId"`
	TotalAmount       int64       `firestore:"totalAmount"`
	Status            OrderStatus `firestore:"status"`
	PaymentStatus     string      `firestore:"paymentStatus,omitempty"`
	ShippingAddress   string      `firestore:"shippingAddress"`
	BillingAddress    string      `firestore:"billingAddress,omitempty"`
	PaymentMethod     string      `firestore:"paymentMethod,omitempty"`
	TrackingNumber    string      `firestore:"trackingNumber,omitempty"`
	CheckoutSessionID string      `firestore:"checkoutSessionId,omitempty"`
	Items             []OrderItem `firestore:"items"`
	CreatedAt         time.Time   `firestore:"createdAt"`
	UpdatedAt         time.Time   `firestore:"updatedAt"`
	DeliveredAt       *time.Time  `firestore:"deliveredAt,omitempty"`
	CancelledAt       *time.Time  `firestore:"cancelledAt,omitempty"`
}

// ItemsTotal sums quantity times unit price across the order's line items.
func (o Order) ItemsTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// OrderItem is a priced, quantity-fixed snapshot of one product within an order.
// UnitPrice is copied from the product's sales price at purchase time and never
// re-read afterwards.
type OrderItem struct {
	ProductID   string `firestore:"productId"`
	ProductName string `firestore:"productName"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   int64  `firestore:"unitPrice"`
}

// CartLine is one (product, quantity) pair in a user's unsubmitted cart.
type CartLine struct {
	ProductID string    `firestore:"productId"`
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
}

// Cart is the per-user document holding the active cart lines.
type Cart struct {
	UserID    string     `firestore:"userId"`
	Lines     []CartLine `firestore:"lines"`
	UpdatedAt time.Time  `firestore:"updatedAt"`
}

// Product is the narrow catalog view the order core depends on. Category, shop
// and media attributes stay with the catalog service.
type Product struct {
	ID                string    `firestore:"id"`
	Name              string    `firestore:"name"`
	SalesPrice        int64     `firestore:"salesPrice"`
	AvailableQuantity int       `firestore:"availableQuantity"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

// User is the existence-check view of an account owner.
type User struct {
	ID    string `firestore:"id"`
	Email string `firestore:"email,omitempty"`
}

// Pagination carries cursor paging inputs shared across list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery bounds a list operation between two optional endpoints.
type RangeQuery[T any] struct {
	From *T
	To   *T
}
