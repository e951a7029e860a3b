package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/melodio/api/internal/domain"
	"github.com/melodio/api/internal/platform/auth"
	"github.com/melodio/api/internal/platform/httpx"
	"github.com/melodio/api/internal/platform/pagination"
	"github.com/melodio/api/internal/services"
)

// OrderHandlers exposes order lifecycle endpoints for authenticated users.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers order endpoints under the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Post("/checkout", h.createCheckout)
	r.Post("/confirm", h.confirmCheckout)
	r.Get("/", h.listOrders)
	r.Post("/date-range", h.listOrdersByDateRange)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}/status", h.updateStatus)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

type createOrderRequest struct {
	ShippingAddress string `json:"shippingAddress"`
	BillingAddress  string `json:"billingAddress"`
	PaymentMethod   string `json:"paymentMethod"`
}

type createCheckoutRequest struct {
	ShippingAddress string `json:"shippingAddress"`
	BillingAddress  string `json:"billingAddress"`
}

type confirmCheckoutRequest struct {
	SessionID string `json:"sessionId"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type dateRangeRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type orderItemResponse struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
}

type orderResponse struct {
	ID                string              `json:"id"`
	UserID            string              `json:"userId"`
	TotalAmount       int64               `json:"totalAmount"`
	Status            string              `json:"status"`
	PaymentStatus     string              `json:"paymentStatus,omitempty"`
	ShippingAddress   string              `json:"shippingAddress"`
	BillingAddress    string              `json:"billingAddress,omitempty"`
	PaymentMethod     string              `json:"paymentMethod,omitempty"`
	TrackingNumber    string              `json:"trackingNumber,omitempty"`
	CheckoutSessionID string              `json:"checkoutSessionId,omitempty"`
	Items             []orderItemResponse `json:"items"`
	CreatedAt         string              `json:"createdAt"`
	UpdatedAt         string              `json:"updatedAt"`
	DeliveredAt       string              `json:"deliveredAt,omitempty"`
	CancelledAt       string              `json:"cancelledAt,omitempty"`
}

type checkoutResponse struct {
	Order       orderResponse `json:"order"`
	CheckoutURL string        `json:"checkoutUrl"`
}

type orderListResponse struct {
	Orders        []orderResponse `json:"orders"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

type dateRangeResponse struct {
	Orders      []orderResponse `json:"orders"`
	TotalAmount int64           `json:"totalAmount"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserID:          identity.UID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusCreated, "order created", toOrderResponse(order))
}

func (h *OrderHandlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createCheckoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("request body must be valid JSON", http.StatusBadRequest))
		return
	}

	result, err := h.orders.CreateCheckout(ctx, services.CreateCheckoutCommand{
		UserID:          identity.UID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusCreated, "checkout created", checkoutResponse{
		Order:       toOrderResponse(result.Order),
		CheckoutURL: result.CheckoutURL,
	})
}

func (h *OrderHandlers) confirmCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	var req confirmCheckoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("sessionId is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.ConfirmCheckout(ctx, req.SessionID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, "payment confirmed", toOrderResponse(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid pagination parameters", http.StatusBadRequest, err.Error()))
		return
	}

	cmd := services.ListOrdersCommand{
		UserID: identity.UID,
		Pager: domain.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("unknown status filter", http.StatusBadRequest))
			return
		}
		cmd.Status = &status
	}

	page, err := h.orders.ListOrders(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, "orders listed", orderListResponse{
		Orders:        toOrderResponses(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func (h *OrderHandlers) listOrdersByDateRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req dateRangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("request body must be valid JSON", http.StatusBadRequest))
		return
	}

	from, err := parseDateBound(req.StartDate, false)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("startDate must be an RFC 3339 timestamp or YYYY-MM-DD date", http.StatusBadRequest))
		return
	}
	to, err := parseDateBound(req.EndDate, true)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("endDate must be an RFC 3339 timestamp or YYYY-MM-DD date", http.StatusBadRequest))
		return
	}

	result, err := h.orders.ListOrdersByDateRange(ctx, services.DateRangeCommand{
		UserID: identity.UID,
		From:   from,
		To:     to,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, "orders listed", dateRangeResponse{
		Orders:      toOrderResponses(result.Orders),
		TotalAmount: result.TotalAmount,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, identity.UID, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, "order found", toOrderResponse(order))
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("status is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID: chi.URLParam(r, "orderID"),
		UserID:  identity.UID,
		Status:  domain.OrderStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, "order status updated", toOrderResponse(order))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		UserID:  identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, "order cancelled", toOrderResponse(order))
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrCartInvalidInput),
		errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid request", http.StatusBadRequest, err.Error()))
	case errors.Is(err, services.ErrCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient stock", http.StatusConflict, err.Error()))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid status transition", http.StatusConflict, err.Error()))
	case errors.Is(err, services.ErrOrderNotCancellable):
		httpx.WriteError(ctx, w, httpx.NewError("order can no longer be cancelled", http.StatusConflict, err.Error()))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order changed concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutNotPaid):
		httpx.WriteError(ctx, w, httpx.NewError("checkout session is not paid", http.StatusPaymentRequired))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("failed to process order request", http.StatusInternalServerError))
	}
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	resp := orderResponse{
		ID:                order.ID,
		UserID:            order.UserID,
		TotalAmount:       order.TotalAmount,
		Status:            string(order.Status),
		PaymentStatus:     order.PaymentStatus,
		ShippingAddress:   order.ShippingAddress,
		BillingAddress:    order.BillingAddress,
		PaymentMethod:     order.PaymentMethod,
		TrackingNumber:    order.TrackingNumber,
		CheckoutSessionID: order.CheckoutSessionID,
		Items:             items,
		CreatedAt:         order.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:         order.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if order.DeliveredAt != nil {
		resp.DeliveredAt = order.DeliveredAt.UTC().Format(time.RFC3339Nano)
	}
	if order.CancelledAt != nil {
		resp.CancelledAt = order.CancelledAt.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	responses := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		responses = append(responses, toOrderResponse(order))
	}
	return responses
}

// parseDateBound accepts either a full RFC 3339 timestamp or a bare date. Bare
// end dates extend to the last instant of that day so the range is inclusive.
func parseDateBound(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("value is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	t = t.UTC()
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
