package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/melodio/api/internal/domain"
	"github.com/melodio/api/internal/platform/httpx"
	"github.com/melodio/api/internal/services"
)

// CartHandlers exposes cart endpoints for authenticated users.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs cart handlers.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes registers cart endpoints under the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{productID}", h.updateItem)
	r.Delete("/items/{productID}", h.removeItem)
	r.Delete("/", h.clearCart)
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type cartLineResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	AddedAt   string `json:"addedAt"`
}

type cartResponse struct {
	UserID    string             `json:"userId"`
	Lines     []cartLineResponse `json:"lines"`
	UpdatedAt string             `json:"updatedAt,omitempty"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, identity.UID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, "cart found", toCartResponse(identity.UID, cart))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req addCartItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		UserID:    identity.UID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, "item added", toCartResponse(identity.UID, cart))
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req updateCartItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.UpdateItem(ctx, services.UpdateCartItemCommand{
		UserID:    identity.UID,
		ProductID: chi.URLParam(r, "productID"),
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, "item updated", toCartResponse(identity.UID, cart))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, identity.UID, chi.URLParam(r, "productID"))
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, "item removed", toCartResponse(identity.UID, cart))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, identity.UID); err != nil {
		writeCartError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, "cart cleared", toCartResponse(identity.UID, domain.Cart{UserID: identity.UID}))
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid request", http.StatusBadRequest, err.Error()))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartLineNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart item not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("failed to process cart request", http.StatusInternalServerError))
	}
}

func toCartResponse(userID string, cart domain.Cart) cartResponse {
	lines := make([]cartLineResponse, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, cartLineResponse{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			AddedAt:   line.AddedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	resp := cartResponse{
		UserID: strings.TrimSpace(userID),
		Lines:  lines,
	}
	if !cart.UpdatedAt.IsZero() {
		resp.UpdatedAt = cart.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return resp
}
