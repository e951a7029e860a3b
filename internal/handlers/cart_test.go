package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/melodio/api/internal/domain"
	"github.com/melodio/api/internal/platform/auth"
	"github.com/melodio/api/internal/services"
)

type stubCartService struct {
	snapshotFunc   func(ctx context.Context, userID string) (services.CartSnapshot, error)
	getCartFunc    func(ctx context.Context, userID string) (domain.Cart, error)
	addItemFunc    func(ctx context.Context, cmd services.AddCartItemCommand) (domain.Cart, error)
	updateItemFunc func(ctx context.Context, cmd services.UpdateCartItemCommand) (domain.Cart, error)
	removeItemFunc func(ctx context.Context, userID, productID string) (domain.Cart, error)
	clearCartFunc  func(ctx context.Context, userID string) error
}

func (s *stubCartService) Snapshot(ctx context.Context, userID string) (services.CartSnapshot, error) {
	if s.snapshotFunc == nil {
		return services.CartSnapshot{}, errors.New("not stubbed")
	}
	return s.snapshotFunc(ctx, userID)
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getCartFunc == nil {
		return domain.Cart{}, errors.New("not stubbed")
	}
	return s.getCartFunc(ctx, userID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (domain.Cart, error) {
	if s.addItemFunc == nil {
		return domain.Cart{}, errors.New("not stubbed")
	}
	return s.addItemFunc(ctx, cmd)
}

func (s *stubCartService) UpdateItem(ctx context.Context, cmd services.UpdateCartItemCommand) (domain.Cart, error) {
	if s.updateItemFunc == nil {
		return domain.Cart{}, errors.New("not stubbed")
	}
	return s.updateItemFunc(ctx, cmd)
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error) {
	if s.removeItemFunc == nil {
		return domain.Cart{}, errors.New("not stubbed")
	}
	return s.removeItemFunc(ctx, userID, productID)
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearCartFunc == nil {
		return errors.New("not stubbed")
	}
	return s.clearCartFunc(ctx, userID)
}

func newCartRouter(service services.CartService) http.Handler {
	h := NewCartHandlers(service)
	return NewRouter(WithCartRoutes(func(r chi.Router) {
		r.Use(auth.StaticIdentityMiddleware("user-1"))
		h.Routes(r)
	}))
}

func TestCartHandlersGetCart(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	service := &stubCartService{
		getCartFunc: func(_ context.Context, userID string) (domain.Cart, error) {
			if userID != "user-1" {
				t.Fatalf("expected identity user, got %s", userID)
			}
			return domain.Cart{
				UserID:    userID,
				Lines:     []domain.CartLine{{ProductID: "prod-1", Quantity: 2, AddedAt: now}},
				UpdatedAt: now,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	rec := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeEnvelope(t, rec)
	var cart cartResponse
	if err := json.Unmarshal(payload.Data, &cart); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	if cart.UserID != "user-1" || len(cart.Lines) != 1 || cart.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected cart payload %#v", cart)
	}
}

func TestCartHandlersAddItem(t *testing.T) {
	service := &stubCartService{
		addItemFunc: func(_ context.Context, cmd services.AddCartItemCommand) (domain.Cart, error) {
			if cmd.ProductID != "prod-1" || cmd.Quantity != 3 {
				t.Fatalf("unexpected command %#v", cmd)
			}
			return domain.Cart{
				UserID: cmd.UserID,
				Lines:  []domain.CartLine{{ProductID: cmd.ProductID, Quantity: cmd.Quantity}},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"productId":"prod-1","quantity":3}`))
	rec := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCartHandlersAddItemUnknownProduct(t *testing.T) {
	service := &stubCartService{
		addItemFunc: func(context.Context, services.AddCartItemCommand) (domain.Cart, error) {
			return domain.Cart{}, services.ErrProductNotFound
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"productId":"gone","quantity":1}`))
	rec := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCartHandlersUpdateItemInvalidQuantity(t *testing.T) {
	service := &stubCartService{
		updateItemFunc: func(_ context.Context, cmd services.UpdateCartItemCommand) (domain.Cart, error) {
			if cmd.ProductID != "prod-1" {
				t.Fatalf("expected product from path, got %s", cmd.ProductID)
			}
			return domain.Cart{}, services.ErrCartInvalidInput
		},
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/prod-1", strings.NewReader(`{"quantity":0}`))
	rec := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCartHandlersRemoveItemMissingLine(t *testing.T) {
	service := &stubCartService{
		removeItemFunc: func(_ context.Context, _, productID string) (domain.Cart, error) {
			if productID != "prod-9" {
				t.Fatalf("expected product from path, got %s", productID)
			}
			return domain.Cart{}, services.ErrCartLineNotFound
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/prod-9", nil)
	rec := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCartHandlersClearCart(t *testing.T) {
	cleared := false
	service := &stubCartService{
		clearCartFunc: func(_ context.Context, userID string) error {
			if userID != "user-1" {
				t.Fatalf("expected identity user, got %s", userID)
			}
			cleared = true
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/", nil)
	rec := httptest.NewRecorder()
	newCartRouter(service).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !cleared {
		t.Fatal("expected ClearCart to be called")
	}
}

func TestCartHandlersRequireIdentity(t *testing.T) {
	h := NewCartHandlers(&stubCartService{})
	router := NewRouter(WithCartRoutes(h.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
