package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/melodio/api/internal/domain"
)

func newCartService(t *testing.T, carts *stubCartRepository, catalog *productCatalog, now time.Time) CartService {
	t.Helper()
	service, err := NewCartService(CartServiceDeps{
		Carts:    carts,
		Products: catalog,
		Clock:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return service
}

func TestCartServiceSnapshotPricesFromCatalog(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	catalog := newProductCatalog(
		domain.Product{ID: "prod-1", Name: "Vinyl Record", SalesPrice: 1000, AvailableQuantity: 5},
		domain.Product{ID: "prod-2", Name: "Poster", SalesPrice: 500, AvailableQuantity: 5},
	)
	carts := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				UserID: "user-1",
				Lines: []domain.CartLine{
					{ProductID: "prod-1", Quantity: 2},
					{ProductID: "prod-2", Quantity: 1},
				},
				UpdatedAt: now.Add(-time.Minute),
			}, nil
		},
	}

	snapshot, err := newCartService(t, carts, catalog, now).Snapshot(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snapshot.Total != 2500 {
		t.Fatalf("expected total 2500, got %d", snapshot.Total)
	}
	if len(snapshot.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(snapshot.Lines))
	}
	if snapshot.Lines[0].UnitPrice != 1000 {
		t.Fatalf("expected catalog price 1000, got %d", snapshot.Lines[0].UnitPrice)
	}
	if snapshot.Revision == "" {
		t.Fatal("expected a cart revision fingerprint")
	}
	// Snapshot is read-only.
	if len(catalog.adjustments) != 0 {
		t.Fatalf("snapshot must not touch stock, got %#v", catalog.adjustments)
	}
}

func TestCartServiceSnapshotRevisionTracksContents(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	catalog := newProductCatalog(domain.Product{ID: "prod-1", Name: "Vinyl Record", SalesPrice: 1000, AvailableQuantity: 5})

	cart := domain.Cart{
		UserID:    "user-1",
		Lines:     []domain.CartLine{{ProductID: "prod-1", Quantity: 1}},
		UpdatedAt: now.Add(-time.Minute),
	}
	carts := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) { return cart, nil },
	}
	service := newCartService(t, carts, catalog, now)

	first, err := service.Snapshot(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.Snapshot(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Revision != second.Revision {
		t.Fatal("unchanged cart must keep the same revision")
	}

	cart.Lines[0].Quantity = 2
	changed, err := service.Snapshot(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed.Revision == first.Revision {
		t.Fatal("changed cart must produce a new revision")
	}
}

func TestCartServiceSnapshotEmptyCart(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	catalog := newProductCatalog()
	carts := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{UserID: "user-1"}, nil
		},
	}

	_, err := newCartService(t, carts, catalog, now).Snapshot(ctx, "user-1")
	if !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}
}

func TestCartServiceSnapshotMissingProduct(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	catalog := newProductCatalog()
	carts := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				UserID: "user-1",
				Lines:  []domain.CartLine{{ProductID: "gone", Quantity: 1}},
			}, nil
		},
	}

	_, err := newCartService(t, carts, catalog, now).Snapshot(ctx, "user-1")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestCartServiceAddItemMergesQuantity(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	catalog := newProductCatalog(domain.Product{ID: "prod-1", Name: "Vinyl Record", SalesPrice: 1000, AvailableQuantity: 5})

	stored := domain.Cart{
		UserID: "user-1",
		Lines:  []domain.CartLine{{ProductID: "prod-1", Quantity: 1, AddedAt: now.Add(-time.Hour)}},
	}
	var saved domain.Cart
	carts := &stubCartRepository{
		getFunc:  func(context.Context, string) (domain.Cart, error) { return stored, nil },
		saveFunc: func(_ context.Context, cart domain.Cart) error { saved = cart; return nil },
	}

	cart, err := newCartService(t, carts, catalog, now).AddItem(ctx, AddCartItemCommand{
		UserID:    "user-1",
		ProductID: "prod-1",
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %#v", cart.Lines)
	}
	if !saved.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated timestamp %v, got %v", now, saved.UpdatedAt)
	}
}

func TestCartServiceAddItemUnknownProduct(t *testing.T) {
	ctx := context.Background()
	catalog := newProductCatalog()
	carts := &stubCartRepository{}

	_, err := newCartService(t, carts, catalog, time.Now().UTC()).AddItem(ctx, AddCartItemCommand{
		UserID:    "user-1",
		ProductID: "gone",
		Quantity:  1,
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestCartServiceUpdateItemReplacesQuantity(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	catalog := newProductCatalog(domain.Product{ID: "prod-1", Name: "Vinyl Record", SalesPrice: 1000, AvailableQuantity: 5})
	carts := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				UserID: "user-1",
				Lines:  []domain.CartLine{{ProductID: "prod-1", Quantity: 5}},
			}, nil
		},
	}
	service := newCartService(t, carts, catalog, now)

	cart, err := service.UpdateItem(ctx, UpdateCartItemCommand{UserID: "user-1", ProductID: "prod-1", Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.Lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", cart.Lines[0].Quantity)
	}

	if _, err := service.UpdateItem(ctx, UpdateCartItemCommand{UserID: "user-1", ProductID: "prod-1", Quantity: 0}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput for zero quantity, got %v", err)
	}

	if _, err := service.UpdateItem(ctx, UpdateCartItemCommand{UserID: "user-1", ProductID: "other", Quantity: 1}); !errors.Is(err, ErrCartLineNotFound) {
		t.Fatalf("expected ErrCartLineNotFound, got %v", err)
	}
}

func TestCartServiceRemoveLastItemClearsCart(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	catalog := newProductCatalog(domain.Product{ID: "prod-1", Name: "Vinyl Record", SalesPrice: 1000, AvailableQuantity: 5})

	cleared := false
	carts := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				UserID: "user-1",
				Lines:  []domain.CartLine{{ProductID: "prod-1", Quantity: 1}},
			}, nil
		},
		clearFunc: func(context.Context, string) error { cleared = true; return nil },
	}

	cart, err := newCartService(t, carts, catalog, now).RemoveItem(ctx, "user-1", "prod-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.Lines) != 0 {
		t.Fatalf("expected empty cart, got %#v", cart.Lines)
	}
	if !cleared {
		t.Fatal("expected cart document to be cleared")
	}
}
