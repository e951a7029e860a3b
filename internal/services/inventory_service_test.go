package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/melodio/api/internal/domain"
)

func newInventoryService(t *testing.T, catalog *productCatalog) InventoryService {
	t.Helper()
	service, err := NewInventoryService(InventoryServiceDeps{
		Products: catalog,
		Clock:    time.Now,
	})
	if err != nil {
		t.Fatalf("NewInventoryService: %v", err)
	}
	return service
}

func TestInventoryServiceReserveDecrementsStock(t *testing.T) {
	ctx := context.Background()
	catalog := newProductCatalog(
		domain.Product{ID: "prod-1", AvailableQuantity: 5},
		domain.Product{ID: "prod-2", AvailableQuantity: 2},
	)

	err := newInventoryService(t, catalog).Reserve(ctx, []ReservationLine{
		{ProductID: "prod-1", Quantity: 3},
		{ProductID: "prod-2", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.adjustments["prod-1"] != -3 || catalog.adjustments["prod-2"] != -2 {
		t.Fatalf("unexpected adjustments %#v", catalog.adjustments)
	}
}

func TestInventoryServiceReserveInsufficientStockTouchesNothing(t *testing.T) {
	ctx := context.Background()
	catalog := newProductCatalog(
		domain.Product{ID: "prod-1", AvailableQuantity: 5},
		domain.Product{ID: "prod-2", AvailableQuantity: 1},
	)

	err := newInventoryService(t, catalog).Reserve(ctx, []ReservationLine{
		{ProductID: "prod-1", Quantity: 3},
		{ProductID: "prod-2", Quantity: 2},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if !strings.Contains(err.Error(), "prod-2") {
		t.Fatalf("expected offending product in error, got %v", err)
	}
	// All checks run before any decrement, so the first line stays untouched too.
	if len(catalog.adjustments) != 0 {
		t.Fatalf("expected no adjustments, got %#v", catalog.adjustments)
	}
}

func TestInventoryServiceReserveUnknownProduct(t *testing.T) {
	ctx := context.Background()
	catalog := newProductCatalog(domain.Product{ID: "prod-1", AvailableQuantity: 5})

	err := newInventoryService(t, catalog).Reserve(ctx, []ReservationLine{{ProductID: "gone", Quantity: 1}})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestInventoryServiceReserveValidatesLines(t *testing.T) {
	ctx := context.Background()
	catalog := newProductCatalog()
	service := newInventoryService(t, catalog)

	cases := [][]ReservationLine{
		nil,
		{{ProductID: "", Quantity: 1}},
		{{ProductID: "prod-1", Quantity: 0}},
		{{ProductID: "prod-1", Quantity: -2}},
	}
	for i, lines := range cases {
		if err := service.Reserve(ctx, lines); !errors.Is(err, ErrInventoryInvalidInput) {
			t.Fatalf("case %d: expected ErrInventoryInvalidInput, got %v", i, err)
		}
	}
}

func TestInventoryServiceReleaseRestoresStock(t *testing.T) {
	ctx := context.Background()
	catalog := newProductCatalog(domain.Product{ID: "prod-1", AvailableQuantity: 0})

	err := newInventoryService(t, catalog).Release(ctx, []ReservationLine{{ProductID: "prod-1", Quantity: 4}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.adjustments["prod-1"] != 4 {
		t.Fatalf("expected +4 adjustment, got %#v", catalog.adjustments)
	}
	if catalog.products["prod-1"].AvailableQuantity != 4 {
		t.Fatalf("expected stock 4, got %d", catalog.products["prod-1"].AvailableQuantity)
	}
}
