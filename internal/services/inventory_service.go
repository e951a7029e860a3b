package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/melodio/api/internal/repositories"
)

var (
	// ErrInventoryInvalidInput signals the caller provided invalid reservation data.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInsufficientStock indicates a requested quantity exceeds the available stock.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// InventoryServiceDeps bundles collaborators required to construct the inventory service.
type InventoryServiceDeps struct {
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	products repositories.ProductRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Reserve checks availability for every line and then decrements the stock
// counters. All reads happen before any write so the method can run inside a
// Firestore transaction; the transactional re-read gives the
// check-then-decrement compare-and-set semantics.
func (s *inventoryService) Reserve(ctx context.Context, lines []ReservationLine) error {
	if err := validateReservationLines(lines); err != nil {
		return err
	}

	for _, line := range lines {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			return err
		}
		if product.AvailableQuantity < line.Quantity {
			return fmt.Errorf("%w: product %s has %d available, %d requested",
				ErrInsufficientStock, line.ProductID, product.AvailableQuantity, line.Quantity)
		}
	}

	for _, line := range lines {
		if err := s.products.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			return err
		}
	}

	s.logger(ctx, "inventory.reserved", map[string]any{"lines": len(lines)})
	return nil
}

// Release restores the stock counters. It only writes, so it composes with any
// read phase of the surrounding transaction.
func (s *inventoryService) Release(ctx context.Context, lines []ReservationLine) error {
	if err := validateReservationLines(lines); err != nil {
		return err
	}

	for _, line := range lines {
		if err := s.products.AdjustStock(ctx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}

	s.logger(ctx, "inventory.released", map[string]any{"lines": len(lines)})
	return nil
}

func validateReservationLines(lines []ReservationLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}
	for _, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", ErrInventoryInvalidInput)
		}
	}
	return nil
}
