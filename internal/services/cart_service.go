package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/melodio/api/internal/domain"
	"github.com/melodio/api/internal/repositories"
)

var (
	// ErrCartInvalidInput signals the caller provided invalid cart data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartEmpty indicates the cart holds no lines when a snapshot was requested.
	ErrCartEmpty = errors.New("cart: empty")
	// ErrCartLineNotFound indicates the referenced cart line does not exist.
	ErrCartLineNotFound = errors.New("cart: line not found")
	// ErrProductNotFound indicates a referenced product is missing from the catalog.
	ErrProductNotFound = errors.New("cart: product not found")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Snapshot prices the cart against the live catalog. It never mutates the cart
// or the stock counters; the caller clears the cart inside its own transaction.
func (s *cartService) Snapshot(ctx context.Context, userID string) (CartSnapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return CartSnapshot{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return CartSnapshot{}, s.mapRepositoryError(err)
	}
	if len(cart.Lines) == 0 {
		return CartSnapshot{}, ErrCartEmpty
	}

	snapshot := CartSnapshot{UserID: userID}
	for _, line := range cart.Lines {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return CartSnapshot{}, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			return CartSnapshot{}, s.mapRepositoryError(err)
		}
		snapshot.Lines = append(snapshot.Lines, SnapshotLine{
			Product:   product,
			Quantity:  line.Quantity,
			UnitPrice: product.SalesPrice,
		})
		snapshot.Total += product.SalesPrice * int64(line.Quantity)
	}

	snapshot.Revision = cartRevision(cart)
	return snapshot, nil
}

// GetCart returns the user's current cart, empty when none exists.
func (s *cartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, s.mapRepositoryError(err)
	}
	return cart, nil
}

// AddItem merges quantity into the cart line for the product, creating the line
// when absent.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (domain.Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" || productID == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id and product id are required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return domain.Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if repositories.IsNotFound(err) {
			return domain.Cart{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return domain.Cart{}, s.mapRepositoryError(err)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	merged := false
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			cart.Lines[i].Quantity += cmd.Quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID: productID,
			Quantity:  cmd.Quantity,
			AddedAt:   now,
		})
	}
	cart.UserID = userID
	cart.UpdatedAt = now

	if err := s.carts.Save(ctx, cart); err != nil {
		return domain.Cart{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "cart.item.added", map[string]any{
		"user":     userID,
		"product":  productID,
		"quantity": cmd.Quantity,
	})
	return cart, nil
}

// UpdateItem replaces the quantity of an existing line.
func (s *cartService) UpdateItem(ctx context.Context, cmd UpdateCartItemCommand) (domain.Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" || productID == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id and product id are required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return domain.Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, s.mapRepositoryError(err)
	}

	found := false
	for i := range cart.Lines {
		if cart.Lines[i].ProductID == productID {
			cart.Lines[i].Quantity = cmd.Quantity
			found = true
			break
		}
	}
	if !found {
		return domain.Cart{}, fmt.Errorf("%w: %s", ErrCartLineNotFound, productID)
	}
	cart.UpdatedAt = s.clock()

	if err := s.carts.Save(ctx, cart); err != nil {
		return domain.Cart{}, s.mapRepositoryError(err)
	}
	return cart, nil
}

// RemoveItem drops the line for the product from the cart.
func (s *cartService) RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id and product id are required", ErrCartInvalidInput)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, s.mapRepositoryError(err)
	}

	lines := cart.Lines[:0]
	found := false
	for _, line := range cart.Lines {
		if line.ProductID == productID {
			found = true
			continue
		}
		lines = append(lines, line)
	}
	if !found {
		return domain.Cart{}, fmt.Errorf("%w: %s", ErrCartLineNotFound, productID)
	}
	cart.Lines = lines
	cart.UpdatedAt = s.clock()

	if len(cart.Lines) == 0 {
		if err := s.carts.Clear(ctx, userID); err != nil {
			return domain.Cart{}, s.mapRepositoryError(err)
		}
		return cart, nil
	}

	if err := s.carts.Save(ctx, cart); err != nil {
		return domain.Cart{}, s.mapRepositoryError(err)
	}
	return cart, nil
}

// ClearCart drops every line from the user's cart.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if err := s.carts.Clear(ctx, userID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *cartService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		return fmt.Errorf("cart: repository unavailable: %w", err)
	}
	return err
}

// cartRevision fingerprints the cart contents so retried checkout attempts for
// an unchanged cart reuse the same gateway idempotency key.
func cartRevision(cart domain.Cart) string {
	h := sha256.New()
	h.Write([]byte(cart.UserID))
	for _, line := range cart.Lines {
		h.Write([]byte{0})
		h.Write([]byte(line.ProductID))
		h.Write([]byte(strconv.Itoa(line.Quantity)))
	}
	h.Write([]byte(cart.UpdatedAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
