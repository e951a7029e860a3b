package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/melodio/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Carts() CartRepository
	Products() ProductRepository
	Users() UserRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderListFilter narrows and paginates order listings.
type OrderListFilter struct {
	Status *domain.OrderStatus
	Pager  domain.Pagination
}

// OrderRepository persists order documents and their embedded items.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByCheckoutSessionID(ctx context.Context, sessionID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	ListByUserInRange(ctx context.Context, userID string, window domain.RangeQuery[time.Time]) ([]domain.Order, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Order, error)
}

// CartRepository owns the per-user cart document.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
	Clear(ctx context.Context, userID string) error
}

// ProductRepository exposes the catalog slice the order core depends on,
// including the stock counter mutations.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) error
}

// UserRepository performs existence checks for account owners.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
}

// HealthRepository reports backend connectivity for readiness probes.
type HealthRepository interface {
	Ping(ctx context.Context) error
}

// IsNotFound reports whether err carries not-found repository semantics.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

// IsConflict reports whether err carries conflict repository semantics.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}

// IsUnavailable reports whether err carries transient-outage repository semantics.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsUnavailable()
	}
	return false
}
