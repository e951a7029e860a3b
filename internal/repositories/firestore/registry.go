package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	pfirestore "github.com/melodio/api/internal/platform/firestore"
	"github.com/melodio/api/internal/repositories"
)

// Registry wires the Firestore-backed repositories behind the repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	orders   *OrderRepository
	carts    *CartRepository
	products *ProductRepository
	users    *UserRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the repository registry on top of a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		orders:   orders,
		carts:    carts,
		products: products,
		users:    users,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Products returns the product repository.
func (r *Registry) Products() repositories.ProductRepository { return r.products }

// Users returns the user repository.
func (r *Registry) Users() repositories.UserRepository { return r.users }

// Health returns the readiness probe backed by the shared client.
func (r *Registry) Health() repositories.HealthRepository { return &healthRepository{provider: r.provider} }

// RunInTx executes fn inside a Firestore transaction. The transaction is
// attached to the context so repository calls made from fn join it.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	if fn == nil {
		return errors.New("transaction function is required")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(pfirestore.WithTx(ctx, tx))
	})
}

type healthRepository struct {
	provider *pfirestore.Provider
}

// Ping verifies the Firestore client can be initialised and reached.
func (h *healthRepository) Ping(ctx context.Context) error {
	if h == nil || h.provider == nil {
		return errors.New("health repository not initialised")
	}
	client, err := h.provider.Client(ctx)
	if err != nil {
		return err
	}

	iter := client.Collections(ctx)
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return pfirestore.WrapError("health.ping", err)
	}
	return nil
}
