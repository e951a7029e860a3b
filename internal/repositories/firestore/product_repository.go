package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/melodio/api/internal/domain"
	pfirestore "github.com/melodio/api/internal/platform/firestore"
)

const productCollection = "products"

// ProductRepository exposes the catalog slice the order core reads and the
// stock counter it mutates.
type ProductRepository struct {
	base *pfirestore.BaseRepository[domain.Product]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.Product](provider, productCollection, nil, nil)
	return &ProductRepository{base: base}, nil
}

// FindByID loads a product by its identifier.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	product := doc.Data
	product.ID = doc.ID
	return product, nil
}

// AdjustStock moves the available quantity by delta. Inside a transaction the
// increment serialises against concurrent reservations.
func (r *ProductRepository) AdjustStock(ctx context.Context, productID string, delta int) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(productID) == "" {
		return errors.New("product id is required")
	}
	if delta == 0 {
		return nil
	}

	_, err := r.base.Update(ctx, productID, []firestore.Update{
		{Path: "availableQuantity", Value: firestore.Increment(delta)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	return err
}
