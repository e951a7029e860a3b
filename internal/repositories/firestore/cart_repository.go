package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/melodio/api/internal/domain"
	pfirestore "github.com/melodio/api/internal/platform/firestore"
	"github.com/melodio/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository stores one cart document per user.
type CartRepository struct {
	base *pfirestore.BaseRepository[domain.Cart]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.Cart](provider, cartCollection, nil, nil)
	return &CartRepository{base: base}, nil
}

// Get loads the user's cart. A missing document is an empty cart, not an error.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, errors.New("user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Cart{UserID: userID}, nil
		}
		return domain.Cart{}, err
	}

	cart := doc.Data
	cart.UserID = userID
	return cart, nil
}

// Save upserts the cart document.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	if strings.TrimSpace(cart.UserID) == "" {
		return errors.New("user id is required")
	}
	_, err := r.base.Set(ctx, cart.UserID, cart)
	return err
}

// Clear deletes the cart document.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("user id is required")
	}
	return r.base.Delete(ctx, userID)
}
