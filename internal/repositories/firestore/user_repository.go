package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/melodio/api/internal/domain"
	pfirestore "github.com/melodio/api/internal/platform/firestore"
)

const userCollection = "users"

// UserRepository performs account existence checks against the users collection.
type UserRepository struct {
	base *pfirestore.BaseRepository[domain.User]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.User](provider, userCollection, nil, nil)
	return &UserRepository{base: base}, nil
}

// FindByID loads the user record by UID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, errors.New("user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	user := doc.Data
	user.ID = doc.ID
	return user, nil
}
