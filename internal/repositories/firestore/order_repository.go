package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/melodio/api/internal/domain"
	pfirestore "github.com/melodio/api/internal/platform/firestore"
	"github.com/melodio/api/internal/platform/pagination"
	"github.com/melodio/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists orders as Firestore documents with embedded items.
type OrderRepository struct {
	base *pfirestore.BaseRepository[domain.Order]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.Order](provider, orderCollection, nil, nil)
	return &OrderRepository{base: base}, nil
}

// Insert stores a new order document keyed by the order ID.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	_, err := r.base.Set(ctx, order.ID, order)
	return err
}

// Update overwrites the order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	_, err := r.base.Set(ctx, order.ID, order)
	return err
}

// FindByID loads an order by its identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order := doc.Data
	order.ID = doc.ID
	return order, nil
}

// FindByCheckoutSessionID resolves the order created for a gateway session.
func (r *OrderRepository) FindByCheckoutSessionID(ctx context.Context, sessionID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Order{}, errors.New("session id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("checkoutSessionId", "==", sessionID).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.find_by_session",
			status.Error(codes.NotFound, "order not found for session"))
	}
	order := docs[0].Data
	order.ID = docs[0].ID
	return order, nil
}

// ListByUser returns the user's orders newest first, optionally filtered by status.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("user id is required")
	}

	pageSize := filter.Pager.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	cursor, err := pagination.DecodeToken(filter.Pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", userID)
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	for i, doc := range docs {
		if i == pageSize {
			break
		}
		order := doc.Data
		order.ID = doc.ID
		page.Items = append(page.Items, order)
	}

	if len(docs) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}

	return page, nil
}

// ListByUserInRange returns all of the user's orders created inside the window, oldest first.
func (r *OrderRepository) ListByUserInRange(ctx context.Context, userID string, window domain.RangeQuery[time.Time]) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", userID)
		if window.From != nil {
			q = q.Where("createdAt", ">=", *window.From)
		}
		if window.To != nil {
			q = q.Where("createdAt", "<=", *window.To)
		}
		return q.OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := doc.Data
		order.ID = doc.ID
		orders = append(orders, order)
	}
	return orders, nil
}

// ListStalePending returns gateway-backed orders stuck in pending since before the cutoff.
func (r *OrderRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("status", "==", string(domain.OrderStatusPending)).
			Where("createdAt", "<", before).
			OrderBy("createdAt", firestore.Asc).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := doc.Data
		order.ID = doc.ID
		orders = append(orders, order)
	}
	return orders, nil
}
