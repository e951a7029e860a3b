package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/melodio/api/internal/domain"
	"github.com/melodio/api/internal/payments"
	"github.com/melodio/api/internal/repositories"
)

type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.msg }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(msg string) error { return &stubRepoError{msg: msg, notFound: true} }

type stubOrderRepository struct {
	insertFunc            func(ctx context.Context, order domain.Order) error
	updateFunc            func(ctx context.Context, order domain.Order) error
	findByIDFunc          func(ctx context.Context, orderID string) (domain.Order, error)
	findBySessionFunc     func(ctx context.Context, sessionID string) (domain.Order, error)
	listByUserFunc        func(ctx context.Context, userID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	listByUserInRangeFunc func(ctx context.Context, userID string, window domain.RangeQuery[time.Time]) ([]domain.Order, error)
	listStalePendingFunc  func(ctx context.Context, before time.Time, limit int) ([]domain.Order, error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFunc == nil {
		return errors.New("insert not stubbed")
	}
	return s.insertFunc(ctx, order)
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order) error {
	if s.updateFunc == nil {
		return errors.New("update not stubbed")
	}
	return s.updateFunc(ctx, order)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFunc == nil {
		return domain.Order{}, notFoundErr("order not stubbed")
	}
	return s.findByIDFunc(ctx, orderID)
}

func (s *stubOrderRepository) FindByCheckoutSessionID(ctx context.Context, sessionID string) (domain.Order, error) {
	if s.findBySessionFunc == nil {
		return domain.Order{}, notFoundErr("session not stubbed")
	}
	return s.findBySessionFunc(ctx, sessionID)
}

func (s *stubOrderRepository) ListByUser(ctx context.Context, userID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listByUserFunc == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("listByUser not stubbed")
	}
	return s.listByUserFunc(ctx, userID, filter)
}

func (s *stubOrderRepository) ListByUserInRange(ctx context.Context, userID string, window domain.RangeQuery[time.Time]) ([]domain.Order, error) {
	if s.listByUserInRangeFunc == nil {
		return nil, errors.New("listByUserInRange not stubbed")
	}
	return s.listByUserInRangeFunc(ctx, userID, window)
}

func (s *stubOrderRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Order, error) {
	if s.listStalePendingFunc == nil {
		return nil, errors.New("listStalePending not stubbed")
	}
	return s.listStalePendingFunc(ctx, before, limit)
}

type stubCartRepository struct {
	getFunc   func(ctx context.Context, userID string) (domain.Cart, error)
	saveFunc  func(ctx context.Context, cart domain.Cart) error
	clearFunc func(ctx context.Context, userID string) error
}

func (s *stubCartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFunc == nil {
		return domain.Cart{UserID: userID}, nil
	}
	return s.getFunc(ctx, userID)
}

func (s *stubCartRepository) Save(ctx context.Context, cart domain.Cart) error {
	if s.saveFunc == nil {
		return nil
	}
	return s.saveFunc(ctx, cart)
}

func (s *stubCartRepository) Clear(ctx context.Context, userID string) error {
	if s.clearFunc == nil {
		return nil
	}
	return s.clearFunc(ctx, userID)
}

type stubProductRepository struct {
	findByIDFunc    func(ctx context.Context, productID string) (domain.Product, error)
	adjustStockFunc func(ctx context.Context, productID string, delta int) error
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findByIDFunc == nil {
		return domain.Product{}, notFoundErr("product not stubbed")
	}
	return s.findByIDFunc(ctx, productID)
}

func (s *stubProductRepository) AdjustStock(ctx context.Context, productID string, delta int) error {
	if s.adjustStockFunc == nil {
		return nil
	}
	return s.adjustStockFunc(ctx, productID, delta)
}

type stubUserRepository struct {
	findByIDFunc func(ctx context.Context, userID string) (domain.User, error)
}

func (s *stubUserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if s.findByIDFunc == nil {
		return domain.User{ID: userID}, nil
	}
	return s.findByIDFunc(ctx, userID)
}

type stubGateway struct {
	createFunc func(ctx context.Context, req payments.SessionRequest) (payments.Session, error)
	getFunc    func(ctx context.Context, sessionID string) (payments.SessionStatus, error)
	expireFunc func(ctx context.Context, sessionID string) error

	expired []string
}

func (s *stubGateway) CreateSession(ctx context.Context, req payments.SessionRequest) (payments.Session, error) {
	if s.createFunc == nil {
		return payments.Session{}, errors.New("createSession not stubbed")
	}
	return s.createFunc(ctx, req)
}

func (s *stubGateway) GetSession(ctx context.Context, sessionID string) (payments.SessionStatus, error) {
	if s.getFunc == nil {
		return payments.SessionStatus{}, errors.New("getSession not stubbed")
	}
	return s.getFunc(ctx, sessionID)
}

func (s *stubGateway) ExpireSession(ctx context.Context, sessionID string) error {
	s.expired = append(s.expired, sessionID)
	if s.expireFunc == nil {
		return nil
	}
	return s.expireFunc(ctx, sessionID)
}

type capturedEvents struct {
	events []OrderEvent
	err    error
}

func (c *capturedEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	c.events = append(c.events, event)
	return c.err
}

// productCatalog wires a fixed product set and records stock adjustments.
type productCatalog struct {
	products    map[string]domain.Product
	adjustments map[string]int
}

func newProductCatalog(products ...domain.Product) *productCatalog {
	catalog := &productCatalog{
		products:    make(map[string]domain.Product, len(products)),
		adjustments: make(map[string]int),
	}
	for _, p := range products {
		catalog.products[p.ID] = p
	}
	return catalog
}

func (c *productCatalog) FindByID(_ context.Context, productID string) (domain.Product, error) {
	product, ok := c.products[productID]
	if !ok {
		return domain.Product{}, notFoundErr("product " + productID + " not found")
	}
	return product, nil
}

func (c *productCatalog) AdjustStock(_ context.Context, productID string, delta int) error {
	if _, ok := c.products[productID]; !ok {
		return notFoundErr("product " + productID + " not found")
	}
	c.adjustments[productID] += delta
	product := c.products[productID]
	product.AvailableQuantity += delta
	c.products[productID] = product
	return nil
}
