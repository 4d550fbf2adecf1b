package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Lixing-Zhang/kart-checkout/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MemoryStore implements Store with in-memory storage.
// A transaction works on a copy of the state which replaces the live state on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	coupons   map[uuid.UUID]models.Coupon
	orders    map[uuid.UUID]models.Order
	byPayment map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			coupons:   make(map[uuid.UUID]models.Coupon),
			orders:    make(map[uuid.UUID]models.Order),
			byPayment: make(map[string]uuid.UUID),
		},
	}
}

func (s *MemoryStore) Coupons() CouponRepository {
	return &lockedCoupons{store: s}
}

func (s *MemoryStore) Orders() OrderRepository {
	return &lockedOrders{store: s}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(coupons CouponRepository, orders OrderRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	if err := fn(stateCoupons{draft}, stateOrders{draft}); err != nil {
		return err
	}

	s.state = draft
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (st *memState) clone() *memState {
	return &memState{
		coupons:   lo.Assign(st.coupons),
		orders:    lo.Assign(st.orders),
		byPayment: lo.Assign(st.byPayment),
	}
}

// stateCoupons operates on a memState without locking; callers hold the store lock.
type stateCoupons struct {
	st *memState
}

func (r stateCoupons) FindActive(_ context.Context, code, userID string) (models.Coupon, error) {
	for _, c := range r.st.coupons {
		if c.Code == code && c.UserID == userID && c.IsActive {
			return c, nil
		}
	}
	return models.Coupon{}, ErrNotFound
}

func (r stateCoupons) ReplaceForUser(_ context.Context, coupon models.Coupon) error {
	for id, c := range r.st.coupons {
		if c.UserID == coupon.UserID {
			delete(r.st.coupons, id)
		}
	}

	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now().UTC()
	}
	r.st.coupons[coupon.ID] = coupon
	return nil
}

func (r stateCoupons) Deactivate(_ context.Context, code, userID string) error {
	for id, c := range r.st.coupons {
		if c.Code == code && c.UserID == userID {
			c.IsActive = false
			r.st.coupons[id] = c
		}
	}
	return nil
}

func (r stateCoupons) ListByUser(_ context.Context, userID string) ([]models.Coupon, error) {
	coupons := lo.Filter(lo.Values(r.st.coupons), func(c models.Coupon, _ int) bool {
		return c.UserID == userID
	})
	sort.Slice(coupons, func(i, j int) bool {
		return coupons[i].CreatedAt.Before(coupons[j].CreatedAt)
	})
	return coupons, nil
}

type stateOrders struct {
	st *memState
}

func (r stateOrders) Create(_ context.Context, order models.Order) (models.Order, error) {
	if _, exists := r.st.byPayment[order.PaymentGatewayID]; exists {
		return models.Order{}, ErrDuplicatePayment
	}

	order.ID = uuid.New()
	order.CreatedAt = time.Now().UTC()
	order.Products = append([]models.OrderProduct(nil), order.Products...)

	r.st.orders[order.ID] = order
	r.st.byPayment[order.PaymentGatewayID] = order.ID
	return order, nil
}

func (r stateOrders) GetByPaymentID(_ context.Context, paymentID string) (models.Order, error) {
	id, exists := r.st.byPayment[paymentID]
	if !exists {
		return models.Order{}, ErrNotFound
	}
	return r.st.orders[id], nil
}

// lockedCoupons and lockedOrders serialize single calls against the live state.
type lockedCoupons struct {
	store *MemoryStore
}

func (r *lockedCoupons) FindActive(ctx context.Context, code, userID string) (models.Coupon, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return stateCoupons{r.store.state}.FindActive(ctx, code, userID)
}

func (r *lockedCoupons) ReplaceForUser(ctx context.Context, coupon models.Coupon) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return stateCoupons{r.store.state}.ReplaceForUser(ctx, coupon)
}

func (r *lockedCoupons) Deactivate(ctx context.Context, code, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return stateCoupons{r.store.state}.Deactivate(ctx, code, userID)
}

func (r *lockedCoupons) ListByUser(ctx context.Context, userID string) ([]models.Coupon, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return stateCoupons{r.store.state}.ListByUser(ctx, userID)
}

type lockedOrders struct {
	store *MemoryStore
}

func (r *lockedOrders) Create(ctx context.Context, order models.Order) (models.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return stateOrders{r.store.state}.Create(ctx, order)
}

func (r *lockedOrders) GetByPaymentID(ctx context.Context, paymentID string) (models.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return stateOrders{r.store.state}.GetByPaymentID(ctx, paymentID)
}
