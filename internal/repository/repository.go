package repository

import (
	"context"
	"errors"

	"github.com/Lixing-Zhang/kart-checkout/internal/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicatePayment = errors.New("payment already settled")
)

// CouponRepository defines the interface for coupon data access
type CouponRepository interface {
	// FindActive returns the active coupon matching code and owner, or ErrNotFound.
	FindActive(ctx context.Context, code, userID string) (models.Coupon, error)
	// ReplaceForUser deletes every coupon owned by coupon.UserID and stores coupon in its place.
	ReplaceForUser(ctx context.Context, coupon models.Coupon) error
	// Deactivate marks the matching coupon inactive. Missing or already inactive coupons are not an error.
	Deactivate(ctx context.Context, code, userID string) error
	ListByUser(ctx context.Context, userID string) ([]models.Coupon, error)
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// Create persists a new order and returns it with ID and CreatedAt set.
	// A second order for the same PaymentGatewayID fails with ErrDuplicatePayment.
	Create(ctx context.Context, order models.Order) (models.Order, error)
	GetByPaymentID(ctx context.Context, paymentID string) (models.Order, error)
}

// Store groups the repositories that must change together
type Store interface {
	Coupons() CouponRepository
	Orders() OrderRepository
	// WithTx runs fn against repositories bound to a single unit of work.
	// Nothing fn writes is visible if it returns an error.
	WithTx(ctx context.Context, fn func(coupons CouponRepository, orders OrderRepository) error) error
	Ping(ctx context.Context) error
}
