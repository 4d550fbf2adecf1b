package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/Lixing-Zhang/kart-checkout/internal/metrics"
	"github.com/Lixing-Zhang/kart-checkout/internal/models"
	"github.com/Lixing-Zhang/kart-checkout/internal/repository"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	ErrEmptyCart       = errors.New("invalid or empty products array")
	ErrInvalidCartLine = errors.New("cart line must have a positive quantity and a non-negative price")
	ErrMissingUser     = errors.New("authenticated user is required")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// Gateway registers orders with the payment provider
type Gateway interface {
	CreateOrder(ctx context.Context, order models.GatewayOrder) (models.GatewayOrder, error)
}

// CouponIssuer hands out reward coupons
type CouponIssuer interface {
	Issue(ctx context.Context, userID string) (models.Coupon, error)
}

// CheckoutConfig holds the money rules of a checkout
type CheckoutConfig struct {
	Currency             currency.Unit
	MinAmountMinor       int64
	RewardThresholdMinor int64
}

// CheckoutService turns a cart into a pending gateway order
type CheckoutService struct {
	cfg     CheckoutConfig
	coupons repository.CouponRepository
	gateway Gateway
	issuer  CouponIssuer
	tasks   *Tasks
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	cfg CheckoutConfig,
	coupons repository.CouponRepository,
	gateway Gateway,
	issuer CouponIssuer,
	tasks *Tasks,
	m *metrics.Metrics,
	log *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		cfg:     cfg,
		coupons: coupons,
		gateway: gateway,
		issuer:  issuer,
		tasks:   tasks,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// CreateIntent prices the cart, applies the user's coupon if it is valid,
// registers the order with the gateway and, for large orders, issues a reward
// coupon in the background.
func (s *CheckoutService) CreateIntent(ctx context.Context, userID string, req models.CheckoutRequest) (models.CheckoutResponse, error) {
	if userID == "" {
		s.metrics.CheckoutIntents.WithLabelValues("rejected").Inc()
		return models.CheckoutResponse{}, ErrMissingUser
	}

	if err := validateCart(req.Products); err != nil {
		s.metrics.CheckoutIntents.WithLabelValues("rejected").Inc()
		return models.CheckoutResponse{}, err
	}

	total := CartTotalMinor(req.Products)

	if req.CouponCode != "" {
		discounted, err := s.applyCoupon(ctx, total, req.CouponCode, userID)
		if err != nil {
			s.metrics.CheckoutIntents.WithLabelValues("failed").Inc()
			return models.CheckoutResponse{}, err
		}
		total = discounted
	}

	total = max(total, s.cfg.MinAmountMinor)

	snapshot, err := json.Marshal(lo.Map(req.Products, func(l models.CartLine, _ int) models.ProductSnapshot {
		return models.ProductSnapshot{ID: l.ProductID, Quantity: l.Quantity, Price: l.UnitPrice}
	}))
	if err != nil {
		s.metrics.CheckoutIntents.WithLabelValues("failed").Inc()
		return models.CheckoutResponse{}, fmt.Errorf("failed to encode cart snapshot: %w", err)
	}

	order, err := s.gateway.CreateOrder(ctx, models.GatewayOrder{
		Amount:   total,
		Currency: s.cfg.Currency.String(),
		Receipt:  s.receipt(userID),
		Notes: models.OrderNotes{
			UserID:     userID,
			CouponCode: req.CouponCode,
			Products:   string(snapshot),
		},
	})
	if err != nil {
		s.metrics.CheckoutIntents.WithLabelValues("failed").Inc()
		return models.CheckoutResponse{}, fmt.Errorf("gateway.CreateOrder: %w", err)
	}

	if total >= s.cfg.RewardThresholdMinor {
		s.issueReward(ctx, userID)
	}

	s.metrics.CheckoutIntents.WithLabelValues("created").Inc()
	s.log.Info("checkout intent created",
		"user_id", userID,
		"gateway_order_id", order.ID,
		"amount_minor", total,
		"coupon_applied", req.CouponCode != "",
	)

	return models.CheckoutResponse{
		OrderID:  order.ID,
		Amount:   FromMinorUnits(total).InexactFloat64(),
		Currency: s.cfg.Currency.String(),
	}, nil
}

// applyCoupon returns total reduced by the coupon's percentage. Unknown,
// foreign, inactive or expired coupons leave the total unchanged.
func (s *CheckoutService) applyCoupon(ctx context.Context, total int64, code, userID string) (int64, error) {
	c, err := s.coupons.FindActive(ctx, code, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Debug("coupon not applicable", "user_id", userID, "coupon_code", code)
			return total, nil
		}
		return 0, fmt.Errorf("coupons.FindActive: %w", err)
	}

	if !c.Usable(s.now()) {
		s.log.Debug("coupon expired", "user_id", userID, "coupon_code", code)
		return total, nil
	}

	return total - DiscountMinor(total, c.DiscountPercentage), nil
}

func (s *CheckoutService) issueReward(ctx context.Context, userID string) {
	s.tasks.Go(ctx, "reward_coupon", func(ctx context.Context) error {
		if _, err := s.issuer.Issue(ctx, userID); err != nil {
			s.metrics.RewardCoupons.WithLabelValues("failed").Inc()
			return fmt.Errorf("issuer.Issue user %s: %w", userID, err)
		}
		s.metrics.RewardCoupons.WithLabelValues("issued").Inc()
		return nil
	})
}

// receipt is a short time-derived token plus the user id, for gateway bookkeeping only
func (s *CheckoutService) receipt(userID string) string {
	millis := strconv.FormatInt(s.now().UnixMilli(), 10)
	if len(millis) > 8 {
		millis = millis[len(millis)-8:]
	}
	return "ORD_" + millis + "_" + userID
}

func validateCart(lines []models.CartLine) error {
	if len(lines) == 0 {
		return ErrEmptyCart
	}

	total := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			return ErrInvalidCartLine
		}

		total = total.Add(lineTotalMinor(l))
		if total.GreaterThan(maxMinor) {
			return fmt.Errorf("%w: cart total exceeds %s minor units", ErrInvalidCartLine, maxMinor)
		}
	}

	return nil
}

func lineTotalMinor(l models.CartLine) decimal.Decimal {
	return minorUnits(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartTotalMinor sums round(unitPrice × 100) × quantity over the lines.
// Each price is rounded to minor units before it is multiplied.
// The lines must have passed validateCart so the sum fits in an int64.
func CartTotalMinor(lines []models.CartLine) int64 {
	return lo.SumBy(lines, func(l models.CartLine) int64 {
		return ToMinorUnits(l.UnitPrice) * int64(l.Quantity)
	})
}

// DiscountMinor returns round(total × percentage / 100)
func DiscountMinor(total int64, percentage int) int64 {
	return decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(int64(percentage))).
		Div(hundred).
		Round(0).
		IntPart()
}

// ToMinorUnits converts a major-unit amount to minor units, rounding half away from zero
func ToMinorUnits(amount decimal.Decimal) int64 {
	return minorUnits(amount).IntPart()
}

func minorUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(hundred).Round(0)
}

// FromMinorUnits converts minor units back to a major-unit amount
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
