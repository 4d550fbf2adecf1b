package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lixing-Zhang/kart-checkout/internal/events"
	"github.com/Lixing-Zhang/kart-checkout/internal/metrics"
	"github.com/Lixing-Zhang/kart-checkout/internal/models"
	"github.com/Lixing-Zhang/kart-checkout/internal/repository"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	ErrSignatureMismatch = errors.New("payment signature mismatch")
	ErrAmountMismatch    = errors.New("claimed amount does not match gateway order")
	ErrInvalidSettlement = errors.New("settlement requires a payment id and a user id")
)

// SignatureVerifier checks the gateway's payment signature
type SignatureVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// GatewayOrderFetcher reads an order back from the payment gateway
type GatewayOrderFetcher interface {
	FetchOrder(ctx context.Context, orderID string) (models.GatewayOrder, error)
}

// SettlementConfig controls how much of the client's claim is trusted
type SettlementConfig struct {
	Currency currency.Unit
	// VerifyGatewayAmount re-reads the gateway order and rejects a claimed
	// total that differs from what the gateway charged.
	VerifyGatewayAmount bool
}

// SettlementResult is the outcome of a successful settlement.
// Replayed is set when the payment had already been settled earlier.
type SettlementResult struct {
	Order    models.Order
	Replayed bool
}

// SettlementService records verified payments as orders
type SettlementService struct {
	cfg       SettlementConfig
	store     repository.Store
	verifier  SignatureVerifier
	fetcher   GatewayOrderFetcher
	publisher events.Publisher
	tasks     *Tasks
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// NewSettlementService creates a new settlement service
func NewSettlementService(
	cfg SettlementConfig,
	store repository.Store,
	verifier SignatureVerifier,
	fetcher GatewayOrderFetcher,
	publisher events.Publisher,
	tasks *Tasks,
	m *metrics.Metrics,
	log *slog.Logger,
) *SettlementService {
	return &SettlementService{
		cfg:       cfg,
		store:     store,
		verifier:  verifier,
		fetcher:   fetcher,
		publisher: publisher,
		tasks:     tasks,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// Settle verifies the payment signature and, in one unit of work, consumes the
// coupon used for the purchase and persists the order. Settling the same
// payment twice returns the order stored the first time.
func (s *SettlementService) Settle(ctx context.Context, req models.SettlementRequest) (SettlementResult, error) {
	if !s.verifier.Verify(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		s.metrics.Settlements.WithLabelValues("signature_mismatch").Inc()
		s.log.Warn("payment signature mismatch",
			"gateway_order_id", req.RazorpayOrderID,
			"payment_id", req.RazorpayPaymentID,
		)
		return SettlementResult{}, ErrSignatureMismatch
	}

	if req.RazorpayPaymentID == "" || req.UserID == "" {
		s.metrics.Settlements.WithLabelValues("rejected").Inc()
		return SettlementResult{}, ErrInvalidSettlement
	}

	if s.cfg.VerifyGatewayAmount {
		if err := s.checkAmount(ctx, req); err != nil {
			if errors.Is(err, ErrAmountMismatch) {
				s.metrics.Settlements.WithLabelValues("amount_mismatch").Inc()
			} else {
				s.metrics.Settlements.WithLabelValues("failed").Inc()
			}
			return SettlementResult{}, err
		}
	}

	result, err := s.persist(ctx, req)
	if err != nil {
		s.metrics.Settlements.WithLabelValues("failed").Inc()
		return SettlementResult{}, err
	}

	if result.Replayed {
		s.metrics.Settlements.WithLabelValues("replayed").Inc()
		s.log.Info("payment already settled",
			"order_id", result.Order.ID,
			"payment_id", req.RazorpayPaymentID,
		)
		return result, nil
	}

	s.metrics.Settlements.WithLabelValues("settled").Inc()
	s.log.Info("payment settled",
		"order_id", result.Order.ID,
		"user_id", req.UserID,
		"payment_id", req.RazorpayPaymentID,
		"coupon_code", req.CouponCode,
	)

	s.publish(ctx, result.Order, req.CouponCode)

	return result, nil
}

func (s *SettlementService) persist(ctx context.Context, req models.SettlementRequest) (SettlementResult, error) {
	var result SettlementResult

	err := s.store.WithTx(ctx, func(coupons repository.CouponRepository, orders repository.OrderRepository) error {
		existing, err := orders.GetByPaymentID(ctx, req.RazorpayPaymentID)
		switch {
		case err == nil:
			result = SettlementResult{Order: existing, Replayed: true}
			return nil
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("orders.GetByPaymentID: %w", err)
		}

		if req.CouponCode != "" {
			if err := coupons.Deactivate(ctx, req.CouponCode, req.UserID); err != nil {
				return fmt.Errorf("coupons.Deactivate: %w", err)
			}
		}

		created, err := orders.Create(ctx, s.newOrder(req))
		if err != nil {
			return fmt.Errorf("orders.Create: %w", err)
		}

		result = SettlementResult{Order: created}
		return nil
	})

	// a concurrent settlement of the same payment won the insert
	if errors.Is(err, repository.ErrDuplicatePayment) {
		existing, getErr := s.store.Orders().GetByPaymentID(ctx, req.RazorpayPaymentID)
		if getErr != nil {
			return SettlementResult{}, errors.Join(err, fmt.Errorf("orders.GetByPaymentID: %w", getErr))
		}
		return SettlementResult{Order: existing, Replayed: true}, nil
	}
	if err != nil {
		return SettlementResult{}, fmt.Errorf("store.WithTx: %w", err)
	}

	return result, nil
}

func (s *SettlementService) newOrder(req models.SettlementRequest) models.Order {
	return models.Order{
		UserID: req.UserID,
		Products: lo.Map(req.Products, func(p models.ProductSnapshot, _ int) models.OrderProduct {
			return models.OrderProduct{ProductID: p.ID, Quantity: p.Quantity, Price: p.Price}
		}),
		TotalAmount:      req.TotalAmount,
		Currency:         s.cfg.Currency,
		PaymentGatewayID: req.RazorpayPaymentID,
		GatewayOrderID:   req.RazorpayOrderID,
	}
}

func (s *SettlementService) checkAmount(ctx context.Context, req models.SettlementRequest) error {
	gw, err := s.fetcher.FetchOrder(ctx, req.RazorpayOrderID)
	if err != nil {
		return fmt.Errorf("gateway.FetchOrder: %w", err)
	}

	claimed := minorUnits(req.TotalAmount)
	if !claimed.Equal(decimal.NewFromInt(gw.Amount)) || !strings.EqualFold(gw.Currency, s.cfg.Currency.String()) {
		s.log.Warn("settlement amount mismatch",
			"gateway_order_id", req.RazorpayOrderID,
			"gateway_amount_minor", gw.Amount,
			"claimed_amount_minor", claimed.String(),
			"gateway_currency", gw.Currency,
		)
		return ErrAmountMismatch
	}

	return nil
}

func (s *SettlementService) publish(ctx context.Context, order models.Order, couponCode string) {
	event := events.OrderSettled{
		OrderID:        order.ID.String(),
		GatewayOrderID: order.GatewayOrderID,
		PaymentID:      order.PaymentGatewayID,
		UserID:         order.UserID,
		CouponCode:     couponCode,
		TotalAmount:    order.TotalAmount,
		Currency:       order.Currency.String(),
		SettledAt:      s.now().UTC(),
	}

	s.tasks.Go(ctx, "publish_order_settled", func(ctx context.Context) error {
		if err := s.publisher.PublishOrderSettled(ctx, event); err != nil {
			return fmt.Errorf("publisher.PublishOrderSettled: %w", err)
		}
		return nil
	})
}
