package coupon

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/Lixing-Zhang/kart-checkout/internal/models"
	"github.com/Lixing-Zhang/kart-checkout/internal/repository"
	"github.com/google/uuid"
)

const (
	CodePrefix         = "GIFT"
	DiscountPercentage = 10
	Validity           = 30 * 24 * time.Hour

	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Issuer hands out reward coupons. A user holds at most one coupon:
// issuing a new one replaces whatever the user had before.
type Issuer struct {
	coupons repository.CouponRepository
	log     *slog.Logger
	now     func() time.Time
}

// NewIssuer creates a new coupon issuer
func NewIssuer(coupons repository.CouponRepository, log *slog.Logger) *Issuer {
	return &Issuer{
		coupons: coupons,
		log:     log,
		now:     time.Now,
	}
}

// Issue replaces the user's coupon with a fresh 10% coupon valid for 30 days.
// Generated codes are not checked against existing ones.
func (i *Issuer) Issue(ctx context.Context, userID string) (models.Coupon, error) {
	if userID == "" {
		return models.Coupon{}, errors.New("userID is empty")
	}

	code, err := generateCode()
	if err != nil {
		return models.Coupon{}, fmt.Errorf("generateCode: %w", err)
	}

	now := i.now().UTC()
	c := models.Coupon{
		ID:                 uuid.New(),
		Code:               code,
		DiscountPercentage: DiscountPercentage,
		ExpirationDate:     now.Add(Validity),
		UserID:             userID,
		IsActive:           true,
		CreatedAt:          now,
	}

	if err := i.coupons.ReplaceForUser(ctx, c); err != nil {
		return models.Coupon{}, fmt.Errorf("coupons.ReplaceForUser: %w", err)
	}

	i.log.Info("reward coupon issued", "user_id", userID, "coupon_code", c.Code)
	return c, nil
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))

	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}

	return CodePrefix + string(buf), nil
}
