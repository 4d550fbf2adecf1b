package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a single-use percentage discount owned by one user
type Coupon struct {
	ID                 uuid.UUID `json:"id"`
	Code               string    `json:"code"`
	DiscountPercentage int       `json:"discountPercentage"`
	ExpirationDate     time.Time `json:"expirationDate"`
	UserID             string    `json:"userId"`
	IsActive           bool      `json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Usable reports whether the coupon can still be redeemed at t.
func (c Coupon) Usable(t time.Time) bool {
	return c.IsActive && t.Before(c.ExpirationDate)
}
