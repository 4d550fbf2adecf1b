package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CheckoutRequest represents an incoming checkout intent
type CheckoutRequest struct {
	Products   []CartLine `json:"products"`
	CouponCode string     `json:"couponCode,omitempty"`
}

// CartLine is a single cart entry as priced by the client
type CartLine struct {
	ProductID string          `json:"_id"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// CheckoutResponse is returned once the gateway order is registered.
// Amount is in major currency units.
type CheckoutResponse struct {
	OrderID  string  `json:"orderId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// ProductSnapshot is the per-line cart record embedded in the gateway order
// notes and echoed back by the client at settlement.
type ProductSnapshot struct {
	ID       string          `json:"id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// MarshalJSON writes the price as a JSON number rather than a quoted string.
func (p ProductSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string      `json:"id"`
		Quantity int         `json:"quantity"`
		Price    json.Number `json:"price"`
	}{
		ID:       p.ID,
		Quantity: p.Quantity,
		Price:    json.Number(p.Price.String()),
	})
}
