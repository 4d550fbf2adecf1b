package models

// GatewayOrder mirrors the payment gateway's order record.
// Amount is in minor currency units.
type GatewayOrder struct {
	ID       string     `json:"id"`
	Amount   int64      `json:"amount"`
	Currency string     `json:"currency"`
	Receipt  string     `json:"receipt"`
	Status   string     `json:"status,omitempty"`
	Notes    OrderNotes `json:"notes"`
}

// OrderNotes is the metadata attached to a gateway order. Products holds the
// JSON-encoded []ProductSnapshot so the order can be reconciled from the
// gateway record alone.
type OrderNotes struct {
	UserID     string `json:"userId"`
	CouponCode string `json:"couponCode"`
	Products   string `json:"products"`
}
