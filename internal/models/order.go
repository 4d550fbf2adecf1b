package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Order is the durable record of a verified payment
type Order struct {
	ID               uuid.UUID
	UserID           string
	Products         []OrderProduct
	TotalAmount      decimal.Decimal
	Currency         currency.Unit
	PaymentGatewayID string
	GatewayOrderID   string
	CreatedAt        time.Time
}

// OrderProduct is one purchased line, priced at settlement time
type OrderProduct struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// SettlementRequest carries the gateway payment result as claimed by the client
type SettlementRequest struct {
	RazorpayOrderID   string            `json:"razorpay_order_id"`
	RazorpayPaymentID string            `json:"razorpay_payment_id"`
	RazorpaySignature string            `json:"razorpay_signature"`
	Products          []ProductSnapshot `json:"products"`
	CouponCode        string            `json:"couponCode,omitempty"`
	TotalAmount       decimal.Decimal   `json:"totalAmount"`
	UserID            string            `json:"userId"`
}

// SettlementResponse is returned after a settlement attempt
type SettlementResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"orderId,omitempty"`
}

// ErrorResponse carries a generic message plus diagnostic detail
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
