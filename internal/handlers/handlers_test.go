package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lixing-Zhang/kart-checkout/internal/middleware"
	"github.com/Lixing-Zhang/kart-checkout/internal/models"
	"github.com/Lixing-Zhang/kart-checkout/internal/service"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubCheckout struct {
	resp    models.CheckoutResponse
	err     error
	gotUser string
	gotReq  models.CheckoutRequest
}

func (s *stubCheckout) CreateIntent(_ context.Context, userID string, req models.CheckoutRequest) (models.CheckoutResponse, error) {
	s.gotUser = userID
	s.gotReq = req
	return s.resp, s.err
}

type stubSettlement struct {
	result service.SettlementResult
	err    error
	gotReq models.SettlementRequest
}

func (s *stubSettlement) Settle(_ context.Context, req models.SettlementRequest) (service.SettlementResult, error) {
	s.gotReq = req
	return s.result, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestCheckoutHandler_CreateSession(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		stub           *stubCheckout
		expectedStatus int
		checkResponse  func(*testing.T, map[string]any)
	}{
		{
			name: "success",
			body: `{"products":[{"_id":"p1","price":19.99,"quantity":2}]}`,
			stub: &stubCheckout{resp: models.CheckoutResponse{OrderID: "order_1", Amount: 39.98, Currency: "INR"}},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body map[string]any) {
				if body["orderId"] != "order_1" {
					t.Errorf("orderId = %v, want order_1", body["orderId"])
				}
				if body["amount"] != 39.98 {
					t.Errorf("amount = %v, want 39.98", body["amount"])
				}
				if body["currency"] != "INR" {
					t.Errorf("currency = %v, want INR", body["currency"])
				}
			},
		},
		{
			name:           "empty cart",
			body:           `{"products":[]}`,
			stub:           &stubCheckout{err: service.ErrEmptyCart},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, body map[string]any) {
				if body["error"] != "Invalid or empty products array" {
					t.Errorf("error = %v", body["error"])
				}
			},
		},
		{
			name:           "products not an array",
			body:           `{"products":"abc"}`,
			stub:           &stubCheckout{},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, body map[string]any) {
				if body["error"] != "Invalid or empty products array" {
					t.Errorf("error = %v", body["error"])
				}
			},
		},
		{
			name:           "invalid line",
			body:           `{"products":[{"_id":"p1","price":1,"quantity":0}]}`,
			stub:           &stubCheckout{err: service.ErrInvalidCartLine},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "gateway failure",
			body:           `{"products":[{"_id":"p1","price":1,"quantity":1}]}`,
			stub:           &stubCheckout{err: errors.New("gateway.CreateOrder: connection refused")},
			expectedStatus: http.StatusInternalServerError,
			checkResponse: func(t *testing.T, body map[string]any) {
				if body["message"] != "Error processing checkout" {
					t.Errorf("message = %v", body["message"])
				}
				if body["error"] != "gateway.CreateOrder: connection refused" {
					t.Errorf("error = %v", body["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCheckoutHandler(tt.stub, discardLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session", bytes.NewBufferString(tt.body))
			req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
			w := httptest.NewRecorder()

			handler.CreateSession(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %s, want application/json", ct)
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, decodeBody(t, w))
			}
		})
	}
}

func TestCheckoutHandler_PassesUserAndCoupon(t *testing.T) {
	stub := &stubCheckout{resp: models.CheckoutResponse{OrderID: "order_1"}}
	handler := NewCheckoutHandler(stub, discardLogger())

	body := `{"products":[{"_id":"p1","price":5,"quantity":1}],"couponCode":"GIFTABC123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session", bytes.NewBufferString(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-9"))

	handler.CreateSession(httptest.NewRecorder(), req)

	if stub.gotUser != "user-9" {
		t.Errorf("user = %s, want user-9", stub.gotUser)
	}
	if stub.gotReq.CouponCode != "GIFTABC123" {
		t.Errorf("coupon = %s, want GIFTABC123", stub.gotReq.CouponCode)
	}
}

func TestSettlementHandler_CheckoutSuccess(t *testing.T) {
	orderID := uuid.New()

	tests := []struct {
		name            string
		body            string
		stub            *stubSettlement
		expectedStatus  int
		expectedSuccess bool
		expectedMessage string
	}{
		{
			name:            "settled",
			body:            `{"razorpay_order_id":"ord_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig","products":[{"id":"p1","quantity":1,"price":5}],"totalAmount":5,"userId":"u1"}`,
			stub:            &stubSettlement{result: service.SettlementResult{Order: models.Order{ID: orderID}}},
			expectedStatus:  http.StatusOK,
			expectedSuccess: true,
			expectedMessage: "Payment successful, order created, and coupon deactivated if used.",
		},
		{
			name:            "replayed settlement still succeeds",
			body:            `{"razorpay_order_id":"ord_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig","userId":"u1"}`,
			stub:            &stubSettlement{result: service.SettlementResult{Order: models.Order{ID: orderID}, Replayed: true}},
			expectedStatus:  http.StatusOK,
			expectedSuccess: true,
			expectedMessage: "Payment successful, order created, and coupon deactivated if used.",
		},
		{
			name:            "signature mismatch",
			body:            `{"razorpay_order_id":"ord_1","razorpay_payment_id":"pay_1","razorpay_signature":"forged"}`,
			stub:            &stubSettlement{err: service.ErrSignatureMismatch},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Payment verification failed (Signature Mismatch)",
		},
		{
			name:            "amount mismatch",
			body:            `{"razorpay_order_id":"ord_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`,
			stub:            &stubSettlement{err: service.ErrAmountMismatch},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Payment verification failed (Amount Mismatch)",
		},
		{
			name:            "invalid request",
			body:            `{"razorpay_order_id":"ord_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`,
			stub:            &stubSettlement{err: service.ErrInvalidSettlement},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid settlement request",
		},
		{
			name:            "malformed JSON",
			body:            `{`,
			stub:            &stubSettlement{},
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSettlementHandler(tt.stub, discardLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/payments/checkout-success", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			handler.CheckoutSuccess(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			body := decodeBody(t, w)
			if body["success"] != tt.expectedSuccess {
				t.Errorf("success = %v, want %v", body["success"], tt.expectedSuccess)
			}
			if body["message"] != tt.expectedMessage {
				t.Errorf("message = %v, want %s", body["message"], tt.expectedMessage)
			}
			if tt.expectedSuccess && body["orderId"] != orderID.String() {
				t.Errorf("orderId = %v, want %s", body["orderId"], orderID)
			}
			if !tt.expectedSuccess {
				if _, ok := body["orderId"]; ok {
					t.Error("orderId must be omitted on failure")
				}
			}
		})
	}
}

func TestSettlementHandler_InternalError(t *testing.T) {
	stub := &stubSettlement{err: errors.New("store.WithTx: connection reset")}
	handler := NewSettlementHandler(stub, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/payments/checkout-success", bytes.NewBufferString(`{"razorpay_payment_id":"pay_1"}`))
	w := httptest.NewRecorder()

	handler.CheckoutSuccess(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	body := decodeBody(t, w)
	if body["message"] != "Error processing successful checkout" {
		t.Errorf("message = %v", body["message"])
	}
	if body["error"] != "store.WithTx: connection reset" {
		t.Errorf("error = %v", body["error"])
	}
	if stub.gotReq.RazorpayPaymentID != "pay_1" {
		t.Errorf("payment id = %s, want pay_1", stub.gotReq.RazorpayPaymentID)
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		pingErr        error
		expectedStatus int
		expectedState  string
	}{
		{name: "store reachable", expectedStatus: http.StatusOK, expectedState: "healthy"},
		{name: "store down", pingErr: errors.New("dial tcp: refused"), expectedStatus: http.StatusServiceUnavailable, expectedState: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(stubPinger{err: tt.pingErr}, "test", discardLogger())

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.expectedState {
				t.Errorf("status = %s, want %s", resp.Status, tt.expectedState)
			}
			if resp.Version != "test" {
				t.Errorf("version = %s, want test", resp.Version)
			}
		})
	}
}
