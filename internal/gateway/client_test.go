package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lixing-Zhang/kart-checkout/internal/config"
	"github.com/Lixing-Zhang/kart-checkout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.GatewayConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "test_secret",
		BaseURL:   srv.URL + "/",
		Timeout:   5,
		Currency:  "INR",
	})
}

func TestClient_CreateOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "test_secret", pass)

		var body createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(3998), body.Amount)
		assert.Equal(t, "INR", body.Currency)
		assert.Equal(t, "u1", body.Notes.UserID)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_123",
			"entity":   "order",
			"amount":   body.Amount,
			"currency": body.Currency,
			"receipt":  body.Receipt,
			"status":   "created",
			"notes":    body.Notes,
		})
	})

	order, err := client.CreateOrder(context.Background(), models.GatewayOrder{
		Amount:   3998,
		Currency: "INR",
		Receipt:  "ORD_12345678_u1",
		Notes:    models.OrderNotes{UserID: "u1", Products: `[]`},
	})
	require.NoError(t, err)

	assert.Equal(t, "order_123", order.ID)
	assert.Equal(t, int64(3998), order.Amount)
	assert.Equal(t, "created", order.Status)
	assert.Equal(t, "u1", order.Notes.UserID)
}

func TestClient_FetchOrder_EmptyNotesArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/orders/order_9", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_9","amount":100,"currency":"INR","receipt":"r","status":"paid","notes":[]}`))
	})

	order, err := client.FetchOrder(context.Background(), "order_9")
	require.NoError(t, err)
	assert.Equal(t, int64(100), order.Amount)
	assert.Equal(t, "paid", order.Status)
	assert.Empty(t, order.Notes.UserID)
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount exceeds maximum"}}`))
	})

	_, err := client.CreateOrder(context.Background(), models.GatewayOrder{Amount: 1, Currency: "INR"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
	assert.Contains(t, err.Error(), "amount exceeds maximum")
}

func TestClient_FetchOrder_EscapesID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders/order_9/../payments?expand=all", r.URL.Path)
		assert.Equal(t, "/v1/orders/order_9%2F..%2Fpayments%3Fexpand=all", r.URL.EscapedPath())
		assert.Empty(t, r.URL.RawQuery)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_9","amount":100,"currency":"INR","notes":{}}`))
	})

	_, err := client.FetchOrder(context.Background(), "order_9/../payments?expand=all")
	require.NoError(t, err)
}

func TestClient_FetchOrder_EmptyID(t *testing.T) {
	client := NewClient(config.GatewayConfig{BaseURL: "http://unused"})

	_, err := client.FetchOrder(context.Background(), "")
	assert.Error(t, err)
}
