package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Lixing-Zhang/kart-checkout/internal/config"
	"github.com/Lixing-Zhang/kart-checkout/internal/models"
)

// APIError is returned when the gateway answers with a non-2xx status
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// Client talks to the Razorpay Orders API
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewClient creates a gateway client from configuration
func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    models.OrderNotes `json:"notes"`
}

type orderResponse struct {
	ID       string          `json:"id"`
	Amount   int64           `json:"amount"`
	Currency string          `json:"currency"`
	Receipt  string          `json:"receipt"`
	Status   string          `json:"status"`
	Notes    json.RawMessage `json:"notes"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder registers a pending order with the gateway
func (c *Client) CreateOrder(ctx context.Context, order models.GatewayOrder) (models.GatewayOrder, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
		Notes:    order.Notes,
	})
	if err != nil {
		return models.GatewayOrder{}, fmt.Errorf("failed to encode order: %w", err)
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orders", bytes.NewReader(body), &resp); err != nil {
		return models.GatewayOrder{}, err
	}

	return resp.toModel()
}

// FetchOrder returns the gateway's record of a previously created order
func (c *Client) FetchOrder(ctx context.Context, orderID string) (models.GatewayOrder, error) {
	if orderID == "" {
		return models.GatewayOrder{}, errors.New("orderID is empty")
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return models.GatewayOrder{}, err
	}

	return resp.toModel()
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}

		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil {
			apiErr.Code = e.Error.Code
			apiErr.Description = e.Error.Description
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return nil
}

func (r orderResponse) toModel() (models.GatewayOrder, error) {
	order := models.GatewayOrder{
		ID:       r.ID,
		Amount:   r.Amount,
		Currency: r.Currency,
		Receipt:  r.Receipt,
		Status:   r.Status,
	}

	// the gateway sends an empty array instead of an object when no notes are set
	if len(r.Notes) > 0 && bytes.HasPrefix(bytes.TrimSpace(r.Notes), []byte("{")) {
		if err := json.Unmarshal(r.Notes, &order.Notes); err != nil {
			return models.GatewayOrder{}, fmt.Errorf("failed to decode order notes: %w", err)
		}
	}

	return order, nil
}
