// Package gateway talks to a Razorpay-compatible payment API.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrGatewayRequestFailed = errors.New("payment gateway request failed")
	ErrNotConfigured        = errors.New("payment gateway credentials not configured")
)

// Gateway payment states
const (
	PaymentCreated    = "created"
	PaymentAuthorized = "authorized"
	PaymentCaptured   = "captured"
	PaymentFailed     = "failed"
	PaymentRefunded   = "refunded"
)

// Order is a gateway-side order that the checkout widget pays against.
type Order struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Payment is a gateway-side payment belonging to an order.
type Payment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Settled reports whether the money has been collected.
func (p Payment) Settled() bool {
	return p.Status == PaymentCaptured || p.Status == PaymentAuthorized
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type paymentList struct {
	Count int       `json:"count"`
	Items []Payment `json:"items"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Client is a minimal Razorpay REST client.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a gateway client
func NewClient(baseURL, keyID, keySecret string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KeyID returns the public key the browser widget is opened with
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder creates a gateway order. amount is in the smallest currency unit.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*Order, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to marshal order: %w", err)
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/orders", body)
	if err != nil {
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("gateway: failed to parse order: %w", err)
	}
	return &order, nil
}

// FetchOrderPayments lists every payment attempt made against a gateway order
func (c *Client) FetchOrderPayments(ctx context.Context, gatewayOrderID string) ([]Payment, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/orders/"+gatewayOrderID+"/payments", nil)
	if err != nil {
		return nil, err
	}

	var list paymentList
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, fmt.Errorf("gateway: failed to parse payments: %w", err)
	}
	return list.Items, nil
}

// VerifySignature checks the checkout signature returned by the widget:
// hex(HMAC_SHA256(secret, order_id + "|" + payment_id)).
func (c *Client) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	if c.keySecret == "" || signature == "" {
		return false
	}
	expected := Sign(c.keySecret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// Sign computes the checkout signature for an order/payment pair
func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, ErrNotConfigured
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to create request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			return nil, fmt.Errorf("%w: %s - %s", ErrGatewayRequestFailed, errResp.Error.Code, errResp.Error.Description)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrGatewayRequestFailed, resp.StatusCode)
	}

	return respBody, nil
}
