package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Status is the normalized transaction state reported by the provider.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrUnavailable wraps transport failures and provider 5xx responses so
// callers can treat them as retryable without parsing messages.
var ErrUnavailable = errors.New("gateway unavailable")

// Client talks to the mobile-money provider. All calls carry an
// idempotency key in metadata so retries never duplicate money movement.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a client against an explicit base URL (tests point this at
// a local server).
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// NewFromEnv reads GATEWAY_BASE_URL, GATEWAY_API_KEY and
// GATEWAY_TIMEOUT_SECONDS (default 10).
func NewFromEnv() *Client {
	timeout := 10 * time.Second
	if s := os.Getenv("GATEWAY_TIMEOUT_SECONDS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	return New(os.Getenv("GATEWAY_BASE_URL"), os.Getenv("GATEWAY_API_KEY"), timeout)
}

// CollectionRequest initiates a pull from a supporter's mobile-money
// account.
type CollectionRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PayerContact   string `json:"payer_contact"`
	IdempotencyKey string `json:"-"`
}

// PayoutRequest pushes funds to a creator via mobile money or bank.
type PayoutRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PayeeContact   string `json:"payee_contact"`
	BankCode       string `json:"bank_code,omitempty"`
	IdempotencyKey string `json:"-"`
}

// InitResult is the provider's answer to a collection or payout request.
type InitResult struct {
	Reference string `json:"reference"`
	Status    Status `json:"status"`
}

// StatusResult carries the normalized status plus the raw provider body
// for audit logging.
type StatusResult struct {
	Status Status
	Raw    json.RawMessage
}

// CreateCollection initiates a supporter payment.
func (c *Client) CreateCollection(ctx context.Context, req CollectionRequest) (InitResult, error) {
	return c.initiate(ctx, "/v1/collections", req, req.IdempotencyKey)
}

// CreatePayout initiates a creator disbursement.
func (c *Client) CreatePayout(ctx context.Context, req PayoutRequest) (InitResult, error) {
	return c.initiate(ctx, "/v1/payouts", req, req.IdempotencyKey)
}

func (c *Client) initiate(ctx context.Context, path string, payload any, idempotencyKey string) (InitResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return InitResult{}, err
	}
	// The provider echoes metadata back on status queries; the
	// idempotency key is our local record id.
	var withMeta map[string]any
	if err := json.Unmarshal(body, &withMeta); err != nil {
		return InitResult{}, err
	}
	withMeta["metadata"] = map[string]string{"idempotency_key": idempotencyKey}
	body, _ = json.Marshal(withMeta)

	respBody, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return InitResult{}, err
	}

	var wire struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return InitResult{}, fmt.Errorf("gateway response: %w", err)
	}
	if wire.Reference == "" {
		return InitResult{}, fmt.Errorf("gateway response missing reference")
	}
	return InitResult{Reference: wire.Reference, Status: NormalizeStatus(wire.Status)}, nil
}

// GetStatus queries a collection or payout by its provider reference.
func (c *Client) GetStatus(ctx context.Context, reference string) (StatusResult, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/v1/transactions/"+reference, nil)
	if err != nil {
		return StatusResult{}, err
	}

	var wire struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return StatusResult{}, fmt.Errorf("gateway response: %w", err)
	}
	return StatusResult{Status: NormalizeStatus(wire.Status), Raw: respBody}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, resp.StatusCode, respBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway rejected request: status=%d body=%s", resp.StatusCode, respBody)
	}
	return respBody, nil
}

// NormalizeStatus maps the provider's vocabulary onto ours. Anything we
// do not recognize stays pending: a poll must never flip local state on
// an answer it cannot interpret. Exported because the webhook adapter
// receives the same vocabulary.
func NormalizeStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "complete", "success", "successful", "paid":
		return StatusCompleted
	case "failed", "failure", "error", "rejected", "expired", "cancelled":
		return StatusFailed
	default:
		return StatusPending
	}
}
