package duffel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/eshaffer321/booking-sync-backend/internal/adapters/providers"
)

const (
	DefaultBaseURL    = "https://api.duffel.com"
	DefaultAPIVersion = "v2"
)

// Config holds the connection settings for the Duffel API
type Config struct {
	BaseURL            string
	APIKey             string
	APIVersion         string
	RateLimitPerSecond float64
	MaxRetries         int
	Timeout            time.Duration
}

// Client is a thin authenticated JSON client for the Duffel API.
// Requests are rate limited locally and retried on transient failures.
type Client struct {
	baseURL    string
	apiKey     string
	apiVersion string
	http       *retryablehttp.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a Duffel API client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = logger
	// Hand the final response back so the API error body can be decoded
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limit := rate.Inf
	burst := 1
	if cfg.RateLimitPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimitPerSecond)
		burst = max(1, int(cfg.RateLimitPerSecond))
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		http:       rc,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// APIError is a non-2xx answer from Duffel
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Title      string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Title
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("duffel api error %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("duffel api error %d: %s", e.StatusCode, msg)
}

// Unwrap maps the HTTP status onto the provider sentinel errors
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return providers.ErrOrderNotFound
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return providers.ErrProviderUnavailable
	}
	return nil
}

// IsBusinessError reports whether the upstream refused the request on its
// merits rather than failing to process it.
func (e *APIError) IsBusinessError() bool {
	return e.StatusCode == http.StatusUnprocessableEntity || e.StatusCode == http.StatusConflict
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Errors []struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"errors"`
	Meta struct {
		Status    int    `json:"status"`
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

// do sends a request and returns the raw "data" member of the response
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", providers.ErrProviderUnavailable, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(map[string]any{"data": body})
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Duffel-Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", providers.ErrProviderUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", providers.ErrProviderUnavailable, err)
	}

	c.logger.Debug("duffel request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed response body: %w", providers.ErrProviderUnavailable, err)
	}
	return env.Data, nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		apiErr.RequestID = env.Meta.RequestID
		if len(env.Errors) > 0 {
			first := env.Errors[0]
			apiErr.Type = first.Type
			apiErr.Code = first.Code
			apiErr.Title = first.Title
			apiErr.Message = first.Message
		}
	}
	return apiErr
}

// GetOrder fetches a single order
func (c *Client) GetOrder(ctx context.Context, orderID string) (*wireOrder, json.RawMessage, error) {
	data, err := c.do(ctx, http.MethodGet, "/air/orders/"+orderID, nil)
	if err != nil {
		return nil, nil, err
	}

	var order wireOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, nil, fmt.Errorf("%w: decoding order: %w", providers.ErrProviderUnavailable, err)
	}
	return &order, data, nil
}

// CreateCancellation requests a pending cancellation quote for an order
func (c *Client) CreateCancellation(ctx context.Context, orderID string) (*wireCancellation, error) {
	data, err := c.do(ctx, http.MethodPost, "/air/order_cancellations", map[string]string{"order_id": orderID})
	if err != nil {
		return nil, err
	}
	return decodeCancellation(data)
}

// ConfirmCancellation confirms a pending cancellation
func (c *Client) ConfirmCancellation(ctx context.Context, cancellationID string) (*wireCancellation, error) {
	data, err := c.do(ctx, http.MethodPost, "/air/order_cancellations/"+cancellationID+"/actions/confirm", nil)
	if err != nil {
		return nil, err
	}
	return decodeCancellation(data)
}

func decodeCancellation(data json.RawMessage) (*wireCancellation, error) {
	var cancellation wireCancellation
	if err := json.Unmarshal(data, &cancellation); err != nil {
		return nil, fmt.Errorf("%w: decoding cancellation: %w", providers.ErrProviderUnavailable, err)
	}
	return &cancellation, nil
}

// ListAvailableServices returns the ancillaries that can still be added to an order
func (c *Client) ListAvailableServices(ctx context.Context, orderID string) ([]wireService, error) {
	data, err := c.do(ctx, http.MethodGet, "/air/orders/"+orderID+"/available_services", nil)
	if err != nil {
		return nil, err
	}

	var services []wireService
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, fmt.Errorf("%w: decoding available services: %w", providers.ErrProviderUnavailable, err)
	}
	return services, nil
}

// AddServices books ancillaries onto an existing order
func (c *Client) AddServices(ctx context.Context, orderID string, services []wireServiceRequest) (*wireOrder, error) {
	data, err := c.do(ctx, http.MethodPost, "/air/orders/"+orderID+"/services", map[string]any{
		"add_services": services,
	})
	if err != nil {
		return nil, err
	}

	var order wireOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("%w: decoding order: %w", providers.ErrProviderUnavailable, err)
	}
	return &order, nil
}

// Ping checks that the API answers with the configured credentials
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/air/airlines?limit=1", nil)
	return err
}
