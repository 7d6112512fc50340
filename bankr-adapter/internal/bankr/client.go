package bankr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/internal/httpclient"
	"github.com/Checker-Finance/orders/internal/metrics"
	"github.com/Checker-Finance/orders/internal/rate"
	"github.com/Checker-Finance/orders/pkg/model"
	"github.com/Checker-Finance/orders/pkg/utils"
)

// APIKeyFunc returns the backend API key. An empty key omits the header.
type APIKeyFunc func(ctx context.Context) (string, error)

// StaticAPIKey serves a fixed key.
func StaticAPIKey(key string) APIKeyFunc {
	return func(context.Context) (string, error) { return key, nil }
}

// Client wraps HTTP communication with the external orders backend.
// Each call is a single attempt: callers decide retry policy.
type Client struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	baseURL string
	apiKey  APIKeyFunc
}

// NewClient constructs a gateway client for baseURL. apiKey may be nil.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, baseURL string, apiKey APIKeyFunc) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	exec := httpclient.New(logger, rateMgr, httpClient, "bankr", func(status int, body []byte) error {
		apiErr := parseAPIError(status, body)
		logger.Warn("bankr.client_error",
			zap.Int("status", status),
			zap.String("type", apiErr.Type),
			zap.String("message", apiErr.Message))
		return apiErr
	})
	return &Client{
		logger:  logger,
		exec:    exec,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// CreateQuote prices a prospective order and returns the actions to perform.
// POST /quote
func (c *Client) CreateQuote(ctx context.Context, req model.QuoteRequest) (*model.QuoteResponse, error) {
	var resp model.QuoteResponse
	if err := c.postJSON(ctx, "quote", req.Maker, "/quote", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitOrder submits a signed quote and returns the created order.
// POST /submit
func (c *Client) SubmitOrder(ctx context.Context, req model.SubmitRequest) (*model.ExternalOrder, error) {
	var resp model.ExternalOrder
	if err := c.postJSON(ctx, "submit", req.QuoteID, "/submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetOrder fetches an order by id. A "not found" answer yields (nil, nil).
// GET /{orderId}
func (c *Client) GetOrder(ctx context.Context, orderID string) (*model.ExternalOrder, error) {
	var resp model.GetOrderResponse
	err := c.getJSON(ctx, "get", orderID, "/"+url.PathEscape(orderID), &resp)
	if err != nil {
		if apiErr, ok := AsAPIError(err); ok && apiErr.IsNotFound() {
			return nil, nil
		}
		return nil, err
	}
	return resp.Order, nil
}

// ListOrders returns one page of a maker's orders.
// POST /list
func (c *Client) ListOrders(ctx context.Context, req model.ListOrdersRequest) (*model.ListOrdersResponse, error) {
	var resp model.ListOrdersResponse
	if err := c.postJSON(ctx, "list", req.Maker, "/list", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelOrder asks the backend to cancel an order. The raw response is
// returned even when success is false; interpreting it is the caller's job.
// POST /cancel/{orderId}
func (c *Client) CancelOrder(ctx context.Context, orderID, signature string) (*model.CancelOrderResponse, error) {
	var resp model.CancelOrderResponse
	body := model.CancelOrderRequest{Signature: signature}
	if err := c.postJSON(ctx, "cancel", orderID, "/cancel/"+url.PathEscape(orderID), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, rateKey, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(ctx, endpoint, rateKey, req, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint, rateKey, path string, body any, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("bankr: encode %s request: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	return c.do(ctx, endpoint, rateKey, req, out)
}

func (c *Client) do(ctx context.Context, endpoint, rateKey string, req *http.Request, out any) error {
	if err := c.setHeaders(ctx, req); err != nil {
		return err
	}

	start := time.Now()
	err := c.exec.DoJSON(ctx, req, strings.ToLower(rateKey), out)
	metrics.ObserveDuration(metrics.GatewayRequestDuration, start, endpoint, req.Method)
	metrics.IncGatewayRequest(endpoint, req.Method, statusLabel(err))

	if err != nil {
		c.logger.Debug("bankr.request_failed",
			zap.String("endpoint", endpoint),
			zap.String("key", utils.ShortID(rateKey)),
			zap.Error(err))
	}
	return err
}

// setHeaders sets the JSON headers and, when configured, the API key.
func (c *Client) setHeaders(ctx context.Context, req *http.Request) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey == nil {
		return nil
	}
	key, err := c.apiKey(ctx)
	if err != nil {
		return fmt.Errorf("bankr: resolve api key: %w", err)
	}
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	return nil
}
