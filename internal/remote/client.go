package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/order"
	"github.com/roach88/kiosksync/internal/tracing"
)

// maxErrorBody caps how much of a failed response is read into an error.
const maxErrorBody = 4 << 10

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Client is the connected Adapter: JSON over HTTP against the backend.
// Per-call deadlines come from the caller's context.
type Client struct {
	base    *url.URL
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ Adapter = (*Client)(nil)

// NewClient validates the base URL and builds a client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("remote client: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote client: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote client: unsupported scheme %q", base.Scheme)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{base: base, apiKey: opts.APIKey, http: hc, logger: logger, metrics: opts.Metrics}, nil
}

// CreateOrder implements Adapter.
func (c *Client) CreateOrder(ctx context.Context, payload order.Create) (order.Order, error) {
	var out order.Order
	err := c.do(ctx, OpCreate, http.MethodPost, "/orders", nil, payload, &out)
	return out, err
}

// ListOrders implements Adapter.
func (c *Client) ListOrders(ctx context.Context, filter order.Filter) ([]order.Order, error) {
	var out []order.Order
	if err := c.do(ctx, OpList, http.MethodGet, "/orders", EncodeFilter(filter), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder implements Adapter. A 404 is (nil, nil).
func (c *Client) GetOrder(ctx context.Context, key string) (*order.Order, error) {
	var out order.Order
	err := c.do(ctx, OpGet, http.MethodGet, "/orders/"+url.PathEscape(key), nil, nil, &out)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrderStatus implements Adapter.
func (c *Client) UpdateOrderStatus(ctx context.Context, id string, patch order.Patch) (order.Order, error) {
	var out order.Order
	err := c.do(ctx, OpUpdate, http.MethodPatch, "/orders/"+url.PathEscape(id)+"/status", nil, StatusUpdate{Patch: patch}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) (err error) {
	ctx, span := tracing.Start(ctx, tracing.LayerRemote, op,
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)
	defer func() {
		c.metrics.RemoteCall(op, KindOf(err).String())
		tracing.Fail(span, err)
		span.End()
	}()

	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Kind: KindRejected, Message: "encode request", Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return Unreachable(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Unreachable(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Op: op, Kind: KindUnreachable, Status: resp.StatusCode, Message: "decode response", Cause: err}
		}
		return nil
	}

	rerr := responseError(op, resp)
	c.logger.Debug("remote call failed",
		"op", op,
		"status", resp.StatusCode,
		"kind", rerr.Kind.String(),
		"message", rerr.Message,
	)
	return rerr
}

// responseError maps a non-2xx response onto the failure taxonomy.
func responseError(op string, resp *http.Response) *Error {
	e := &Error{Op: op, Status: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		e.Kind = KindNotFound
	case resp.StatusCode >= 500:
		e.Kind = KindUnreachable
	default:
		// 400, 401, 403, 409, 422 and any other 4xx: the backend gave a verdict.
		e.Kind = KindRejected
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb ErrorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
		e.Message = eb.Error
	} else {
		e.Message = strings.TrimSpace(string(raw))
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
