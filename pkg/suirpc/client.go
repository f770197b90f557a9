// Package suirpc provides a minimal Sui JSON-RPC client covering the read
// APIs the TVL pipeline needs: event queries and object resolution.
package suirpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/lumenlend/tvlscan/internal/resilience"
)

// Client defines the read operations against a Sui fullnode.
type Client interface {
	// QueryEvents fetches one page of events matching filter, resuming from
	// cursor (nil = from the newest when descending).
	QueryEvents(ctx context.Context, filter EventFilter, cursor *EventCursor, limit int, descending bool) (*EventPage, error)
	// GetObject fetches the live state of a single object. Returns
	// ErrObjectNotFound when the object was deleted or never existed.
	GetObject(ctx context.Context, id string, opts ObjectDataOptions) (*ObjectData, error)
	// MultiGetObjects fetches up to 50 objects in one call. Absent objects
	// yield nil entries in the result, positionally matching ids.
	MultiGetObjects(ctx context.Context, ids []string, opts ObjectDataOptions) ([]*ObjectData, error)
}

// ErrObjectNotFound is returned when an object no longer exists on chain
// (deleted, wrapped, or converted since the event was recorded).
var ErrObjectNotFound = eris.New("suirpc: object not found")

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit applies a client-side request floor (requests per second with
// the given burst). The adaptive controller paces batches above this; the
// limiter bounds worst-case request rate regardless of batch width.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCircuitBreaker guards all calls with a circuit breaker so a hard-down
// node fails the run fast instead of burning the full retry budget per item.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *httpClient) {
		c.breaker = resilience.NewCircuitBreaker(cfg)
	}
}

type httpClient struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *resilience.CircuitBreaker
	reqID    atomic.Int64
}

// NewClient creates a client for the given fullnode RPC endpoint.
func NewClient(endpoint string, opts ...Option) Client {
	c := &httpClient{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return e.Message
}

// call performs one JSON-RPC request and unmarshals the result into out.
// Rate limiting and the circuit breaker apply here so every method is
// covered uniformly.
func (c *httpClient) call(ctx context.Context, method string, params []any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "suirpc: rate limiter")
		}
	}

	do := func(ctx context.Context) error {
		return c.doCall(ctx, method, params, out)
	}
	if c.breaker != nil {
		return c.breaker.Execute(ctx, do)
	}
	return do(ctx)
}

func (c *httpClient) doCall(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return eris.Wrapf(err, "suirpc: marshal %s request", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrapf(err, "suirpc: create %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "suirpc: %s request failed", method)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrapf(err, "suirpc: read %s response", method)
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(
			eris.Errorf("suirpc: %s status %d: %s", method, resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("suirpc: %s unexpected status %d: %s", method, resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return eris.Wrapf(err, "suirpc: unmarshal %s envelope", method)
	}
	if rpcResp.Error != nil {
		return eris.Wrapf(rpcResp.Error, "suirpc: %s rpc error %d", method, rpcResp.Error.Code)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return eris.Wrapf(err, "suirpc: unmarshal %s result", method)
	}
	return nil
}

func (c *httpClient) QueryEvents(ctx context.Context, filter EventFilter, cursor *EventCursor, limit int, descending bool) (*EventPage, error) {
	var cursorParam any
	if cursor != nil {
		if err := cursor.Validate(); err != nil {
			return nil, err
		}
		cursorParam = cursor
	}

	var page EventPage
	err := c.call(ctx, "suix_queryEvents", []any{filter, cursorParam, limit, descending}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *httpClient) GetObject(ctx context.Context, id string, opts ObjectDataOptions) (*ObjectData, error) {
	var obj objectResponse
	if err := c.call(ctx, "sui_getObject", []any{id, opts}, &obj); err != nil {
		return nil, err
	}
	if obj.Error != nil {
		switch obj.Error.Code {
		case "notExists", "deleted":
			return nil, eris.Wrapf(ErrObjectNotFound, "suirpc: object %s: %s", id, obj.Error.Code)
		default:
			return nil, eris.Errorf("suirpc: object %s: %s", id, obj.Error.Code)
		}
	}
	if obj.Data == nil {
		return nil, eris.Errorf("suirpc: object %s: empty response", id)
	}
	return obj.Data, nil
}

func (c *httpClient) MultiGetObjects(ctx context.Context, ids []string, opts ObjectDataOptions) ([]*ObjectData, error) {
	var objs []objectResponse
	if err := c.call(ctx, "sui_multiGetObjects", []any{ids, opts}, &objs); err != nil {
		return nil, err
	}
	if len(objs) != len(ids) {
		return nil, eris.Errorf("suirpc: multiGetObjects returned %d entries for %d ids", len(objs), len(ids))
	}
	out := make([]*ObjectData, len(objs))
	for i, obj := range objs {
		if obj.Error != nil || obj.Data == nil {
			continue // absent object, nil entry
		}
		out[i] = obj.Data
	}
	return out, nil
}
