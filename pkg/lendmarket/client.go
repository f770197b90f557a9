// Package lendmarket provides a client for the lending protocol's position
// data service: per-obligation deposit and borrow valuations.
package lendmarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lumenlend/tvlscan/internal/resilience"
)

// Client defines the position data operations.
type Client interface {
	// Initialize fetches market metadata for the given market and binds the
	// client to it. Must be called before GetObligation; failure here is a
	// terminal error for any pipeline run.
	Initialize(ctx context.Context, marketID, marketType string) error
	// GetObligation fetches the financial snapshot of a single position.
	GetObligation(ctx context.Context, positionID string) (*Obligation, error)
}

// ErrNotInitialized is returned by GetObligation before Initialize succeeds.
var ErrNotInitialized = eris.New("lendmarket: client not initialized")

// MarketInfo is the metadata returned by Initialize.
type MarketInfo struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Obligation is the per-position financial snapshot. Values are 10^18
// fixed-point on the wire; convert with Amount.Float.
type Obligation struct {
	PositionID     string `json:"position_id"`
	DepositedValue Amount `json:"deposited_value"`
	BorrowedValue  Amount `json:"borrowed_value"`
	CollateralKind string `json:"collateral_kind,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	market  *MarketInfo
}

// NewClient creates a position data service client.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
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

func (c *httpClient) Initialize(ctx context.Context, marketID, marketType string) error {
	reqURL := fmt.Sprintf("%s/markets/%s?type=%s", c.baseURL, url.PathEscape(marketID), url.QueryEscape(marketType))

	body, status, err := c.get(ctx, reqURL)
	if err != nil {
		return eris.Wrap(err, "lendmarket: initialize")
	}
	if status != http.StatusOK {
		return eris.Errorf("lendmarket: initialize status %d: %s", status, string(body))
	}

	var info MarketInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return eris.Wrap(err, "lendmarket: unmarshal market info")
	}
	c.market = &info
	return nil
}

func (c *httpClient) GetObligation(ctx context.Context, positionID string) (*Obligation, error) {
	if c.market == nil {
		return nil, ErrNotInitialized
	}

	reqURL := fmt.Sprintf("%s/markets/%s/obligations/%s", c.baseURL, url.PathEscape(c.market.ID), url.PathEscape(positionID))

	body, status, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, eris.Wrapf(err, "lendmarket: get obligation %s", positionID)
	}

	switch {
	case status == http.StatusOK:
		// fall through to decode
	case resilience.IsTransientHTTPStatus(status):
		return nil, resilience.NewTransientError(
			eris.Errorf("lendmarket: obligation %s status %d: %s", positionID, status, string(body)),
			status,
		)
	default:
		return nil, eris.Errorf("lendmarket: obligation %s status %d: %s", positionID, status, string(body))
	}

	var ob Obligation
	if err := json.Unmarshal(body, &ob); err != nil {
		return nil, eris.Wrapf(err, "lendmarket: unmarshal obligation %s", positionID)
	}
	if ob.PositionID == "" {
		ob.PositionID = positionID
	}
	return &ob, nil
}

func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "read response body")
	}
	return body, resp.StatusCode, nil
}
