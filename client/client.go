// Package client talks to a ledgerq node over HTTP.
//
//	c := client.New("http://localhost:8080")
//	ids, err := c.ListFilter(ctx, filter.EndsWith{Suffix: "@wonderland"})
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/ledgerq/filter"
	"github.com/hupe1980/ledgerq/model"
	"github.com/hupe1980/ledgerq/retry"
)

var (
	// ErrBadRequest is returned for 400 responses, including malformed filters.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned for 409 responses (duplicate registration or
	// a checkpoint request to a node without a store).
	ErrConflict = errors.New("conflict")
	// ErrUnavailable is returned for 503 responses and for 429 (busy).
	ErrUnavailable = errors.New("service unavailable")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ledgerq: %d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("ledgerq: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Is maps status codes to the package sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// Client is an HTTP client for the account API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the node at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryResult is the result of Query.
type QueryResult struct {
	Accounts []model.AccountID `json:"accounts"`
	Records  []model.Record    `json:"records,omitempty"`
	LSN      uint64            `json:"lsn"`
}

type queryRequest struct {
	Filter  filter.Wire `json:"filter"`
	Offset  int         `json:"offset,omitempty"`
	Limit   int         `json:"limit,omitempty"`
	Records bool        `json:"records,omitempty"`
}

// QueryOptions selects a page of the result.
type QueryOptions struct {
	Offset  int
	Limit   int
	Records bool
}

// Query runs a filter query.
func (c *Client) Query(ctx context.Context, expr filter.Expr, opts QueryOptions) (*QueryResult, error) {
	if err := filter.Validate(expr); err != nil {
		return nil, err
	}
	var res QueryResult
	req := queryRequest{Filter: filter.Wire{Expr: expr}, Offset: opts.Offset, Limit: opts.Limit, Records: opts.Records}
	if err := c.do(ctx, http.MethodPost, "/v1/accounts/query", req, &res); err != nil {
		return nil, err
	}
	if res.Accounts == nil {
		res.Accounts = []model.AccountID{}
	}
	return &res, nil
}

// ListFilter returns the ids of all accounts matching expr.
func (c *Client) ListFilter(ctx context.Context, expr filter.Expr) ([]model.AccountID, error) {
	res, err := c.Query(ctx, expr, QueryOptions{})
	if err != nil {
		return nil, err
	}
	return res.Accounts, nil
}

// WaitForFilter polls ListFilter until cond holds for the result.
// Unavailable nodes are retried; other errors end the wait.
func (c *Client) WaitForFilter(ctx context.Context, expr filter.Expr, cond func([]model.AccountID) bool, opts ...retry.Option) ([]model.AccountID, error) {
	opts = append([]retry.Option{retry.WithRetryIf(func(err error) bool {
		return errors.Is(err, ErrUnavailable)
	})}, opts...)

	return retry.WaitFor(ctx, func(ctx context.Context) ([]model.AccountID, bool, error) {
		ids, err := c.ListFilter(ctx, expr)
		if err != nil {
			return nil, false, err
		}
		return ids, cond(ids), nil
	}, opts...)
}

type registerRequest struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Register registers id with optional metadata.
func (c *Client) Register(ctx context.Context, id model.AccountID, metadata map[string]string) (model.Record, error) {
	var rec model.Record
	err := c.do(ctx, http.MethodPost, "/v1/accounts", registerRequest{ID: id.String(), Metadata: metadata}, &rec)
	return rec, err
}

// Get returns the live record of id.
func (c *Client) Get(ctx context.Context, id model.AccountID) (model.Record, error) {
	var rec model.Record
	err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(id.String()), nil, &rec)
	return rec, err
}

// Unregister removes id.
func (c *Client) Unregister(ctx context.Context, id model.AccountID) error {
	return c.do(ctx, http.MethodDelete, "/v1/accounts/"+url.PathEscape(id.String()), nil, nil)
}

// Checkpoint asks the node to write a checkpoint and returns its LSN.
func (c *Client) Checkpoint(ctx context.Context) (uint64, error) {
	var out struct {
		LSN uint64 `json:"lsn"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/checkpoint", nil, &out); err != nil {
		return 0, err
	}
	return out.LSN, nil
}

// Health returns nil when the node is ready.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := gojson.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && gojson.Unmarshal(data, &er) == nil {
			apiErr.Code = er.Error
			apiErr.Message = er.Message
		}
		if apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := gojson.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
