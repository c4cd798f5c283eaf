// Package httpstore implements remote.Store over the gridsync batch API.
//
// Endpoints, relative to the base URL:
//
//	GET    /{dataset}/batch-read     -> {"data":[row...]}
//	POST   /{dataset}/batch-create   [fields...] -> {"data":[row...]}
//	PUT    /{dataset}/batch-update   [row...]    -> {"data":[row...]}
//	DELETE /{dataset}/batch-delete   [id...]     -> {"data":null}
//
// Non-2xx responses are returned as *StatusError.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/row"
)

// DefaultTimeout bounds a single batch call when no HTTP client is given.
const DefaultTimeout = 30 * time.Second

// TokenFunc returns a bearer token for the next request.
type TokenFunc func(ctx context.Context) (string, error)

// Client is a remote.Store backed by the batch API.
//
// Thread-safety: Client holds no mutable state and is safe for concurrent use.
type Client struct {
	baseURL string
	dataset string
	codec   remote.Codec
	http    *http.Client
	token   TokenFunc
	logger  *slog.Logger
}

var _ remote.Store = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sets a bearer token source.
func WithToken(fn TokenFunc) Option {
	return func(c *Client) {
		c.token = fn
	}
}

// WithStaticToken sends the same bearer token on every request.
func WithStaticToken(token string) Option {
	return func(c *Client) {
		c.token = func(context.Context) (string, error) { return token, nil }
	}
}

// WithIDField sets the JSON field carrying row identifiers. Default: "id".
func WithIDField(field string) Option {
	return func(c *Client) {
		c.codec.IDField = field
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for one dataset served at baseURL.
func New(baseURL, dataset string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		dataset: dataset,
		codec:   remote.Codec{IDField: "id"},
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadAll implements remote.Store.
func (c *Client) ReadAll(ctx context.Context) ([]row.Row, error) {
	data, err := c.do(ctx, http.MethodGet, "batch-read", nil)
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return []row.Row{}, nil
	}
	rows, err := c.codec.UnmarshalRows(data)
	if err != nil {
		return nil, fmt.Errorf("batch-read: %w", err)
	}
	return rows, nil
}

// CreateMany implements remote.Store.
func (c *Client) CreateMany(ctx context.Context, fields []row.Fields) ([]row.Row, error) {
	body, err := c.codec.MarshalFields(fields)
	if err != nil {
		return nil, fmt.Errorf("batch-create: %w", err)
	}
	data, err := c.do(ctx, http.MethodPost, "batch-create", body)
	if err != nil {
		return nil, err
	}
	rows, err := c.decodeRows("batch-create", data, len(fields))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateMany implements remote.Store.
func (c *Client) UpdateMany(ctx context.Context, rows []row.Row) ([]row.Row, error) {
	body, err := c.codec.MarshalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("batch-update: %w", err)
	}
	data, err := c.do(ctx, http.MethodPut, "batch-update", body)
	if err != nil {
		return nil, err
	}
	return c.decodeRows("batch-update", data, len(rows))
}

// DeleteMany implements remote.Store.
func (c *Client) DeleteMany(ctx context.Context, ids []row.ID) error {
	body, err := c.codec.MarshalIDs(ids)
	if err != nil {
		return fmt.Errorf("batch-delete: %w", err)
	}
	_, err = c.do(ctx, http.MethodDelete, "batch-delete", body)
	return err
}

func (c *Client) decodeRows(endpoint string, data json.RawMessage, want int) ([]row.Row, error) {
	if isNull(data) {
		return nil, fmt.Errorf("%s: response carried no rows", endpoint)
	}
	rows, err := c.codec.UnmarshalRows(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	if len(rows) != want {
		return nil, fmt.Errorf("%s: got %d rows for a batch of %d", endpoint, len(rows), want)
	}
	return rows, nil
}

// do sends one request and returns the envelope's data member.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, error) {
	url := c.baseURL + "/" + c.dataset + "/" + endpoint

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: get token: %w", endpoint, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: send request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("batch call",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, newStatusError(endpoint, resp.StatusCode, raw)
	}

	var env remote.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return env.Data, nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
