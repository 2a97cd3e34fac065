package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"matchpoint/internal/config"
	"matchpoint/internal/errors"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client is a typed REST client for one resource collection on the job-board
// backend, e.g. job postings or saved searches. The CRUD screens consume it;
// the reconciliation flow never does. It shares the analysis client's
// transport conventions: JSON bodies, X-API-Key auth, otel-instrumented
// round-trips.
type Client[T any] struct {
	baseURL    string
	resource   string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *errors.Logger
}

// Page is one page of a resource listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"totalElements"`
}

// NewClient creates a CRUD client for the named resource collection.
func NewClient[T any](cfg *config.Config, resource string, logger *errors.Logger) *Client[T] {
	timeout := cfg.Analysis.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client[T]{
		baseURL:  strings.TrimSuffix(cfg.Analysis.BaseURL, "/"),
		resource: strings.Trim(resource, "/"),
		apiKey:   cfg.Analysis.APIKey,
		timeout:  timeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// List fetches one page of the collection.
func (c *Client[T]) List(ctx context.Context, page, size int) (*Page[T], error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	body, err := c.do(ctx, http.MethodGet, c.collectionURL()+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result Page[T]
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewParseError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Cannot decode %s list response", c.resource), err)
	}
	return &result, nil
}

// Get fetches one item by id.
func (c *Client[T]) Get(ctx context.Context, id string) (*T, error) {
	body, err := c.do(ctx, http.MethodGet, c.itemURL(id), nil)
	if err != nil {
		return nil, err
	}
	return c.decodeItem(body)
}

// Create posts a new item and returns the stored representation.
func (c *Client[T]) Create(ctx context.Context, item *T) (*T, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Cannot encode %s payload", c.resource), err)
	}

	body, err := c.do(ctx, http.MethodPost, c.collectionURL(), payload)
	if err != nil {
		return nil, err
	}
	return c.decodeItem(body)
}

// Update replaces an item by id and returns the stored representation.
func (c *Client[T]) Update(ctx context.Context, id string, item *T) (*T, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Cannot encode %s payload", c.resource), err)
	}

	body, err := c.do(ctx, http.MethodPut, c.itemURL(id), payload)
	if err != nil {
		return nil, err
	}
	return c.decodeItem(body)
}

// Delete removes an item by id.
func (c *Client[T]) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.itemURL(id), nil)
	return err
}

// Close releases idle connections.
func (c *Client[T]) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client[T]) collectionURL() string {
	return c.baseURL + "/" + c.resource
}

func (c *Client[T]) itemURL(id string) string {
	return c.collectionURL() + "/" + url.PathEscape(id)
}

func (c *Client[T]) decodeItem(body []byte) (*T, error) {
	var item T
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, errors.NewParseError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Cannot decode %s response", c.resource), err)
	}
	return &item, nil
}

// do performs a single round-trip within the client timeout.
func (c *Client[T]) do(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(callCtx, method, rawURL, bodyReader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
			fmt.Sprintf("Request to %s failed", c.resource), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeNetworkTimeout,
			fmt.Sprintf("Cannot read %s response", c.resource), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Resource request failed",
			"resource", c.resource,
			"method", method,
			"status", resp.StatusCode)
		return nil, errors.NewNetworkError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s request returned %d", c.resource, resp.StatusCode), nil).
			WithContext("status", resp.StatusCode).
			WithContext("method", method)
	}

	return body, nil
}
