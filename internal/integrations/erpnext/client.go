// Package erpnext adapts an ERPNext (Frappe) site to the sales document store
// and catalog pricer through its REST resource API.
package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the site answers 404 for a resource.
var ErrNotFound = errors.New("erpnext: resource not found")

// Config addresses an ERPNext site. API key and secret come from the user's
// API access settings.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	PriceList string
	Timeout   time.Duration
}

// APIError is a non-2xx answer from the site.
type APIError struct {
	Status  int
	ExcType string
	Message string
}

func (e *APIError) Error() string {
	if e.ExcType != "" {
		return fmt.Sprintf("erpnext: %d %s: %s", e.Status, e.ExcType, e.Message)
	}
	return fmt.Sprintf("erpnext: %d: %s", e.Status, e.Message)
}

// Client performs authenticated resource calls.
type Client struct {
	base      *url.URL
	token     string
	priceList string
	http      *http.Client
	logger    *slog.Logger
}

// NewClient validates the config and builds a client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("erpnext: base url required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("erpnext: parse base url: %w", err)
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("erpnext: api key and secret required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	priceList := cfg.PriceList
	if priceList == "" {
		priceList = "Standard Selling"
	}
	return &Client{
		base:      base,
		token:     "token " + cfg.APIKey + ":" + cfg.APISecret,
		priceList: priceList,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

// envelope is the {"data": ...} wrapper of every resource response.
type envelope[T any] struct {
	Data T `json:"data"`
}

// Ping checks that the site is reachable and the API token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Message string `json:"message"`
	}
	target := c.base.JoinPath("api", "method", "frappe.auth.get_logged_user").String()
	return c.do(ctx, http.MethodGet, target, nil, &out)
}

func (c *Client) getResource(ctx context.Context, doctype, name string, out any) error {
	return c.do(ctx, http.MethodGet, c.resourceURL(doctype, name, nil), nil, out)
}

func (c *Client) listResource(ctx context.Context, doctype string, filters [][]any, fields []string, limit int, out any) error {
	q := url.Values{}
	if len(filters) > 0 {
		raw, err := json.Marshal(filters)
		if err != nil {
			return err
		}
		q.Set("filters", string(raw))
	}
	if len(fields) > 0 {
		raw, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		q.Set("fields", string(raw))
	}
	if limit > 0 {
		q.Set("limit_page_length", strconv.Itoa(limit))
	} else {
		q.Set("limit_page_length", "0")
	}
	return c.do(ctx, http.MethodGet, c.resourceURL(doctype, "", q), nil, out)
}

func (c *Client) insertResource(ctx context.Context, doctype string, body, out any) error {
	return c.do(ctx, http.MethodPost, c.resourceURL(doctype, "", nil), body, out)
}

func (c *Client) updateResource(ctx context.Context, doctype, name string, body, out any) error {
	return c.do(ctx, http.MethodPut, c.resourceURL(doctype, name, nil), body, out)
}

func (c *Client) resourceURL(doctype, name string, q url.Values) string {
	parts := []string{"api", "resource", doctype}
	if name != "" {
		parts = append(parts, name)
	}
	u := c.base.JoinPath(parts...)
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("erpnext: encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("erpnext: build request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("erpnext: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("erpnext request",
		slog.String("method", method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("erpnext: decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		ExcType   string `json:"exc_type"`
		Exception string `json:"exception"`
		Message   string `json:"message"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.ExcType = payload.ExcType
		apiErr.Message = payload.Exception
		if apiErr.Message == "" {
			apiErr.Message = payload.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
