// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package engine is a client for the recon-ng REST API.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Client defaults.
const (
	DefaultTimeout = 10 * time.Second
	DefaultBackoff = 100 * time.Millisecond

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 8 << 20
)

// Call outcomes passed to an Observer.
const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeInvalid     = "invalid"
)

// Observer is told the outcome of every call.
type Observer func(operation, outcome string)

// Config configures a Client.
type Config struct {
	// BaseURL is the engine root, e.g. http://127.0.0.1:5000.
	BaseURL string
	// APIKey is sent as X-API-Key when set.
	APIKey string
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Retries is the number of extra attempts after a network error or 5xx.
	Retries uint64
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
	// HTTPClient overrides the transport. Optional.
	HTTPClient *http.Client
	// Observer records call outcomes. Optional.
	Observer Observer
}

// Client talks JSON to the engine. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	apiKey   string
	timeout  time.Duration
	retries  uint64
	backoff  time.Duration
	http     *http.Client
	observer Observer
}

// NewClient validates cfg and creates a Client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, oops.Code("ENGINE_INVALID_CONFIG").
			With("base_url", cfg.BaseURL).
			Errorf("engine url must be an absolute http(s) url")
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	c := &Client{
		base:     base,
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
		retries:  cfg.Retries,
		backoff:  cfg.Backoff,
		http:     cfg.HTTPClient,
		observer: cfg.Observer,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.backoff <= 0 {
		c.backoff = DefaultBackoff
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.observer == nil {
		c.observer = func(string, string) {}
	}
	return c, nil
}

// APIKeys lists the engine's API keys.
func (c *Client) APIKeys(ctx context.Context) ([]APIKey, error) {
	var keys []APIKey
	if err := c.call(ctx, "api_keys", http.MethodGet, "/api/keys", nil, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// AddAPIKey creates or replaces a key.
func (c *Client) AddAPIKey(ctx context.Context, name, value string) error {
	body := struct {
		Value string `json:"value"`
	}{value}
	return c.call(ctx, "add_api_key", http.MethodPut, "/api/keys/"+url.PathEscape(name), body, nil)
}

// RemoveAPIKey deletes a key.
func (c *Client) RemoveAPIKey(ctx context.Context, name string) error {
	return c.call(ctx, "remove_api_key", http.MethodDelete, "/api/keys/"+url.PathEscape(name), nil, nil)
}

// ModulesIndex returns the marketplace index in the order the engine sent it.
func (c *Client) ModulesIndex(ctx context.Context) ([]Module, error) {
	var modules []Module
	if err := c.call(ctx, "modules_index", http.MethodGet, "/api/marketplace/index", nil, &modules); err != nil {
		return nil, err
	}
	return modules, nil
}

// Reload makes the engine refresh its marketplace and module state.
func (c *Client) Reload(ctx context.Context) error {
	return c.call(ctx, "reload", http.MethodPost, "/api/marketplace/refresh", nil, nil)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("engine responded %d", e.StatusCode)
	}
	return fmt.Sprintf("engine responded %d: %s", e.StatusCode, e.Body)
}

func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			c.observer(op, OutcomeInvalid)
			return oops.Code("ENGINE_ENCODE_FAILED").With("operation", op).Wrap(err)
		}
	}

	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.attempt(ctx, method, path, payload, out)
	})

	c.observer(op, outcome(err))
	if err == nil {
		return nil
	}

	var se *StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode < 500:
		return oops.Code("ENGINE_REQUEST_REJECTED").
			With("operation", op).
			With("status", se.StatusCode).
			Wrap(err)
	case errors.Is(err, errDecode):
		return oops.Code("ENGINE_DECODE_FAILED").With("operation", op).Wrap(err)
	default:
		return oops.Code("ENGINE_UNAVAILABLE").With("operation", op).Wrap(err)
	}
}

var errDecode = errors.New("malformed engine response")

// attempt performs one request. Errors worth retrying are marked with
// retry.RetryableError.
func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	limited := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(limited, 512))
		se := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		if resp.StatusCode >= 500 {
			return retry.RetryableError(se)
		}
		return se
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, limited)
		return nil
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", errDecode, err)
	}
	return nil
}

func outcome(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &se) && se.StatusCode < 500:
		return OutcomeRejected
	case errors.Is(err, errDecode):
		return OutcomeInvalid
	default:
		return OutcomeUnavailable
	}
}
