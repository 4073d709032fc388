// Package apiclient talks to the REST backend on behalf of a logged in user.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Kellerman81/go_business_admin/apperrors"
	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// RequestedWithHeader marks a call as script issued. The backend answers
// such calls with JSON instead of redirects.
const RequestedWithHeader = "X-Requested-With"

// Config holds configuration for a backend client.
type Config struct {
	// Name is used in logs.
	Name string
	// BaseURL is prepended to every endpoint, e.g. http://backend:8000/api
	BaseURL   string
	UserAgent string
	// Transport overrides the pooled default transport.
	Transport http.RoundTripper
}

// Client performs single attempt JSON calls. It sets no timeout of its own;
// callers bound a call through the context.
type Client struct {
	config     Config
	httpClient *http.Client
	token      string
}

// New creates a client without credentials.
func New(cfg Config) *Client {
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	if cfg.Name == "" {
		cfg.Name = "backend"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Transport: transport},
	}
}

// WithToken returns a copy of the client sending token as bearer credential.
// The underlying connection pool is shared.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the bearer token of this client.
func (c *Client) Token() string {
	return c.token
}

// errorBody is the error envelope of the backend. FastAPI style answers
// use detail, the rest use error.
type errorBody struct {
	Error   string `json:"error"`
	Detail  any    `json:"detail"`
	Message string `json:"message"`
}

func (e errorBody) message() string {
	if e.Error != "" {
		return e.Error
	}
	if s, ok := e.Detail.(string); ok && s != "" {
		return s
	}
	return e.Message
}

// Fetch sends body as JSON to endpoint and decodes a successful answer into target.
// A 401 answer is returned as a SESSION error, which ends the page.
// Any other non 2xx answer is a BACKEND error carrying the backend message,
// a transport failure is a NETWORK error. Nothing is retried.
func (c *Client) Fetch(ctx context.Context, method, endpoint string, body, target any) error {
	operation := method + " " + endpoint

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrClassParsing, operation, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, reader)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrClassNetwork, operation, errors.Wrap(err, "failed to create request"))
	}
	req.Header.Set(RequestedWithHeader, "XMLHttpRequest")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Logtype(logger.StatusWarning, 0).
			Str("client", c.config.Name).
			Str("operation", operation).
			Err(err).
			Msg("Backend request failed")
		return apperrors.Wrap(apperrors.ErrClassNetwork, operation, errors.Wrap(err, "request failed"))
	}
	defer resp.Body.Close()

	logger.Logtype(logger.StatusDebug, 0).
		Str("client", c.config.Name).
		Str("operation", operation).
		Int("status_code", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return apperrors.NewSessionExpired(operation)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrClassNetwork, operation, errors.Wrap(err, "failed to read response"))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("Request failed (HTTP %d)", resp.StatusCode)
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.message() != "" {
			msg = eb.message()
		}
		cerr := apperrors.New(apperrors.ErrClassBackend, operation, msg)
		cerr.Status = resp.StatusCode
		return cerr
	}

	if target == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return apperrors.Wrap(apperrors.ErrClassParsing, operation, errors.Wrap(err, "failed to decode response"))
	}
	return nil
}

// Get fetches endpoint without a body.
func (c *Client) Get(ctx context.Context, endpoint string, target any) error {
	return c.Fetch(ctx, http.MethodGet, endpoint, nil, target)
}

// Post sends body with POST.
func (c *Client) Post(ctx context.Context, endpoint string, body, target any) error {
	return c.Fetch(ctx, http.MethodPost, endpoint, body, target)
}

// Put sends body with PUT.
func (c *Client) Put(ctx context.Context, endpoint string, body, target any) error {
	return c.Fetch(ctx, http.MethodPut, endpoint, body, target)
}
