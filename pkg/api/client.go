// Package api is the storefront's single gateway to the remote marketplace
// API. One Client holds the process-wide bearer credential: the session
// store arms it on login or restore and disarms it on logout, and every call
// made while it is armed carries it.
//
// The client never retries, caches or queues. Failures come back as one of
// *AuthError, *NotFoundError, *ValidationError, *NetworkError or
// *StatusError, and a failed call leaves no state behind.
package api

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
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/handicraft/storefront/pkg/logger"
	"github.com/handicraft/storefront/pkg/requestid"
)

// DefaultBaseURL is the hosted marketplace backend.
const DefaultBaseURL = "https://handicraft-backend-azwn.onrender.com/api"

const maxResponseBytes = 8 << 20

// Client calls the remote API. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger

	mu    sync.RWMutex
	token *oauth2.Token
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is still
// wrapped to add request ids.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			clone := *c
			cl.http = &clone
		}
	}
}

// WithTimeout bounds every call. Without it there is no client-side timeout
// and the caller's context is the only cancellation point.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
	}
}

func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// New creates a client for baseURL, e.g. "https://shop.example.com/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Join(ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		base:      u,
		http:      &http.Client{},
		userAgent: "handicraft-storefront/1.0",
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.http.Timeout = c.timeout
	}
	c.http.Transport = requestid.NewTransport(c.http.Transport)
	c.logger = c.logger.With(logger.Component("api"))
	return c, nil
}

// Arm sets the bearer credential attached to every later call.
func (c *Client) Arm(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
}

// Disarm clears the credential.
func (c *Client) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}

// Armed reports whether a credential is set.
func (c *Client) Armed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != nil
}

func (c *Client) BaseURL() string {
	return c.base.String()
}

// envelope is the common response shape {success, data, message}.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, payload any) (request, error) {
	req := request{method: method, path: path}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return req, fmt.Errorf("failed to marshal request body: %w", err)
		}
		req.body = bytes.NewReader(b)
		req.contentType = "application/json"
	}
	return req, nil
}

// do performs the call and returns the raw body of a successful response.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	ctx, reqID := requestid.Ensure(ctx)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path), r.body)
	if err != nil {
		return nil, &NetworkError{Method: r.method, Path: r.path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	c.mu.RLock()
	if c.token != nil {
		c.token.SetAuthHeader(req)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "api call failed",
			logger.HTTPRequest(r.method, r.path, 0),
			logger.RequestID(reqID),
			logger.Duration(time.Since(start)),
			logger.Error(err),
		)
		return nil, &NetworkError{Method: r.method, Path: r.path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Method: r.method, Path: r.path, Err: err}
	}

	attrs := []any{
		logger.HTTPRequest(r.method, r.path, resp.StatusCode),
		logger.RequestID(reqID),
		logger.Duration(time.Since(start)),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		_ = json.Unmarshal(body, &env)
		err := classify(resp.StatusCode, r.path, env.Message, isAuthPath(r.path))
		c.logger.InfoContext(ctx, "api call rejected", append(attrs, logger.Error(err))...)
		return nil, err
	}

	c.logger.DebugContext(ctx, "api call", attrs...)
	return body, nil
}

// call performs r and decodes the envelope's data into out (if non-nil).
func (c *Client) call(ctx context.Context, r request, out any) error {
	body, err := c.do(ctx, r)
	if err != nil {
		return err
	}

	var env envelope
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			return &NetworkError{Method: r.method, Path: r.path, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	if env.Success != nil && !*env.Success {
		return classify(http.StatusOK, r.path, env.Message, isAuthPath(r.path))
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &NetworkError{Method: r.method, Path: r.path, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/auth/")
}

// escape builds a path from segments, escaping each id.
func escape(prefix string, ids ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, id := range ids {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(id))
	}
	return b.String()
}
