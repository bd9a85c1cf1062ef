// Package webdriver is a small W3C WebDriver client over fasthttp.
package webdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var (
	// ErrNoSuchElement marks a lookup that completed but matched nothing.
	ErrNoSuchElement = errors.New("webdriver: no such element")
	ErrNotReady      = errors.New("webdriver: driver not ready")
)

// Error is a WebDriver error reply.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("webdriver error: status=%d code=%q message=%s", e.Status, e.Code, truncate(e.Message, 256))
}

func (e *Error) Is(target error) bool {
	return target == ErrNoSuchElement && e.Code == "no such element"
}

type Client struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDialer replaces the TCP dialer, e.g. with an in-memory listener.
func WithDialer(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		logger:         zap.NewNop(),
		defaultTimeout: 30 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type statusValue struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// Status reports whether the driver accepts new sessions.
func (c *Client) Status(ctx context.Context) (bool, error) {
	var st statusValue
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/status", nil, &st, false); err != nil {
		return false, err
	}
	return st.Ready, nil
}

// WaitReady polls Status until it reports ready.
func (c *Client) WaitReady(ctx context.Context, attempts int, interval time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		ready, err := c.Status(ctx)
		if err == nil && ready {
			return nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		if err := sleepWithContext(ctx, interval); err != nil {
			return err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, lastErr)
	}
	return ErrNotReady
}

// Capabilities is the alwaysMatch block of a new session request.
type Capabilities map[string]any

// ChromeCapabilities requests Chrome with the given command-line switches.
func ChromeCapabilities(args ...string) Capabilities {
	caps := Capabilities{"browserName": "chrome"}
	if len(args) > 0 {
		caps["goog:chromeOptions"] = map[string]any{"args": args}
	}
	return caps
}

type newSessionValue struct {
	SessionID string `json:"sessionId"`
}

func (c *Client) NewSession(ctx context.Context, caps Capabilities) (*Session, error) {
	req := map[string]any{"capabilities": map[string]any{"alwaysMatch": caps}}
	var v newSessionValue
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/session", req, &v, false); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if v.SessionID == "" {
		return nil, errors.New("new session: empty session id")
	}
	c.logger.Info("webdriver_session", zap.String("session_id", v.SessionID))
	return &Session{c: c, id: v.SessionID}, nil
}

type envelope struct {
	Value json.RawMessage `json:"value"`
}

type errorValue struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	} else if method == fasthttp.MethodPost {
		req.SetBodyString("{}")
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			werr := decodeError(status, resp.Body())
			if !shouldRetryStatus(status) {
				return werr
			}
			lastErr = werr
		} else {
			if out == nil {
				return nil
			}
			var env envelope
			if err := json.Unmarshal(resp.Body(), &env); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if len(env.Value) == 0 {
				return nil
			}
			if err := json.Unmarshal(env.Value, out); err != nil {
				return fmt.Errorf("decode value: %w", err)
			}
			return nil
		}

		if attempt == attempts {
			break
		}
		c.logger.Debug("webdriver_retry", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(lastErr))
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func decodeError(status int, body []byte) error {
	var env struct {
		Value errorValue `json:"value"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Value.Error == "" {
		return &Error{Status: status, Message: string(body)}
	}
	return &Error{Status: status, Code: env.Value.Error, Message: env.Value.Message}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
