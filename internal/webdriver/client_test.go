package webdriver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
}

type fakeDriver struct {
	mu       sync.Mutex
	requests []recorded
	handle   func(method, path string, body map[string]any) (int, any)
}

func (f *fakeDriver) serve(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	path := string(ctx.Path())
	var body map[string]any
	if len(ctx.PostBody()) > 0 {
		_ = json.Unmarshal(ctx.PostBody(), &body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, recorded{Method: method, Path: path, Body: body})
	f.mu.Unlock()

	status, value := f.handle(method, path, body)
	payload, _ := json.Marshal(map[string]any{"value": value})
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(payload)
}

func (f *fakeDriver) calls() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func newTestClient(t *testing.T, handle func(method, path string, body map[string]any) (int, any), opts ...Option) (*Client, *fakeDriver) {
	t.Helper()
	fd := &fakeDriver{handle: handle}
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: fd.serve}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	opts = append([]Option{
		WithDialer(func(string) (net.Conn, error) { return ln.Dial() }),
		WithTimeout(2 * time.Second),
	}, opts...)
	return NewClient("http://webdriver", opts...), fd
}

func ref(id string) map[string]string { return map[string]string{elementKey: id} }

func TestSessionLifecycle(t *testing.T) {
	c, fd := newTestClient(t, func(method, path string, body map[string]any) (int, any) {
		switch {
		case path == "/session" && method == "POST":
			return 200, map[string]any{"sessionId": "abc", "capabilities": map[string]any{}}
		case path == "/session/abc/element":
			return 200, ref("el-1")
		case path == "/session/abc/element/el-1/attribute/class":
			return 200, "piece wp square-52"
		case path == "/session/abc/element/el-1/attribute/missing":
			return 200, nil
		case path == "/session/abc/element/el-1/rect":
			return 200, map[string]any{"x": 10, "y": 20, "width": 640, "height": 640}
		case path == "/session/abc/elements":
			return 200, []any{ref("a"), ref("b")}
		default:
			return 200, nil
		}
	})
	ctx := context.Background()

	s, err := c.NewSession(ctx, ChromeCapabilities("--headless=new"))
	require.NoError(t, err)
	require.Equal(t, "abc", s.ID())

	require.NoError(t, s.Navigate(ctx, "https://www.chess.com/play/online"))

	el, err := s.FindElement(ctx, "#board-single")
	require.NoError(t, err)
	require.Equal(t, "el-1", el.ID)

	v, ok, err := el.Attribute(ctx, "class")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "piece wp square-52", v)

	_, ok, err = el.Attribute(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	r, err := el.Rect(ctx)
	require.NoError(t, err)
	require.Equal(t, 640.0, r.Width)

	els, err := s.FindElements(ctx, ".piece")
	require.NoError(t, err)
	require.Len(t, els, 2)

	require.NoError(t, el.SendKeys(ctx, "hunter2"))
	require.NoError(t, el.Click(ctx))
	require.NoError(t, s.Delete(ctx))
	require.NoError(t, s.Delete(ctx))

	calls := fd.calls()
	first := calls[0]
	caps := first.Body["capabilities"].(map[string]any)["alwaysMatch"].(map[string]any)
	require.Equal(t, "chrome", caps["browserName"])

	var deletes int
	for _, call := range calls {
		if call.Method == "DELETE" && call.Path == "/session/abc" {
			deletes++
		}
		if call.Path == "/session/abc/url" {
			require.Equal(t, "https://www.chess.com/play/online", call.Body["url"])
		}
		if call.Path == "/session/abc/element" {
			require.Equal(t, "css selector", call.Body["using"])
		}
	}
	require.Equal(t, 1, deletes)
}

func TestNoSuchElement(t *testing.T) {
	c, _ := newTestClient(t, func(method, path string, body map[string]any) (int, any) {
		if path == "/session" {
			return 200, map[string]any{"sessionId": "s"}
		}
		return 404, map[string]any{"error": "no such element", "message": "Unable to locate element"}
	})
	s, err := c.NewSession(context.Background(), ChromeCapabilities())
	require.NoError(t, err)

	_, err = s.FindElement(context.Background(), ".missing")
	require.ErrorIs(t, err, ErrNoSuchElement)
	var werr *Error
	require.True(t, errors.As(err, &werr))
	require.Equal(t, 404, werr.Status)
}

func TestScriptError(t *testing.T) {
	c, _ := newTestClient(t, func(method, path string, body map[string]any) (int, any) {
		if path == "/session" {
			return 200, map[string]any{"sessionId": "s"}
		}
		return 500, map[string]any{"error": "javascript error", "message": "boom"}
	})
	s, err := c.NewSession(context.Background(), ChromeCapabilities())
	require.NoError(t, err)

	err = s.ExecuteScript(context.Background(), "return 1", nil, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoSuchElement)
	require.Contains(t, err.Error(), "javascript error")
}

func TestRetriesUnavailable(t *testing.T) {
	var n int
	var mu sync.Mutex
	c, _ := newTestClient(t, func(method, path string, body map[string]any) (int, any) {
		if path == "/session" {
			return 200, map[string]any{"sessionId": "s"}
		}
		mu.Lock()
		defer mu.Unlock()
		n++
		if n < 3 {
			return 503, map[string]any{"error": "unknown error", "message": "busy"}
		}
		return 200, []any{ref("x")}
	})
	s, err := c.NewSession(context.Background(), ChromeCapabilities())
	require.NoError(t, err)

	els, err := s.FindElements(context.Background(), ".x")
	require.NoError(t, err)
	require.Len(t, els, 1)
	require.Equal(t, 3, n)
}

func TestRetryDisabled(t *testing.T) {
	var n int
	var mu sync.Mutex
	c, _ := newTestClient(t, func(method, path string, body map[string]any) (int, any) {
		if path == "/session" {
			return 200, map[string]any{"sessionId": "s"}
		}
		mu.Lock()
		defer mu.Unlock()
		n++
		return 503, map[string]any{"error": "unknown error", "message": "busy"}
	}, WithRetry(1))
	s, err := c.NewSession(context.Background(), ChromeCapabilities())
	require.NoError(t, err)

	_, err = s.CurrentURL(context.Background())
	var wdErr *Error
	require.ErrorAs(t, err, &wdErr)
	require.Equal(t, 503, wdErr.Status)
	require.Equal(t, 1, n)
}

func TestCurrentURL(t *testing.T) {
	c, _ := newTestClient(t, func(method, path string, body map[string]any) (int, any) {
		switch {
		case path == "/session":
			return 200, map[string]any{"sessionId": "s"}
		case path == "/session/s/url" && method == "GET":
			return 200, "https://www.chess.com/play/online"
		}
		return 404, map[string]any{"error": "unknown command"}
	})
	s, err := c.NewSession(context.Background(), ChromeCapabilities())
	require.NoError(t, err)

	u, err := s.CurrentURL(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://www.chess.com/play/online", u)
}

func TestExecuteScriptAndActions(t *testing.T) {
	c, fd := newTestClient(t, func(method, path string, body map[string]any) (int, any) {
		switch path {
		case "/session":
			return 200, map[string]any{"sessionId": "s"}
		case "/session/s/execute/sync":
			return 200, []string{"piece wp square-52"}
		default:
			return 200, nil
		}
	})
	ctx := context.Background()
	s, err := c.NewSession(ctx, ChromeCapabilities())
	require.NoError(t, err)

	var classes []string
	require.NoError(t, s.ExecuteScript(ctx, "return []", nil, &classes))
	require.Equal(t, []string{"piece wp square-52"}, classes)

	el := &Element{s: s, ID: "board"}
	require.NoError(t, s.ClickAt(ctx, el, -35, 105))

	var sawActions, sawRelease bool
	for _, call := range fd.calls() {
		if call.Path != "/session/s/actions" {
			continue
		}
		if call.Method == "DELETE" {
			sawRelease = true
			continue
		}
		sawActions = true
		src := call.Body["actions"].([]any)[0].(map[string]any)
		steps := src["actions"].([]any)
		move := steps[0].(map[string]any)
		require.Equal(t, "pointerMove", move["type"])
		require.Equal(t, float64(-35), move["x"])
		require.Equal(t, float64(105), move["y"])
		require.Equal(t, "board", move["origin"].(map[string]any)[elementKey])
	}
	require.True(t, sawActions)
	require.True(t, sawRelease)
}

func TestWaitReady(t *testing.T) {
	var n int
	var mu sync.Mutex
	c, _ := newTestClient(t, func(method, path string, body map[string]any) (int, any) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return 200, map[string]any{"ready": n >= 2, "message": "ok"}
	})
	require.NoError(t, c.WaitReady(context.Background(), 5, 10*time.Millisecond))

	never, _ := newTestClient(t, func(method, path string, body map[string]any) (int, any) {
		return 200, map[string]any{"ready": false}
	})
	err := never.WaitReady(context.Background(), 2, time.Millisecond)
	require.ErrorIs(t, err, ErrNotReady)
}

func TestStartDriverRequiresPath(t *testing.T) {
	_, err := StartDriver(context.Background(), "", 9515, NewClient("http://127.0.0.1:1"), nil)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "empty"))
}
