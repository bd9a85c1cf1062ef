package webdriver

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/valyala/fasthttp"
)

const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// Session is one browser session.
type Session struct {
	c  *Client
	id string

	deleteOnce sync.Once
	deleteErr  error
}

func (s *Session) ID() string { return s.id }

func (s *Session) path(suffix string) string {
	return "/session/" + url.PathEscape(s.id) + suffix
}

// Delete ends the session and closes the browser. Safe to call more than once.
func (s *Session) Delete(ctx context.Context) error {
	s.deleteOnce.Do(func() {
		s.deleteErr = s.c.doJSON(ctx, fasthttp.MethodDelete, s.path(""), nil, nil, false)
	})
	return s.deleteErr
}

func (s *Session) Navigate(ctx context.Context, target string) error {
	return s.c.doJSON(ctx, fasthttp.MethodPost, s.path("/url"), map[string]string{"url": target}, nil, false)
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := s.c.doJSON(ctx, fasthttp.MethodGet, s.path("/url"), nil, &u, true)
	return u, err
}

func (s *Session) FindElement(ctx context.Context, css string) (*Element, error) {
	return s.findOne(ctx, s.path("/element"), css)
}

func (s *Session) FindElements(ctx context.Context, css string) ([]*Element, error) {
	return s.findAll(ctx, s.path("/elements"), css)
}

// Exists reports whether css matches at least one element.
func (s *Session) Exists(ctx context.Context, css string) (bool, error) {
	els, err := s.FindElements(ctx, css)
	if err != nil {
		return false, err
	}
	return len(els) > 0, nil
}

// ExecuteScript runs a synchronous script and decodes its return value into out.
func (s *Session) ExecuteScript(ctx context.Context, script string, args []any, out any) error {
	if args == nil {
		args = []any{}
	}
	body := map[string]any{"script": script, "args": args}
	return s.c.doJSON(ctx, fasthttp.MethodPost, s.path("/execute/sync"), body, out, false)
}

// ClickAt moves the pointer to (dx, dy) relative to the centre of el and
// presses the primary button.
func (s *Session) ClickAt(ctx context.Context, el *Element, dx, dy int) error {
	return s.PerformActions(ctx, PointerClick(el, dx, dy))
}

// PerformActions dispatches one pointer input source, then releases it.
func (s *Session) PerformActions(ctx context.Context, steps []PointerStep) error {
	src := map[string]any{
		"type":       "pointer",
		"id":         "mouse",
		"parameters": map[string]string{"pointerType": "mouse"},
		"actions":    steps,
	}
	body := map[string]any{"actions": []any{src}}
	if err := s.c.doJSON(ctx, fasthttp.MethodPost, s.path("/actions"), body, nil, false); err != nil {
		return fmt.Errorf("perform actions: %w", err)
	}
	return s.c.doJSON(ctx, fasthttp.MethodDelete, s.path("/actions"), nil, nil, false)
}

func (s *Session) findOne(ctx context.Context, path, css string) (*Element, error) {
	var ref map[string]string
	if err := s.c.doJSON(ctx, fasthttp.MethodPost, path, locator(css), &ref, true); err != nil {
		return nil, fmt.Errorf("find %q: %w", css, err)
	}
	id := ref[elementKey]
	if id == "" {
		return nil, fmt.Errorf("find %q: %w", css, ErrNoSuchElement)
	}
	return &Element{s: s, ID: id}, nil
}

func (s *Session) findAll(ctx context.Context, path, css string) ([]*Element, error) {
	var refs []map[string]string
	if err := s.c.doJSON(ctx, fasthttp.MethodPost, path, locator(css), &refs, true); err != nil {
		return nil, fmt.Errorf("find all %q: %w", css, err)
	}
	out := make([]*Element, 0, len(refs))
	for _, ref := range refs {
		if id := ref[elementKey]; id != "" {
			out = append(out, &Element{s: s, ID: id})
		}
	}
	return out, nil
}

func locator(css string) map[string]string {
	return map[string]string{"using": "css selector", "value": css}
}
