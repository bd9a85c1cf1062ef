package webdriver

import (
	"context"
	"net/url"

	"github.com/valyala/fasthttp"
)

// Element is a reference to a DOM element within a Session.
type Element struct {
	s  *Session
	ID string
}

// Rect is an element's bounding box in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (e *Element) path(suffix string) string {
	return e.s.path("/element/" + url.PathEscape(e.ID) + suffix)
}

// Ref is the wire form used when an element is passed to a script or action.
func (e *Element) Ref() map[string]string {
	return map[string]string{elementKey: e.ID}
}

func (e *Element) FindElement(ctx context.Context, css string) (*Element, error) {
	return e.s.findOne(ctx, e.path("/element"), css)
}

func (e *Element) FindElements(ctx context.Context, css string) ([]*Element, error) {
	return e.s.findAll(ctx, e.path("/elements"), css)
}

// Attribute returns the attribute value; ok is false when it is absent.
func (e *Element) Attribute(ctx context.Context, name string) (value string, ok bool, err error) {
	var v *string
	if err := e.s.c.doJSON(ctx, fasthttp.MethodGet, e.path("/attribute/"+url.PathEscape(name)), nil, &v, true); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	return e.s.c.doJSON(ctx, fasthttp.MethodPost, e.path("/value"), map[string]string{"text": text}, nil, false)
}

func (e *Element) Click(ctx context.Context) error {
	return e.s.c.doJSON(ctx, fasthttp.MethodPost, e.path("/click"), nil, nil, false)
}

func (e *Element) Rect(ctx context.Context) (Rect, error) {
	var r Rect
	err := e.s.c.doJSON(ctx, fasthttp.MethodGet, e.path("/rect"), nil, &r, true)
	return r, err
}
