package webdriver

// PointerStep is one entry of a pointer action sequence.
type PointerStep struct {
	Type     string `json:"type"`
	Duration int    `json:"duration,omitempty"`
	Origin   any    `json:"origin,omitempty"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Button   int    `json:"button"`
}

// PointerClick builds move, down and up steps for a click at (dx, dy) from
// the centre of el.
func PointerClick(el *Element, dx, dy int) []PointerStep {
	return []PointerStep{
		{Type: "pointerMove", Origin: el.Ref(), X: dx, Y: dy, Duration: 50},
		{Type: "pointerDown"},
		{Type: "pause", Duration: 40},
		{Type: "pointerUp"},
	}
}
