package viewer

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
)

const (
	MinScale  = 0.5
	MaxScale  = 3.0
	ScaleStep = 0.25
)

// Point is a pan offset in pixels.
type Point struct {
	X, Y float64
}

// State is the image viewer's zoom, rotation and pan.
type State struct {
	Scale      float64
	Rotation   int
	Offset     Point
	Dragging   bool
	Fullscreen bool

	dragStart  Point
	dragOrigin Point
}

// New returns the reset state.
func New() State {
	return State{Scale: 1}
}

func (s *State) ZoomIn() {
	s.Scale = clamp(s.Scale + ScaleStep)
}

func (s *State) ZoomOut() {
	s.Scale = clamp(s.Scale - ScaleStep)
}

// Wheel zooms in for upward scrolls and out otherwise.
func (s *State) Wheel(deltaY float64) {
	if deltaY < 0 {
		s.ZoomIn()
		return
	}
	s.ZoomOut()
}

// Rotate turns the image 90 degrees clockwise.
func (s *State) Rotate() {
	s.Rotation = (s.Rotation + 90) % 360
}

// StartDrag begins panning at pointer p. Panning is only possible while
// zoomed in.
func (s *State) StartDrag(p Point) bool {
	if s.Scale <= 1 {
		return false
	}
	s.Dragging = true
	s.dragStart = p
	s.dragOrigin = s.Offset
	return true
}

// Drag moves the image with the pointer.
func (s *State) Drag(p Point) {
	if !s.Dragging {
		return
	}
	s.Offset = Point{
		X: s.dragOrigin.X + p.X - s.dragStart.X,
		Y: s.dragOrigin.Y + p.Y - s.dragStart.Y,
	}
}

func (s *State) EndDrag() {
	s.Dragging = false
}

// Reset restores scale 1, no rotation and no offset. Fullscreen is kept.
func (s *State) Reset() {
	fs := s.Fullscreen
	*s = New()
	s.Fullscreen = fs
}

// ToggleFullscreen flips fullscreen without touching zoom or rotation.
func (s *State) ToggleFullscreen() {
	s.Fullscreen = !s.Fullscreen
}

// ZoomPercent is the zoom shown in the toolbar.
func (s State) ZoomPercent() int {
	return int(s.Scale*100 + 0.5)
}

// Transform is the CSS transform for the image element.
func (s State) Transform() string {
	return fmt.Sprintf("translate(%gpx, %gpx) scale(%g) rotate(%ddeg)", s.Offset.X, s.Offset.Y, s.Scale, s.Rotation)
}

// Apply runs a toolbar action by name and reports whether it was known.
func (s *State) Apply(action string) bool {
	switch action {
	case "zoom_in":
		s.ZoomIn()
	case "zoom_out":
		s.ZoomOut()
	case "rotate":
		s.Rotate()
	case "reset":
		s.Reset()
	case "fullscreen":
		s.ToggleFullscreen()
	default:
		return false
	}
	return true
}

// Parse reads state from the zoom, rot, x, y and fs query parameters, for
// the no-script viewer links. Invalid values fall back to the reset state.
func Parse(v url.Values) State {
	s := New()
	if f, ok := parseFinite(v.Get("zoom")); ok {
		s.Scale = clamp(f)
	}
	if r, err := strconv.Atoi(v.Get("rot")); err == nil && r >= 0 && r%90 == 0 {
		s.Rotation = r % 360
	}
	if s.Scale > 1 {
		s.Offset.X, _ = parseFinite(v.Get("x"))
		s.Offset.Y, _ = parseFinite(v.Get("y"))
	}
	s.Fullscreen = v.Get("fs") == "1"
	return s
}

// Query encodes the state for a link.
func (s State) Query() url.Values {
	v := url.Values{}
	v.Set("zoom", strconv.FormatFloat(s.Scale, 'f', -1, 64))
	v.Set("rot", strconv.Itoa(s.Rotation))
	if s.Offset != (Point{}) {
		v.Set("x", strconv.FormatFloat(s.Offset.X, 'f', -1, 64))
		v.Set("y", strconv.FormatFloat(s.Offset.Y, 'f', -1, 64))
	}
	if s.Fullscreen {
		v.Set("fs", "1")
	}
	return v
}

// Link returns the query string after applying action to a copy of s.
func (s State) Link(action string) string {
	next := s
	next.Apply(action)
	return next.Query().Encode()
}

// parseFinite rejects NaN and infinities, which ParseFloat accepts and which
// no comparison can clamp.
func parseFinite(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clamp(scale float64) float64 {
	if scale < MinScale {
		return MinScale
	}
	if scale > MaxScale {
		return MaxScale
	}
	return scale
}
