package viewer

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZoomIsClamped(t *testing.T) {
	s := New()
	for i := 0; i < 20; i++ {
		s.ZoomIn()
	}
	assert.Equal(t, MaxScale, s.Scale)
	for i := 0; i < 20; i++ {
		s.ZoomOut()
	}
	assert.Equal(t, MinScale, s.Scale)
}

func TestWheelDirection(t *testing.T) {
	s := New()
	s.Wheel(-100)
	assert.Equal(t, 1.25, s.Scale)
	s.Wheel(100)
	s.Wheel(0)
	assert.Equal(t, 0.75, s.Scale)
}

func TestRotateWraps(t *testing.T) {
	s := New()
	for _, want := range []int{90, 180, 270, 0} {
		s.Rotate()
		assert.Equal(t, want, s.Rotation)
	}
}

func TestDragRequiresZoom(t *testing.T) {
	s := New()
	assert.False(t, s.StartDrag(Point{10, 10}))
	s.Drag(Point{50, 50})
	assert.Equal(t, Point{}, s.Offset)

	s.ZoomIn()
	assert.True(t, s.StartDrag(Point{10, 10}))
	s.Drag(Point{30, 5})
	assert.Equal(t, Point{20, -5}, s.Offset)
	s.EndDrag()

	assert.True(t, s.StartDrag(Point{0, 0}))
	s.Drag(Point{5, 5})
	assert.Equal(t, Point{25, 0}, s.Offset)
}

func TestResetKeepsFullscreen(t *testing.T) {
	s := New()
	s.ZoomIn()
	s.Rotate()
	s.ToggleFullscreen()
	s.StartDrag(Point{})
	s.Drag(Point{3, 4})

	s.Reset()
	assert.Equal(t, 1.0, s.Scale)
	assert.Equal(t, 0, s.Rotation)
	assert.Equal(t, Point{}, s.Offset)
	assert.False(t, s.Dragging)
	assert.True(t, s.Fullscreen)
}

func TestToggleFullscreenOnlyFlipsFlag(t *testing.T) {
	s := New()
	s.ZoomIn()
	s.Rotate()
	s.ToggleFullscreen()
	assert.True(t, s.Fullscreen)
	assert.Equal(t, 1.25, s.Scale)
	assert.Equal(t, 90, s.Rotation)
}

func TestTransformAndPercent(t *testing.T) {
	s := New()
	s.ZoomIn()
	s.Rotate()
	assert.Equal(t, "translate(0px, 0px) scale(1.25) rotate(90deg)", s.Transform())
	assert.Equal(t, 125, s.ZoomPercent())
}

func TestParseQueryAndLinks(t *testing.T) {
	s := Parse(url.Values{"zoom": {"9"}, "rot": {"270"}, "x": {"4"}, "fs": {"1"}})
	assert.Equal(t, MaxScale, s.Scale)
	assert.Equal(t, 270, s.Rotation)
	assert.Equal(t, 4.0, s.Offset.X)
	assert.True(t, s.Fullscreen)

	bad := Parse(url.Values{"zoom": {"x"}, "rot": {"45"}, "x": {"4"}})
	assert.Equal(t, New(), bad)

	assert.Equal(t, "rot=0&zoom=1.25", New().Link("zoom_in"))
	s = New()
	assert.False(t, s.Apply("unknown"))
}

func TestParseIgnoresNonFiniteNumbers(t *testing.T) {
	cases := []url.Values{
		{"zoom": {"NaN"}},
		{"zoom": {"Inf"}},
		{"zoom": {"-Inf"}},
		{"zoom": {"2"}, "x": {"NaN"}, "y": {"+Inf"}},
	}
	for _, q := range cases {
		s := Parse(q)
		assert.GreaterOrEqual(t, s.Scale, MinScale, q.Encode())
		assert.LessOrEqual(t, s.Scale, MaxScale, q.Encode())
		assert.Equal(t, Point{}, s.Offset, q.Encode())
		assert.NotContains(t, s.Transform(), "NaN", q.Encode())
		assert.NotContains(t, s.Transform(), "Inf", q.Encode())
	}
	assert.Equal(t, New(), Parse(url.Values{"zoom": {"NaN"}}))
}
