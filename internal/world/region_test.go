package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero", 0, 0},
		{"inside", 100, 100},
		{"negative one", -1, Width - 1},
		{"width", Width, 0},
		{"large negative", -Width - 5, Width - 5},
		{"double width", 2*Width + 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WrapX(tt.in))
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, ClampX(-10))
	assert.Equal(t, Width-1, ClampX(Width))
	assert.Equal(t, Width-1, ClampX(Width+500))
	assert.Equal(t, 42, ClampX(42))
	assert.Equal(t, 0, ClampY(-1))
	assert.Equal(t, Height-1, ClampY(Height*3))
}

func TestRegionContains_Contiguous(t *testing.T) {
	r := Region{XMin: 10, XMax: 20, YMin: 5, YMax: 15}

	assert.True(t, r.Contains(10, 5))
	assert.True(t, r.Contains(20, 15))
	assert.True(t, r.Contains(15, 10))
	assert.False(t, r.Contains(9, 10))
	assert.False(t, r.Contains(21, 10))
	assert.False(t, r.Contains(15, 4))
	assert.False(t, r.Contains(15, 16))
}

func TestRegionContains_Wrapped(t *testing.T) {
	// Region straddling the seam on both axes.
	r := Region{XMin: Width - 2, XMax: 2, YMin: Height - 2, YMax: 2}

	assert.True(t, r.Contains(Width-1, Height-1))
	assert.True(t, r.Contains(0, 0))
	assert.True(t, r.Contains(1, 1))
	assert.True(t, r.Contains(2, 2))
	assert.True(t, r.Contains(Width-2, Height-2))
	assert.False(t, r.Contains(3, 0))
	assert.False(t, r.Contains(0, 3))
	assert.False(t, r.Contains(320, 320))
}

func TestViewport_WrapsAroundOrigin(t *testing.T) {
	r := Viewport(0, 0)

	assert.Equal(t, Width-RadiusX, r.XMin)
	assert.Equal(t, RadiusX, r.XMax)
	assert.Equal(t, Height-RadiusY, r.YMin)
	assert.Equal(t, RadiusY, r.YMax)

	// The opposite corner is inside the wrapped viewport.
	assert.True(t, r.Contains(Width-1, Height-1))
	assert.False(t, r.Contains(Width/2, Height/2))
}

func TestNeighbours_WrapAtCorner(t *testing.T) {
	ns := Neighbours(0, 0)

	seen := make(map[[2]int]bool, 8)
	for _, n := range ns {
		seen[n] = true
	}

	assert.Len(t, seen, 8)
	assert.True(t, seen[[2]int{Width - 1, Height - 1}])
	assert.True(t, seen[[2]int{Width - 1, 0}])
	assert.True(t, seen[[2]int{0, Height - 1}])
	assert.True(t, seen[[2]int{1, 1}])
	assert.False(t, seen[[2]int{0, 0}])
}
