// Package world defines the toroidal grid geometry shared by every
// component: map dimensions, coordinate wrapping, and wrap-aware regions.
package world

// Map dimensions and viewport radii. The map is a torus: coordinates wrap
// modulo Width/Height on both axes.
const (
	Width  = 640
	Height = 640

	// A session's area of interest centred on its cursor spans
	// [x-RadiusX, x+RadiusX] × [y-RadiusY, y+RadiusY] modulo the map.
	RadiusX = 30
	RadiusY = 20
)

// WrapX maps any x onto [0, Width).
func WrapX(x int) int {
	return ((x % Width) + Width) % Width
}

// WrapY maps any y onto [0, Height).
func WrapY(y int) int {
	return ((y % Height) + Height) % Height
}

// InBounds reports whether (x, y) lies inside [0, Width) × [0, Height).
func InBounds(x, y int) bool {
	return x >= 0 && x < Width && y >= 0 && y < Height
}

// ClampX limits x to [0, Width-1]. Cursor positions clamp rather than wrap.
func ClampX(x int) int {
	if x < 0 {
		return 0
	}
	if x >= Width {
		return Width - 1
	}
	return x
}

// ClampY limits y to [0, Height-1].
func ClampY(y int) int {
	if y < 0 {
		return 0
	}
	if y >= Height {
		return Height - 1
	}
	return y
}
