package world

// Region is a wrap-aware rectangle [XMin, XMax] × [YMin, YMax] interpreted
// modulo Width × Height. When XMin <= XMax the X interval is contiguous;
// otherwise it wraps around the seam (x >= XMin OR x <= XMax). Same for Y.
// All broadcast scoping and snapshot queries use this value.
type Region struct {
	XMin, XMax int
	YMin, YMax int
}

// Viewport returns the region covering the area of interest centred on the
// given cursor position. The centre is wrapped onto the map first, so any
// integer input is valid.
func Viewport(cx, cy int) Region {
	return Region{
		XMin: WrapX(cx - RadiusX),
		XMax: WrapX(cx + RadiusX),
		YMin: WrapY(cy - RadiusY),
		YMax: WrapY(cy + RadiusY),
	}
}

// Contains reports whether the wrapped point (x, y) lies inside the region.
func (r Region) Contains(x, y int) bool {
	return spanContains(r.XMin, r.XMax, WrapX(x)) && spanContains(r.YMin, r.YMax, WrapY(y))
}

// spanContains tests membership in a single wrap-aware interval.
func spanContains(lo, hi, v int) bool {
	if lo <= hi {
		return v >= lo && v <= hi
	}
	return v >= lo || v <= hi
}

// Neighbours returns the eight wrap-aware neighbour coordinates of (x, y)
// as a fixed array of [2]int{x, y} pairs.
func Neighbours(x, y int) [8][2]int {
	var out [8][2]int
	i := 0
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			out[i] = [2]int{WrapX(x + dx), WrapY(y + dy)}
			i++
		}
	}
	return out
}
