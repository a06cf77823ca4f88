// Package oracle implements the deterministic mine field. Mine locations are
// never stored: they are derived on demand from a seed and the cell
// coordinates, so changing the seed regenerates the whole world.
package oracle

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/dmtrv/minefield/internal/world"
)

// Density is the fraction of cells holding a mine.
const Density = 0.15

// twoPow64 is 2^64 as a float, the denominator turning the leading digest
// bytes into a uniform fraction in [0, 1).
const twoPow64 = 1 << 64

// Oracle answers mine queries for a fixed seed. It is pure and stateless:
// two calls with the same coordinates always agree, across processes too.
type Oracle struct {
	seed    string
	density float64
}

// New returns an oracle for the given seed at the standard density.
func New(seed string) *Oracle {
	return &Oracle{seed: seed, density: Density}
}

// IsMine reports whether the cell at (x, y) holds a mine.
//
// The decision hashes "seed:x,y" with SHA-256 and compares the first 8
// digest bytes, read big-endian, against density scaled to the full uint64
// range. SHA-256 is part of the wire-level contract: any implementation with
// the same seed must agree on every cell.
//
// Out-of-range coordinates are logged and answered with false.
func (o *Oracle) IsMine(x, y int) bool {
	if !world.InBounds(x, y) {
		slog.Warn("mine query out of range", "x", x, "y", y)
		return false
	}

	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d,%d", o.seed, x, y))
	h := binary.BigEndian.Uint64(sum[:8])
	return float64(h)/twoPow64 < o.density
}

// AdjacentMines counts mines among the eight toroidal neighbours of (x, y).
// Out-of-range coordinates are logged and answered with 0.
func (o *Oracle) AdjacentMines(x, y int) int {
	if !world.InBounds(x, y) {
		slog.Warn("adjacency query out of range", "x", x, "y", y)
		return 0
	}

	count := 0
	for _, n := range world.Neighbours(x, y) {
		if o.IsMine(n[0], n[1]) {
			count++
		}
	}
	return count
}
