package geometry

import (
	"math"

	"github.com/flywave/go3d/float64/vec3"
)

// Face is one reconstructed planar surface: an outer ring and optional holes.
// Rings are stored open (the first point is not repeated at the end).
type Face struct {
	Outer  []vec3.T
	Holes  [][]vec3.T
	Normal vec3.T // unit normal following the outer ring's winding
	Corner bool   // built from corner points without curve reconstruction
}

// Rings returns the outer ring followed by the holes
func (f Face) Rings() [][]vec3.T {
	rings := make([][]vec3.T, 0, 1+len(f.Holes))
	rings = append(rings, f.Outer)
	return append(rings, f.Holes...)
}

// Area returns the planar area of the face with holes removed
func (f Face) Area() float64 {
	area := ringArea(f.Outer)
	for _, h := range f.Holes {
		area -= ringArea(h)
	}
	return area
}

// Centroid returns the mean of the outer ring's points
func (f Face) Centroid() vec3.T {
	var c vec3.T
	if len(f.Outer) == 0 {
		return c
	}
	for i := range f.Outer {
		c.Add(&f.Outer[i])
	}
	return c.Scaled(1 / float64(len(f.Outer)))
}

// Bounds returns the axis-aligned bounding box of the outer ring
func (f Face) Bounds() vec3.Box {
	box := EmptyBox()
	for _, p := range f.Outer {
		ExtendBox(&box, p)
	}
	return box
}

// Translated returns a copy of the face moved by d
func (f Face) Translated(d vec3.T) Face {
	out := Face{Normal: f.Normal, Corner: f.Corner}
	out.Outer = translateRing(f.Outer, d)
	if len(f.Holes) > 0 {
		out.Holes = make([][]vec3.T, len(f.Holes))
		for i, h := range f.Holes {
			out.Holes[i] = translateRing(h, d)
		}
	}
	return out
}

func translateRing(ring []vec3.T, d vec3.T) []vec3.T {
	out := make([]vec3.T, len(ring))
	for i, p := range ring {
		out[i] = vec3.Add(&p, &d)
	}
	return out
}

// EmptyBox returns an inverted box that any point will extend
func EmptyBox() vec3.Box {
	inf := math.Inf(1)
	return vec3.Box{
		Min: vec3.T{inf, inf, inf},
		Max: vec3.T{-inf, -inf, -inf},
	}
}

// ExtendBox grows box to contain p
func ExtendBox(box *vec3.Box, p vec3.T) {
	point := vec3.Box{Min: p, Max: p}
	box.Join(&point)
}

// IsEmptyBox reports whether box has not been extended by any point
func IsEmptyBox(box vec3.Box) bool {
	return box.Min[0] > box.Max[0]
}

// newell returns the Newell normal of a ring. Its length is twice the
// ring's area.
func newell(ring []vec3.T) vec3.T {
	var n vec3.T
	for i := range ring {
		cur := ring[i]
		next := ring[(i+1)%len(ring)]
		n[0] += (cur[1] - next[1]) * (cur[2] + next[2])
		n[1] += (cur[2] - next[2]) * (cur[0] + next[0])
		n[2] += (cur[0] - next[0]) * (cur[1] + next[1])
	}
	return n
}

func ringArea(ring []vec3.T) float64 {
	if len(ring) < 3 {
		return 0
	}
	n := newell(ring)
	return n.Length() / 2
}
