package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/flywave/go3d/float64/vec3"

	"github.com/wegman-software/cityjson2pgsql-go/internal/boundary"
)

// DefaultTolerance is the face construction tolerance in model units before
// the unit scale is applied.
const DefaultTolerance = 1e-2

// ErrFaceConstruction is returned when a surface cannot be turned into a face
var ErrFaceConstruction = errors.New("face construction failed")

// Tolerance returns the construction tolerance for a unit scale
func Tolerance(unitScale float64) float64 {
	if unitScale <= 0 {
		unitScale = 1
	}
	return DefaultTolerance * unitScale
}

// Build reconstructs one surface. Triangles and quads without holes take the
// corner-point path; everything else goes through planar ring reconstruction.
func Build(ring boundary.RingStructure, vertices []vec3.T, tolerance float64) (Face, error) {
	outer, err := lookup(ring.Outer, vertices)
	if err != nil {
		return Face{}, err
	}

	if ring.IsSimple() {
		return BuildCorners(outer)
	}

	holes := make([][]vec3.T, 0, len(ring.Inner))
	for _, in := range ring.Inner {
		pts, err := lookup(in, vertices)
		if err != nil {
			return Face{}, err
		}
		holes = append(holes, pts)
	}
	return BuildPlanar(outer, holes, tolerance)
}

func lookup(indices []int, vertices []vec3.T) ([]vec3.T, error) {
	pts := make([]vec3.T, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(vertices) {
			return nil, fmt.Errorf("%w: vertex index %d out of range (%d vertices)", ErrFaceConstruction, idx, len(vertices))
		}
		pts[i] = vertices[idx]
	}
	return pts, nil
}

// BuildCorners makes a face directly from three or four corner points
func BuildCorners(corners []vec3.T) (Face, error) {
	if len(corners) != 3 && len(corners) != 4 {
		return Face{}, fmt.Errorf("%w: corner face needs 3 or 4 points, got %d", ErrFaceConstruction, len(corners))
	}
	n := newell(corners)
	if n.Length() == 0 {
		return Face{}, fmt.Errorf("%w: degenerate corner face", ErrFaceConstruction)
	}
	outer := make([]vec3.T, len(corners))
	copy(outer, corners)
	return Face{Outer: outer, Normal: n.Normalized(), Corner: true}, nil
}

// BuildPlanar makes a face from an outer ring and holes. Each ring is first
// cleaned into a closed polyline; holes that fail are dropped, an outer ring
// that fails fails the face. Points further than tolerance from the outer
// ring's plane make the face non-planar.
func BuildPlanar(outer []vec3.T, holes [][]vec3.T, tolerance float64) (Face, error) {
	outerLine, err := polyline(outer, tolerance)
	if err != nil {
		return Face{}, fmt.Errorf("%w: outer ring: %v", ErrFaceConstruction, err)
	}

	n := newell(outerLine)
	normal := n.Normalized()
	origin := meanPoint(outerLine)
	if d := maxPlaneDistance(outerLine, origin, normal); d > tolerance {
		return Face{}, fmt.Errorf("%w: outer ring is not planar (deviation %.4g > %.4g)", ErrFaceConstruction, d, tolerance)
	}

	face := Face{Outer: outerLine, Normal: normal}
	for _, h := range holes {
		line, err := polyline(h, tolerance)
		if err != nil {
			continue
		}
		if maxPlaneDistance(line, origin, normal) > tolerance {
			continue
		}
		face.Holes = append(face.Holes, line)
	}
	return face, nil
}

// polyline removes repeated points (including an explicit closing point)
// and checks that the ring still encloses an area.
func polyline(ring []vec3.T, tolerance float64) ([]vec3.T, error) {
	out := make([]vec3.T, 0, len(ring))
	for _, p := range ring {
		if len(out) > 0 {
			last := out[len(out)-1]
			if vec3.Distance(&last, &p) <= tolerance {
				continue
			}
		}
		out = append(out, p)
	}
	for len(out) > 1 {
		first, last := out[0], out[len(out)-1]
		if vec3.Distance(&first, &last) > tolerance {
			break
		}
		out = out[:len(out)-1]
	}

	if len(out) < 3 {
		return nil, fmt.Errorf("ring has %d distinct points", len(out))
	}
	n := newell(out)
	if n.Length()/2 <= tolerance*tolerance {
		return nil, fmt.Errorf("ring is degenerate")
	}
	return out, nil
}

func meanPoint(pts []vec3.T) vec3.T {
	var c vec3.T
	for i := range pts {
		c.Add(&pts[i])
	}
	return c.Scaled(1 / float64(len(pts)))
}

func maxPlaneDistance(pts []vec3.T, origin, normal vec3.T) float64 {
	var worst float64
	for _, p := range pts {
		d := vec3.Sub(&p, &origin)
		if dist := math.Abs(vec3.Dot(&d, &normal)); dist > worst {
			worst = dist
		}
	}
	return worst
}
