package boundary

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wegman-software/cityjson2pgsql-go/internal/document"
)

// RingStructure is one surface: an outer ring plus zero or more holes,
// expressed as indices into a vertex list.
type RingStructure struct {
	Outer []int
	Inner [][]int

	// Position is the surface's index among all surfaces of the boundary
	// array, dropped ones included. Semantics and material values are
	// indexed by it.
	Position int
}

// VertexCount returns the number of indices across all rings
func (r RingStructure) VertexCount() int {
	n := len(r.Outer)
	for _, in := range r.Inner {
		n += len(in)
	}
	return n
}

// IsSimple reports whether the surface has no holes and three or four corners
func (r RingStructure) IsSimple() bool {
	return len(r.Inner) == 0 && (len(r.Outer) == 3 || len(r.Outer) == 4)
}

// Walk flattens an arbitrarily nested array, left to right. Any node for
// which isLeaf returns true is handed to convert and its result collected;
// arrays that are not leaves are descended into. Non-array non-leaf nodes
// are an error.
func Walk[T any](v document.Value, isLeaf func(document.Value) bool, convert func(document.Value) (T, error)) ([]T, error) {
	var out []T
	var path []int
	var walk func(node document.Value) error
	walk = func(node document.Value) error {
		if isLeaf(node) {
			item, err := convert(node)
			if err != nil {
				return fmt.Errorf("%s: %w", formatPath(path), err)
			}
			out = append(out, item)
			return nil
		}
		children, err := node.AsArray()
		if err != nil {
			return fmt.Errorf("%s: %w", formatPath(path), err)
		}
		for i, child := range children {
			path = append(path, i)
			if err := walk(child); err != nil {
				return err
			}
			path = path[:len(path)-1]
		}
		return nil
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return out, nil
}

// formatPath renders array indices as $[i][j]...
func formatPath(path []int) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, i := range path {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(']')
	}
	return b.String()
}

// depth returns how many array levels sit above the first scalar. Leading
// empty arrays are skipped so that an empty shell or ring does not hide the
// nesting of its siblings. An empty array counts as one level.
func depth(v document.Value) int {
	if v.Kind() != document.KindArray {
		return 0
	}
	items, _ := v.AsArray()
	best := 1
	for _, item := range items {
		if d := 1 + depth(item); d > best {
			best = d
		}
		if item.Kind() != document.KindArray || item.Len() > 0 {
			break
		}
	}
	return best
}

// isSurface matches an array of rings, each ring an array of integers
func isSurface(v document.Value) bool {
	return v.Kind() == document.KindArray && depth(v) <= 2
}

// Resolve flattens a boundary array of any depth (MultiSurface, Solid,
// MultiSolid, CompositeSolid) into surfaces in source order. Every shell of a
// Solid contributes its surfaces, inner shells included. Surfaces whose outer
// ring is empty are dropped, as are empty inner rings; dropped surfaces still
// take up a Position. An empty shell holds no surface and takes none.
//
// Positions are numbered from start. The position after the last surface is
// returned so that the Solids of a MultiSolid can be numbered consecutively.
func Resolve(boundaries document.Value, start int) ([]RingStructure, int, error) {
	next := start
	surfaces, err := Walk(boundaries, isSurface, func(v document.Value) (RingStructure, error) {
		rs, err := toRingStructure(v)
		if err != nil {
			return rs, err
		}
		rs.Position = -1
		if v.Len() > 0 {
			rs.Position = next
			next++
		}
		return rs, nil
	})
	if err != nil {
		return nil, start, err
	}

	out := surfaces[:0]
	for _, s := range surfaces {
		if len(s.Outer) == 0 {
			continue
		}
		out = append(out, s)
	}
	return out, next, nil
}

// Solids splits a MultiSolid or CompositeSolid boundary into its Solids so
// each can be resolved separately.
func Solids(boundaries document.Value) ([]document.Value, error) {
	return boundaries.AsArray()
}

func toRingStructure(v document.Value) (RingStructure, error) {
	var rs RingStructure
	rings, err := v.AsArray()
	if err != nil {
		return rs, err
	}
	for i, ringVal := range rings {
		ring, err := indexList(ringVal)
		if err != nil {
			return rs, fmt.Errorf("ring %d: %w", i, err)
		}
		if i == 0 {
			rs.Outer = ring
			continue
		}
		if len(ring) > 0 {
			rs.Inner = append(rs.Inner, ring)
		}
	}
	return rs, nil
}

func indexList(v document.Value) ([]int, error) {
	items, err := v.AsArray()
	if err != nil {
		return nil, err
	}
	out := make([]int, len(items))
	for i, item := range items {
		n, err := item.AsInt()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative vertex index %d", n)
		}
		out[i] = int(n)
	}
	return out, nil
}

// FlattenValues flattens a nested semantics or material values array into
// one integer per surface. JSON null becomes -1.
func FlattenValues(values document.Value) ([]int, error) {
	return Walk(values, isScalar, func(v document.Value) (int, error) {
		if v.IsNull() {
			return -1, nil
		}
		n, err := v.AsInt()
		return int(n), err
	})
}

func isScalar(v document.Value) bool {
	return v.Kind() != document.KindArray
}
