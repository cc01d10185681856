package semantic

import (
	"fmt"

	"github.com/wegman-software/cityjson2pgsql-go/internal/boundary"
	"github.com/wegman-software/cityjson2pgsql-go/internal/document"
)

// TypeKey is the semantic surface member holding the surface type
const TypeKey = "type"

// Semantics is the parsed semantics block of one geometry node
type Semantics struct {
	Surfaces []map[string]any // semantic dictionary, indexed by Values
	Values   []int            // one dictionary index per surface, -1 for none
}

// Present reports whether the geometry carried a semantics block
func (s Semantics) Present() bool {
	return s.Surfaces != nil || s.Values != nil
}

// SurfaceType returns the type of the surface at position pos, or "" when the
// surface has no semantics.
func (s Semantics) SurfaceType(pos int) string {
	if pos < 0 || pos >= len(s.Values) {
		return ""
	}
	idx := s.Values[pos]
	if idx < 0 || idx >= len(s.Surfaces) {
		return ""
	}
	t, _ := s.Surfaces[idx][TypeKey].(string)
	return t
}

// ParseSemantics reads the semantics member of a geometry node. A missing
// block is not an error and yields empty Semantics. A null values member
// leaves every surface without semantics.
func ParseSemantics(geometry document.Value) (Semantics, error) {
	var s Semantics
	block, ok := geometry.Get("semantics")
	if !ok || block.IsNull() {
		return s, nil
	}

	surfaces, ok := block.Get("surfaces")
	if ok && !surfaces.IsNull() {
		items, err := surfaces.AsArray()
		if err != nil {
			return s, fmt.Errorf("semantics.surfaces: %w", err)
		}
		s.Surfaces = make([]map[string]any, len(items))
		for i, item := range items {
			m, ok := item.Interface().(map[string]any)
			if !ok {
				return s, fmt.Errorf("semantics.surfaces[%d]: expected object, got %s", i, item.Kind())
			}
			s.Surfaces[i] = m
		}
	} else {
		s.Surfaces = []map[string]any{}
	}

	values, ok := block.Get("values")
	if !ok || values.IsNull() {
		return s, nil
	}
	flat, err := boundary.FlattenValues(values)
	if err != nil {
		return s, fmt.Errorf("semantics.values: %w", err)
	}
	if flat == nil {
		flat = []int{}
	}
	s.Values = flat
	return s, nil
}

// ParseMaterials reads the material member of a geometry node into one
// flattened index list per material theme. A theme given as a single value
// is expanded to surfaceCount entries.
func ParseMaterials(geometry document.Value, surfaceCount int) (map[string][]int, error) {
	block, ok := geometry.Get("material")
	if !ok || block.IsNull() {
		return map[string][]int{}, nil
	}
	if block.Kind() != document.KindObject {
		return nil, fmt.Errorf("material: expected object, got %s", block.Kind())
	}

	out := make(map[string][]int, block.Len())
	for _, theme := range block.Keys() {
		entry, _ := block.Get(theme)
		if values, ok := entry.Get("values"); ok {
			flat, err := boundary.FlattenValues(values)
			if err != nil {
				return nil, fmt.Errorf("material %q: %w", theme, err)
			}
			out[theme] = flat
			continue
		}
		if value, ok := entry.Get("value"); ok {
			idx := -1
			if !value.IsNull() {
				n, err := value.AsInt()
				if err != nil {
					return nil, fmt.Errorf("material %q: %w", theme, err)
				}
				idx = int(n)
			}
			flat := make([]int, surfaceCount)
			for i := range flat {
				flat[i] = idx
			}
			out[theme] = flat
			continue
		}
		return nil, fmt.Errorf("material %q: neither values nor value present", theme)
	}
	return out, nil
}

// Resolve returns one semantic map per entry of values. Entries that are
// negative or outside the dictionary give an empty map.
func Resolve(values []int, surfaces []map[string]any) []map[string]any {
	out := make([]map[string]any, len(values))
	for i, idx := range values {
		m := make(map[string]any)
		if idx >= 0 && idx < len(surfaces) {
			for k, v := range surfaces[idx] {
				m[k] = v
			}
		}
		out[i] = m
	}
	return out
}

// ResolveMaterials returns, for each of faceCount faces, the material index
// per theme. Negative indices mean no material of that theme and are left
// out.
func ResolveMaterials(materials map[string][]int, faceCount int) []map[string]int {
	out := make([]map[string]int, faceCount)
	for i := range out {
		out[i] = make(map[string]int)
	}
	for theme, values := range materials {
		for i := 0; i < faceCount && i < len(values); i++ {
			if values[i] >= 0 {
				out[i][theme] = values[i]
			}
		}
	}
	return out
}
