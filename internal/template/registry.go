package template

import (
	"errors"
	"fmt"

	"github.com/flywave/go3d/float64/vec3"

	"github.com/wegman-software/cityjson2pgsql-go/internal/city"
	"github.com/wegman-software/cityjson2pgsql-go/internal/document"
	"github.com/wegman-software/cityjson2pgsql-go/internal/proj"
)

// ErrTemplateIndexOutOfRange is returned when an instance references a
// template that was never registered
var ErrTemplateIndexOutOfRange = errors.New("template index out of range")

// Origin is the template-local point that lands on an instance's anchor
var Origin = vec3.T{0, 0, 0}

var identity = [16]float64{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// Registry holds the reconstructed templates of every file in a batch.
// Indices are global: each file's templates are appended after those of the
// files registered before it.
type Registry struct {
	templates []city.GeoObject
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Len returns the number of registered templates
func (r *Registry) Len() int { return len(r.templates) }

// Register reconstructs the templates of one file and returns the global
// index of its first template. A template that cannot be built keeps its
// slot with no faces so later indices stay aligned; its error is returned in
// the warnings list.
func (r *Registry) Register(t *document.Templates, tr *proj.Transformer, tolerance float64) (int, []error) {
	offset := len(r.templates)
	if t == nil {
		return offset, nil
	}

	vertices := tr.TransformTemplate(t.Vertices)
	var warnings []error
	for i, node := range t.Geometries {
		g, err := city.BuildGeoObject(node, vertices, tolerance, fmt.Sprintf("template %d", offset+i))
		if err != nil {
			warnings = append(warnings, fmt.Errorf("template %d: %w", offset+i, err))
			g = city.GeoObject{}
		} else if g.HadFailures() {
			warnings = append(warnings, fmt.Errorf("template %d: %d of %d surfaces failed", offset+i, g.Failures, g.SurfaceCount))
		}
		for _, verr := range g.ValueErrors() {
			warnings = append(warnings, fmt.Errorf("template %d: %w", offset+i, verr))
		}
		r.templates = append(r.templates, g)
	}
	return offset, warnings
}

// Get returns the template geometry at a global index
func (r *Registry) Get(index int) (city.GeoObject, error) {
	if index < 0 || index >= len(r.templates) {
		return city.GeoObject{}, fmt.Errorf("%w: %d (%d templates)", ErrTemplateIndexOutOfRange, index, len(r.templates))
	}
	return r.templates[index], nil
}

// Resolve places a copy of the template at anchor. Only translation is
// applied.
func (r *Registry) Resolve(index int, anchor vec3.T) (city.GeoObject, error) {
	g, err := r.Get(index)
	if err != nil {
		return g, err
	}
	d := vec3.Sub(&anchor, &Origin)
	return g.Translated(d), nil
}

// Instance is a parsed GeometryInstance node
type Instance struct {
	Template     int // global template index
	AnchorVertex int // index into the file's vertex list
	Matrix       [16]float64
}

// HasTransform reports whether the instance carries a transformation
// matrix other than identity. Such matrices are not applied.
func (in Instance) HasTransform() bool {
	return in.Matrix != identity
}

// ParseInstance reads a GeometryInstance node. offset is the global index of
// the file's first template.
func ParseInstance(node document.Value, offset int) (Instance, error) {
	in := Instance{Matrix: identity}

	tv, err := node.Field("template")
	if err != nil {
		return in, err
	}
	idx, err := tv.AsInt()
	if err != nil {
		return in, fmt.Errorf("template: %w", err)
	}
	if idx < 0 {
		return in, fmt.Errorf("%w: %d", ErrTemplateIndexOutOfRange, idx)
	}
	in.Template = offset + int(idx)

	bounds, err := node.ArrayField("boundaries")
	if err != nil {
		return in, err
	}
	if len(bounds) == 0 {
		return in, fmt.Errorf("boundaries: missing anchor vertex")
	}
	anchor, err := bounds[0].AsInt()
	if err != nil {
		return in, fmt.Errorf("boundaries: %w", err)
	}
	in.AnchorVertex = int(anchor)

	if mv, ok := node.Get("transformationMatrix"); ok && !mv.IsNull() {
		items, err := mv.AsArray()
		if err != nil {
			return in, fmt.Errorf("transformationMatrix: %w", err)
		}
		if len(items) != 16 {
			return in, fmt.Errorf("transformationMatrix: expected 16 numbers, got %d", len(items))
		}
		for i, item := range items {
			f, err := item.AsFloat()
			if err != nil {
				return in, fmt.Errorf("transformationMatrix: %w", err)
			}
			in.Matrix[i] = f
		}
	}
	return in, nil
}
