package city

import (
	"fmt"
	"strings"

	"github.com/flywave/go3d/float64/vec3"

	"github.com/wegman-software/cityjson2pgsql-go/internal/document"
	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
)

// TemplateObject is a resolved GeometryInstance reference
type TemplateObject struct {
	Index  int    // global template index across the batch
	Anchor vec3.T // placement point, translation only
}

// CityObject is one named object of the city model
type CityObject struct {
	Name           string
	Type           string
	Parents        []string
	Children       []string
	OriginFileName string
	Attributes     map[string]any
	Geometry       []GeoObject
	Template       *TemplateObject

	HasGeo        bool
	IsFilteredOut bool
	IsTemplated   bool
}

// LoDs returns the distinct LoD strings of the object's geometry
func (o *CityObject) LoDs() []string {
	var out []string
	seen := make(map[string]bool)
	for _, g := range o.Geometry {
		if !seen[g.LoD] {
			seen[g.LoD] = true
			out = append(out, g.LoD)
		}
	}
	return out
}

// FaceCount returns the number of faces across all geometry
func (o *CityObject) FaceCount() int {
	n := 0
	for _, g := range o.Geometry {
		n += len(g.Faces)
	}
	return n
}

// Bounds returns the bounding box of all faces
func (o *CityObject) Bounds() vec3.Box {
	box := geometry.EmptyBox()
	for _, g := range o.Geometry {
		b := g.Bounds()
		if !geometry.IsEmptyBox(b) {
			box.Join(&b)
		}
	}
	return box
}

// FilterOut moves the object to the FilteredOut state. Attributes stay
// readable for inheritance.
func (o *CityObject) FilterOut() {
	o.IsFilteredOut = true
	o.HasGeo = false
	o.Geometry = nil
}

// SetGeometry stores the geometry that survived filtering. An object without
// any face is filtered out.
func (o *CityObject) SetGeometry(geoms []GeoObject) {
	o.Geometry = geoms
	o.HasGeo = o.FaceCount() > 0
	if !o.HasGeo {
		o.FilterOut()
	}
}

var nameReplacer = strings.NewReplacer(
	"{", "", "}", "",
	"(", "", ")", "",
	"[", "", "]", "",
	";", "", ",", "",
	"\"", "",
)

// SanitizeName strips punctuation that downstream consumers cannot carry in
// object names.
func SanitizeName(name string) string {
	return strings.TrimSpace(nameReplacer.Replace(name))
}

// ParseObject reads the non-geometry members of one CityObjects entry.
// Geometry is built separately by the ingest pipeline.
func ParseObject(fileName, name string, node document.Value) (*CityObject, error) {
	if node.Kind() != document.KindObject {
		return nil, fmt.Errorf("object %q: expected object, got %s", name, node.Kind())
	}
	typ, err := node.StringField("type")
	if err != nil {
		return nil, fmt.Errorf("object %q: %w", name, err)
	}

	obj := &CityObject{
		Name:           SanitizeName(name),
		Type:           typ,
		OriginFileName: fileName,
		Attributes:     map[string]any{},
	}

	if obj.Parents, err = nameList(node, "parents"); err != nil {
		return nil, fmt.Errorf("object %q: %w", name, err)
	}
	if obj.Children, err = nameList(node, "children"); err != nil {
		return nil, fmt.Errorf("object %q: %w", name, err)
	}

	if attrs, ok := node.Get("attributes"); ok && !attrs.IsNull() {
		m, ok := attrs.Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("object %q: attributes: expected object, got %s", name, attrs.Kind())
		}
		obj.Attributes = m
	}
	return obj, nil
}

func nameList(node document.Value, key string) ([]string, error) {
	v, ok := node.Get(key)
	if !ok || v.IsNull() {
		return nil, nil
	}
	items, err := v.AsArray()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, err := item.AsString()
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		out = append(out, SanitizeName(s))
	}
	return out, nil
}
