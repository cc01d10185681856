package city

import (
	"github.com/goccy/go-json"

	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
	"github.com/wegman-software/cityjson2pgsql-go/internal/semantic"
)

// SurfaceRecord describes one output face
type SurfaceRecord struct {
	Name             string
	Type             string
	ParentObjectName string
	GeoType          string
	GeoName          string
	LoD              string
	SurfaceType      string
	Materials        map[string]int
	Attributes       map[string]any
}

// ObjectRecord describes one output city object
type ObjectRecord struct {
	Name           string
	Type           string
	Parents        []string
	Children       []string
	OriginFileName string
	Attributes     map[string]any
}

// ObjectAttributes returns obj's own attributes merged over its inherited ones
func (c *Collection) ObjectAttributes(obj *CityObject) (map[string]any, error) {
	inherited, err := c.InheritedAttributes(obj)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(obj.Attributes)+len(inherited))
	for k, v := range inherited {
		out[k] = v
	}
	for k, v := range obj.Attributes {
		out[k] = v
	}
	return out, nil
}

// NewObjectRecord builds the record of obj with the given merged attributes
func NewObjectRecord(obj *CityObject, attrs map[string]any) ObjectRecord {
	return ObjectRecord{
		Name:           obj.Name,
		Type:           obj.Type,
		Parents:        obj.Parents,
		Children:       obj.Children,
		OriginFileName: obj.OriginFileName,
		Attributes:     attrs,
	}
}

// SurfaceRecords returns the faces of obj with one record per face, in the
// same order. Object attributes are copied into every record; semantic
// surface members other than the type are layered on top.
func SurfaceRecords(obj *CityObject, attrs map[string]any) ([]geometry.Face, []SurfaceRecord) {
	n := obj.FaceCount()
	faces := make([]geometry.Face, 0, n)
	records := make([]SurfaceRecord, 0, n)

	parent := ""
	if len(obj.Parents) > 0 {
		parent = obj.Parents[0]
	}

	for gi := range obj.Geometry {
		g := &obj.Geometry[gi]
		sems := g.FaceSemantics()
		mats := g.FaceMaterials()
		for i, f := range g.Faces {
			merged := make(map[string]any, len(attrs)+len(sems[i]))
			for k, v := range attrs {
				merged[k] = v
			}
			surfaceType := ""
			for k, v := range sems[i] {
				if k == semantic.TypeKey {
					surfaceType, _ = v.(string)
					continue
				}
				merged[k] = v
			}

			faces = append(faces, f.Face)
			records = append(records, SurfaceRecord{
				Name:             obj.Name,
				Type:             obj.Type,
				ParentObjectName: parent,
				GeoType:          g.GeoType,
				GeoName:          g.GeoName,
				LoD:              g.LoD,
				SurfaceType:      surfaceType,
				Materials:        mats[i],
				Attributes:       merged,
			})
		}
	}
	return faces, records
}

// MapJSON encodes an attribute or material map for text and JSONB columns.
// Empty maps and values that cannot be encoded yield "{}".
func MapJSON[V any](m map[string]V) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
