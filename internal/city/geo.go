package city

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/flywave/go3d/float64/vec3"

	"github.com/wegman-software/cityjson2pgsql-go/internal/boundary"
	"github.com/wegman-software/cityjson2pgsql-go/internal/document"
	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
	"github.com/wegman-software/cityjson2pgsql-go/internal/semantic"
)

// Geometry types with their own handling
const (
	TypeSolid            = "Solid"
	TypeMultiSolid       = "MultiSolid"
	TypeCompositeSolid   = "CompositeSolid"
	TypeGeometryInstance = "GeometryInstance"
)

// ErrValueCount is reported when a semantics or material values array does not
// hold one entry per surface
var ErrValueCount = errors.New("values do not match surface count")

// ValueMismatch is a values array whose length differs from the number of
// surfaces in the boundaries
type ValueMismatch struct {
	Source string // "semantics" or "material <theme>"
	Values int
}

// SurfaceFace is one reconstructed face of a GeoObject
type SurfaceFace struct {
	geometry.Face
	SemanticValue int // position in the GeoObject's surface-type values
}

// GeoObject is one LoD and type specific geometry bundle
type GeoObject struct {
	Faces                 []SurfaceFace
	LoD                   string
	GeoType               string
	SurfaceData           []map[string]any
	SurfaceTypeValues     []int
	SurfaceMaterialValues map[string][]int
	GeoName               string
	SuperName             string

	SurfaceCount int // surfaces found in the boundaries
	Failures     int // surfaces that could not be turned into faces

	// Positions counts the surfaces of the boundaries in source order,
	// including those dropped for an empty outer ring
	Positions  int
	Mismatches []ValueMismatch
}

// HadFailures reports whether any surface failed to build
func (g *GeoObject) HadFailures() bool { return g.Failures > 0 }

// ValueErrors describes each values array that does not hold one entry per
// surface. Faces past the end of a short array get no semantics or material.
func (g *GeoObject) ValueErrors() []error {
	var out []error
	for _, m := range g.Mismatches {
		out = append(out, fmt.Errorf("%s has %d values for %d surfaces: %w", m.Source, m.Values, g.Positions, ErrValueCount))
	}
	return out
}

// SurfaceType returns the semantic type of a face, or "" when it has none
func (g *GeoObject) SurfaceType(f SurfaceFace) string {
	s := semantic.Semantics{Surfaces: g.SurfaceData, Values: g.SurfaceTypeValues}
	return s.SurfaceType(f.SemanticValue)
}

// FaceSemantics returns one semantic map per face in face order
func (g *GeoObject) FaceSemantics() []map[string]any {
	values := make([]int, len(g.Faces))
	for i, f := range g.Faces {
		values[i] = -1
		if f.SemanticValue < len(g.SurfaceTypeValues) {
			values[i] = g.SurfaceTypeValues[f.SemanticValue]
		}
	}
	return semantic.Resolve(values, g.SurfaceData)
}

// FaceMaterials returns the material indices per theme of each face
func (g *GeoObject) FaceMaterials() []map[string]int {
	perFace := make(map[string][]int, len(g.SurfaceMaterialValues))
	for theme, values := range g.SurfaceMaterialValues {
		mapped := make([]int, len(g.Faces))
		for i, f := range g.Faces {
			mapped[i] = -1
			if f.SemanticValue < len(values) {
				mapped[i] = values[f.SemanticValue]
			}
		}
		perFace[theme] = mapped
	}
	return semantic.ResolveMaterials(perFace, len(g.Faces))
}

// Bounds returns the bounding box of all faces
func (g *GeoObject) Bounds() vec3.Box {
	box := geometry.EmptyBox()
	for _, f := range g.Faces {
		b := f.Bounds()
		if !geometry.IsEmptyBox(b) {
			box.Join(&b)
		}
	}
	return box
}

// Translated returns a copy of the geometry moved by d
func (g GeoObject) Translated(d vec3.T) GeoObject {
	out := g
	out.Faces = make([]SurfaceFace, len(g.Faces))
	for i, f := range g.Faces {
		out.Faces[i] = SurfaceFace{Face: f.Face.Translated(d), SemanticValue: f.SemanticValue}
	}
	return out
}

// GeoName returns the display name of a geometry bundle
func GeoName(geoType, lod string) string {
	return geoType + " LoD" + lod
}

// LoD reads the lod member of a geometry node. CityJSON 1.0 allows numbers.
func LoD(node document.Value) (string, error) {
	v, err := node.Field("lod")
	if err != nil {
		return "", err
	}
	switch v.Kind() {
	case document.KindString:
		return v.AsString()
	case document.KindNumber:
		f, _ := v.AsFloat()
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("lod: expected string or number, got %s", v.Kind())
}

// BuildGeoObject reconstructs one geometry node against a vertex list.
// Surfaces that fail to build are counted in Failures and skipped; an error
// is returned only when the node itself is malformed.
func BuildGeoObject(node document.Value, vertices []vec3.T, tolerance float64, superName string) (GeoObject, error) {
	var g GeoObject
	geoType, err := node.StringField("type")
	if err != nil {
		return g, err
	}
	lod, err := LoD(node)
	if err != nil {
		return g, err
	}
	boundaries, err := node.Field("boundaries")
	if err != nil {
		return g, err
	}

	rings, positions, err := resolveBoundaries(geoType, boundaries)
	if err != nil {
		return g, fmt.Errorf("%s boundaries: %w", geoType, err)
	}

	sem, err := semantic.ParseSemantics(node)
	if err != nil {
		return g, err
	}
	materials, err := semantic.ParseMaterials(node, positions)
	if err != nil {
		return g, err
	}

	faces := make([]SurfaceFace, 0, len(rings))
	failures := 0
	for _, ring := range rings {
		face, err := geometry.Build(ring, vertices, tolerance)
		if err != nil {
			failures++
			continue
		}
		faces = append(faces, SurfaceFace{Face: face, SemanticValue: ring.Position})
	}

	return GeoObject{
		Faces:                 faces,
		LoD:                   lod,
		GeoType:               geoType,
		SurfaceData:           sem.Surfaces,
		SurfaceTypeValues:     sem.Values,
		SurfaceMaterialValues: materials,
		GeoName:               GeoName(geoType, lod),
		SuperName:             superName,
		SurfaceCount:          len(rings),
		Failures:              failures,
		Positions:             positions,
		Mismatches:            valueMismatches(sem, materials, positions),
	}, nil
}

func valueMismatches(sem semantic.Semantics, materials map[string][]int, positions int) []ValueMismatch {
	var out []ValueMismatch
	if sem.Values != nil && len(sem.Values) != positions {
		out = append(out, ValueMismatch{Source: "semantics", Values: len(sem.Values)})
	}
	themes := make([]string, 0, len(materials))
	for theme := range materials {
		themes = append(themes, theme)
	}
	sort.Strings(themes)
	for _, theme := range themes {
		if n := len(materials[theme]); n != positions {
			out = append(out, ValueMismatch{Source: "material " + theme, Values: n})
		}
	}
	return out
}

// resolveBoundaries walks MultiSolid and CompositeSolid one Solid at a time.
// It returns the surfaces and the number of surface positions.
func resolveBoundaries(geoType string, boundaries document.Value) ([]boundary.RingStructure, int, error) {
	if geoType != TypeMultiSolid && geoType != TypeCompositeSolid {
		return boundary.Resolve(boundaries, 0)
	}
	solids, err := boundary.Solids(boundaries)
	if err != nil {
		return nil, 0, err
	}
	var rings []boundary.RingStructure
	next := 0
	for i, solid := range solids {
		var r []boundary.RingStructure
		r, next, err = boundary.Resolve(solid, next)
		if err != nil {
			return nil, 0, fmt.Errorf("solid %d: %w", i, err)
		}
		rings = append(rings, r...)
	}
	return rings, next, nil
}
