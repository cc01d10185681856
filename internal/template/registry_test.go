package template

import (
	"errors"
	"math"
	"testing"

	"github.com/flywave/go3d/float64/vec3"

	"github.com/wegman-software/cityjson2pgsql-go/internal/document"
	"github.com/wegman-software/cityjson2pgsql-go/internal/proj"
)

func parse(t *testing.T, s string) document.Value {
	t.Helper()
	v, err := document.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return v
}

func unitTriangle(t *testing.T) *document.Templates {
	return &document.Templates{
		Vertices: [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Geometries: []document.Value{
			parse(t, `{"type": "MultiSurface", "lod": "2", "boundaries": [[[0, 1, 2]]]}`),
		},
	}
}

func identityTransformer() *proj.Transformer {
	return proj.NewTransformer([3]float64{1, 1, 1}, [3]float64{}, proj.Params{UnitScale: 1})
}

func TestResolvePlacesAtAnchor(t *testing.T) {
	r := NewRegistry()
	offset, warnings := r.Register(unitTriangle(t), identityTransformer(), 1e-2)
	if offset != 0 || len(warnings) != 0 {
		t.Fatalf("Register = %d, %v", offset, warnings)
	}

	tmpl, err := r.Get(0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	placed, err := r.Resolve(0, vec3.T{10, 20, 30})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(placed.Faces) != 1 {
		t.Fatalf("got %d faces, want 1", len(placed.Faces))
	}

	c0 := tmpl.Faces[0].Centroid()
	c1 := placed.Faces[0].Centroid()
	want := vec3.T{c0[0] + 10, c0[1] + 20, c0[2] + 30}
	for i := 0; i < 3; i++ {
		if math.Abs(c1[i]-want[i]) > 1e-6 {
			t.Fatalf("placed centroid = %v, want %v", c1, want)
		}
	}
	if placed.LoD != "2" || placed.GeoType != "MultiSurface" {
		t.Errorf("placed header = %q %q", placed.LoD, placed.GeoType)
	}
}

func TestRegisterOffsetsAcrossFiles(t *testing.T) {
	r := NewRegistry()
	tr := identityTransformer()
	if off, _ := r.Register(unitTriangle(t), tr, 1e-2); off != 0 {
		t.Errorf("first offset = %d", off)
	}
	if off, _ := r.Register(nil, tr, 1e-2); off != 1 {
		t.Errorf("offset for a file without templates = %d, want 1", off)
	}
	if off, _ := r.Register(unitTriangle(t), tr, 1e-2); off != 1 {
		t.Errorf("second offset = %d, want 1", off)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegisterKeepsSlotForBrokenTemplate(t *testing.T) {
	tmpl := unitTriangle(t)
	tmpl.Geometries = append([]document.Value{parse(t, `{"type": "MultiSurface"}`)}, tmpl.Geometries...)

	r := NewRegistry()
	_, warnings := r.Register(tmpl, identityTransformer(), 1e-2)
	if len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1", len(warnings))
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	g, _ := r.Get(1)
	if len(g.Faces) != 1 {
		t.Error("template after a broken one must keep its index")
	}
}

func TestResolveOutOfRange(t *testing.T) {
	r := NewRegistry()
	r.Register(unitTriangle(t), identityTransformer(), 1e-2)
	for _, idx := range []int{-1, 1, 99} {
		if _, err := r.Resolve(idx, vec3.T{}); !errors.Is(err, ErrTemplateIndexOutOfRange) {
			t.Errorf("Resolve(%d) error = %v", idx, err)
		}
	}
}

func TestParseInstance(t *testing.T) {
	in, err := ParseInstance(parse(t, `{"type": "GeometryInstance", "template": 2, "boundaries": [7]}`), 3)
	if err != nil {
		t.Fatalf("ParseInstance failed: %v", err)
	}
	if in.Template != 5 || in.AnchorVertex != 7 || in.HasTransform() {
		t.Errorf("instance = %+v", in)
	}

	rotated, err := ParseInstance(parse(t, `{
		"type": "GeometryInstance", "template": 0, "boundaries": [0],
		"transformationMatrix": [0, -1, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1]
	}`), 0)
	if err != nil {
		t.Fatalf("ParseInstance failed: %v", err)
	}
	if !rotated.HasTransform() {
		t.Error("rotation matrix should be reported")
	}

	for _, bad := range []string{
		`{"boundaries": [0]}`,
		`{"template": 0, "boundaries": []}`,
		`{"template": -1, "boundaries": [0]}`,
		`{"template": 0, "boundaries": [0], "transformationMatrix": [1, 0]}`,
	} {
		if _, err := ParseInstance(parse(t, bad), 0); err == nil {
			t.Errorf("ParseInstance(%s) should fail", bad)
		}
	}
}
