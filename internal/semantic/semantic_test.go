package semantic

import (
	"reflect"
	"testing"

	"github.com/wegman-software/cityjson2pgsql-go/internal/document"
)

func parse(t *testing.T, s string) document.Value {
	t.Helper()
	v, err := document.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return v
}

func TestParseSemantics(t *testing.T) {
	geom := parse(t, `{
		"type": "Solid",
		"semantics": {
			"surfaces": [{"type": "RoofSurface", "slope": 33.4}, {"type": "WallSurface"}],
			"values": [[0, 1, null, 1]]
		}
	}`)

	s, err := ParseSemantics(geom)
	if err != nil {
		t.Fatalf("ParseSemantics failed: %v", err)
	}
	if !s.Present() {
		t.Fatal("semantics should be present")
	}
	if !reflect.DeepEqual(s.Values, []int{0, 1, -1, 1}) {
		t.Errorf("Values = %v", s.Values)
	}

	tests := []struct {
		pos  int
		want string
	}{
		{0, "RoofSurface"},
		{1, "WallSurface"},
		{2, ""},
		{3, "WallSurface"},
		{9, ""},
	}
	for _, tt := range tests {
		if got := s.SurfaceType(tt.pos); got != tt.want {
			t.Errorf("SurfaceType(%d) = %q, want %q", tt.pos, got, tt.want)
		}
	}
}

func TestParseSemanticsAbsentOrNull(t *testing.T) {
	s, err := ParseSemantics(parse(t, `{"type": "MultiSurface"}`))
	if err != nil {
		t.Fatalf("ParseSemantics failed: %v", err)
	}
	if s.Present() {
		t.Error("absent block should not be present")
	}

	s, err = ParseSemantics(parse(t, `{"semantics": {"surfaces": [{"type": "RoofSurface"}], "values": null}}`))
	if err != nil {
		t.Fatalf("ParseSemantics failed: %v", err)
	}
	if s.Values != nil || s.SurfaceType(0) != "" {
		t.Errorf("null values should leave every surface without semantics: %+v", s)
	}
}

func TestParseSemanticsErrors(t *testing.T) {
	for _, in := range []string{
		`{"semantics": {"surfaces": "x"}}`,
		`{"semantics": {"surfaces": [1]}}`,
		`{"semantics": {"surfaces": [], "values": [0, "a"]}}`,
	} {
		if _, err := ParseSemantics(parse(t, in)); err == nil {
			t.Errorf("ParseSemantics(%s) should fail", in)
		}
	}
}

func TestParseMaterials(t *testing.T) {
	geom := parse(t, `{
		"material": {
			"irradiation": {"values": [[0, 0, 1, null]]},
			"red": {"value": 3}
		}
	}`)

	m, err := ParseMaterials(geom, 4)
	if err != nil {
		t.Fatalf("ParseMaterials failed: %v", err)
	}
	want := map[string][]int{
		"irradiation": {0, 0, 1, -1},
		"red":         {3, 3, 3, 3},
	}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("ParseMaterials = %v, want %v", m, want)
	}

	empty, err := ParseMaterials(parse(t, `{}`), 4)
	if err != nil || len(empty) != 0 {
		t.Errorf("missing material block: %v, %v", empty, err)
	}

	if _, err := ParseMaterials(parse(t, `{"material": {"x": {}}}`), 1); err == nil {
		t.Error("theme without values should fail")
	}
}

func TestResolve(t *testing.T) {
	surfaces := []map[string]any{{"type": "GroundSurface"}, {"type": "RoofSurface", "slope": 12.5}}

	got := Resolve([]int{1, -1, 0, 7}, surfaces)
	if len(got) != 4 {
		t.Fatalf("got %d maps, want 4", len(got))
	}
	if got[0]["type"] != "RoofSurface" || got[0]["slope"] != 12.5 {
		t.Errorf("face 0 = %v", got[0])
	}
	if len(got[1]) != 0 || len(got[3]) != 0 {
		t.Errorf("unresolved faces should be empty: %v, %v", got[1], got[3])
	}

	got[2]["type"] = "changed"
	if surfaces[0]["type"] != "GroundSurface" {
		t.Error("Resolve must copy dictionary entries")
	}
}

func TestResolveMaterials(t *testing.T) {
	got := ResolveMaterials(map[string][]int{
		"irradiation": {0, -1, 2},
		"red":         {5},
	}, 3)

	want := []map[string]int{
		{"irradiation": 0, "red": 5},
		{},
		{"irradiation": 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveMaterials = %v, want %v", got, want)
	}
}
