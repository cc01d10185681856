package boundary

import (
	"reflect"
	"strings"
	"testing"

	"github.com/wegman-software/cityjson2pgsql-go/internal/document"
)

func mustParse(t *testing.T, s string) document.Value {
	t.Helper()
	v, err := document.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%s) failed: %v", s, err)
	}
	return v
}

func resolve(b document.Value) ([]RingStructure, error) {
	out, _, err := Resolve(b, 0)
	return out, err
}

func TestResolveMultiSurface(t *testing.T) {
	b := mustParse(t, `[[[0, 1, 2]], [[3, 4, 5, 6], [7, 8, 9]]]`)

	got, err := resolve(b)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	want := []RingStructure{
		{Outer: []int{0, 1, 2}, Position: 0},
		{Outer: []int{3, 4, 5, 6}, Inner: [][]int{{7, 8, 9}}, Position: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %+v, want %+v", got, want)
	}
}

func TestResolveIsDepthAgnostic(t *testing.T) {
	multiSurface := mustParse(t, `[[[0, 1, 2, 3]], [[4, 5, 6], [7, 8, 9]], [[10, 11, 12]]]`)
	solid := mustParse(t, `[[[[0, 1, 2, 3]], [[4, 5, 6], [7, 8, 9]], [[10, 11, 12]]]]`)

	a, err := resolve(multiSurface)
	if err != nil {
		t.Fatalf("resolve(MultiSurface) failed: %v", err)
	}
	b, err := resolve(solid)
	if err != nil {
		t.Fatalf("resolve(Solid) failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("MultiSurface and Solid flatten differently:\n%+v\n%+v", a, b)
	}
}

func TestResolveFlattensAllShells(t *testing.T) {
	// Outer shell with two surfaces, inner (cavity) shell with one
	solid := mustParse(t, `[[[[0, 1, 2]], [[1, 2, 3]]], [[[4, 5, 6]]]]`)
	got, err := resolve(solid)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d surfaces, want 3", len(got))
	}
	if !reflect.DeepEqual(got[2].Outer, []int{4, 5, 6}) {
		t.Errorf("cavity surface = %v, want [4 5 6]", got[2].Outer)
	}
}

func TestResolveMultiSolid(t *testing.T) {
	ms := mustParse(t, `[[[[[0, 1, 2]]]], [[[[3, 4, 5]], [[6, 7, 8]]]]]`)

	solids, err := Solids(ms)
	if err != nil {
		t.Fatalf("Solids failed: %v", err)
	}
	if len(solids) != 2 {
		t.Fatalf("got %d solids, want 2", len(solids))
	}

	var counts []int
	for _, s := range solids {
		rings, err := resolve(s)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		counts = append(counts, len(rings))
	}
	if !reflect.DeepEqual(counts, []int{1, 2}) {
		t.Errorf("surfaces per solid = %v, want [1 2]", counts)
	}

	// Resolving the whole MultiSolid at once gives the same surfaces in order
	all, err := resolve(ms)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(all) != 3 || all[2].Outer[0] != 6 {
		t.Errorf("resolve(MultiSolid) = %+v", all)
	}
}

func TestResolveSkipsEmptyRings(t *testing.T) {
	b := mustParse(t, `[[[]], [[0, 1, 2], []], [[3, 4, 5]]]`)
	got, err := resolve(b)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := []RingStructure{
		{Outer: []int{0, 1, 2}, Position: 1},
		{Outer: []int{3, 4, 5}, Position: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %+v, want %+v", got, want)
	}
}

func TestResolveEmptyLeadingShell(t *testing.T) {
	got, err := resolve(mustParse(t, `[[], [[[0, 1, 2]]]]`))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(got) != 1 || !reflect.DeepEqual(got[0].Outer, []int{0, 1, 2}) {
		t.Errorf("Resolve = %+v", got)
	}
	if got[0].Position != 0 {
		t.Errorf("Position = %d, want 0 (empty shell holds no surface)", got[0].Position)
	}
}

func TestResolveNumbersSolidsConsecutively(t *testing.T) {
	solids, err := Solids(mustParse(t, `[[[[[0, 1, 2]], [[]]]], [[[[3, 4, 5]]]]]`))
	if err != nil {
		t.Fatalf("Solids failed: %v", err)
	}

	next := 0
	var positions []int
	for _, s := range solids {
		var rings []RingStructure
		rings, next, err = Resolve(s, next)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		for _, r := range rings {
			positions = append(positions, r.Position)
		}
	}
	if !reflect.DeepEqual(positions, []int{0, 2}) || next != 3 {
		t.Errorf("positions = %v, next = %d, want [0 2] and 3", positions, next)
	}
}

func TestWalkErrorPath(t *testing.T) {
	_, err := FlattenValues(mustParse(t, `[[0, 1], [2, "x"]]`))
	if err == nil {
		t.Fatal("FlattenValues should fail on a string value")
	}
	if !strings.HasPrefix(err.Error(), "$[1][1]: ") {
		t.Errorf("error = %q, want it to start with the value path", err)
	}
}

func TestResolveRejectsBadIndices(t *testing.T) {
	for _, s := range []string{`[[[0, "a", 2]]]`, `[[[0, -1, 2]]]`, `[[[0, 1.5, 2]]]`, `"x"`} {
		if _, err := resolve(mustParse(t, s)); err == nil {
			t.Errorf("resolve(%s) should fail", s)
		}
	}
}

func TestFlattenValues(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{`[0, 1, null, 2]`, []int{0, 1, -1, 2}},
		{`[[0, 1], [null]]`, []int{0, 1, -1}},
		{`[[[0], [1, 1]], [[2]]]`, []int{0, 1, 1, 2}},
		{`[]`, nil},
	}
	for _, tt := range tests {
		got, err := FlattenValues(mustParse(t, tt.in))
		if err != nil {
			t.Fatalf("FlattenValues(%s) failed: %v", tt.in, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FlattenValues(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRingStructureHelpers(t *testing.T) {
	tri := RingStructure{Outer: []int{0, 1, 2}}
	if !tri.IsSimple() || tri.VertexCount() != 3 {
		t.Errorf("triangle: IsSimple=%v VertexCount=%d", tri.IsSimple(), tri.VertexCount())
	}
	holed := RingStructure{Outer: []int{0, 1, 2, 3}, Inner: [][]int{{4, 5, 6}}}
	if holed.IsSimple() || holed.VertexCount() != 7 {
		t.Errorf("holed quad: IsSimple=%v VertexCount=%d", holed.IsSimple(), holed.VertexCount())
	}
	penta := RingStructure{Outer: []int{0, 1, 2, 3, 4}}
	if penta.IsSimple() {
		t.Error("pentagon should not be simple")
	}
}
