package spatial

import (
	"sort"
	"testing"

	"github.com/flywave/go3d/float64/vec3"

	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
)

func box(minX, minY, minZ, maxX, maxY, maxZ float64) vec3.Box {
	return vec3.Box{Min: vec3.T{minX, minY, minZ}, Max: vec3.T{maxX, maxY, maxZ}}
}

func TestIntersecting(t *testing.T) {
	idx := NewIndex()
	idx.Insert("inside", box(1, 1, 0, 2, 2, 10))
	idx.Insert("straddling", box(9, 9, 0, 12, 12, 5))
	idx.Insert("outside", box(20, 20, 0, 30, 30, 5))
	idx.Insert("above", box(1, 1, 100, 2, 2, 110))
	idx.Insert("flat", box(5, 5, 0, 6, 6, 0))

	if idx.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", idx.Len())
	}

	got := idx.Intersecting(box(0, 0, 0, 10, 10, 50))
	sort.Strings(got)
	want := []string{"flat", "inside", "straddling"}
	if len(got) != len(want) {
		t.Fatalf("Intersecting = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Intersecting = %v, want %v", got, want)
			break
		}
	}
}

func TestInsertIgnoresEmptyBox(t *testing.T) {
	idx := NewIndex()
	if idx.Insert("none", geometry.EmptyBox()) {
		t.Error("empty box should not be inserted")
	}
	if idx.Len() != 0 {
		t.Errorf("Len() = %d, want 0", idx.Len())
	}
}
