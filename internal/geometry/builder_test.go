package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/flywave/go3d/float64/vec3"

	"github.com/wegman-software/cityjson2pgsql-go/internal/boundary"
)

const tol = 1e-2

func square(size, z float64) []vec3.T {
	return []vec3.T{{0, 0, z}, {size, 0, z}, {size, size, z}, {0, size, z}}
}

func TestBuildTriangleFastPath(t *testing.T) {
	verts := []vec3.T{{0, 0, 0}, {4, 0, 0}, {0, 3, 0}}
	face, err := Build(boundary.RingStructure{Outer: []int{0, 1, 2}}, verts, tol)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !face.Corner {
		t.Error("triangle should use the corner path")
	}
	if math.Abs(face.Area()-6) > 1e-9 {
		t.Errorf("Area() = %v, want 6", face.Area())
	}
	if math.Abs(face.Normal[2]-1) > 1e-9 {
		t.Errorf("Normal = %v, want +Z", face.Normal)
	}
}

func TestTrianglePathsAgree(t *testing.T) {
	tri := []vec3.T{{1, 2, 3}, {7, 2.5, 3.2}, {2, 9, 4}}

	fast, err := BuildCorners(tri)
	if err != nil {
		t.Fatalf("BuildCorners failed: %v", err)
	}
	general, err := BuildPlanar(tri, nil, tol)
	if err != nil {
		t.Fatalf("BuildPlanar failed: %v", err)
	}
	if math.Abs(fast.Area()-general.Area()) > 1e-9 {
		t.Errorf("fast area %v != general area %v", fast.Area(), general.Area())
	}
	if general.Corner {
		t.Error("BuildPlanar must not flag the corner path")
	}
}

func TestBuildQuadWithHoleUsesPlanarPath(t *testing.T) {
	verts := append(square(10, 5), []vec3.T{{2, 2, 5}, {4, 2, 5}, {4, 4, 5}, {2, 4, 5}}...)
	ring := boundary.RingStructure{Outer: []int{0, 1, 2, 3}, Inner: [][]int{{4, 5, 6, 7}}}

	face, err := Build(ring, verts, tol)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if face.Corner {
		t.Error("a face with holes must not use the corner path")
	}
	if len(face.Holes) != 1 {
		t.Fatalf("got %d holes, want 1", len(face.Holes))
	}
	if math.Abs(face.Area()-96) > 1e-9 {
		t.Errorf("Area() = %v, want 96", face.Area())
	}
}

func TestBuildPolygonDropsRepeatedPoints(t *testing.T) {
	// Pentagon with a duplicated vertex and an explicit closing point
	verts := []vec3.T{{0, 0, 0}, {2, 0, 0}, {2, 0, 0}, {3, 2, 0}, {1, 3, 0}, {-1, 2, 0}, {0, 0, 0}}
	ring := boundary.RingStructure{Outer: []int{0, 1, 2, 3, 4, 5, 6}}

	face, err := Build(ring, verts, tol)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(face.Outer) != 5 {
		t.Errorf("outer ring has %d points, want 5", len(face.Outer))
	}
}

func TestBuildPlanarSkipsBrokenHole(t *testing.T) {
	outer := square(10, 0)
	goodHole := []vec3.T{{1, 1, 0}, {2, 1, 0}, {2, 2, 0}}
	collinearHole := []vec3.T{{3, 3, 0}, {4, 4, 0}, {5, 5, 0}}
	offPlaneHole := []vec3.T{{6, 6, 1}, {7, 6, 1}, {7, 7, 1}}

	face, err := BuildPlanar(outer, [][]vec3.T{goodHole, collinearHole, offPlaneHole}, tol)
	if err != nil {
		t.Fatalf("BuildPlanar failed: %v", err)
	}
	if len(face.Holes) != 1 {
		t.Errorf("got %d holes, want 1", len(face.Holes))
	}
}

func TestBuildFailures(t *testing.T) {
	verts := []vec3.T{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {0, 1, 0}, {1, 1, 3}, {0, 2, 0}, {5, 5, 5}}

	tests := []struct {
		name string
		ring boundary.RingStructure
	}{
		{"collinear triangle", boundary.RingStructure{Outer: []int{0, 1, 2}}},
		{"index out of range", boundary.RingStructure{Outer: []int{0, 1, 42}}},
		{"non-planar pentagon", boundary.RingStructure{Outer: []int{0, 1, 4, 5, 3}}},
		{"two distinct points", boundary.RingStructure{Outer: []int{0, 1, 0, 1, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.ring, verts, tol)
			if !errors.Is(err, ErrFaceConstruction) {
				t.Errorf("Build() error = %v, want ErrFaceConstruction", err)
			}
		})
	}
}

func TestFaceTranslatedAndCentroid(t *testing.T) {
	face, err := BuildCorners([]vec3.T{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	if err != nil {
		t.Fatalf("BuildCorners failed: %v", err)
	}
	moved := face.Translated(vec3.T{10, 20, 30})

	c0 := face.Centroid()
	c1 := moved.Centroid()
	want := vec3.T{c0[0] + 10, c0[1] + 20, c0[2] + 30}
	for i := 0; i < 3; i++ {
		if math.Abs(c1[i]-want[i]) > 1e-6 {
			t.Fatalf("centroid = %v, want %v", c1, want)
		}
	}
	if face.Outer[0] != (vec3.T{0, 0, 0}) {
		t.Error("Translated must not modify the original face")
	}

	box := moved.Bounds()
	if box.Min != (vec3.T{10, 20, 30}) || box.Max != (vec3.T{11, 21, 30}) {
		t.Errorf("Bounds() = %v", box)
	}
}

func TestTolerance(t *testing.T) {
	if Tolerance(1) != DefaultTolerance {
		t.Errorf("Tolerance(1) = %v", Tolerance(1))
	}
	if Tolerance(1000) != DefaultTolerance*1000 {
		t.Errorf("Tolerance(1000) = %v", Tolerance(1000))
	}
	if Tolerance(0) != DefaultTolerance {
		t.Errorf("Tolerance(0) = %v", Tolerance(0))
	}
}
