package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flywave/go3d/float64/vec3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/wegman-software/cityjson2pgsql-go/internal/city"
	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
	"github.com/wegman-software/cityjson2pgsql-go/internal/pipeline"
)

func testResult() *pipeline.Result {
	// Ground surface wound clockwise when seen from above
	ground := geometry.Face{Outer: []vec3.T{{0, 0, 0}, {0, 4, 0}, {4, 4, 0}, {4, 0, 0}}}
	roof := geometry.Face{Outer: []vec3.T{{0, 0, 10}, {4, 0, 10}, {4, 4, 10}, {0, 4, 10}}}
	wall := geometry.Face{Outer: []vec3.T{{10, 10, 0}, {12, 10, 0}, {12, 10, 3}, {10, 10, 3}}}

	return &pipeline.Result{
		Faces: []geometry.Face{ground, roof, wall},
		Surfaces: []city.SurfaceRecord{
			{Name: "B1", LoD: "2", SurfaceType: "GroundSurface"},
			{Name: "B1", LoD: "2", SurfaceType: "RoofSurface"},
			{Name: "Wall1", LoD: "1"},
		},
		Objects: []city.ObjectRecord{
			{Name: "B1", Type: "Building", Attributes: map[string]any{"function": "office"}},
			{Name: "Wall1", Type: "CityFurniture", Parents: []string{"B1"}},
			{Name: "Empty", Type: "Building"},
		},
	}
}

func TestFootprints(t *testing.T) {
	fc := Footprints(testResult())
	if len(fc.Features) != 2 {
		t.Fatalf("got %d features, want 2", len(fc.Features))
	}

	b1 := fc.Features[0]
	mp, ok := b1.Geometry.(orb.MultiPolygon)
	if !ok {
		t.Fatalf("B1 geometry is %T, want MultiPolygon", b1.Geometry)
	}
	ring := mp[0][0]
	if !ring.Closed() || len(ring) != 5 {
		t.Errorf("ring not closed: %v", ring)
	}
	if ring.Orientation() != orb.CCW {
		t.Error("outer ring should be counter-clockwise")
	}
	if b1.Properties["source"] != SourceGround {
		t.Errorf("source = %v", b1.Properties["source"])
	}
	if b1.Properties["area"] != 16.0 || b1.Properties["height"] != 10.0 {
		t.Errorf("area = %v height = %v", b1.Properties["area"], b1.Properties["height"])
	}
	if _, ok := b1.Properties["parent"]; ok {
		t.Error("B1 has no parent")
	}

	wall := fc.Features[1]
	if _, ok := wall.Geometry.(orb.Polygon); !ok {
		t.Fatalf("Wall1 geometry is %T, want Polygon", wall.Geometry)
	}
	if wall.Properties["source"] != SourceBounds || wall.Properties["parent"] != "B1" {
		t.Errorf("properties = %v", wall.Properties)
	}
	// A vertical wall has a degenerate XY bound
	if wall.Properties["area"] != 0.0 {
		t.Errorf("area = %v, want 0", wall.Properties["area"])
	}
}

func TestWriteFootprints(t *testing.T) {
	dir := t.TempDir()
	n, err := WriteFootprints(dir, testResult())
	if err != nil {
		t.Fatalf("WriteFootprints failed: %v", err)
	}
	if n != 2 {
		t.Errorf("features = %d, want 2", n)
	}

	b, err := os.ReadFile(filepath.Join(dir, FootprintsFile))
	if err != nil {
		t.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		t.Fatalf("output is not valid GeoJSON: %v", err)
	}
	if len(fc.Features) != 2 || fc.Features[0].Properties.MustString("name") != "B1" {
		t.Errorf("unexpected features: %+v", fc.Features)
	}
}
