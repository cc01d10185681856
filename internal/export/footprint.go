package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/flywave/go3d/float64/vec3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
	"github.com/wegman-software/cityjson2pgsql-go/internal/pipeline"
)

// FootprintsFile is the GeoJSON output file name
const FootprintsFile = "footprints.geojson"

// groundSurface is the semantic type used for footprints when present
const groundSurface = "GroundSurface"

// Footprint sources
const (
	SourceGround = "ground"
	SourceBounds = "bbox"
)

type objectFaces struct {
	ground []geometry.Face
	box    vec3.Box
	lods   []string
}

// Footprints builds one 2D feature per output object. Objects with ground
// surfaces get their union as a MultiPolygon, the others their XY bounds.
func Footprints(res *pipeline.Result) *geojson.FeatureCollection {
	byName := make(map[string]*objectFaces, len(res.Objects))
	for i, rec := range res.Surfaces {
		of := byName[rec.Name]
		if of == nil {
			of = &objectFaces{box: geometry.EmptyBox()}
			byName[rec.Name] = of
		}
		f := res.Faces[i]
		fb := f.Bounds()
		of.box.Join(&fb)
		if rec.SurfaceType == groundSurface {
			of.ground = append(of.ground, f)
		}
		if !slices.Contains(of.lods, rec.LoD) {
			of.lods = append(of.lods, rec.LoD)
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, obj := range res.Objects {
		of := byName[obj.Name]
		if of == nil || geometry.IsEmptyBox(of.box) {
			continue
		}

		var geom orb.Geometry
		source := SourceGround
		if len(of.ground) > 0 {
			geom = groundPolygons(of.ground)
		} else {
			source = SourceBounds
			geom = orb.Bound{
				Min: orb.Point{of.box.Min[0], of.box.Min[1]},
				Max: orb.Point{of.box.Max[0], of.box.Max[1]},
			}.ToPolygon()
		}

		slices.Sort(of.lods)
		feat := geojson.NewFeature(geom)
		feat.Properties["name"] = obj.Name
		feat.Properties["type"] = obj.Type
		if len(obj.Parents) > 0 {
			feat.Properties["parent"] = obj.Parents[0]
		}
		feat.Properties["lods"] = of.lods
		feat.Properties["min_z"] = of.box.Min[2]
		feat.Properties["max_z"] = of.box.Max[2]
		feat.Properties["height"] = of.box.Max[2] - of.box.Min[2]
		feat.Properties["area"] = math.Abs(planar.Area(geom))
		feat.Properties["source"] = source
		if len(obj.Attributes) > 0 {
			feat.Properties["attributes"] = obj.Attributes
		}
		fc.Append(feat)
	}
	return fc
}

// groundPolygons projects faces onto the XY plane
func groundPolygons(faces []geometry.Face) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(faces))
	for _, f := range faces {
		poly := orb.Polygon{ring2D(f.Outer, orb.CCW)}
		for _, h := range f.Holes {
			poly = append(poly, ring2D(h, orb.CW))
		}
		mp = append(mp, poly)
	}
	return mp
}

// ring2D drops Z, closes the ring and orients it
func ring2D(points []vec3.T, orientation orb.Orientation) orb.Ring {
	r := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		r = append(r, orb.Point{p[0], p[1]})
	}
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	if r.Orientation() != orientation {
		r.Reverse()
	}
	return r
}

// WriteFootprints writes the footprints of res to dir/footprints.geojson
// and returns the number of features.
func WriteFootprints(dir string, res *pipeline.Result) (int, error) {
	fc := Footprints(res)
	b, err := fc.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("failed to encode footprints: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FootprintsFile), b, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write footprints: %w", err)
	}
	return len(fc.Features), nil
}
