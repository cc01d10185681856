package pipeline

import (
	"sort"

	"github.com/flywave/go3d/float64/vec3"

	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
)

// Summary holds per-type counts of an ingest result
type Summary struct {
	ObjectsByType      map[string]int
	FacesByObjectType  map[string]int
	FacesBySurfaceType map[string]int // faces without semantics count under ""
	FacesByLoD         map[string]int
	FacesByGeoType     map[string]int
	Bounds             vec3.Box
	TotalArea          float64
}

// Summarize counts the output objects and faces of res
func Summarize(res *Result) Summary {
	s := Summary{
		ObjectsByType:      make(map[string]int),
		FacesByObjectType:  make(map[string]int),
		FacesBySurfaceType: make(map[string]int),
		FacesByLoD:         make(map[string]int),
		FacesByGeoType:     make(map[string]int),
		Bounds:             geometry.EmptyBox(),
	}
	for _, obj := range res.Objects {
		s.ObjectsByType[obj.Type]++
	}
	for i, rec := range res.Surfaces {
		s.FacesByObjectType[rec.Type]++
		s.FacesBySurfaceType[rec.SurfaceType]++
		s.FacesByLoD[rec.LoD]++
		s.FacesByGeoType[rec.GeoType]++

		f := res.Faces[i]
		b := f.Bounds()
		s.Bounds.Join(&b)
		s.TotalArea += f.Area()
	}
	return s
}

// SortedKeys returns the keys of a count map ordered by descending count,
// then by name
func SortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
