package spatial

import (
	"github.com/dhconnelly/rtreego"
	"github.com/flywave/go3d/float64/vec3"

	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
)

// minLength keeps flat or point-like boxes queryable; rtreego rejects
// zero-length sides.
const minLength = 1e-6

// Index is a 3D R-tree over named bounding boxes
type Index struct {
	tree  *rtreego.Rtree
	count int
}

type entry struct {
	name string
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial
func (e *entry) Bounds() rtreego.Rect {
	return e.rect
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{tree: rtreego.NewTree(3, 25, 50)}
}

// Insert adds a named box. Empty boxes are ignored.
func (idx *Index) Insert(name string, box vec3.Box) bool {
	if geometry.IsEmptyBox(box) {
		return false
	}
	idx.tree.Insert(&entry{name: name, rect: toRect(box)})
	idx.count++
	return true
}

// Len returns the number of indexed boxes
func (idx *Index) Len() int { return idx.count }

// Intersecting returns the names of all boxes that intersect query
func (idx *Index) Intersecting(query vec3.Box) []string {
	results := idx.tree.SearchIntersect(toRect(query))
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.(*entry).name)
	}
	return names
}

func toRect(box vec3.Box) rtreego.Rect {
	point := rtreego.Point{box.Min[0], box.Min[1], box.Min[2]}
	lengths := make([]float64, 3)
	for i := 0; i < 3; i++ {
		lengths[i] = box.Max[i] - box.Min[i]
		if lengths[i] < minLength {
			lengths[i] = minLength
		}
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}
