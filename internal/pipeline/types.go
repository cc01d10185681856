package pipeline

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/wegman-software/cityjson2pgsql-go/internal/city"
	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
)

// ErrOversizedBatch is returned when a file has more city objects than the
// configured limit and large files are not allowed
var ErrOversizedBatch = errors.New("too many city objects")

// ErrNoInput is returned when a run is started without input files
var ErrNoInput = errors.New("no input files")

// Warnings collects recoverable problems of an ingest run
type Warnings struct {
	errs []error
}

// Add records a warning. nil is ignored.
func (w *Warnings) Add(err error) {
	if err != nil {
		w.errs = append(w.errs, err)
	}
}

// Addf records a formatted warning
func (w *Warnings) Addf(format string, args ...any) {
	w.errs = append(w.errs, fmt.Errorf(format, args...))
}

// Merge appends all warnings of other
func (w *Warnings) Merge(other Warnings) {
	w.errs = append(w.errs, other.errs...)
}

// Len returns the number of warnings
func (w Warnings) Len() int { return len(w.errs) }

// Errors returns the individual warnings in the order they were raised
func (w Warnings) Errors() []error { return w.errs }

// Err combines all warnings into one error, nil when there are none
func (w Warnings) Err() error { return multierr.Combine(w.errs...) }

// Count returns how many warnings match target
func (w Warnings) Count(target error) int {
	n := 0
	for _, err := range w.errs {
		if errors.Is(err, target) {
			n++
		}
	}
	return n
}

// Result is the output of an ingest run. Faces and Surfaces are parallel:
// Surfaces[i] describes Faces[i].
type Result struct {
	Collection *city.Collection
	Faces      []geometry.Face
	Surfaces   []city.SurfaceRecord
	Objects    []city.ObjectRecord
	Warnings   Warnings
	Stats      IngestStats
}

// IngestStats holds counters of an ingest run
type IngestStats struct {
	Files             int
	Objects           int // stored in the collection, filtered-out included
	DuplicatesSkipped int
	FilteredOut       int
	Templates         int
	Faces             int
	FaceFailures      int
	Duration          time.Duration
}
