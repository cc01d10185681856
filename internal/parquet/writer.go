package parquet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/cityjson2pgsql-go/internal/city"
	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
	"github.com/wegman-software/cityjson2pgsql-go/internal/wkb"
)

// Output file names
const (
	SurfacesFile = "surfaces.parquet"
	ObjectsFile  = "objects.parquet"
)

const defaultBatchSize = 10000

var surfaceSchema = arrow.NewSchema([]arrow.Field{
	{Name: "object_name", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "object_type", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "parent_name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "geo_type", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "geo_name", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "lod", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "surface_type", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "materials", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "attributes", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "area", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "geom_wkb", Type: arrow.BinaryTypes.Binary, Nullable: false},
}, nil)

var objectSchema = arrow.NewSchema([]arrow.Field{
	{Name: "name", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "type", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "parents", Type: arrow.ListOf(arrow.BinaryTypes.String), Nullable: false},
	{Name: "children", Type: arrow.ListOf(arrow.BinaryTypes.String), Nullable: false},
	{Name: "origin_file", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "attributes", Type: arrow.BinaryTypes.String, Nullable: false},
}, nil)

// tableWriter batches rows of one schema into a Zstd compressed Parquet file
type tableWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
	total     int64
}

func newTableWriter(path string, schema *arrow.Schema, batchSize int) (*tableWriter, error) {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &tableWriter{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, schema),
		batchSize: batchSize,
	}, nil
}

// rowAdded counts a completed row and flushes a full batch
func (w *tableWriter) rowAdded() error {
	w.count++
	w.total++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *tableWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

// Rows returns the number of rows written so far
func (w *tableWriter) Rows() int64 {
	return w.total
}

// Close flushes pending rows and closes the file
func (w *tableWriter) Close() error {
	defer w.builder.Release()
	if err := w.flush(); err != nil {
		w.writer.Close()
		return err
	}
	if err := w.writer.Close(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

func appendNullable(b *array.StringBuilder, s string) {
	if s == "" {
		b.AppendNull()
		return
	}
	b.Append(s)
}

func appendList(b *array.ListBuilder, values []string) {
	b.Append(true)
	vb := b.ValueBuilder().(*array.StringBuilder)
	for _, v := range values {
		vb.Append(v)
	}
}

// SurfaceWriter writes one row per face with EWKB PolygonZ geometry
type SurfaceWriter struct {
	*tableWriter
	enc *wkb.Encoder
}

// NewSurfaceWriter creates a new surface Parquet writer
func NewSurfaceWriter(path string, batchSize, srid int) (*SurfaceWriter, error) {
	tw, err := newTableWriter(path, surfaceSchema, batchSize)
	if err != nil {
		return nil, err
	}
	return &SurfaceWriter{tableWriter: tw, enc: wkb.NewEncoderWithSRID(1024, srid)}, nil
}

// Write writes a face and its record
func (w *SurfaceWriter) Write(f geometry.Face, r city.SurfaceRecord) error {
	b := w.builder
	b.Field(0).(*array.StringBuilder).Append(r.Name)
	b.Field(1).(*array.StringBuilder).Append(r.Type)
	appendNullable(b.Field(2).(*array.StringBuilder), r.ParentObjectName)
	b.Field(3).(*array.StringBuilder).Append(r.GeoType)
	b.Field(4).(*array.StringBuilder).Append(r.GeoName)
	b.Field(5).(*array.StringBuilder).Append(r.LoD)
	appendNullable(b.Field(6).(*array.StringBuilder), r.SurfaceType)
	b.Field(7).(*array.StringBuilder).Append(city.MapJSON(r.Materials))
	b.Field(8).(*array.StringBuilder).Append(city.MapJSON(r.Attributes))
	b.Field(9).(*array.Float64Builder).Append(f.Area())
	// The builder copies the bytes, so the encoder buffer can be reused
	b.Field(10).(*array.BinaryBuilder).Append(w.enc.EncodeFace(f))
	return w.rowAdded()
}

// ObjectWriter writes one row per city object
type ObjectWriter struct {
	*tableWriter
}

// NewObjectWriter creates a new object Parquet writer
func NewObjectWriter(path string, batchSize int) (*ObjectWriter, error) {
	tw, err := newTableWriter(path, objectSchema, batchSize)
	if err != nil {
		return nil, err
	}
	return &ObjectWriter{tableWriter: tw}, nil
}

// Write writes an object record
func (w *ObjectWriter) Write(r city.ObjectRecord) error {
	b := w.builder
	b.Field(0).(*array.StringBuilder).Append(r.Name)
	b.Field(1).(*array.StringBuilder).Append(r.Type)
	appendList(b.Field(2).(*array.ListBuilder), r.Parents)
	appendList(b.Field(3).(*array.ListBuilder), r.Children)
	b.Field(4).(*array.StringBuilder).Append(r.OriginFileName)
	b.Field(5).(*array.StringBuilder).Append(city.MapJSON(r.Attributes))
	return w.rowAdded()
}

// WriteSurfaces writes faces and their parallel records to dir/surfaces.parquet
func WriteSurfaces(dir string, faces []geometry.Face, records []city.SurfaceRecord, batchSize, srid int) (int64, error) {
	if len(faces) != len(records) {
		return 0, fmt.Errorf("%d faces but %d surface records", len(faces), len(records))
	}
	w, err := NewSurfaceWriter(filepath.Join(dir, SurfacesFile), batchSize, srid)
	if err != nil {
		return 0, fmt.Errorf("failed to create surface writer: %w", err)
	}
	for i, f := range faces {
		if err := w.Write(f, records[i]); err != nil {
			w.Close()
			return 0, fmt.Errorf("failed to write surface %d: %w", i, err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Rows(), nil
}

// WriteObjects writes object records to dir/objects.parquet
func WriteObjects(dir string, records []city.ObjectRecord, batchSize int) (int64, error) {
	w, err := NewObjectWriter(filepath.Join(dir, ObjectsFile), batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to create object writer: %w", err)
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			w.Close()
			return 0, fmt.Errorf("failed to write object %s: %w", r.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Rows(), nil
}
