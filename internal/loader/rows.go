package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wegman-software/cityjson2pgsql-go/internal/city"
	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
	"github.com/wegman-software/cityjson2pgsql-go/internal/pipeline"
	"github.com/wegman-software/cityjson2pgsql-go/internal/wkb"
)

type column struct {
	name string
	def  string
}

// tableSpec describes one output table
type tableSpec struct {
	schema  string
	name    string
	columns []column
	indexes []string // indexed columns; "geom" gets a GIST index
}

func surfacesSpec(schema string, srid int) *tableSpec {
	geomType := "GEOMETRY(PolygonZ)"
	if srid > 0 {
		geomType = fmt.Sprintf("GEOMETRY(PolygonZ, %d)", srid)
	}
	return &tableSpec{
		schema: schema,
		name:   SurfacesTable,
		columns: []column{
			{"object_name", "TEXT NOT NULL"},
			{"object_type", "TEXT NOT NULL"},
			{"parent_name", "TEXT"},
			{"geo_type", "TEXT NOT NULL"},
			{"geo_name", "TEXT NOT NULL"},
			{"lod", "TEXT NOT NULL"},
			{"surface_type", "TEXT"},
			{"materials", "JSONB"},
			{"attributes", "JSONB"},
			{"area", "DOUBLE PRECISION"},
			{"geom", geomType},
		},
		indexes: []string{"geom", "object_name"},
	}
}

func objectsSpec(schema string) *tableSpec {
	return &tableSpec{
		schema: schema,
		name:   ObjectsTable,
		columns: []column{
			{"name", "TEXT NOT NULL"},
			{"type", "TEXT NOT NULL"},
			{"parents", "TEXT[]"},
			{"children", "TEXT[]"},
			{"origin_file", "TEXT"},
			{"attributes", "JSONB"},
		},
		indexes: []string{"name", "type"},
	}
}

func (t *tableSpec) qualified() string {
	return pgx.Identifier{t.schema, t.name}.Sanitize()
}

func (t *tableSpec) columnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// createSQL returns an UNLOGGED CREATE TABLE statement for faster loading
func (t *tableSpec) createSQL() string {
	defs := make([]string, len(t.columns))
	for i, c := range t.columns {
		defs[i] = c.name + " " + c.def
	}
	return fmt.Sprintf("CREATE UNLOGGED TABLE IF NOT EXISTS %s (\n\t%s\n)",
		t.qualified(), strings.Join(defs, ",\n\t"))
}

func (t *tableSpec) indexSQL() []string {
	stmts := make([]string, 0, len(t.indexes))
	for _, col := range t.indexes {
		using := ""
		if col == "geom" {
			using = " USING GIST"
		}
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s%s (%s)",
			pgx.Identifier{t.name + "_" + col + "_idx"}.Sanitize(), t.qualified(), using, col))
	}
	return stmts
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// surfaceRow converts one face and its record into a COPY row.
// The geometry bytes are copied out of the shared encoder buffer.
func surfaceRow(enc *wkb.Encoder, f geometry.Face, r city.SurfaceRecord) []any {
	geom := append([]byte(nil), enc.EncodeFace(f)...)
	return []any{
		r.Name,
		r.Type,
		nullable(r.ParentObjectName),
		r.GeoType,
		r.GeoName,
		r.LoD,
		nullable(r.SurfaceType),
		city.MapJSON(r.Materials),
		city.MapJSON(r.Attributes),
		f.Area(),
		geom,
	}
}

func objectRow(r city.ObjectRecord) []any {
	return []any{
		r.Name,
		r.Type,
		r.Parents,
		r.Children,
		nullable(r.OriginFileName),
		city.MapJSON(r.Attributes),
	}
}

func produceSurfaceRows(ctx context.Context, res *pipeline.Result, srid int, rows chan<- []any) {
	defer close(rows)
	enc := wkb.NewEncoderWithSRID(1024, srid)
	for i, f := range res.Faces {
		select {
		case rows <- surfaceRow(enc, f, res.Surfaces[i]):
		case <-ctx.Done():
			return
		}
	}
}

func produceObjectRows(ctx context.Context, res *pipeline.Result, rows chan<- []any) {
	defer close(rows)
	for _, r := range res.Objects {
		select {
		case rows <- objectRow(r):
		case <-ctx.Done():
			return
		}
	}
}
