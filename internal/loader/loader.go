package loader

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/cityjson2pgsql-go/internal/config"
	"github.com/wegman-software/cityjson2pgsql-go/internal/logger"
	"github.com/wegman-software/cityjson2pgsql-go/internal/pipeline"
)

// Table names
const (
	SurfacesTable = "city_surfaces"
	ObjectsTable  = "city_objects"
)

// Stats holds loader statistics
type Stats struct {
	SurfacesLoaded atomic.Int64
	ObjectsLoaded  atomic.Int64
	StartTime      time.Time
}

// Rates returns rows per second for each table
func (s *Stats) Rates() (surfaces, objects float64) {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed < 0.1 {
		return 0, 0
	}
	return float64(s.SurfacesLoaded.Load()) / elapsed,
		float64(s.ObjectsLoaded.Load()) / elapsed
}

// Options controls how tables are prepared
type Options struct {
	DropExisting  bool
	CreateIndexes bool
}

// Loader loads ingest results into PostGIS
type Loader struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	stats *Stats
}

// NewLoader creates a new PostgreSQL loader
func NewLoader(ctx context.Context, cfg *config.Config) (*Loader, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	// One connection per table plus one for setup
	maxConns := cfg.Workers
	if maxConns < 3 {
		maxConns = 3
	}
	poolConfig.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &Loader{
		cfg:   cfg,
		pool:  pool,
		stats: &Stats{StartTime: time.Now()},
	}, nil
}

// Stats returns the live loading statistics
func (l *Loader) Stats() *Stats {
	return l.stats
}

// Close closes all database connections
func (l *Loader) Close() error {
	l.pool.Close()
	return nil
}

// EnsureSchema creates the PostGIS extension and schema if needed
func (l *Loader) EnsureSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return fmt.Errorf("failed to create PostGIS extension: %w", err)
	}
	if l.cfg.DBSchema != "public" {
		if _, err := l.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{l.cfg.DBSchema}.Sanitize())); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Load writes the surfaces and objects of res into their tables. The two
// tables are loaded in parallel, then indexed.
func (l *Loader) Load(ctx context.Context, res *pipeline.Result, opts Options) error {
	log := logger.Get()
	start := time.Now()

	if err := l.EnsureSchema(ctx); err != nil {
		return err
	}

	tables := []*tableSpec{
		surfacesSpec(l.cfg.DBSchema, l.cfg.SRID),
		objectsSpec(l.cfg.DBSchema),
	}
	for _, t := range tables {
		if err := l.PrepareTable(ctx, t, opts.DropExisting); err != nil {
			return fmt.Errorf("prepare %s: %w", t.name, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows := make(chan []any, l.cfg.BatchSize)
		go produceSurfaceRows(gctx, res, l.cfg.SRID, rows)
		n, err := l.copyRows(gctx, tables[0], rows, &l.stats.SurfacesLoaded)
		if err != nil {
			return err
		}
		log.Info("Table loaded", zap.String("table", tables[0].name), zap.Int64("rows", n))
		return nil
	})
	g.Go(func() error {
		rows := make(chan []any, l.cfg.BatchSize)
		go produceObjectRows(gctx, res, rows)
		n, err := l.copyRows(gctx, tables[1], rows, &l.stats.ObjectsLoaded)
		if err != nil {
			return err
		}
		log.Info("Table loaded", zap.String("table", tables[1].name), zap.Int64("rows", n))
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.CreateIndexes {
		ig, ictx := errgroup.WithContext(ctx)
		for _, t := range tables {
			ig.Go(func() error {
				return l.CreateIndexes(ictx, t)
			})
		}
		if err := ig.Wait(); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	surfaceRate, objectRate := l.stats.Rates()
	log.Info("Load complete",
		zap.Int64("surfaces", l.stats.SurfacesLoaded.Load()),
		zap.Int64("objects", l.stats.ObjectsLoaded.Load()),
		zap.String("surface_rate", pipeline.FormatThroughput(surfaceRate)),
		zap.String("object_rate", pipeline.FormatThroughput(objectRate)),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	return nil
}

// PrepareTable creates or truncates a table for loading
func (l *Loader) PrepareTable(ctx context.Context, t *tableSpec, dropExisting bool) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if dropExisting {
		if _, err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", t.qualified())); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	if _, err := conn.Exec(ctx, t.createSQL()); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	if !dropExisting {
		if _, err := conn.Exec(ctx, fmt.Sprintf("TRUNCATE %s", t.qualified())); err != nil {
			return fmt.Errorf("failed to truncate table: %w", err)
		}
	}
	return nil
}

// copyRows streams rows into t with the COPY protocol. PostGIS accepts raw
// EWKB bytes for geometry columns.
func (l *Loader) copyRows(ctx context.Context, t *tableSpec, rows <-chan []any, counter *atomic.Int64) (int64, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	logger.Get().Info("Starting table load", zap.String("table", t.name))

	n, err := conn.Conn().CopyFrom(
		ctx,
		pgx.Identifier{t.schema, t.name},
		t.columnNames(),
		&rowSource{rows: rows, counter: counter},
	)
	if err != nil {
		// Drain so the producer can exit
		for range rows {
		}
		return 0, fmt.Errorf("COPY into %s failed: %w", t.name, err)
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s SET LOGGED", t.qualified())); err != nil {
		logger.Get().Debug("Table left unlogged", zap.String("table", t.name), zap.Error(err))
	}
	return n, nil
}

// CreateIndexes creates the spatial and name indexes of a table
func (l *Loader) CreateIndexes(ctx context.Context, t *tableSpec) error {
	log := logger.Get()
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SET maintenance_work_mem = '1GB'"); err != nil {
		log.Debug("Could not raise maintenance_work_mem", zap.Error(err))
	}

	log.Info("Creating indexes", zap.String("table", t.name))
	for _, stmt := range t.indexSQL() {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("ANALYZE %s", t.qualified())); err != nil {
		return fmt.Errorf("failed to analyze %s: %w", t.name, err)
	}
	log.Info("Indexes created", zap.String("table", t.name))
	return nil
}

// rowSource implements pgx.CopyFromSource for streaming rows from a channel
type rowSource struct {
	rows    <-chan []any
	current []any
	counter *atomic.Int64
}

func (r *rowSource) Next() bool {
	row, ok := <-r.rows
	if !ok {
		return false
	}
	r.current = row
	if r.counter != nil {
		r.counter.Add(1)
	}
	return true
}

func (r *rowSource) Values() ([]any, error) {
	return r.current, nil
}

func (r *rowSource) Err() error {
	return nil
}
