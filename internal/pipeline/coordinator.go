package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/cityjson2pgsql-go/internal/city"
	"github.com/wegman-software/cityjson2pgsql-go/internal/config"
	"github.com/wegman-software/cityjson2pgsql-go/internal/document"
	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
	"github.com/wegman-software/cityjson2pgsql-go/internal/logger"
	"github.com/wegman-software/cityjson2pgsql-go/internal/metrics"
	"github.com/wegman-software/cityjson2pgsql-go/internal/proj"
	"github.com/wegman-software/cityjson2pgsql-go/internal/script"
	"github.com/wegman-software/cityjson2pgsql-go/internal/spatial"
	"github.com/wegman-software/cityjson2pgsql-go/internal/style"
	"github.com/wegman-software/cityjson2pgsql-go/internal/template"
)

// CoordinatorConfig holds the optional object filters of a run
type CoordinatorConfig struct {
	Filter *style.Filter   // nil keeps every object
	Script *script.Runtime // nil disables the Lua hook
}

// Coordinator runs an ingest: it loads every input file, reconstructs the
// geometry of each city object and collects the results.
type Coordinator struct {
	cfg     *config.Config
	pipeCfg CoordinatorConfig
}

// NewCoordinator creates a new ingest coordinator
func NewCoordinator(cfg *config.Config, pipeCfg CoordinatorConfig) *Coordinator {
	return &Coordinator{cfg: cfg, pipeCfg: pipeCfg}
}

// Run executes the ingest. Document and size problems are fatal and produce
// no output; per-object problems are returned as warnings.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	log := logger.Get()
	start := time.Now()

	if len(c.cfg.InputFiles) == 0 {
		return nil, ErrNoInput
	}

	var collector *metrics.Collector
	if c.cfg.MetricsInterval > 0 {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()

		collector = metrics.NewCollector(c.cfg.MetricsInterval, log)
		go collector.Start(metricsCtx)
		log.Info("System metrics collection started",
			zap.Duration("interval", c.cfg.MetricsInterval))
	}

	docs, err := c.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.checkSize(docs); err != nil {
		return nil, err
	}

	res := &Result{Collection: city.NewCollection()}
	res.Stats.Files = len(docs)

	params := proj.Params{
		FirstFileTranslation: proj.FirstFileTranslation(docs[0].Translate),
		WorldOrigin:          c.cfg.ModelOrigin,
		TrueNorthDegrees:     c.cfg.TrueNorthDegrees,
		UnitScale:            c.cfg.UnitScale,
		Absolute:             c.cfg.Translate,
	}
	registry := template.NewRegistry()

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.ingestFile(ctx, doc, params, registry, res); err != nil {
			return nil, err
		}
	}
	res.Stats.Templates = registry.Len()

	if n := res.Collection.LinkChildren(); n > 0 {
		log.Debug("Linked children from parent references", zap.Int("links", n))
	}
	c.applyDomain(res)

	if err := c.buildRecords(ctx, res); err != nil {
		return nil, err
	}

	res.Stats.Objects = res.Collection.Len()
	res.Stats.FilteredOut = res.Collection.Len() - len(res.Objects)
	res.Stats.Faces = len(res.Faces)
	res.Stats.FaceFailures = res.Warnings.Count(geometry.ErrFaceConstruction)
	res.Stats.Duration = time.Since(start)

	fields := []zap.Field{
		zap.Int("files", res.Stats.Files),
		zap.Int("objects", res.Stats.Objects),
		zap.Int("output_objects", len(res.Objects)),
		zap.Int("faces", res.Stats.Faces),
		zap.Int("templates", res.Stats.Templates),
		zap.Int("duplicates_skipped", res.Stats.DuplicatesSkipped),
		zap.Int("warnings", res.Warnings.Len()),
		zap.Duration("duration", res.Stats.Duration.Round(time.Millisecond)),
	}
	if collector != nil {
		fields = append(fields, zap.String("peak_rss", fmt.Sprintf("%.2f GB", collector.PeakRSSGB())))
	}
	log.Info("Ingest complete", fields...)
	return res, nil
}

// loadAll reads and validates every input file before any geometry work.
// One invalid file fails the whole run.
func (c *Coordinator) loadAll(ctx context.Context) ([]*document.Document, error) {
	log := logger.Stage("load")
	docs := make([]*document.Document, len(c.cfg.InputFiles))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())
	for i, path := range c.cfg.InputFiles {
		g.Go(func() error {
			fileStart := time.Now()
			doc, err := document.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
			docs[i] = doc

			var size int64
			if info, err := os.Stat(path); err == nil {
				size = info.Size()
			}
			log.Info("Loaded CityJSON file",
				zap.String("file", doc.FileName),
				zap.String("version", doc.Version),
				zap.Int("objects", doc.ObjectCount()),
				zap.Int("vertices", len(doc.Vertices)),
				zap.String("size", FormatBytes(size)),
				zap.Duration("duration", time.Since(fileStart).Round(time.Millisecond)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// checkSize enforces the object count guard
func (c *Coordinator) checkSize(docs []*document.Document) error {
	if c.cfg.AllowLargeFiles {
		return nil
	}
	limit := c.cfg.MaxObjects
	if limit <= 0 {
		limit = config.DefaultMaxObjects
	}
	for _, doc := range docs {
		if n := doc.ObjectCount(); n > limit {
			logger.Get().Warn("File exceeds object limit, use --allow-large-files to process it",
				zap.String("file", doc.FileName),
				zap.Int("objects", n),
				zap.Int("limit", limit))
			return fmt.Errorf("%w: %s has %d objects (limit %d)", ErrOversizedBatch, doc.FileName, n, limit)
		}
	}
	return nil
}

func (c *Coordinator) workers() int {
	if c.cfg.Workers < 1 {
		return 1
	}
	return c.cfg.Workers
}

// applyDomain filters out objects whose bounds miss the configured domain
func (c *Coordinator) applyDomain(res *Result) {
	if c.cfg.Domain == nil || !c.cfg.Domain.IsSet {
		return
	}

	idx := spatial.NewIndex()
	for _, obj := range res.Collection.Flatten() {
		idx.Insert(obj.Name, obj.Bounds())
	}
	inside := make(map[string]bool)
	for _, name := range idx.Intersecting(c.cfg.Domain.Box()) {
		inside[name] = true
	}

	removed := 0
	for _, obj := range res.Collection.Flatten() {
		if !inside[obj.Name] {
			obj.FilterOut()
			removed++
		}
	}
	logger.Stage("domain").Info("Domain filter applied",
		zap.Int("indexed", idx.Len()),
		zap.Int("kept", len(inside)),
		zap.Int("removed", removed))
}

// buildRecords flattens the collection into parallel face and surface
// record lists plus one record per object. Each object is handled in its own
// slot, so the merge runs in parallel without shared writes.
func (c *Coordinator) buildRecords(ctx context.Context, res *Result) error {
	objects := res.Collection.Flatten()

	type slot struct {
		faces   []geometry.Face
		records []city.SurfaceRecord
		object  city.ObjectRecord
		warning error
	}
	slots := make([]slot, len(objects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())
	for i, obj := range objects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			attrs, err := res.Collection.ObjectAttributes(obj)
			if err != nil {
				slots[i].warning = fmt.Errorf("attribute inheritance: %w", err)
				attrs = obj.Attributes
			}
			slots[i].faces, slots[i].records = city.SurfaceRecords(obj, attrs)
			slots[i].object = city.NewObjectRecord(obj, attrs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total := 0
	for i := range slots {
		total += len(slots[i].faces)
	}
	res.Faces = make([]geometry.Face, 0, total)
	res.Surfaces = make([]city.SurfaceRecord, 0, total)
	res.Objects = make([]city.ObjectRecord, 0, len(slots))
	for i := range slots {
		res.Faces = append(res.Faces, slots[i].faces...)
		res.Surfaces = append(res.Surfaces, slots[i].records...)
		res.Objects = append(res.Objects, slots[i].object)
		res.Warnings.Add(slots[i].warning)
	}

	logger.Stage("records").Debug("Records built",
		zap.Int("objects", len(res.Objects)),
		zap.Int("surfaces", len(res.Surfaces)))
	return nil
}
