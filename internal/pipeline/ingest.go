package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/flywave/go3d/float64/vec3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/cityjson2pgsql-go/internal/city"
	"github.com/wegman-software/cityjson2pgsql-go/internal/document"
	"github.com/wegman-software/cityjson2pgsql-go/internal/geometry"
	"github.com/wegman-software/cityjson2pgsql-go/internal/logger"
	"github.com/wegman-software/cityjson2pgsql-go/internal/proj"
	"github.com/wegman-software/cityjson2pgsql-go/internal/script"
	"github.com/wegman-software/cityjson2pgsql-go/internal/template"
)

// fileContext is the per-file state shared read-only by object builders
type fileContext struct {
	doc       *document.Document
	vertices  []vec3.T
	offset    int // global index of the file's first template
	registry  *template.Registry
	tolerance float64
}

// pendingObject is one city object awaiting geometry
type pendingObject struct {
	obj      *city.CityObject
	node     document.Value
	warnings Warnings
}

// ingestFile reconstructs every object of one file and adds the results to
// the collection in file order.
func (c *Coordinator) ingestFile(ctx context.Context, doc *document.Document, params proj.Params, registry *template.Registry, res *Result) error {
	log := logger.Stage("ingest")
	start := time.Now()

	tr := proj.NewTransformer(doc.Scale, doc.Translate, params)
	tolerance := geometry.Tolerance(c.cfg.UnitScale)

	offset, templateWarnings := registry.Register(doc.Templates, tr, tolerance)
	for _, w := range templateWarnings {
		res.Warnings.Add(fmt.Errorf("%s: %w", doc.FileName, w))
	}

	fc := &fileContext{
		doc:       doc,
		vertices:  tr.TransformAll(doc.Vertices),
		offset:    offset,
		registry:  registry,
		tolerance: tolerance,
	}

	pending := c.collectObjects(doc, res)

	tracker := NewProgressTracker(int64(len(pending)), doc.FileName)
	var built atomic.Int64
	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()
	go reportProgress(progressCtx, tracker, &built)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())
	for _, p := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.buildObject(p, fc)
			built.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	cancelProgress()

	for _, p := range pending {
		res.Warnings.Merge(p.warnings)
		c.applyFilters(p.obj, res)
		if err := res.Collection.Add(p.obj); err != nil {
			return err
		}
	}

	log.Info("File ingested",
		zap.String("file", doc.FileName),
		zap.Int("objects", len(pending)),
		zap.Int("templates", registry.Len()-offset),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	return nil
}

// collectObjects parses the non-geometry part of every object, skipping
// names already present in the collection or earlier in the same file.
func (c *Coordinator) collectObjects(doc *document.Document, res *Result) []*pendingObject {
	log := logger.Stage("ingest")
	keys := doc.CityObjects.Keys()
	pending := make([]*pendingObject, 0, len(keys))
	seen := make(map[string]bool, len(keys))

	for _, key := range keys {
		node, _ := doc.CityObjects.Get(key)
		obj, err := city.ParseObject(doc.FileName, key, node)
		if err != nil {
			res.Warnings.Add(fmt.Errorf("%s: %w", doc.FileName, err))
			continue
		}
		if seen[obj.Name] || res.Collection.Contains(obj.Name) {
			log.Debug("Skipping duplicate city object",
				zap.String("name", obj.Name),
				zap.String("file", doc.FileName))
			res.Stats.DuplicatesSkipped++
			continue
		}
		seen[obj.Name] = true
		pending = append(pending, &pendingObject{obj: obj, node: node})
	}
	return pending
}

// buildObject reconstructs the geometry nodes of one object. It only writes
// to p, so calls for different objects can run concurrently.
func (c *Coordinator) buildObject(p *pendingObject, fc *fileContext) {
	obj := p.obj
	geomVal, ok := p.node.Get("geometry")
	if !ok || geomVal.IsNull() {
		obj.SetGeometry(nil)
		return
	}
	nodes, err := geomVal.AsArray()
	if err != nil {
		p.warnings.Add(fmt.Errorf("object %s: geometry: %w", obj.Name, err))
		obj.SetGeometry(nil)
		return
	}

	var geoms []city.GeoObject
	for i, node := range nodes {
		geoType, err := node.StringField("type")
		if err != nil {
			p.warnings.Add(fmt.Errorf("object %s: geometry %d: %w", obj.Name, i, err))
			continue
		}

		var g city.GeoObject
		if geoType == city.TypeGeometryInstance {
			if obj.IsTemplated {
				p.warnings.Addf("object %s: geometry %d: only the first GeometryInstance is used", obj.Name, i)
				continue
			}
			g, err = c.placeInstance(obj, node, fc)
			if err != nil {
				p.warnings.Add(fmt.Errorf("object %s: geometry %d: %w", obj.Name, i, err))
				continue
			}
			if !c.cfg.LoDSelected(g.LoD) {
				continue
			}
		} else {
			lod, err := city.LoD(node)
			if err != nil {
				p.warnings.Add(fmt.Errorf("object %s: geometry %d: %w", obj.Name, i, err))
				continue
			}
			if !c.cfg.LoDSelected(lod) {
				continue
			}
			g, err = city.BuildGeoObject(node, fc.vertices, fc.tolerance, obj.Name)
			if err != nil {
				p.warnings.Add(fmt.Errorf("object %s: geometry %d: %w", obj.Name, i, err))
				continue
			}
			for _, verr := range g.ValueErrors() {
				p.warnings.Add(fmt.Errorf("object %s: %s: %w", obj.Name, g.GeoName, verr))
			}
		}

		if g.HadFailures() {
			p.warnings.Add(fmt.Errorf("object %s: %s: %d of %d surfaces skipped: %w",
				obj.Name, g.GeoName, g.Failures, g.SurfaceCount, geometry.ErrFaceConstruction))
		}
		geoms = append(geoms, g)
	}
	obj.SetGeometry(geoms)
}

// placeInstance resolves a GeometryInstance node against the registry
func (c *Coordinator) placeInstance(obj *city.CityObject, node document.Value, fc *fileContext) (city.GeoObject, error) {
	in, err := template.ParseInstance(node, fc.offset)
	if err != nil {
		return city.GeoObject{}, err
	}
	if in.AnchorVertex < 0 || in.AnchorVertex >= len(fc.vertices) {
		return city.GeoObject{}, fmt.Errorf("anchor vertex %d out of range (%d vertices)", in.AnchorVertex, len(fc.vertices))
	}
	anchor := fc.vertices[in.AnchorVertex]

	g, err := fc.registry.Resolve(in.Template, anchor)
	if err != nil {
		return g, err
	}
	if in.HasTransform() {
		logger.Get().Warn("Ignoring GeometryInstance transformation matrix, only the anchor translation is applied",
			zap.String("object", obj.Name),
			zap.Int("template", in.Template))
	}

	g.SuperName = obj.Name
	obj.Template = &city.TemplateObject{Index: in.Template, Anchor: anchor}
	obj.IsTemplated = true
	return g, nil
}

// applyFilters runs the style filter and the Lua hook on a built object.
// Rejected objects are kept in the collection in the FilteredOut state.
func (c *Coordinator) applyFilters(obj *city.CityObject, res *Result) {
	if obj.IsFilteredOut {
		return
	}
	if f := c.pipeCfg.Filter; f != nil && f.HasFilter() && !f.MatchObject(obj.Type, obj.Attributes) {
		obj.FilterOut()
		return
	}
	rt := c.pipeCfg.Script
	if rt == nil || !rt.HasProcessObject() {
		return
	}
	keep, attrs, err := rt.ProcessObject(script.Object{
		Name:       obj.Name,
		Type:       obj.Type,
		File:       obj.OriginFileName,
		Parents:    obj.Parents,
		Children:   obj.Children,
		LoDs:       obj.LoDs(),
		Attributes: obj.Attributes,
	})
	if err != nil {
		res.Warnings.Add(err)
		return
	}
	obj.Attributes = attrs
	if !keep {
		obj.FilterOut()
	}
}
