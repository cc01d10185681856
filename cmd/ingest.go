package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/cityjson2pgsql-go/internal/config"
	"github.com/wegman-software/cityjson2pgsql-go/internal/logger"
	"github.com/wegman-software/cityjson2pgsql-go/internal/pipeline"
	"github.com/wegman-software/cityjson2pgsql-go/internal/script"
	"github.com/wegman-software/cityjson2pgsql-go/internal/style"
)

// Ingest flags shared by import, export and inspect
var (
	domainStr   string
	originStr   string
	lodsStr     string
	maxWarnings int
)

func addIngestFlags(c *cobra.Command) {
	c.Flags().BoolVar(&cfg.Translate, "translate", false, "Use each file's own translate instead of the first file's origin")
	c.Flags().StringVar(&originStr, "origin", "", "World origin subtracted from every vertex: x,y,z")
	c.Flags().Float64Var(&cfg.TrueNorthDegrees, "true-north", 0, "Rotation about +Z in degrees, counter-clockwise")
	c.Flags().Float64Var(&cfg.UnitScale, "unit-scale", cfg.UnitScale, "Scene units per model unit")
	c.Flags().StringVar(&domainStr, "domain", "", "Keep objects intersecting this box: minx,miny,minz,maxx,maxy,maxz")
	c.Flags().StringVar(&lodsStr, "lods", "", "Comma separated LoDs to keep (default all)")
	c.Flags().BoolVar(&cfg.AllowLargeFiles, "allow-large-files", false, "Process files above the object limit")
	c.Flags().IntVar(&cfg.MaxObjects, "max-objects", cfg.MaxObjects, "Object limit per file without --allow-large-files")
	c.Flags().StringVarP(&cfg.StyleFile, "style", "S", "", "YAML settings file with object filter rules")
	c.Flags().StringVar(&cfg.ScriptFile, "script", "", "Lua file defining cityjson.process_object")
	c.Flags().IntVar(&maxWarnings, "max-warnings", 20, "Warnings to log after the run, -1 logs all")
}

// prepareIngest resolves the ingest flags, loads the optional style and
// script files and returns a ready coordinator. The returned cleanup function
// must be called when the run is done.
func prepareIngest(args []string) (*pipeline.Coordinator, func()) {
	log := logger.Get()
	cfg.InputFiles = args

	if domainStr != "" {
		d, err := config.ParseDomain(domainStr)
		if err != nil {
			exitWithError("invalid domain", err)
		}
		cfg.Domain = d
	}
	if originStr != "" {
		p, err := config.ParsePoint(originStr)
		if err != nil {
			exitWithError("invalid origin", err)
		}
		cfg.ModelOrigin = p
	}
	if lodsStr != "" {
		cfg.LoDs = config.ParseLoDs(lodsStr)
	}

	var pipeCfg pipeline.CoordinatorConfig
	if cfg.StyleFile != "" {
		s, err := style.LoadConfig(cfg.StyleFile)
		if err != nil {
			exitWithError("failed to load style", err)
		}
		if err := s.Apply(cfg); err != nil {
			exitWithError("invalid style settings", err)
		}
		pipeCfg.Filter = style.NewFilter(s.Objects)
		log.Info("Style loaded",
			zap.String("style", cfg.StyleFile),
			zap.Strings("filter_keys", pipeCfg.Filter.Keys()))
	}

	warnings, err := cfg.Validate()
	if err != nil {
		exitWithError("invalid configuration", err)
	}
	for _, w := range warnings {
		log.Warn("Configuration warning", zap.String("warning", w))
	}

	cleanup := func() {}
	if cfg.ScriptFile != "" {
		rt := script.NewRuntime()
		if err := rt.LoadFile(cfg.ScriptFile); err != nil {
			rt.Close()
			exitWithError("failed to load script", err)
		}
		if !rt.HasProcessObject() {
			log.Warn("Script defines no cityjson.process_object", zap.String("script", cfg.ScriptFile))
		}
		pipeCfg.Script = rt
		cleanup = rt.Close
	}

	logFields := []zap.Field{
		zap.Strings("input", cfg.InputFiles),
		zap.Int("workers", cfg.Workers),
		zap.Bool("absolute_translate", cfg.Translate),
		zap.Float64("unit_scale", cfg.UnitScale),
	}
	if cfg.TrueNorthDegrees != 0 {
		logFields = append(logFields, zap.Float64("true_north", cfg.TrueNorthDegrees))
	}
	if len(cfg.LoDs) > 0 {
		logFields = append(logFields, zap.String("lods", strings.Join(cfg.LoDs, ",")))
	}
	if cfg.Domain != nil && cfg.Domain.IsSet {
		logFields = append(logFields, zap.String("domain", fmt.Sprintf("%v..%v", cfg.Domain.Min, cfg.Domain.Max)))
	}
	log.Info("Starting CityJSON ingest", logFields...)

	return pipeline.NewCoordinator(cfg, pipeCfg), cleanup
}

// runIngest prepares and runs an ingest, exiting on fatal errors
func runIngest(ctx context.Context, args []string) *pipeline.Result {
	coordinator, cleanup := prepareIngest(args)
	defer cleanup()

	res, err := coordinator.Run(ctx)
	if err != nil {
		exitWithError("ingest failed", err)
	}
	logWarnings(res, maxWarnings)
	return res
}

// logWarnings logs up to limit warnings of a run; a negative limit logs all
func logWarnings(res *pipeline.Result, limit int) {
	log := logger.Get()
	errs := res.Warnings.Errors()
	for i, err := range errs {
		if limit >= 0 && i >= limit {
			log.Warn("Further warnings omitted", zap.Int("omitted", len(errs)-limit))
			break
		}
		log.Warn("Ingest warning", zap.Error(err))
	}
}
