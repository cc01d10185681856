package cmd

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/cityjson2pgsql-go/internal/export"
	"github.com/wegman-software/cityjson2pgsql-go/internal/logger"
	"github.com/wegman-software/cityjson2pgsql-go/internal/parquet"
)

var footprints bool

var exportCmd = &cobra.Command{
	Use:   "export <file.city.json>...",
	Short: "Rebuild CityJSON geometry and write Parquet files",
	Long: `Decode one or more CityJSON files, rebuild every city object's surfaces
and write them to the output directory:

  - surfaces.parquet   (one row per face, EWKB PolygonZ)
  - objects.parquet    (one row per city object)
  - footprints.geojson (2D footprint per object)`,
	Args: cobra.MinimumNArgs(1),
	Run:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addIngestFlags(exportCmd)

	exportCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per Parquet row group")
	exportCmd.Flags().IntVarP(&cfg.SRID, "srid", "E", cfg.SRID, "SRID written into EWKB geometries, 0 for none")
	exportCmd.Flags().BoolVar(&footprints, "footprints", true, "Write footprints.geojson")
}

func runExport(cmd *cobra.Command, args []string) {
	log := logger.Get()
	ctx := context.Background()
	start := time.Now()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		exitWithError("failed to create output directory", err)
	}

	res := runIngest(ctx, args)

	surfaces, err := parquet.WriteSurfaces(cfg.OutputDir, res.Faces, res.Surfaces, cfg.BatchSize, cfg.SRID)
	if err != nil {
		exitWithError("failed to write surfaces", err)
	}
	objects, err := parquet.WriteObjects(cfg.OutputDir, res.Objects, cfg.BatchSize)
	if err != nil {
		exitWithError("failed to write objects", err)
	}

	fields := []zap.Field{
		zap.String("output", cfg.OutputDir),
		zap.Int64("surfaces", surfaces),
		zap.Int64("objects", objects),
	}
	if footprints {
		n, err := export.WriteFootprints(cfg.OutputDir, res)
		if err != nil {
			exitWithError("failed to write footprints", err)
		}
		fields = append(fields, zap.Int("footprints", n))
	}
	fields = append(fields, zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	log.Info("Export complete", fields...)
}
