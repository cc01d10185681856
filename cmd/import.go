package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/cityjson2pgsql-go/internal/loader"
	"github.com/wegman-software/cityjson2pgsql-go/internal/logger"
)

var (
	createIndexes bool
	dropExisting  bool
)

var importCmd = &cobra.Command{
	Use:   "import <file.city.json>...",
	Short: "Rebuild CityJSON geometry and load it into PostgreSQL",
	Long: `Decode one or more CityJSON files, rebuild every city object's surfaces
and load them into PostGIS:

  1. Load and validate every input file (one invalid file fails the run)
  2. Rebuild faces per object in parallel, sharing the first file's origin
  3. COPY surfaces (PolygonZ) into city_surfaces and objects into city_objects
  4. Optionally create spatial and name indexes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	addIngestFlags(importCmd)

	importCmd.Flags().BoolVar(&createIndexes, "create-indexes", true, "Create spatial indexes after loading")
	importCmd.Flags().BoolVar(&dropExisting, "drop-existing", false, "Drop existing tables before loading")
	importCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows buffered per COPY stream")
	importCmd.Flags().IntVarP(&cfg.SRID, "srid", "E", cfg.SRID, "SRID of the geometry column, 0 for none")
}

func runImport(cmd *cobra.Command, args []string) {
	log := logger.Get()
	ctx := context.Background()
	totalStart := time.Now()

	res := runIngest(ctx, args)

	log.Info("Starting PostgreSQL load",
		zap.String("output", fmt.Sprintf("%s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)),
		zap.String("schema", cfg.DBSchema),
		zap.Int("srid", cfg.SRID),
	)

	ldr, err := loader.NewLoader(ctx, cfg)
	if err != nil {
		exitWithError("failed to create loader", err)
	}
	defer ldr.Close()

	err = ldr.Load(ctx, res, loader.Options{
		DropExisting:  dropExisting,
		CreateIndexes: createIndexes,
	})
	if err != nil {
		exitWithError("load failed", err)
	}

	log.Info("Import complete",
		zap.Duration("total_time", time.Since(totalStart).Round(time.Second)),
		zap.Int("objects", len(res.Objects)),
		zap.Int("surfaces", len(res.Surfaces)),
		zap.Int("warnings", res.Warnings.Len()),
	)
}
