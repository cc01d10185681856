package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/cityjson2pgsql-go/internal/logger"
	"github.com/wegman-software/cityjson2pgsql-go/internal/pipeline"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.city.json>...",
	Short: "Rebuild CityJSON geometry and log a summary",
	Long: `Run the ingest without writing anything and log per-type counts of
objects and faces, the scene bounds and the warnings raised.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addIngestFlags(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) {
	log := logger.Get()
	res := runIngest(context.Background(), args)
	s := pipeline.Summarize(res)

	logCounts("Objects by type", s.ObjectsByType)
	logCounts("Faces by object type", s.FacesByObjectType)
	logCounts("Faces by surface type", s.FacesBySurfaceType)
	logCounts("Faces by LoD", s.FacesByLoD)
	logCounts("Faces by geometry type", s.FacesByGeoType)

	fields := []zap.Field{
		zap.Int("files", res.Stats.Files),
		zap.Int("objects", res.Stats.Objects),
		zap.Int("output_objects", len(res.Objects)),
		zap.Int("filtered_out", res.Stats.FilteredOut),
		zap.Int("duplicates_skipped", res.Stats.DuplicatesSkipped),
		zap.Int("templates", res.Stats.Templates),
		zap.Int("faces", res.Stats.Faces),
		zap.Int("face_failures", res.Stats.FaceFailures),
		zap.String("total_area", fmt.Sprintf("%.2f", s.TotalArea)),
		zap.Int("warnings", res.Warnings.Len()),
	}
	if len(res.Faces) > 0 {
		fields = append(fields,
			zap.String("min", fmt.Sprintf("%.3f,%.3f,%.3f", s.Bounds.Min[0], s.Bounds.Min[1], s.Bounds.Min[2])),
			zap.String("max", fmt.Sprintf("%.3f,%.3f,%.3f", s.Bounds.Max[0], s.Bounds.Max[1], s.Bounds.Max[2])),
		)
	}
	log.Info("Inspection complete", fields...)
}

func logCounts(msg string, counts map[string]int) {
	log := logger.Get()
	for _, k := range pipeline.SortedKeys(counts) {
		name := k
		if name == "" {
			name = "(none)"
		}
		log.Info(msg, zap.String("name", name), zap.Int("count", counts[k]))
	}
}
