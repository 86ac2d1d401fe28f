package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mapscrap/internal/export"
	"github.com/sells-group/mapscrap/internal/locator"
	"github.com/sells-group/mapscrap/internal/model"
	"github.com/sells-group/mapscrap/internal/pipeline"
)

var (
	enrichFile    string
	enrichWorkers int
	enrichOutput  string
)

// enricherPool is the part of the pipeline the enrich command drives.
type enricherPool interface {
	EnrichOnly(ctx context.Context, businesses []model.Business, workers int) *pipeline.Result
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich an exported CSV or XLSX file with emails and social profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		table, err := locator.Load(cfg.Locator.File)
		if err != nil {
			return err
		}
		enricher, err := newEnricher(table)
		if err != nil {
			return err
		}

		workers := enrichWorkers
		if workers <= 0 {
			workers = cfg.Enrich.Workers
		}
		out := enrichOutput
		if out == "" {
			out = enrichedPath(enrichFile)
		}

		res, err := enrichFileTo(ctx, pipeline.New(nil, nil, enricher), enrichFile, out, workers)
		if err != nil {
			return err
		}

		zap.L().Info("enrichment file written",
			zap.String("output", out),
			zap.Int("businesses", len(res.Businesses)),
			zap.Int("enriched", res.Stats.Enriched),
			zap.Int("emails", res.Stats.Emails),
			zap.Bool("partial", res.Partial),
		)
		return nil
	},
}

// enrichedPath returns <dir>/<stem>_enriched.csv for in.
func enrichedPath(in string) string {
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + "_enriched.csv"
}

// readBusinesses loads a CSV or XLSX export.
func readBusinesses(path string) ([]model.Business, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return export.ReadXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return export.ReadCSV(f)
}

// enrichFileTo enriches every business in in and writes the result as CSV to
// out. An interrupted run still writes what it has.
func enrichFileTo(ctx context.Context, pool enricherPool, in, out string, workers int) (*pipeline.Result, error) {
	businesses, err := readBusinesses(in)
	if err != nil {
		return nil, err
	}
	if len(businesses) == 0 {
		return nil, eris.Errorf("%s has no businesses", in)
	}

	res := pool.EnrichOnly(ctx, businesses, workers)
	if err := writeCSVFile(out, res.Businesses); err != nil {
		return res, err
	}
	return res, nil
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichFile, "file", "f", "", "exported CSV or XLSX file to enrich (required)")
	enrichCmd.Flags().IntVarP(&enrichWorkers, "workers", "w", 0, "concurrent website enrichments (default from config)")
	enrichCmd.Flags().StringVarP(&enrichOutput, "output", "o", "", "output CSV path (default <file>_enriched.csv)")
	_ = enrichCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(enrichCmd)
}
