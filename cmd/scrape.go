package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mapscrap/internal/export"
	"github.com/sells-group/mapscrap/internal/model"
	"github.com/sells-group/mapscrap/internal/pipeline"
	"github.com/sells-group/mapscrap/internal/store"
)

var (
	scrapeQuery    string
	scrapeTarget   int
	scrapeWorkers  int
	scrapeHeadless bool
	scrapeOutput   string
	scrapeNoStore  bool
)

// runner is the part of the pipeline the scrape and serve commands drive.
type runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Discover, extract and enrich listings for one or more queries",
	Long:  "Runs the full pipeline for -s, or for every line of the input file when -s is omitted. Results are written as CSV and XLSX under a dated output folder.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queries, err := resolveQueries(scrapeQuery, cfg.Search.Query, cfg.Search.InputFile)
		if err != nil {
			return err
		}

		target := scrapeTarget
		if target <= 0 {
			target = cfg.Search.Target
		}
		workers := scrapeWorkers
		if workers <= 0 {
			workers = cfg.Enrich.Workers
		}
		headless := cfg.Browser.Headless
		if cmd.Flags().Changed("headless") {
			headless = scrapeHeadless
		}
		outRoot := scrapeOutput
		if outRoot == "" {
			outRoot = cfg.Output.Dir
		}

		var st store.Store
		if !scrapeNoStore {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		env, err := initScrape(ctx, headless)
		if err != nil {
			return err
		}
		defer env.Close()

		for i, q := range queries {
			if ctx.Err() != nil {
				zap.L().Info("interrupted, skipping remaining queries", zap.Int("remaining", len(queries)-i))
				break
			}
			req := pipeline.Request{Query: q, Target: target, Workers: workers}
			if _, err := runQuery(ctx, env.Pipeline, st, req, outRoot, cfg.Output.XLSX); err != nil {
				return err
			}
		}
		return nil
	},
}

// resolveQueries picks the flag query, then the configured query, then the
// lines of inputFile.
func resolveQueries(flagQuery, cfgQuery, inputFile string) ([]string, error) {
	if q := strings.TrimSpace(flagQuery); q != "" {
		return []string{q}, nil
	}
	if q := strings.TrimSpace(cfgQuery); q != "" {
		return []string{q}, nil
	}

	queries, err := readQueries(inputFile)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, eris.Errorf("no search query given and %s has no queries", inputFile)
	}
	return queries, nil
}

// readQueries returns the non-blank lines of path. Lines starting with # are
// skipped.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read queries from %s", path)
	}
	defer f.Close() //nolint:errcheck

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, eris.Wrapf(sc.Err(), "scan %s", path)
}

// runQuery records a new run for req and executes it. Only a pipeline error
// is returned.
func runQuery(ctx context.Context, r runner, st store.Store, req pipeline.Request, outRoot string, withXLSX bool) (*pipeline.Result, error) {
	var runID string
	if st != nil {
		run, err := st.CreateRun(context.WithoutCancel(ctx), req.Query, req.Target, req.Workers)
		if err != nil {
			zap.L().Warn("record run start", zap.String("query", req.Query), zap.Error(err))
		} else {
			runID = run.ID
		}
	}
	return executeRun(ctx, r, st, runID, req, outRoot, withXLSX)
}

// executeRun runs one query, writes its export files and, when runID is set,
// records the outcome. Export and store failures are logged so an interrupted
// or partial run still leaves whatever it could save.
func executeRun(ctx context.Context, r runner, st store.Store, runID string, req pipeline.Request, outRoot string, withXLSX bool) (*pipeline.Result, error) {
	log := zap.L().With(zap.String("query", req.Query), zap.String("run_id", runID))
	// Persistence must survive an interrupt of the run itself.
	saveCtx := context.WithoutCancel(ctx)

	res, runErr := r.Run(ctx, req)
	if res == nil {
		res = &pipeline.Result{Partial: true}
	}

	if len(res.Businesses) > 0 {
		paths, err := writeOutputs(outRoot, req.Query, res.Businesses, withXLSX, time.Now())
		if err != nil {
			log.Error("write results", zap.Error(err))
		} else {
			log.Info("results written", zap.String("csv", paths.CSV), zap.String("xlsx", paths.XLSX),
				zap.Int("businesses", len(res.Businesses)))
		}
	} else {
		log.Info("no businesses to write")
	}

	if st != nil && runID != "" {
		recordRun(saveCtx, st, runID, res, runErr)
	}

	if runErr != nil {
		return res, eris.Wrapf(runErr, "scrape %q", req.Query)
	}
	return res, nil
}

// recordRun stores the outcome and the businesses of a finished run.
func recordRun(ctx context.Context, st store.Store, runID string, res *pipeline.Result, runErr error) {
	log := zap.L().With(zap.String("run_id", runID))

	if err := st.SaveBusinesses(ctx, runID, res.Businesses); err != nil {
		log.Warn("save businesses", zap.Error(err))
	}

	var err error
	switch {
	case runErr != nil:
		err = st.FailRun(ctx, runID, res.Stats, runErr)
	case res.Partial:
		err = st.CompleteRun(ctx, runID, model.RunStatusPartial, res.Stats)
	default:
		err = st.CompleteRun(ctx, runID, model.RunStatusComplete, res.Stats)
	}
	if err != nil {
		log.Warn("record run outcome", zap.Error(err))
	}
}

// writeOutputs writes the CSV, and optionally the XLSX, for query into the
// dated folder under root.
func writeOutputs(root, query string, businesses []model.Business, withXLSX bool, now time.Time) (export.Paths, error) {
	dir, err := export.DatedDir(root, now)
	if err != nil {
		return export.Paths{}, err
	}
	paths := export.PathsFor(dir, query)

	if err := writeCSVFile(paths.CSV, businesses); err != nil {
		return export.Paths{}, err
	}

	if !withXLSX {
		paths.XLSX = ""
		return paths, nil
	}
	if err := export.WriteXLSX(paths.XLSX, businesses); err != nil {
		return export.Paths{}, err
	}
	return paths, nil
}

func writeCSVFile(path string, businesses []model.Business) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := export.WriteCSV(f, businesses); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeQuery, "search", "s", "", "search query, e.g. \"cafes in Barcelona\" (default: lines of the input file)")
	scrapeCmd.Flags().IntVarP(&scrapeTarget, "total", "t", 0, "number of listings to collect per query (default from config)")
	scrapeCmd.Flags().IntVarP(&scrapeWorkers, "workers", "w", 0, "concurrent website enrichments (default from config)")
	scrapeCmd.Flags().BoolVar(&scrapeHeadless, "headless", true, "run the browser without a window")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "output root folder (default from config)")
	scrapeCmd.Flags().BoolVar(&scrapeNoStore, "no-store", false, "do not record the run in the run store")
	rootCmd.AddCommand(scrapeCmd)
}
