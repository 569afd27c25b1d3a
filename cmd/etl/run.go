package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rosteretl/internal/config"
	"rosteretl/internal/datasource/file"
	"rosteretl/internal/excel"
	"rosteretl/internal/ingest"
	"rosteretl/internal/metrics"
	"rosteretl/internal/metrics/datadog"
	"rosteretl/internal/metrics/prompush"
	"rosteretl/internal/sectionmap"
	"rosteretl/internal/skiplog"
	"rosteretl/internal/storage"
	"rosteretl/internal/worksheet"
)

// Test hooks.
var (
	openRepositoryFn = storage.New
	newPrompushFn    = func(job, url string) (metrics.Backend, error) { return prompush.NewBackend(job, url) }
	newDatadogFn     = func(cfg datadog.Config) (metrics.Backend, error) { return datadog.NewBackend(cfg) }
)

type runFlags struct {
	configFlags
	force  bool
	dryRun bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest every source listed in a run file",
		Long: `run reads each source of the run file in order and writes it to the
configured database in its own transaction. A file whose checksum is already
in the import log is skipped unless --force is given. The first failing
file stops the run; files before it stay committed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSources(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.force, "force", false, "re-import files already recorded in the import log")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "read and validate every source against an in-memory store")
	return cmd
}

func runSources(ctx context.Context, out, errOut io.Writer, flags runFlags) (err error) {
	run, err := flags.load(errOut, func(r *config.Run) {
		if flags.dryRun {
			r.Storage = config.Storage{Kind: "memory", AutoCreateSchema: true}
		}
	})
	if err != nil {
		return err
	}
	log := logger.With(zap.String("job", run.Job))

	backend, err := newMetricsBackend(run)
	if err != nil {
		return err
	}
	metrics.SetBackend(backend)
	defer func() {
		if ferr := metrics.Flush(); ferr != nil {
			log.Warn("metrics flush failed", zap.Error(ferr))
		}
		metrics.SetBackend(nil)
	}()

	repo, err := openRepositoryFn(ctx, storage.Config{Kind: run.Storage.Kind, DSN: run.Storage.DSN})
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()

	sections, err := loadSectionMap(ctx, run.Survey.SectionMap)
	if err != nil {
		return err
	}

	var skips *skiplog.Log
	if run.SkipLog != "" {
		if skips, err = skiplog.New(run.SkipLog); err != nil {
			return err
		}
		defer func() {
			if cerr := skips.Close(); cerr != nil && err == nil {
				err = cerr
			}
			if counts := skips.Counts(); len(counts) > 0 {
				log.Info("skip log written", zap.String("path", run.SkipLog), zap.Any("counts", counts))
			}
		}()
	}

	loader := ingest.New(repo, sections,
		ingest.WithJob(run.Job),
		ingest.WithCatalogOptions(run.Survey.CatalogOptions()),
		ingest.WithForce(flags.force),
		ingest.WithLogger(log),
		ingest.WithSkipLog(skips),
	)
	if run.Storage.AutoCreateSchema {
		if err := loader.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		log.Debug("schema ensured", zap.String("storage", run.Storage.Kind))
	}

	start := time.Now()
	results := make([]ingest.Result, 0, len(run.Sources))
	for i, src := range run.Sources {
		res, err := ingestSource(ctx, loader, src)
		if err != nil {
			printResults(out, results)
			return fmt.Errorf("sources[%d] %s: %w", i, src.Path, err)
		}
		results = append(results, res)
	}
	printResults(out, results)
	log.Info("run finished",
		zap.Int("sources", len(results)),
		zap.Bool("dry_run", flags.dryRun),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// ingestSource dispatches one configured source to its loader.
func ingestSource(ctx context.Context, l *ingest.Loader, src config.Source) (ingest.Result, error) {
	local := file.NewLocal(src.Path)
	switch src.Kind {
	case config.KindRoster:
		return l.LoadRoster(ctx, local, src.Sheet)
	case config.KindSurvey:
		ws, err := surveySheet(src)
		if err != nil {
			return ingest.Result{}, err
		}
		return l.LoadSurvey(ctx, local, ws)
	default:
		return ingest.Result{}, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

func surveySheet(src config.Source) (ingest.SurveySheet, error) {
	questions, err := worksheet.LoadQuestionConfigs(src.Options.String("questions", ""))
	if err != nil {
		return ingest.SurveySheet{}, err
	}
	key := 0
	if label := src.Options.String("key_column", ""); label != "" {
		if key, err = excel.ColumnIndex(label); err != nil {
			return ingest.SurveySheet{}, fmt.Errorf("key_column: %w", err)
		}
	}
	return ingest.SurveySheet{
		Sheet:          src.Sheet,
		Season:         src.Options.String("season", ""),
		Year:           src.Options.Int("year", 0),
		Questions:      questions,
		HeaderRow:      src.Options.Int("header_row", 0),
		KeyColumn:      key,
		FuzzyThreshold: src.Options.Int("fuzzy_threshold", 0),
	}, nil
}

func loadSectionMap(ctx context.Context, path string) (*sectionmap.Map, error) {
	if path == "" {
		return sectionmap.Default()
	}
	m, err := sectionmap.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("section map %s: %w", path, err)
	}
	return m, nil
}

// newMetricsBackend builds the backend named by the run file; nil means the
// no-op backend.
func newMetricsBackend(run config.Run) (metrics.Backend, error) {
	switch run.Metrics.Backend {
	case "pushgateway":
		b, err := newPrompushFn(run.Job, run.Metrics.PushgatewayURL)
		if err != nil {
			return nil, fmt.Errorf("init pushgateway backend: %w", err)
		}
		return b, nil
	case "datadog":
		b, err := newDatadogFn(datadog.Config{
			Addr:       run.Metrics.DatadogAddr,
			Namespace:  "rosteretl.",
			GlobalTags: []string{"job:" + run.Job},
		})
		if err != nil {
			return nil, fmt.Errorf("init datadog backend: %w", err)
		}
		return b, nil
	case "", "none":
		return nil, nil
	default:
		return nil, errors.New("unknown metrics backend " + strconv.Quote(run.Metrics.Backend))
	}
}

// printResults renders one line per ingested file.
func printResults(w io.Writer, results []ingest.Result) {
	if len(results) == 0 {
		return
	}
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Source", "Kind", "Status", "Rows", "Questionnaires", "Sections", "Unmatched", "Elapsed"})
	t.SetAutoWrapText(false)
	for _, r := range results {
		status := "imported"
		if r.AlreadyImported {
			status = "skipped (already imported)"
		}
		t.Append([]string{
			r.Source,
			r.Kind,
			status,
			strconv.Itoa(r.Rows),
			strconv.Itoa(r.Questionnaires),
			strconv.Itoa(r.SectionTotal()),
			strconv.Itoa(len(r.Unmatched)),
			r.Elapsed.Round(time.Millisecond).String(),
		})
	}
	t.Render()
}
