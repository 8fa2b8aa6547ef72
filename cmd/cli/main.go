package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
	"github.com/dvloznov/txn-aggregator/internal/config"
	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/dvloznov/txn-aggregator/internal/export"
	infraBQ "github.com/dvloznov/txn-aggregator/internal/infra/bigquery"
	"github.com/dvloznov/txn-aggregator/internal/ingest"
	"github.com/dvloznov/txn-aggregator/internal/logger"
	"github.com/dvloznov/txn-aggregator/internal/pipeline"
	"github.com/dvloznov/txn-aggregator/internal/report"
	"github.com/dvloznov/txn-aggregator/internal/storage"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runReport(cfg, os.Args[2:]))
	case "upload":
		if err := runUpload(log, cfg, os.Args[2:]); err != nil {
			log.Fatal().Err(err).Msg("Upload failed")
		}
	case "inspect":
		if err := runInspect(log, cfg, os.Args[2:]); err != nil {
			log.Fatal().Err(err).Msg("Inspect failed")
		}
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Transaction Aggregator CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Aggregate a CSV or JSON transaction file and write the reports")
	fmt.Println("  upload    Upload a local file to GCS")
	fmt.Println("  inspect   Show published runs or the account summaries of one run")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// runFlags are the parsed options of the run command.
type runFlags struct {
	logOpts logger.Options
	opts    pipeline.Options
	publish bool
	project string
	dataset string
}

func parseRunFlags(cfg *config.Config, args []string, output io.Writer) (*runFlags, error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(output)

	input := fs.String("input", "", "Input file: local path or gs:// URI, .csv or .json (required)")
	outputDir := fs.String("output-dir", ".", "Directory or gs:// prefix for the output files")
	prefix := fs.String("prefix", export.DefaultFilePrefix, "Prefix of the output file names")
	logFile := fs.String("log-file", cfg.LogFile, "Append logs to this file instead of stdout")
	logLevel := fs.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", cfg.LogFormat, "Log format: console or json")
	threshold := fs.Float64("threshold", cfg.LargeTransactionThreshold, "Amounts above this are suspicious")
	currencies := fs.String("uncommon-currencies", strings.Join(cfg.UncommonCurrencies, ","), "Comma separated currencies that are always suspicious")
	filterField := fs.String("filter-field", "", "Write a filtered account report on this field: balance, total_deposits, total_withdrawals")
	filterThreshold := fs.Float64("filter-threshold", 0, "Threshold of the filtered report")
	filterBelow := fs.Bool("filter-below", false, "Keep accounts at or below the threshold instead of at or above")
	publish := fs.Bool("publish", cfg.BigQueryEnabled(), "Publish the run to BigQuery")
	project := fs.String("project", cfg.BQProjectID, "BigQuery project ID")
	dataset := fs.String("dataset", cfg.BQDataset, "BigQuery dataset ID")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *input == "" {
		return nil, errors.New("-input is required")
	}
	if *publish && *project == "" {
		return nil, errors.New("-publish needs -project or BQ_PROJECT_ID")
	}

	rf := &runFlags{
		logOpts: logger.Options{Level: *logLevel, Format: *logFormat, File: *logFile},
		opts: pipeline.Options{
			InputURI:  *input,
			OutputDir: *outputDir,
			Prefix:    *prefix,
			Rules: aggregator.Config{
				LargeTransactionThreshold: *threshold,
				UncommonCurrencies:        splitCurrencies(*currencies),
			},
		},
		publish: *publish,
		project: *project,
		dataset: *dataset,
	}

	if *filterField != "" {
		field, err := report.ParseField(*filterField)
		if err != nil {
			return nil, err
		}
		rf.opts.Filter = &pipeline.ReportFilter{
			Field:     field,
			Threshold: *filterThreshold,
			AtLeast:   !*filterBelow,
		}
	}

	return rf, nil
}

func splitCurrencies(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// runReport returns the process exit code so that deferred closes run
// before the caller exits.
func runReport(cfg *config.Config, args []string) int {
	rf, err := parseRunFlags(cfg, args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	log, closer, err := logger.NewWithOptions(rf.logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store := storage.NewRouter()
	deps := pipeline.Deps{
		Source: ingest.NewReader(store),
		Sink:   export.NewWriter(store),
	}

	if rf.publish {
		repo, err := infraBQ.NewBigQueryReportRepository(ctx, rf.project, rf.dataset)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create report repository")
			return 1
		}
		defer repo.Close()
		deps.Repository = repo
	}

	state, err := pipeline.Run(ctx, deps, rf.opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		return 1
	}

	printRunSummary(os.Stdout, state)
	return 0
}

func printRunSummary(w io.Writer, state *pipeline.PipelineState) {
	fmt.Fprintf(w, "Run %s\n", state.RunID)
	fmt.Fprintf(w, "  Records read:     %d\n", len(state.Records))
	fmt.Fprintf(w, "  Records rejected: %d\n", state.Rejected)
	fmt.Fprintf(w, "  Accounts:         %d\n", len(state.Result.AccountSummaries))
	fmt.Fprintf(w, "  Suspicious:       %d\n", len(state.Result.SuspiciousTransactions))
	for _, s := range state.Result.TransactionStatistics {
		fmt.Fprintf(w, "  %-16s  count=%d total=%s average=%s\n", s.Type, s.TransactionCount, domain.FormatAmount(s.TotalAmount), domain.FormatAmount(s.Average()))
	}
	if state.Filter != nil {
		fmt.Fprintf(w, "  Filtered accounts: %d\n", len(state.Filtered))
	}
	for _, f := range state.Written {
		fmt.Fprintf(w, "  Wrote %s\n", f)
	}
	if state.Published {
		fmt.Fprintln(w, "  Published to BigQuery")
	}
}

func runUpload(log zerolog.Logger, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name (defaults to GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local CSV or JSON file")
	fs.Parse(args)

	if *bucketName == "" || *filePath == "" {
		return errors.New("usage: cli upload -bucket NAME -file PATH")
	}
	if _, err := ingest.DetectFormat(*filePath); err != nil {
		return fmt.Errorf("refusing to upload: %w", err)
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := storage.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		return err
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
	return nil
}

// inspectFlags are the parsed options of the inspect command.
type inspectFlags struct {
	runID   string
	limit   int
	project string
	dataset string
}

func parseInspectFlags(cfg *config.Config, args []string, output io.Writer) (*inspectFlags, error) {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(output)

	runID := fs.String("run", "", "Run ID to show; lists recent runs when empty")
	limit := fs.Int("limit", 20, "Number of runs to list")
	project := fs.String("project", cfg.BQProjectID, "BigQuery project ID")
	dataset := fs.String("dataset", cfg.BQDataset, "BigQuery dataset ID")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *project == "" {
		return nil, errors.New("-project or BQ_PROJECT_ID is required")
	}

	return &inspectFlags{runID: *runID, limit: *limit, project: *project, dataset: *dataset}, nil
}

func runInspect(log zerolog.Logger, cfg *config.Config, args []string) error {
	f, err := parseInspectFlags(cfg, args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	ctx := logger.WithContext(context.Background(), log)

	repo, err := infraBQ.NewBigQueryReportRepository(ctx, f.project, f.dataset)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()

	if f.runID == "" {
		runs, err := repo.ListRuns(ctx, f.limit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}

		fmt.Printf("\n=== Runs (%d) ===\n", len(runs))
		for _, r := range runs {
			fmt.Printf("\n%s  %s  %s\n", r.RunID, r.StartedTS.Format(time.RFC3339), r.Status)
			fmt.Printf("   Input:      %s\n", r.InputURI)
			fmt.Printf("   Records:    %d read, %d valid\n", r.RecordsRead, r.RecordsValid)
			fmt.Printf("   Accounts:   %d\n", r.AccountCount)
			fmt.Printf("   Suspicious: %d\n", r.SuspiciousCount)
			if r.ErrorMessage.Valid {
				fmt.Printf("   Error:      %s\n", r.ErrorMessage.StringVal)
			}
		}
		fmt.Println()
		return nil
	}

	rows, err := repo.ListAccountSummaries(ctx, f.runID)
	if err != nil {
		return fmt.Errorf("list account summaries: %w", err)
	}

	summaries := infraBQ.AccountSummariesFromRows(rows)
	fmt.Printf("\n=== Account summaries of %s (%d) ===\n", f.runID, len(summaries))
	if err := export.EncodeAccountSummaries(os.Stdout, summaries); err != nil {
		return fmt.Errorf("print account summaries: %w", err)
	}
	fmt.Println()
	return nil
}
