package pipeline

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
	bq "github.com/dvloznov/txn-aggregator/internal/bigquery"
	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/dvloznov/txn-aggregator/internal/export"
	infra "github.com/dvloznov/txn-aggregator/internal/infra/bigquery"
	"github.com/dvloznov/txn-aggregator/internal/logger"
	"github.com/dvloznov/txn-aggregator/internal/report"
	"github.com/dvloznov/txn-aggregator/internal/validation"
)

// PipelineStep represents a single step in the report pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID     string
	StartedAt time.Time

	InputURI  string
	OutputDir string
	Prefix    string
	Rules     aggregator.Config
	Filter    *ReportFilter

	Records  []domain.Record
	Valid    []domain.Record
	Rejected int

	Result   aggregator.Result
	Filtered []domain.AccountSummary
	Written  []string

	Published bool
}

// Step 1: LoadRecordsStep reads the input file unless records were supplied directly.
type LoadRecordsStep struct {
	Source RecordSource
}

func (s *LoadRecordsStep) Name() string { return "load" }

func (s *LoadRecordsStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.InputURI == "" {
		return nil
	}
	if s.Source == nil {
		return fmt.Errorf("LoadRecordsStep: no record source configured")
	}

	records, err := s.Source.ReadRecords(ctx, state.InputURI)
	if err != nil {
		return err
	}
	state.Records = records

	log := logger.FromContext(ctx)
	log.Info().Str("input", state.InputURI).Int("records", len(records)).Msg("Records loaded")
	return nil
}

// Step 2: ValidateRecordsStep drops records that fail validation.
type ValidateRecordsStep struct{}

func (s *ValidateRecordsStep) Name() string { return "validate" }

func (s *ValidateRecordsStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Valid = validation.Filter(state.Records)
	state.Rejected = len(state.Records) - len(state.Valid)

	if state.Rejected > 0 {
		log := logger.FromContext(ctx)
		log.Warn().Int("rejected", state.Rejected).Int("valid", len(state.Valid)).Msg("Records rejected by validation")
	}
	return nil
}

// Step 3: AggregateStep runs a fresh aggregator over the valid records.
type AggregateStep struct{}

func (s *AggregateStep) Name() string { return "aggregate" }

func (s *AggregateStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	agg := aggregator.New(state.Rules, aggregator.WithEventHandler(LogEvents(log)))

	result, err := agg.Process(state.Valid)
	if err != nil {
		return err
	}
	state.Result = result

	log.Info().
		Int("accounts", len(result.AccountSummaries)).
		Int("suspicious", len(result.SuspiciousTransactions)).
		Int("types", len(result.TransactionStatistics)).
		Msg("Records aggregated")
	return nil
}

// Step 4: FilterReportStep applies the optional balance threshold report.
type FilterReportStep struct{}

func (s *FilterReportStep) Name() string { return "filter" }

func (s *FilterReportStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Filter == nil {
		return nil
	}

	filtered, err := report.Filter(state.Result.AccountSummaries, state.Filter.Field, state.Filter.Threshold, state.Filter.AtLeast)
	if err != nil {
		return err
	}
	state.Filtered = filtered
	return nil
}

// Step 5: ExportCSVStep writes the result files when an output location is set.
type ExportCSVStep struct {
	Sink ResultSink
}

func (s *ExportCSVStep) Name() string { return "export" }

func (s *ExportCSVStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.OutputDir == "" {
		return nil
	}
	if err := export.ValidatePrefix(state.Prefix); err != nil {
		return fmt.Errorf("ExportCSVStep: %w", err)
	}
	if s.Sink == nil {
		return fmt.Errorf("ExportCSVStep: no result sink configured")
	}

	var filtered []domain.AccountSummary
	if state.Filter != nil {
		filtered = state.Filtered
		if filtered == nil {
			filtered = []domain.AccountSummary{}
		}
	}

	written, err := s.Sink.WriteAll(ctx, export.PathsFor(state.OutputDir, state.Prefix), state.Result, filtered)
	state.Written = written
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().Strs("files", written).Msg("Results written")
	return nil
}

// Step 6: PublishBigQueryStep stores the run and its results in the warehouse.
type PublishBigQueryStep struct {
	Repository ReportRepository
}

func (s *PublishBigQueryStep) Name() string { return "publish" }

func (s *PublishBigQueryStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Repository == nil {
		return nil
	}

	suspicious, err := infra.SuspiciousRows(state.RunID, state.Result.SuspiciousTransactions)
	if err != nil {
		return err
	}

	if err := s.Repository.InsertAccountSummaries(ctx, infra.AccountSummaryRows(state.RunID, state.Result.AccountSummaries)); err != nil {
		return err
	}
	if err := s.Repository.InsertSuspicious(ctx, suspicious); err != nil {
		return err
	}
	if err := s.Repository.InsertStatistics(ctx, infra.StatisticRows(state.RunID, state.Result.TransactionStatistics)); err != nil {
		return err
	}
	if err := s.Repository.InsertRun(ctx, runRow(state, bq.RunStatusSuccess, nil, time.Now().UTC())); err != nil {
		return err
	}

	state.Published = true
	return nil
}

// runRow summarizes a run for the report_runs table.
func runRow(state *PipelineState, status string, runErr error, finished time.Time) *bq.ReportRunRow {
	row := &bq.ReportRunRow{
		RunID:                     state.RunID,
		RunDate:                   civil.DateOf(state.StartedAt),
		StartedTS:                 state.StartedAt,
		FinishedTS:                finished,
		InputURI:                  state.InputURI,
		RecordsRead:               int64(len(state.Records)),
		RecordsValid:              int64(len(state.Valid)),
		AccountCount:              int64(len(state.Result.AccountSummaries)),
		SuspiciousCount:           int64(len(state.Result.SuspiciousTransactions)),
		LargeTransactionThreshold: state.Rules.LargeTransactionThreshold,
		UncommonCurrencies:        state.Rules.UncommonCurrencies,
		Status:                    status,
	}
	if runErr != nil {
		row.ErrorMessage = bigquery.NullString{StringVal: runErr.Error(), Valid: true}
	}
	return row
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// NewReportPipeline creates the standard six-step report pipeline.
func NewReportPipeline(deps Deps) *Pipeline {
	return NewPipeline(
		&LoadRecordsStep{Source: deps.Source},
		&ValidateRecordsStep{},
		&AggregateStep{},
		&FilterReportStep{},
		&ExportCSVStep{Sink: deps.Sink},
		&PublishBigQueryStep{Repository: deps.Repository},
	)
}
