package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/dvloznov/txn-aggregator/internal/export"
	"github.com/dvloznov/txn-aggregator/internal/ingest"
	"github.com/dvloznov/txn-aggregator/internal/logger"
	"github.com/dvloznov/txn-aggregator/internal/pipeline"
	"github.com/dvloznov/txn-aggregator/internal/report"
)

// NewReportHandler returns a JobHandler that runs one report pipeline per
// job with the given rules. The job is updated in place with its run ID and
// summary.
func NewReportHandler(deps pipeline.Deps, rules aggregator.Config) JobHandler {
	return func(ctx context.Context, job Job) error {
		reportJob, ok := job.(*ReportJob)
		if !ok {
			return fmt.Errorf("%w: unexpected job type %T", ErrPermanent, job)
		}

		log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
			"job_id":      reportJob.JobID,
			"input_uri":   reportJob.InputURI,
			"retry_count": reportJob.RetryCount,
		})
		ctx = logger.WithContext(ctx, log)

		opts := pipeline.Options{
			InputURI:  reportJob.InputURI,
			OutputDir: reportJob.OutputDir,
			Prefix:    reportJob.Prefix,
			Rules:     rules,
		}
		if reportJob.Filter != nil {
			field, err := report.ParseField(reportJob.Filter.Field)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrPermanent, err)
			}
			opts.Filter = &pipeline.ReportFilter{
				Field:     field,
				Threshold: reportJob.Filter.Threshold,
				AtLeast:   reportJob.Filter.AtLeast,
			}
		}

		log.Info().Msg("Processing report job")

		state, err := pipeline.Run(ctx, deps, opts)
		if state != nil {
			reportJob.RunID = state.RunID
		}
		if err != nil {
			if isPermanent(err) {
				return fmt.Errorf("%w: %w", ErrPermanent, err)
			}
			return err
		}

		reportJob.Summary = Summarize(state)
		return nil
	}
}

// Summarize reduces a finished pipeline state to a job summary.
func Summarize(state *pipeline.PipelineState) *ReportSummary {
	s := &ReportSummary{
		RecordsRead:     len(state.Records),
		RecordsValid:    len(state.Valid),
		Accounts:        len(state.Result.AccountSummaries),
		Suspicious:      len(state.Result.SuspiciousTransactions),
		TransactionType: len(state.Result.TransactionStatistics),
		Files:           state.Written,
		Published:       state.Published,
	}
	if state.Filter != nil {
		n := len(state.Filtered)
		s.Filtered = &n
	}
	return s
}

func isPermanent(err error) bool {
	return errors.Is(err, ingest.ErrNotFound) ||
		errors.Is(err, ingest.ErrUnsupportedFormat) ||
		errors.Is(err, domain.ErrFieldMissing) ||
		errors.Is(err, domain.ErrConversion) ||
		errors.Is(err, report.ErrUnknownField) ||
		errors.Is(err, export.ErrInvalidPrefix)
}
