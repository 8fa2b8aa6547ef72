package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	bq "github.com/dvloznov/txn-aggregator/internal/bigquery"
	"github.com/dvloznov/txn-aggregator/internal/logger"
)

// Run executes one report run with a new run ID. When a repository is
// configured and the run fails, a FAILED run row is recorded before the
// error is returned. The state is returned even on failure.
func Run(ctx context.Context, deps Deps, opts Options) (*PipelineState, error) {
	state := &PipelineState{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		InputURI:  opts.InputURI,
		OutputDir: opts.OutputDir,
		Prefix:    opts.Prefix,
		Rules:     opts.Rules,
		Filter:    opts.Filter,
		Records:   opts.Records,
	}

	log := logger.FromContext(ctx).With().Str("run_id", state.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	if err := NewReportPipeline(deps).Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Report run failed")
		if deps.Repository != nil && !state.Published {
			if recErr := deps.Repository.InsertRun(ctx, runRow(state, bq.RunStatusFailed, err, time.Now().UTC())); recErr != nil {
				log.Error().Err(recErr).Msg("Failed to record failed run")
			}
		}
		return state, err
	}

	log.Info().Dur("elapsed", time.Since(state.StartedAt)).Msg("Report run completed")
	return state, nil
}
