package pipeline

import (
	"context"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
	bq "github.com/dvloznov/txn-aggregator/internal/bigquery"
	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/dvloznov/txn-aggregator/internal/export"
)

// RecordSource loads transaction records from a URI.
type RecordSource interface {
	ReadRecords(ctx context.Context, uri string) ([]domain.Record, error)
}

// ResultSink writes the output files of a run.
type ResultSink interface {
	WriteAll(ctx context.Context, paths export.Paths, res aggregator.Result, filtered []domain.AccountSummary) ([]string, error)
}

// ReportRepository is the warehouse a run is published to.
type ReportRepository = bq.ReportRepository

// Deps are the collaborators a report pipeline runs against.
// Repository may be nil, in which case nothing is published.
type Deps struct {
	Source     RecordSource
	Sink       ResultSink
	Repository ReportRepository
}
