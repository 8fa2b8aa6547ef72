package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/txn-aggregator/internal/bigquery"
)

// Re-export interfaces and rows from the shared package
type ReportRepository = bq.ReportRepository

type (
	ReportRunRow             = bq.ReportRunRow
	AccountSummaryRow        = bq.AccountSummaryRow
	SuspiciousTransactionRow = bq.SuspiciousTransactionRow
	TransactionStatisticRow  = bq.TransactionStatisticRow
)

// DefaultDatasetID is used when no dataset is configured.
const DefaultDatasetID = "finance_reports"

// Target names the project and dataset holding the report tables.
type Target struct {
	ProjectID string
	DatasetID string
}

func (t Target) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", t.ProjectID, t.DatasetID, name)
}

// BigQueryReportRepository is the concrete implementation of ReportRepository
// that interacts with BigQuery. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryReportRepository struct {
	client *bigquery.Client
	target Target
}

// NewBigQueryReportRepository creates a new instance of BigQueryReportRepository
// with a shared BigQuery client.
func NewBigQueryReportRepository(ctx context.Context, projectID, datasetID string) (*BigQueryReportRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewBigQueryReportRepository: project ID is required")
	}
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryReportRepository: creating client: %w", err)
	}
	return &BigQueryReportRepository{
		client: client,
		target: Target{ProjectID: projectID, DatasetID: datasetID},
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryReportRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertRun delegates to InsertRunWithClient with the shared client.
func (r *BigQueryReportRepository) InsertRun(ctx context.Context, row *ReportRunRow) error {
	return InsertRunWithClient(ctx, r.client, r.target, row)
}

// InsertAccountSummaries delegates to InsertAccountSummariesWithClient with the shared client.
func (r *BigQueryReportRepository) InsertAccountSummaries(ctx context.Context, rows []*AccountSummaryRow) error {
	return InsertAccountSummariesWithClient(ctx, r.client, r.target, rows)
}

// InsertSuspicious delegates to InsertSuspiciousWithClient with the shared client.
func (r *BigQueryReportRepository) InsertSuspicious(ctx context.Context, rows []*SuspiciousTransactionRow) error {
	return InsertSuspiciousWithClient(ctx, r.client, r.target, rows)
}

// InsertStatistics delegates to InsertStatisticsWithClient with the shared client.
func (r *BigQueryReportRepository) InsertStatistics(ctx context.Context, rows []*TransactionStatisticRow) error {
	return InsertStatisticsWithClient(ctx, r.client, r.target, rows)
}

// ListAccountSummaries delegates to ListAccountSummariesWithClient with the shared client.
func (r *BigQueryReportRepository) ListAccountSummaries(ctx context.Context, runID string) ([]*AccountSummaryRow, error) {
	return ListAccountSummariesWithClient(ctx, r.client, r.target, runID)
}

// ListRuns delegates to ListRunsWithClient with the shared client.
func (r *BigQueryReportRepository) ListRuns(ctx context.Context, limit int) ([]*ReportRunRow, error) {
	return ListRunsWithClient(ctx, r.client, r.target, limit)
}
