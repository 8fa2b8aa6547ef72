package bigquery

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Run statuses stored in report_runs.status.
const (
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// ReportRepository provides an interface for report warehouse operations.
type ReportRepository interface {
	// InsertRun records one pipeline run.
	InsertRun(ctx context.Context, row *ReportRunRow) error

	// InsertAccountSummaries stores the account summary rows of a run.
	InsertAccountSummaries(ctx context.Context, rows []*AccountSummaryRow) error

	// InsertSuspicious stores the flagged transactions of a run.
	InsertSuspicious(ctx context.Context, rows []*SuspiciousTransactionRow) error

	// InsertStatistics stores the per-type statistics of a run.
	InsertStatistics(ctx context.Context, rows []*TransactionStatisticRow) error

	// ListAccountSummaries retrieves the account summaries of a run in their original order.
	ListAccountSummaries(ctx context.Context, runID string) ([]*AccountSummaryRow, error)

	// ListRuns retrieves the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*ReportRunRow, error)
}

// ReportRunRow represents a pipeline run record in BigQuery.
type ReportRunRow struct {
	RunID   string     `bigquery:"run_id"`
	RunDate civil.Date `bigquery:"run_date"`

	StartedTS  time.Time `bigquery:"started_ts"`
	FinishedTS time.Time `bigquery:"finished_ts"`

	InputURI string `bigquery:"input_uri"`

	RecordsRead     int64 `bigquery:"records_read"`
	RecordsValid    int64 `bigquery:"records_valid"`
	AccountCount    int64 `bigquery:"account_count"`
	SuspiciousCount int64 `bigquery:"suspicious_count"`

	LargeTransactionThreshold float64  `bigquery:"large_transaction_threshold"`
	UncommonCurrencies        []string `bigquery:"uncommon_currencies"`

	Status       string              `bigquery:"status"`
	ErrorMessage bigquery.NullString `bigquery:"error_message"`
}

// AccountSummaryRow represents one account summary of a run.
type AccountSummaryRow struct {
	RunID    string `bigquery:"run_id"`
	Position int64  `bigquery:"position"`

	AccountNumber    string  `bigquery:"account_number"`
	Balance          float64 `bigquery:"balance"`
	TotalDeposits    float64 `bigquery:"total_deposits"`
	TotalWithdrawals float64 `bigquery:"total_withdrawals"`
}

// SuspiciousTransactionRow represents a flagged transaction of a run.
type SuspiciousTransactionRow struct {
	RunID    string `bigquery:"run_id"`
	Position int64  `bigquery:"position"`

	TransactionID   bigquery.NullString `bigquery:"transaction_id"`
	AccountNumber   string              `bigquery:"account_number"`
	TransactionDate bigquery.NullString `bigquery:"transaction_date"`
	TransactionType bigquery.NullString `bigquery:"transaction_type"`

	Amount   float64 `bigquery:"amount"`
	Currency string  `bigquery:"currency"`

	Description bigquery.NullString `bigquery:"description"`

	Raw bigquery.NullJSON `bigquery:"raw"`
}

// TransactionStatisticRow represents the statistics of one transaction type in a run.
type TransactionStatisticRow struct {
	RunID    string `bigquery:"run_id"`
	Position int64  `bigquery:"position"`

	TransactionType  string  `bigquery:"transaction_type"`
	TotalAmount      float64 `bigquery:"total_amount"`
	TransactionCount int64   `bigquery:"transaction_count"`
	AverageAmount    float64 `bigquery:"average_amount"`
}
