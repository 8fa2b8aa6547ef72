package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const reportRunsTable = "report_runs"

// InsertRunWithClient inserts one row into report_runs using the provided BigQuery client.
func InsertRunWithClient(ctx context.Context, client *bigquery.Client, target Target, row *ReportRunRow) error {
	if row == nil || row.RunID == "" {
		return fmt.Errorf("InsertRunWithClient: run_id cannot be empty")
	}

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id,
			run_date,
			started_ts,
			finished_ts,
			input_uri,
			records_read,
			records_valid,
			account_count,
			suspicious_count,
			large_transaction_threshold,
			uncommon_currencies,
			status,
			error_message
		)
		VALUES (
			@run_id,
			@run_date,
			@started_ts,
			@finished_ts,
			@input_uri,
			@records_read,
			@records_valid,
			@account_count,
			@suspicious_count,
			@large_transaction_threshold,
			@uncommon_currencies,
			@status,
			@error_message
		)
	`, target.table(reportRunsTable)))

	currencies := row.UncommonCurrencies
	if currencies == nil {
		currencies = []string{}
	}

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "run_date", Value: row.RunDate},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "finished_ts", Value: row.FinishedTS},
		{Name: "input_uri", Value: row.InputURI},
		{Name: "records_read", Value: row.RecordsRead},
		{Name: "records_valid", Value: row.RecordsValid},
		{Name: "account_count", Value: row.AccountCount},
		{Name: "suspicious_count", Value: row.SuspiciousCount},
		{Name: "large_transaction_threshold", Value: row.LargeTransactionThreshold},
		{Name: "uncommon_currencies", Value: currencies},
		{Name: "status", Value: row.Status},
		{Name: "error_message", Value: row.ErrorMessage},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("InsertRunWithClient: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("InsertRunWithClient: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("InsertRunWithClient: job error: %w", err)
	}

	return nil
}

// ListRunsWithClient retrieves the most recent runs using the provided BigQuery client.
func ListRunsWithClient(ctx context.Context, client *bigquery.Client, target Target, limit int) ([]*ReportRunRow, error) {
	if limit <= 0 {
		limit = 20
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			run_date,
			started_ts,
			finished_ts,
			input_uri,
			records_read,
			records_valid,
			account_count,
			suspicious_count,
			large_transaction_threshold,
			uncommon_currencies,
			status,
			error_message
		FROM %s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, target.table(reportRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRunsWithClient: reading query: %w", err)
	}

	var runs []*ReportRunRow
	for {
		var row ReportRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRunsWithClient: iterating: %w", err)
		}
		runs = append(runs, &row)
	}

	return runs, nil
}
