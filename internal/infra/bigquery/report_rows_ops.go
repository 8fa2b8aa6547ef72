package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	accountSummariesTable      = "account_summaries"
	suspiciousTransactionTable = "suspicious_transactions"
	transactionStatisticsTable = "transaction_statistics"
)

// InsertAccountSummariesWithClient inserts a batch of AccountSummaryRow using the provided BigQuery client.
func InsertAccountSummariesWithClient(ctx context.Context, client *bigquery.Client, target Target, rows []*AccountSummaryRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(target.ProjectID, target.DatasetID).Table(accountSummariesTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertAccountSummaries: inserting rows: %w", err)
	}
	return nil
}

// InsertSuspiciousWithClient inserts a batch of SuspiciousTransactionRow using the provided BigQuery client.
func InsertSuspiciousWithClient(ctx context.Context, client *bigquery.Client, target Target, rows []*SuspiciousTransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(target.ProjectID, target.DatasetID).Table(suspiciousTransactionTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertSuspicious: inserting rows: %w", err)
	}
	return nil
}

// InsertStatisticsWithClient inserts a batch of TransactionStatisticRow using the provided BigQuery client.
func InsertStatisticsWithClient(ctx context.Context, client *bigquery.Client, target Target, rows []*TransactionStatisticRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(target.ProjectID, target.DatasetID).Table(transactionStatisticsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertStatistics: inserting rows: %w", err)
	}
	return nil
}

// ListAccountSummariesWithClient retrieves the account summaries of one run,
// ordered as the aggregator produced them.
func ListAccountSummariesWithClient(ctx context.Context, client *bigquery.Client, target Target, runID string) ([]*AccountSummaryRow, error) {
	if runID == "" {
		return nil, fmt.Errorf("ListAccountSummariesWithClient: run_id cannot be empty")
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			position,
			account_number,
			balance,
			total_deposits,
			total_withdrawals
		FROM %s
		WHERE run_id = @run_id
		ORDER BY position ASC
	`, target.table(accountSummariesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccountSummariesWithClient: reading query: %w", err)
	}

	var rows []*AccountSummaryRow
	for {
		var row AccountSummaryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAccountSummariesWithClient: iterating: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}
