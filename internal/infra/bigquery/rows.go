package bigquery

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/txn-aggregator/internal/domain"
)

// AccountSummaryRows converts summaries to warehouse rows, keeping their order in Position.
func AccountSummaryRows(runID string, summaries []domain.AccountSummary) []*AccountSummaryRow {
	rows := make([]*AccountSummaryRow, 0, len(summaries))
	for i, s := range summaries {
		rows = append(rows, &AccountSummaryRow{
			RunID:            runID,
			Position:         int64(i),
			AccountNumber:    s.AccountNumber,
			Balance:          s.Balance,
			TotalDeposits:    s.TotalDeposits,
			TotalWithdrawals: s.TotalWithdrawals,
		})
	}
	return rows
}

// AccountSummariesFromRows converts warehouse rows back to domain summaries.
func AccountSummariesFromRows(rows []*AccountSummaryRow) []domain.AccountSummary {
	out := make([]domain.AccountSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AccountSummary{
			AccountNumber:    r.AccountNumber,
			Balance:          r.Balance,
			TotalDeposits:    r.TotalDeposits,
			TotalWithdrawals: r.TotalWithdrawals,
		})
	}
	return out
}

// SuspiciousRows converts flagged records to warehouse rows. The full record
// is kept as JSON in Raw so fields outside the fixed columns survive.
func SuspiciousRows(runID string, records []domain.Record) ([]*SuspiciousTransactionRow, error) {
	rows := make([]*SuspiciousTransactionRow, 0, len(records))
	for i, r := range records {
		account, err := r.AccountNumber()
		if err != nil {
			return nil, fmt.Errorf("SuspiciousRows: record %d: %w", i, err)
		}
		currency, err := r.Currency()
		if err != nil {
			return nil, fmt.Errorf("SuspiciousRows: record %d: %w", i, err)
		}
		amount, err := r.Amount()
		if err != nil {
			return nil, fmt.Errorf("SuspiciousRows: record %d: %w", i, err)
		}
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("SuspiciousRows: record %d: marshaling: %w", i, err)
		}

		rows = append(rows, &SuspiciousTransactionRow{
			RunID:           runID,
			Position:        int64(i),
			TransactionID:   optionalString(r, domain.FieldTransactionID),
			AccountNumber:   account,
			TransactionDate: optionalString(r, domain.FieldDate),
			TransactionType: optionalString(r, domain.FieldType),
			Amount:          amount,
			Currency:        currency,
			Description:     optionalString(r, domain.FieldDescription),
			Raw:             bigquery.NullJSON{JSONVal: string(raw), Valid: true},
		})
	}
	return rows, nil
}

// StatisticRows converts per-type statistics to warehouse rows.
func StatisticRows(runID string, stats []domain.TypeStatistics) []*TransactionStatisticRow {
	rows := make([]*TransactionStatisticRow, 0, len(stats))
	for i, s := range stats {
		rows = append(rows, &TransactionStatisticRow{
			RunID:            runID,
			Position:         int64(i),
			TransactionType:  s.Type,
			TotalAmount:      s.TotalAmount,
			TransactionCount: int64(s.TransactionCount),
			AverageAmount:    s.Average(),
		})
	}
	return rows
}

func optionalString(r domain.Record, field string) bigquery.NullString {
	v, ok := r[field]
	if !ok || v == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: domain.FormatValue(v), Valid: true}
}
