// Package export writes aggregation results as CSV files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dvloznov/txn-aggregator/internal/domain"
)

// Column headers of the output files.
var (
	AccountSummaryHeader = []string{"Account number", "Balance", "Total Deposits", "Total Withdrawals"}
	StatisticsHeader     = []string{"Transaction type", "Total amount", "Transaction count"}
	SuspiciousHeader     = domain.TransactionColumns
)

// EncodeAccountSummaries writes one row per summary, in the given order.
func EncodeAccountSummaries(w io.Writer, summaries []domain.AccountSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AccountSummaryHeader); err != nil {
		return fmt.Errorf("EncodeAccountSummaries: writing header: %w", err)
	}

	for _, s := range summaries {
		row := []string{
			s.AccountNumber,
			domain.FormatAmount(s.Balance),
			domain.FormatAmount(s.TotalDeposits),
			domain.FormatAmount(s.TotalWithdrawals),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("EncodeAccountSummaries: writing account %s: %w", s.AccountNumber, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// EncodeSuspicious writes the flagged records with their original values.
// Description may be absent; every other column is required.
func EncodeSuspicious(w io.Writer, records []domain.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SuspiciousHeader); err != nil {
		return fmt.Errorf("EncodeSuspicious: writing header: %w", err)
	}

	for i, r := range records {
		row := make([]string, 0, len(SuspiciousHeader))
		for _, col := range SuspiciousHeader {
			v, err := r.String(col)
			if err != nil && !(col == domain.FieldDescription && errors.Is(err, domain.ErrFieldMissing)) {
				return fmt.Errorf("EncodeSuspicious: record %d: %w", i, err)
			}
			row = append(row, v)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("EncodeSuspicious: record %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// EncodeStatistics writes one row per transaction type.
func EncodeStatistics(w io.Writer, stats []domain.TypeStatistics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StatisticsHeader); err != nil {
		return fmt.Errorf("EncodeStatistics: writing header: %w", err)
	}

	for _, s := range stats {
		row := []string{
			s.Type,
			domain.FormatAmount(s.TotalAmount),
			strconv.Itoa(s.TransactionCount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("EncodeStatistics: writing type %s: %w", s.Type, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
