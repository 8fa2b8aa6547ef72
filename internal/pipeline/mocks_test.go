package pipeline_test

import (
	"context"
	"sync"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
	bq "github.com/dvloznov/txn-aggregator/internal/bigquery"
	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/dvloznov/txn-aggregator/internal/export"
)

type MockRecordSource struct {
	ReadRecordsFunc func(ctx context.Context, uri string) ([]domain.Record, error)
}

func (m *MockRecordSource) ReadRecords(ctx context.Context, uri string) ([]domain.Record, error) {
	if m.ReadRecordsFunc != nil {
		return m.ReadRecordsFunc(ctx, uri)
	}
	return nil, nil
}

type MockResultSink struct {
	WriteAllFunc func(ctx context.Context, paths export.Paths, res aggregator.Result, filtered []domain.AccountSummary) ([]string, error)
}

func (m *MockResultSink) WriteAll(ctx context.Context, paths export.Paths, res aggregator.Result, filtered []domain.AccountSummary) ([]string, error) {
	if m.WriteAllFunc != nil {
		return m.WriteAllFunc(ctx, paths, res, filtered)
	}
	return nil, nil
}

// MockReportRepository records every insert.
type MockReportRepository struct {
	mu sync.Mutex

	Runs       []*bq.ReportRunRow
	Summaries  []*bq.AccountSummaryRow
	Suspicious []*bq.SuspiciousTransactionRow
	Statistics []*bq.TransactionStatisticRow

	InsertSuspiciousErr error
}

func (m *MockReportRepository) InsertRun(ctx context.Context, row *bq.ReportRunRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs = append(m.Runs, row)
	return nil
}

func (m *MockReportRepository) InsertAccountSummaries(ctx context.Context, rows []*bq.AccountSummaryRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Summaries = append(m.Summaries, rows...)
	return nil
}

func (m *MockReportRepository) InsertSuspicious(ctx context.Context, rows []*bq.SuspiciousTransactionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertSuspiciousErr != nil {
		return m.InsertSuspiciousErr
	}
	m.Suspicious = append(m.Suspicious, rows...)
	return nil
}

func (m *MockReportRepository) InsertStatistics(ctx context.Context, rows []*bq.TransactionStatisticRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statistics = append(m.Statistics, rows...)
	return nil
}

func (m *MockReportRepository) ListAccountSummaries(ctx context.Context, runID string) ([]*bq.AccountSummaryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*bq.AccountSummaryRow
	for _, r := range m.Summaries {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockReportRepository) ListRuns(ctx context.Context, limit int) ([]*bq.ReportRunRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Runs, nil
}
