package main

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
	"github.com/dvloznov/txn-aggregator/internal/config"
	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/dvloznov/txn-aggregator/internal/pipeline"
	"github.com/dvloznov/txn-aggregator/internal/report"
)

func testConfig() *config.Config {
	return &config.Config{
		LargeTransactionThreshold: 10000,
		UncommonCurrencies:        []string{"XRP", "LTC"},
		LogLevel:                  "info",
		LogFormat:                 "console",
		BQDataset:                 "finance_reports",
	}
}

func TestParseRunFlags_Defaults(t *testing.T) {
	rf, err := parseRunFlags(testConfig(), []string{"-input", "data.csv"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "data.csv", rf.opts.InputURI)
	assert.Equal(t, ".", rf.opts.OutputDir)
	assert.Equal(t, "output_data", rf.opts.Prefix)
	assert.Equal(t, aggregator.Config{LargeTransactionThreshold: 10000, UncommonCurrencies: []string{"XRP", "LTC"}}, rf.opts.Rules)
	assert.Nil(t, rf.opts.Filter)
	assert.False(t, rf.publish)
	assert.Equal(t, "info", rf.logOpts.Level)
}

func TestParseRunFlags_Overrides(t *testing.T) {
	rf, err := parseRunFlags(testConfig(), []string{
		"-input", "gs://b/in.json",
		"-output-dir", "gs://b/out",
		"-prefix", "q1",
		"-log-file", "run.log",
		"-log-level", "debug",
		"-threshold", "500",
		"-uncommon-currencies", "DOGE, ",
		"-filter-field", "total_withdrawals",
		"-filter-threshold", "100",
		"-filter-below",
		"-publish",
		"-project", "proj",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "gs://b/out", rf.opts.OutputDir)
	assert.Equal(t, "q1", rf.opts.Prefix)
	assert.Equal(t, "run.log", rf.logOpts.File)
	assert.Equal(t, "debug", rf.logOpts.Level)
	assert.Equal(t, 500.0, rf.opts.Rules.LargeTransactionThreshold)
	assert.Equal(t, []string{"DOGE"}, rf.opts.Rules.UncommonCurrencies)
	assert.Equal(t, &pipeline.ReportFilter{Field: report.FieldTotalWithdrawals, Threshold: 100, AtLeast: false}, rf.opts.Filter)
	assert.True(t, rf.publish)
	assert.Equal(t, "proj", rf.project)
}

func TestParseRunFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing input", args: nil},
		{name: "unknown filter field", args: []string{"-input", "a.csv", "-filter-field", "overdraft"}},
		{name: "publish without project", args: []string{"-input", "a.csv", "-publish"}},
		{name: "bad threshold", args: []string{"-input", "a.csv", "-threshold", "lots"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRunFlags(testConfig(), tt.args, io.Discard)
			assert.Error(t, err)
		})
	}

	_, err := parseRunFlags(testConfig(), []string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestPrintRunSummary(t *testing.T) {
	state := &pipeline.PipelineState{
		RunID:    "run-1",
		Records:  make([]domain.Record, 3),
		Rejected: 1,
		Result: aggregator.Result{
			AccountSummaries:      []domain.AccountSummary{{AccountNumber: "A"}},
			TransactionStatistics: []domain.TypeStatistics{{Type: "deposit", TotalAmount: 30, TransactionCount: 2}},
		},
		Filter:  &pipeline.ReportFilter{Field: report.FieldBalance},
		Written: []string{"out/output_data_account_summaries.csv"},
	}

	buf := &bytes.Buffer{}
	printRunSummary(buf, state)

	out := buf.String()
	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "Records rejected: 1")
	assert.Contains(t, out, "count=2 total=30 average=15")
	assert.Contains(t, out, "Filtered accounts: 0")
	assert.Contains(t, out, "Wrote out/output_data_account_summaries.csv")
	assert.NotContains(t, out, "Published")
}

func TestParseInspectFlags(t *testing.T) {
	cfg := testConfig()
	cfg.BQProjectID = "proj"

	f, err := parseInspectFlags(cfg, []string{"-run", "run-7", "-limit", "5"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, &inspectFlags{runID: "run-7", limit: 5, project: "proj", dataset: "finance_reports"}, f)

	f, err = parseInspectFlags(cfg, nil, io.Discard)
	require.NoError(t, err)
	assert.Empty(t, f.runID)
	assert.Equal(t, 20, f.limit)

	_, err = parseInspectFlags(testConfig(), nil, io.Discard)
	assert.Error(t, err)

	_, err = parseInspectFlags(cfg, []string{"-run-id", "run-7"}, io.Discard)
	assert.Error(t, err)
}

func TestRunReport_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(input, []byte("Transaction ID,Account number,Date,Transaction type,Amount,Currency,Description\n"+
		"1,1001,2023-03-01,deposit,1000,CAD,Salary\n"), 0o644))
	logFile := filepath.Join(dir, "run.log")

	assert.Equal(t, 2, runReport(testConfig(), nil))
	assert.Equal(t, 1, runReport(testConfig(), []string{"-input", filepath.Join(dir, "missing.csv"), "-log-file", logFile}))

	outDir := filepath.Join(dir, "out")
	assert.Equal(t, 0, runReport(testConfig(), []string{"-input", input, "-output-dir", outDir, "-prefix", "daily", "-log-file", logFile}))
	assert.FileExists(t, filepath.Join(outDir, "daily_account_summaries.csv"))

	logged, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotEmpty(t, logged)
}
