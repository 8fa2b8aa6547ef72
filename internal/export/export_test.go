package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/dvloznov/txn-aggregator/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAccountSummaries(t *testing.T) {
	var sb strings.Builder
	err := EncodeAccountSummaries(&sb, []domain.AccountSummary{
		{AccountNumber: "1001", Balance: 50, TotalDeposits: 100, TotalWithdrawals: 50},
		{AccountNumber: "1002", Balance: -12.5, TotalDeposits: 0, TotalWithdrawals: 12.5},
	})
	require.NoError(t, err)

	want := "Account number,Balance,Total Deposits,Total Withdrawals\n" +
		"1001,50,100,50\n" +
		"1002,-12.5,0,12.5\n"
	assert.Equal(t, want, sb.String())
}

func TestEncodeSuspicious(t *testing.T) {
	var sb strings.Builder
	err := EncodeSuspicious(&sb, []domain.Record{
		{
			domain.FieldTransactionID: "5",
			domain.FieldAccountNumber: "1005",
			domain.FieldDate:          "2023-03-01",
			domain.FieldType:          "deposit",
			domain.FieldAmount:        json.Number("11000"),
			domain.FieldCurrency:      "CAD",
			domain.FieldDescription:   "Bonus, yearly",
		},
		{
			domain.FieldTransactionID: "6",
			domain.FieldAccountNumber: "1006",
			domain.FieldDate:          "2023-03-02",
			domain.FieldType:          "withdrawal",
			domain.FieldAmount:        "1000",
			domain.FieldCurrency:      "XRP",
		},
	})
	require.NoError(t, err)

	want := "Transaction ID,Account number,Date,Transaction type,Amount,Currency,Description\n" +
		"5,1005,2023-03-01,deposit,11000,CAD,\"Bonus, yearly\"\n" +
		"6,1006,2023-03-02,withdrawal,1000,XRP,\n"
	assert.Equal(t, want, sb.String())
}

func TestEncodeSuspicious_MissingRequiredField(t *testing.T) {
	var sb strings.Builder
	err := EncodeSuspicious(&sb, []domain.Record{{domain.FieldAmount: "20000"}})
	assert.ErrorIs(t, err, domain.ErrFieldMissing)
}

func TestEncodeStatistics(t *testing.T) {
	var sb strings.Builder
	err := EncodeStatistics(&sb, []domain.TypeStatistics{
		{Type: "deposit", TotalAmount: 2500, TransactionCount: 2},
		{Type: "withdrawal", TotalAmount: 200, TransactionCount: 1},
	})
	require.NoError(t, err)

	want := "Transaction type,Total amount,Transaction count\n" +
		"deposit,2500,2\n" +
		"withdrawal,200,1\n"
	assert.Equal(t, want, sb.String())
}

func TestPathsFor(t *testing.T) {
	p := PathsFor("gs://reports/2024", "")
	assert.Equal(t, "gs://reports/2024/output_data_account_summaries.csv", p.AccountSummaries)
	assert.Equal(t, "gs://reports/2024/output_data_suspicious_transactions.csv", p.SuspiciousTransactions)
	assert.Equal(t, "gs://reports/2024/output_data_transaction_statistics.csv", p.TransactionStatistics)
	assert.Equal(t, "gs://reports/2024/output_data_filtered_accounts.csv", p.FilteredAccounts)
}

func TestValidatePrefix(t *testing.T) {
	tests := []struct {
		prefix  string
		wantErr bool
	}{
		{prefix: ""},
		{prefix: "output_data"},
		{prefix: "daily.2024-01-31"},
		{prefix: ".", wantErr: true},
		{prefix: "..", wantErr: true},
		{prefix: "../../etc/cron.d/evil", wantErr: true},
		{prefix: "nested/name", wantErr: true},
		{prefix: `nested\name`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			err := ValidatePrefix(tt.prefix)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPrefix)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWriter_WriteAll(t *testing.T) {
	dir := t.TempDir()
	paths := PathsFor(dir, "team_1")
	w := NewWriter(storage.LocalStorage{})

	res := aggregator.Result{
		AccountSummaries:      []domain.AccountSummary{{AccountNumber: "1001", Balance: 800, TotalDeposits: 1000, TotalWithdrawals: 200}},
		TransactionStatistics: []domain.TypeStatistics{{Type: "deposit", TotalAmount: 1000, TransactionCount: 1}},
	}

	written, err := w.WriteAll(context.Background(), paths, res, nil)
	require.NoError(t, err)
	assert.Len(t, written, 3)

	data, err := os.ReadFile(filepath.Join(dir, "team_1_account_summaries.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "1001,800,1000,200")

	data, err = os.ReadFile(paths.SuspiciousTransactions)
	require.NoError(t, err)
	assert.Equal(t, "Transaction ID,Account number,Date,Transaction type,Amount,Currency,Description\n", string(data))

	_, err = os.Stat(paths.FilteredAccounts)
	assert.True(t, os.IsNotExist(err))

	written, err = w.WriteAll(context.Background(), paths, res, []domain.AccountSummary{})
	require.NoError(t, err)
	assert.Len(t, written, 4)
}
