package aggregator

import (
	"testing"

	"github.com/dvloznov/txn-aggregator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, account, txType string, amount any, currency string) domain.Record {
	return domain.Record{
		domain.FieldTransactionID: id,
		domain.FieldAccountNumber: account,
		domain.FieldDate:          "2023-03-01",
		domain.FieldType:          txType,
		domain.FieldAmount:        amount,
		domain.FieldCurrency:      currency,
		domain.FieldDescription:   "Salary",
	}
}

func TestAggregator_Process(t *testing.T) {
	agg := New(DefaultConfig())

	res, err := agg.Process([]domain.Record{
		record("1", "1001", "deposit", 1000, "CAD"),
		record("2", "1001", "withdrawal", 200, "CAD"),
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.AccountSummary{
		{AccountNumber: "1001", Balance: 800, TotalDeposits: 1000, TotalWithdrawals: 200},
	}, res.AccountSummaries)
	assert.Equal(t, []domain.TypeStatistics{
		{Type: "deposit", TotalAmount: 1000, TransactionCount: 1},
		{Type: "withdrawal", TotalAmount: 200, TransactionCount: 1},
	}, res.TransactionStatistics)
	assert.Empty(t, res.SuspiciousTransactions)
	assert.Len(t, agg.Input(), 2)
}

func TestAggregator_ProcessIsAdditive(t *testing.T) {
	agg := New(DefaultConfig())

	_, err := agg.Process([]domain.Record{record("1", "1001", "deposit", 1000, "CAD")})
	require.NoError(t, err)
	res, err := agg.Process([]domain.Record{record("2", "1001", "deposit", 500, "CAD")})
	require.NoError(t, err)

	require.Len(t, res.AccountSummaries, 1)
	assert.Equal(t, 1500.0, res.AccountSummaries[0].Balance)
	stats, ok := agg.Statistic("deposit")
	require.True(t, ok)
	assert.Equal(t, 2, stats.TransactionCount)
}

func TestAggregator_UpdateAccountSummary(t *testing.T) {
	tests := []struct {
		name    string
		records []domain.Record
		want    domain.AccountSummary
	}{
		{
			name:    "deposit",
			records: []domain.Record{record("3", "1003", "deposit", 2000, "CAD")},
			want:    domain.AccountSummary{AccountNumber: "1003", Balance: 2000, TotalDeposits: 2000},
		},
		{
			name:    "withdrawal",
			records: []domain.Record{record("4", "1004", "withdrawal", 500, "CAD")},
			want:    domain.AccountSummary{AccountNumber: "1004", Balance: -500, TotalWithdrawals: 500},
		},
		{
			name:    "string amount",
			records: []domain.Record{record("5", "1005", "deposit", "250.5", "CAD")},
			want:    domain.AccountSummary{AccountNumber: "1005", Balance: 250.5, TotalDeposits: 250.5},
		},
		{
			// transfers create the row but leave the balance untouched
			name:    "transfer is balance-neutral",
			records: []domain.Record{record("6", "1006", "transfer", 700, "CAD")},
			want:    domain.AccountSummary{AccountNumber: "1006"},
		},
		{
			name: "mixed sequence",
			records: []domain.Record{
				record("7", "1007", "deposit", 100, "CAD"),
				record("8", "1007", "withdrawal", 30, "CAD"),
				record("9", "1007", "transfer", 1000, "CAD"),
				record("10", "1007", "deposit", 5, "CAD"),
			},
			want: domain.AccountSummary{AccountNumber: "1007", Balance: 75, TotalDeposits: 105, TotalWithdrawals: 30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := New(DefaultConfig())
			for _, r := range tt.records {
				require.NoError(t, agg.UpdateAccountSummary(r))
			}

			got, ok := agg.AccountSummary(tt.want.AccountNumber)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.TotalDeposits-got.TotalWithdrawals, got.Balance)
		})
	}
}

func TestAggregator_UpdateAccountSummaryErrors(t *testing.T) {
	agg := New(DefaultConfig())

	err := agg.UpdateAccountSummary(record("1", "1001", "deposit", "a", "CAD"))
	assert.ErrorIs(t, err, domain.ErrConversion)

	missing := record("2", "1002", "deposit", 10, "CAD")
	delete(missing, domain.FieldAccountNumber)
	err = agg.UpdateAccountSummary(missing)
	assert.ErrorIs(t, err, domain.ErrFieldMissing)

	assert.Empty(t, agg.AccountSummaries())
}

func TestAggregator_CheckSuspicious(t *testing.T) {
	tests := []struct {
		name     string
		amount   any
		currency string
		want     bool
	}{
		{name: "large amount", amount: DefaultLargeTransactionThreshold + 1000, currency: "CAD", want: true},
		{name: "exactly threshold", amount: 10000, currency: "CAD", want: false},
		{name: "just above threshold", amount: "10000.01", currency: "CAD", want: true},
		{name: "overflowing amount", amount: "1e400", currency: "CAD", want: true},
		{name: "uncommon currency XRP", amount: 1000, currency: "XRP", want: true},
		{name: "uncommon currency LTC", amount: 1, currency: "LTC", want: true},
		{name: "currency match is exact", amount: 1000, currency: "xrp", want: false},
		{name: "normal", amount: 1000, currency: "CAD", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := New(DefaultConfig())
			r := domain.Record{
				domain.FieldTransactionID: "5",
				domain.FieldAccountNumber: "1005",
				domain.FieldAmount:        tt.amount,
				domain.FieldCurrency:      tt.currency,
			}

			got, err := agg.CheckSuspicious(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.want {
				assert.Len(t, agg.SuspiciousTransactions(), 1)
			} else {
				assert.Empty(t, agg.SuspiciousTransactions())
			}
		})
	}
}

func TestAggregator_CheckSuspiciousKeepsReferenceAndDuplicates(t *testing.T) {
	agg := New(DefaultConfig())
	r := record("1", "1001", "deposit", 20000, "CAD")

	_, err := agg.Process([]domain.Record{r})
	require.NoError(t, err)
	_, err = agg.Process([]domain.Record{r})
	require.NoError(t, err)

	flagged := agg.SuspiciousTransactions()
	require.Len(t, flagged, 2)

	r[domain.FieldDescription] = "changed after processing"
	assert.Equal(t, "changed after processing", flagged[0][domain.FieldDescription])
	assert.Equal(t, "changed after processing", flagged[1][domain.FieldDescription])
}

func TestAggregator_CustomRules(t *testing.T) {
	agg := New(Config{LargeTransactionThreshold: 500, UncommonCurrencies: []string{"DOGE"}})

	res, err := agg.Process([]domain.Record{
		record("1", "1001", "deposit", 600, "CAD"),
		record("2", "1001", "deposit", 10, "XRP"),
		record("3", "1001", "deposit", 10, "DOGE"),
	})
	require.NoError(t, err)

	require.Len(t, res.SuspiciousTransactions, 2)
	assert.Equal(t, "1", res.SuspiciousTransactions[0][domain.FieldTransactionID])
	assert.Equal(t, "3", res.SuspiciousTransactions[1][domain.FieldTransactionID])
}

func TestAggregator_UpdateStatistics(t *testing.T) {
	agg := New(DefaultConfig())

	require.NoError(t, agg.UpdateStatistics(record("8", "1008", "deposit", 3000, "CAD")))
	require.NoError(t, agg.UpdateStatistics(record("9", "1008", "deposit", 1000, "CAD")))
	// any type string gets its own bucket
	require.NoError(t, agg.UpdateStatistics(record("10", "1008", "refund", 50, "CAD")))

	stats, ok := agg.Statistic("deposit")
	require.True(t, ok)
	assert.Equal(t, 4000.0, stats.TotalAmount)
	assert.Equal(t, 2, stats.TransactionCount)

	_, ok = agg.Statistic("refund")
	assert.True(t, ok)
}

func TestAggregator_AverageAmount(t *testing.T) {
	agg := New(DefaultConfig())
	_, err := agg.Process([]domain.Record{
		record("1", "1001", "deposit", 1000, "CAD"),
		record("2", "1002", "deposit", 500, "CAD"),
	})
	require.NoError(t, err)

	assert.Equal(t, 750.0, agg.AverageAmount("deposit"))
	assert.Equal(t, 0.0, agg.AverageAmount("withdrawal"))
	assert.Equal(t, 0.0, agg.AverageAmount("unknown"))
}

func TestAggregator_ProcessStopsAtFailingRecord(t *testing.T) {
	agg := New(DefaultConfig())

	_, err := agg.Process([]domain.Record{
		record("1", "1001", "deposit", 100, "CAD"),
		record("2", "1002", "deposit", "not a number", "CAD"),
		record("3", "1003", "deposit", 100, "CAD"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConversion)

	_, ok := agg.AccountSummary("1001")
	assert.True(t, ok)
	_, ok = agg.AccountSummary("1003")
	assert.False(t, ok)
}

func TestAggregator_Events(t *testing.T) {
	var kinds []EventKind
	agg := New(DefaultConfig(), WithEventHandler(func(e Event) {
		kinds = append(kinds, e.Kind)
	}))

	_, err := agg.Process([]domain.Record{
		record("1", "1001", "deposit", 20000, "CAD"),
		record("2", "1001", "transfer", 5, "CAD"),
	})
	require.NoError(t, err)

	assert.Equal(t, []EventKind{
		EventAccountCreated,
		EventAccountUpdated,
		EventSuspiciousFlagged,
		EventStatisticsUpdated,
		EventStatisticsUpdated,
	}, kinds)
}

func TestAggregator_ViewsAreCopies(t *testing.T) {
	agg := New(DefaultConfig())
	_, err := agg.Process([]domain.Record{record("1", "1001", "deposit", 100, "CAD")})
	require.NoError(t, err)

	summaries := agg.AccountSummaries()
	summaries[0].Balance = 0

	got, _ := agg.AccountSummary("1001")
	assert.Equal(t, 100.0, got.Balance)
}

func BenchmarkAggregator_Process(b *testing.B) {
	records := make([]domain.Record, 0, 10000)
	for i := 0; i < 10000; i++ {
		txType := "deposit"
		if i%3 == 0 {
			txType = "withdrawal"
		}
		records = append(records, record("id", string(rune('A'+i%26)), txType, float64(i), "CAD"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		agg := New(DefaultConfig())
		_, _ = agg.Process(records)
	}
}
