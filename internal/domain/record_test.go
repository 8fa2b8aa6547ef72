package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    float64
		wantErr bool
	}{
		{name: "float", input: 1000.5, want: 1000.5},
		{name: "int", input: 1800, want: 1800},
		{name: "json number", input: json.Number("-1800"), want: -1800},
		{name: "numeric string", input: "200", want: 200},
		{name: "string with spaces", input: " 12.25 ", want: 12.25},
		{name: "overflowing string", input: "1e400", want: math.Inf(1)},
		{name: "negative overflowing string", input: "-1e400", want: math.Inf(-1)},
		{name: "overflowing json number", input: json.Number("1e400"), want: math.Inf(1)},
		{name: "letters", input: "a", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
		{name: "bool", input: true, wantErr: true},
		{name: "nil", input: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrConversion))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecord_FieldMissing(t *testing.T) {
	r := Record{FieldAccountNumber: "1001"}

	_, err := r.Amount()
	assert.ErrorIs(t, err, ErrFieldMissing)

	_, err = r.Currency()
	assert.ErrorIs(t, err, ErrFieldMissing)

	acct, err := r.AccountNumber()
	require.NoError(t, err)
	assert.Equal(t, "1001", acct)
}

func TestRecord_StringRendersNumbers(t *testing.T) {
	r := Record{
		FieldAccountNumber: float64(1002),
		FieldTransactionID: json.Number("7"),
		FieldDescription:   nil,
	}

	acct, err := r.AccountNumber()
	require.NoError(t, err)
	assert.Equal(t, "1002", acct)

	id, err := r.String(FieldTransactionID)
	require.NoError(t, err)
	assert.Equal(t, "7", id)

	desc, err := r.String(FieldDescription)
	require.NoError(t, err)
	assert.Equal(t, "", desc)
}

func TestTransactionType_Valid(t *testing.T) {
	assert.True(t, Deposit.Valid())
	assert.True(t, Withdrawal.Valid())
	assert.True(t, Transfer.Valid())
	assert.False(t, TransactionType("Deposit").Valid())
	assert.False(t, TransactionType("a").Valid())
	assert.False(t, TransactionType("").Valid())
}

func TestTypeStatistics_Average(t *testing.T) {
	assert.Equal(t, 0.0, TypeStatistics{Type: "deposit"}.Average())
	assert.Equal(t, 250.0, TypeStatistics{Type: "deposit", TotalAmount: 500, TransactionCount: 2}.Average())
}
