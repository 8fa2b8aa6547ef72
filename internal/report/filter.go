package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/txn-aggregator/internal/domain"
)

// Field selects the AccountSummary value a report is filtered on.
type Field string

const (
	FieldBalance          Field = "balance"
	FieldTotalDeposits    Field = "total_deposits"
	FieldTotalWithdrawals Field = "total_withdrawals"
)

// ErrUnknownField is returned for a field name that is not a summary value.
var ErrUnknownField = errors.New("unknown report field")

// ParseField maps a user-supplied name to a Field.
func ParseField(name string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	switch f {
	case FieldBalance, FieldTotalDeposits, FieldTotalWithdrawals:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Value returns the selected value of a summary.
func (f Field) Value(s domain.AccountSummary) (float64, error) {
	switch f {
	case FieldBalance:
		return s.Balance, nil
	case FieldTotalDeposits:
		return s.TotalDeposits, nil
	case FieldTotalWithdrawals:
		return s.TotalWithdrawals, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, string(f))
}

// Filter returns the summaries whose field is >= threshold when atLeast is
// true, or <= threshold otherwise. Input order is preserved.
func Filter(summaries []domain.AccountSummary, field Field, threshold float64, atLeast bool) ([]domain.AccountSummary, error) {
	out := make([]domain.AccountSummary, 0, len(summaries))
	for _, s := range summaries {
		v, err := field.Value(s)
		if err != nil {
			return nil, fmt.Errorf("Filter: %w", err)
		}

		if (atLeast && v >= threshold) || (!atLeast && v <= threshold) {
			out = append(out, s)
		}
	}
	return out, nil
}
