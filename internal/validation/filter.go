// Package validation drops records that are not fit for aggregation.
package validation

import (
	"github.com/dvloznov/txn-aggregator/internal/domain"
)

// Filter keeps records whose amount parses as a number strictly greater than
// zero and whose type is deposit, withdrawal or transfer. Rejected records are
// dropped silently; accepted records are returned unchanged and in order.
func Filter(records []domain.Record) []domain.Record {
	valid := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if Accept(r) {
			valid = append(valid, r)
		}
	}
	return valid
}

// Accept reports whether a single record passes validation.
func Accept(r domain.Record) bool {
	amount, err := r.Amount()
	if err != nil || !(amount > 0) {
		return false
	}

	txType, err := r.Type()
	if err != nil {
		return false
	}
	return txType.Valid()
}
