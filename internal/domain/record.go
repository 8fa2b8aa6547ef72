package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field names of a transaction record, as they appear in the CSV header and
// the JSON object keys of the input files.
const (
	FieldTransactionID = "Transaction ID"
	FieldAccountNumber = "Account number"
	FieldDate          = "Date"
	FieldType          = "Transaction type"
	FieldAmount        = "Amount"
	FieldCurrency      = "Currency"
	FieldDescription   = "Description"
)

// TransactionColumns is the column order used when a record is written out.
var TransactionColumns = []string{
	FieldTransactionID,
	FieldAccountNumber,
	FieldDate,
	FieldType,
	FieldAmount,
	FieldCurrency,
	FieldDescription,
}

var (
	// ErrFieldMissing is returned when a required key is absent from a record.
	ErrFieldMissing = errors.New("field missing")

	// ErrConversion is returned when the amount cannot be read as a number.
	ErrConversion = errors.New("amount is not numeric")
)

// TransactionType is the kind of a transaction.
type TransactionType string

const (
	Deposit    TransactionType = "deposit"
	Withdrawal TransactionType = "withdrawal"
	Transfer   TransactionType = "transfer"
)

// Valid reports whether t is one of the known transaction types.
// The comparison is exact and case-sensitive.
func (t TransactionType) Valid() bool {
	switch t {
	case Deposit, Withdrawal, Transfer:
		return true
	}
	return false
}

// Record is one transaction as read from the source, keyed by field name.
// Values keep the type they were decoded with: strings for CSV input,
// json.Number / string / bool / nil for JSON input. A Record is a map, so
// storing it elsewhere shares the same underlying data.
type Record map[string]any

// Field returns the raw value of a field or ErrFieldMissing.
func (r Record) Field(name string) (any, error) {
	v, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldMissing, name)
	}
	return v, nil
}

// String returns the field rendered as text.
func (r Record) String(name string) (string, error) {
	v, err := r.Field(name)
	if err != nil {
		return "", err
	}
	return FormatValue(v), nil
}

// Amount returns the amount coerced to a float.
func (r Record) Amount() (float64, error) {
	v, err := r.Field(FieldAmount)
	if err != nil {
		return 0, err
	}
	return ParseAmount(v)
}

func (r Record) AccountNumber() (string, error) { return r.String(FieldAccountNumber) }

func (r Record) Currency() (string, error) { return r.String(FieldCurrency) }

// Type returns the transaction type as recorded. Any string is returned,
// including values that are not a valid TransactionType.
func (r Record) Type() (TransactionType, error) {
	s, err := r.String(FieldType)
	return TransactionType(s), err
}

// ParseAmount converts a decoded value to a float. Text is trimmed before
// parsing and overflowing text becomes ±Inf; booleans and nil are not numbers.
func ParseAmount(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case json.Number:
		f, err := parseFloat(val.String())
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrConversion, val.String())
		}
		return f, nil
	case string:
		f, err := parseFloat(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrConversion, val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: value of type %T", ErrConversion, v)
	}
}

// parseFloat accepts text beyond the float64 range as ±Inf.
func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if errors.Is(err, strconv.ErrRange) {
		return f, nil
	}
	return f, err
}

// FormatValue renders a decoded value the way it would appear in a CSV cell.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return FormatAmount(val)
	case float32:
		return FormatAmount(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}

// FormatAmount renders a float with the fewest digits that round-trip.
func FormatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
