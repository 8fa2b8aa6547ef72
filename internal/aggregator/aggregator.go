package aggregator

import (
	"fmt"

	"github.com/dvloznov/txn-aggregator/internal/domain"
)

// Result holds the three structures built by Process. Slices are ordered by
// first appearance of their key (accounts, types) or by encounter order
// (suspicious transactions).
type Result struct {
	AccountSummaries       []domain.AccountSummary `json:"account_summaries"`
	SuspiciousTransactions []domain.Record         `json:"suspicious_transactions"`
	TransactionStatistics  []domain.TypeStatistics `json:"transaction_statistics"`
}

// Aggregator builds account summaries, transaction statistics and the list of
// suspicious transactions from a sequence of records. State is additive
// across calls. An Aggregator is meant for a single pipeline run and is not
// safe for concurrent use.
type Aggregator struct {
	threshold float64
	uncommon  map[string]struct{}
	handlers  []EventHandler

	input []domain.Record

	accounts     map[string]*domain.AccountSummary
	accountOrder []string

	stats      map[string]*domain.TypeStatistics
	statsOrder []string

	suspicious []domain.Record
}

// New creates an Aggregator with the given rules.
func New(cfg Config, opts ...Option) *Aggregator {
	uncommon := make(map[string]struct{}, len(cfg.UncommonCurrencies))
	for _, c := range cfg.UncommonCurrencies {
		uncommon[c] = struct{}{}
	}

	a := &Aggregator{
		threshold: cfg.LargeTransactionThreshold,
		uncommon:  uncommon,
		accounts:  make(map[string]*domain.AccountSummary),
		stats:     make(map[string]*domain.TypeStatistics),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Process applies every record in order: account summary, suspicious check,
// then statistics. It stops at the first failing record; everything applied
// before it stays applied.
func (a *Aggregator) Process(records []domain.Record) (Result, error) {
	for i, r := range records {
		a.input = append(a.input, r)

		if err := a.UpdateAccountSummary(r); err != nil {
			return Result{}, fmt.Errorf("Process: record %d: %w", i, err)
		}
		if _, err := a.CheckSuspicious(r); err != nil {
			return Result{}, fmt.Errorf("Process: record %d: %w", i, err)
		}
		if err := a.UpdateStatistics(r); err != nil {
			return Result{}, fmt.Errorf("Process: record %d: %w", i, err)
		}
	}

	return a.Result(), nil
}

// Result returns a snapshot of the current state.
func (a *Aggregator) Result() Result {
	return Result{
		AccountSummaries:       a.AccountSummaries(),
		SuspiciousTransactions: a.SuspiciousTransactions(),
		TransactionStatistics:  a.TransactionStatistics(),
	}
}

// UpdateAccountSummary applies a deposit or withdrawal to the record's
// account. Other types only make sure the account row exists.
func (a *Aggregator) UpdateAccountSummary(r domain.Record) error {
	accountNumber, err := r.AccountNumber()
	if err != nil {
		return fmt.Errorf("UpdateAccountSummary: %w", err)
	}
	txType, err := r.Type()
	if err != nil {
		return fmt.Errorf("UpdateAccountSummary: %w", err)
	}
	amount, err := r.Amount()
	if err != nil {
		return fmt.Errorf("UpdateAccountSummary: %w", err)
	}

	summary, ok := a.accounts[accountNumber]
	if !ok {
		summary = &domain.AccountSummary{AccountNumber: accountNumber}
		a.accounts[accountNumber] = summary
		a.accountOrder = append(a.accountOrder, accountNumber)
		a.emit(Event{Kind: EventAccountCreated, AccountNumber: accountNumber, Type: string(txType), Amount: amount, Record: r})
	}

	switch txType {
	case domain.Deposit:
		summary.Balance += amount
		summary.TotalDeposits += amount
	case domain.Withdrawal:
		summary.Balance -= amount
		summary.TotalWithdrawals += amount
	default:
		// transfers and unknown types are balance-neutral
		return nil
	}

	a.emit(Event{Kind: EventAccountUpdated, AccountNumber: accountNumber, Type: string(txType), Amount: amount, Record: r})
	return nil
}

// CheckSuspicious flags the record when its amount is above the threshold or
// its currency is uncommon. Flagged records are appended without dedup.
func (a *Aggregator) CheckSuspicious(r domain.Record) (bool, error) {
	amount, err := r.Amount()
	if err != nil {
		return false, fmt.Errorf("CheckSuspicious: %w", err)
	}
	currency, err := r.Currency()
	if err != nil {
		return false, fmt.Errorf("CheckSuspicious: %w", err)
	}

	_, uncommon := a.uncommon[currency]
	if amount <= a.threshold && !uncommon {
		return false, nil
	}

	a.suspicious = append(a.suspicious, r)

	accountNumber, _ := r.AccountNumber()
	a.emit(Event{Kind: EventSuspiciousFlagged, AccountNumber: accountNumber, Amount: amount, Record: r})
	return true, nil
}

// UpdateStatistics adds the record's amount to its type bucket.
func (a *Aggregator) UpdateStatistics(r domain.Record) error {
	txType, err := r.Type()
	if err != nil {
		return fmt.Errorf("UpdateStatistics: %w", err)
	}
	amount, err := r.Amount()
	if err != nil {
		return fmt.Errorf("UpdateStatistics: %w", err)
	}

	key := string(txType)
	bucket, ok := a.stats[key]
	if !ok {
		bucket = &domain.TypeStatistics{Type: key}
		a.stats[key] = bucket
		a.statsOrder = append(a.statsOrder, key)
	}
	bucket.TotalAmount += amount
	bucket.TransactionCount++

	a.emit(Event{Kind: EventStatisticsUpdated, Type: key, Amount: amount, Record: r})
	return nil
}

// AverageAmount returns the mean amount for a transaction type, or 0 when
// the type has not been seen.
func (a *Aggregator) AverageAmount(txType string) float64 {
	bucket, ok := a.stats[txType]
	if !ok {
		return 0
	}
	return bucket.Average()
}

// Input returns every record passed to Process so far.
func (a *Aggregator) Input() []domain.Record {
	out := make([]domain.Record, len(a.input))
	copy(out, a.input)
	return out
}

// AccountSummaries returns a copy of all summaries in first-seen order.
func (a *Aggregator) AccountSummaries() []domain.AccountSummary {
	out := make([]domain.AccountSummary, 0, len(a.accountOrder))
	for _, acct := range a.accountOrder {
		out = append(out, *a.accounts[acct])
	}
	return out
}

// AccountSummary returns a copy of one account's summary.
func (a *Aggregator) AccountSummary(accountNumber string) (domain.AccountSummary, bool) {
	s, ok := a.accounts[accountNumber]
	if !ok {
		return domain.AccountSummary{}, false
	}
	return *s, true
}

// SuspiciousTransactions returns the flagged records in encounter order.
// The records themselves are shared with the caller's input.
func (a *Aggregator) SuspiciousTransactions() []domain.Record {
	out := make([]domain.Record, len(a.suspicious))
	copy(out, a.suspicious)
	return out
}

// TransactionStatistics returns a copy of all type buckets in first-seen order.
func (a *Aggregator) TransactionStatistics() []domain.TypeStatistics {
	out := make([]domain.TypeStatistics, 0, len(a.statsOrder))
	for _, key := range a.statsOrder {
		out = append(out, *a.stats[key])
	}
	return out
}

// Statistic returns a copy of one type bucket.
func (a *Aggregator) Statistic(txType string) (domain.TypeStatistics, bool) {
	s, ok := a.stats[txType]
	if !ok {
		return domain.TypeStatistics{}, false
	}
	return *s, true
}

func (a *Aggregator) emit(e Event) {
	for _, h := range a.handlers {
		h(e)
	}
}
