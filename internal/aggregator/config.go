package aggregator

// DefaultLargeTransactionThreshold is the amount above which a transaction is
// flagged. The comparison is strict: an amount equal to the threshold is not.
const DefaultLargeTransactionThreshold = 10000.0

// DefaultUncommonCurrencies are currency codes that flag a transaction
// regardless of its amount.
var DefaultUncommonCurrencies = []string{"XRP", "LTC"}

// Config holds the suspicious-transaction rules of an Aggregator.
type Config struct {
	LargeTransactionThreshold float64
	UncommonCurrencies        []string
}

// DefaultConfig returns the rules used when nothing is overridden.
func DefaultConfig() Config {
	currencies := make([]string, len(DefaultUncommonCurrencies))
	copy(currencies, DefaultUncommonCurrencies)
	return Config{
		LargeTransactionThreshold: DefaultLargeTransactionThreshold,
		UncommonCurrencies:        currencies,
	}
}
