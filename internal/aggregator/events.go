package aggregator

import "github.com/dvloznov/txn-aggregator/internal/domain"

// EventKind names something the aggregator did with a record.
type EventKind string

const (
	EventAccountCreated    EventKind = "account_created"
	EventAccountUpdated    EventKind = "account_updated"
	EventSuspiciousFlagged EventKind = "suspicious_flagged"
	EventStatisticsUpdated EventKind = "statistics_updated"
)

// Event is emitted synchronously while a record is applied.
type Event struct {
	Kind          EventKind
	AccountNumber string
	Type          string
	Amount        float64
	Record        domain.Record
}

// EventHandler receives aggregator events. Handlers must not call back into
// the aggregator that emitted the event.
type EventHandler func(Event)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithEventHandler subscribes h to the aggregator's events.
func WithEventHandler(h EventHandler) Option {
	return func(a *Aggregator) {
		a.handlers = append(a.handlers, h)
	}
}
