package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
)

// LogEvents returns an event handler writing aggregator events to log.
// Suspicious transactions are logged at warn level, everything else at debug.
func LogEvents(log zerolog.Logger) aggregator.EventHandler {
	return func(e aggregator.Event) {
		var ev *zerolog.Event
		switch e.Kind {
		case aggregator.EventSuspiciousFlagged:
			ev = log.Warn()
		default:
			ev = log.Debug()
		}

		if e.AccountNumber != "" {
			ev = ev.Str("account", e.AccountNumber)
		}
		if e.Type != "" {
			ev = ev.Str("type", e.Type)
		}
		ev.Str("event", string(e.Kind)).Float64("amount", e.Amount).Msg("aggregator event")
	}
}
