package publishers

import (
	"fmt"
	"strings"
	"time"
)

// EventTypeQRDispatch marks the outcome of a daily QR e-mail run.
const EventTypeQRDispatch = "qr_dispatch"

// Event represents the payload published downstream.
type Event struct {
	Type         string    `json:"type"`
	Operation    string    `json:"operation"`
	Date         string    `json:"date"`
	StatusCode   int       `json:"status_code,omitempty"`
	Succeeded    bool      `json:"succeeded"`
	Error        string    `json:"error,omitempty"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// NewEvent constructs an Event for one facade operation run on date.
func NewEvent(typ, operation, date string) Event {
	return Event{
		Type:         typ,
		Operation:    operation,
		Date:         date,
		DispatchedAt: time.Now().UTC(),
	}
}

// Outcome reports whether the run behind the event succeeded.
func (e Event) Outcome() Outcome {
	if e.Succeeded {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// dedupeKey identifies one outcome of one run; sinks with deduplication drop repeats.
func (e Event) dedupeKey() string {
	return e.Type + ":" + e.Date + ":" + string(e.Outcome())
}

// attributes are the routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_type": e.Type,
		"operation":  e.Operation,
		"date":       e.Date,
		"outcome":    string(e.Outcome()),
	}
}

// Outcome selects which dispatch results a publisher receives.
type Outcome string

const (
	OutcomeAny     Outcome = "any"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ParseOutcome accepts the `on` value of a publisher entry. Empty means any.
func ParseOutcome(raw string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(raw))); o {
	case "", "all", OutcomeAny:
		return OutcomeAny, nil
	case OutcomeSuccess, OutcomeFailure:
		return o, nil
	default:
		return "", fmt.Errorf("unknown outcome %q (want any, success or failure)", raw)
	}
}

// Matches reports whether evt should be delivered to a publisher listening on o.
func (o Outcome) Matches(evt Event) bool {
	return o == "" || o == OutcomeAny || o == evt.Outcome()
}
