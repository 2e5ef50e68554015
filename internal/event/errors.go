package event

import "fmt"

// DataIntegrityError reports a malformed or non-finite input event. It is
// fatal to a run: no partial result is produced when loading fails with it.
type DataIntegrityError struct {
	Channel string
	Index   int // position in the input slice, -1 when not event-specific
	Field   string
	Value   float64
	Reason  string
}

func (e *DataIntegrityError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("data integrity: channel %q: %s", e.Channel, e.Reason)
	}
	return fmt.Sprintf("data integrity: channel %q event %d: %s %s (%v)",
		e.Channel, e.Index, e.Field, e.Reason, e.Value)
}
