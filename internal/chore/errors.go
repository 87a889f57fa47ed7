package chore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an unknown reminder id or an empty fuzzy match.
	ErrNotFound = errors.New("reminder not found")

	// ErrNoRecipient reports a manual trigger on an unassigned reminder.
	ErrNoRecipient = errors.New("reminder has no assigned user")

	// ErrCorruptState reports an unparseable durable snapshot. Callers are
	// expected to report it loudly and continue with zero reminders rather
	// than crash.
	ErrCorruptState = errors.New("corrupt reminder state")

	// ErrLegacySchedule reports a persisted placeholder schedule that lost
	// its weekday and therefore cannot be re-armed.
	ErrLegacySchedule = errors.New("legacy placeholder schedule without weekday")
)

// ValidationError rejects bad user input: unknown day token, missing
// message, malformed schedule. It is always surfaced to the caller as text
// and never mutates state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
