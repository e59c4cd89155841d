package registration

import "errors"

// Eligibility failures. Each register outcome is a distinct sentinel so
// callers can render a precise message; anything else coming out of the
// engine wraps a store error.
var (
	ErrEventNotFound     = errors.New("event not found")
	ErrNotUpcoming       = errors.New("event is not open for registration")
	ErrEventFull         = errors.New("event is at full capacity")
	ErrAlreadyRegistered = errors.New("already registered for this event")
)

var (
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrNotesTooLong         = errors.New("notes exceed maximum length")
)
