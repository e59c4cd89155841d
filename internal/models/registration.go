package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the state of a registration.
type RegistrationStatus string

const (
	RegistrationStatusConfirmed RegistrationStatus = "confirmed"
	RegistrationStatusCancelled RegistrationStatus = "cancelled"
	// RegistrationStatusWaitlisted is reserved. Nothing promotes to or from
	// it today, but stored rows carrying it are tolerated and excluded from
	// capacity counts.
	RegistrationStatusWaitlisted RegistrationStatus = "waitlisted"
)

// MaxNotesLength bounds the free-form notes on a registration.
const MaxNotesLength = 500

// Registration is a participant's registration for an event. At most one
// confirmed registration exists per (user, event) pair; a user may register
// again after cancelling.
type Registration struct {
	ID               int64              `json:"id"`
	UserID           uuid.UUID          `json:"user_id"`
	EventID          int64              `json:"event_id"`
	RegistrationDate time.Time          `json:"registration_date"`
	Status           RegistrationStatus `json:"status"`
	Notes            *string            `json:"notes,omitempty"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
}

// IsActive reports whether the registration counts toward capacity and
// blocks a duplicate registration for the same pair.
func (r *Registration) IsActive() bool {
	return r.Status == RegistrationStatusConfirmed
}
