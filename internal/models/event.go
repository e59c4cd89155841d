package models

import (
	"time"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// ValidEventStatus reports whether s is a known event status.
func ValidEventStatus(s EventStatus) bool {
	switch s {
	case EventStatusUpcoming, EventStatusOngoing, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// Event is a capacity-limited event hosted at a venue.
//
// Fill-state (RegisteredCount, AvailableSpots, IsFull) is always derived
// from the registration rows, never stored as a counter on the event.
type Event struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	EventDate   time.Time   `json:"event_date"` // UTC midnight
	StartTime   string      `json:"start_time"` // "HH:MM:SS"
	EndTime     *string     `json:"end_time,omitempty"`
	Capacity    int         `json:"capacity"`
	Status      EventStatus `json:"status"`
	ImageURL    *string     `json:"image_url,omitempty"`
	VenueID     int64       `json:"venue_id"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	Venue         *Venue         `json:"venue,omitempty"`
	Activities    []Activity     `json:"activities,omitempty"`
	Registrations []Registration `json:"registrations,omitempty"`
}

// ConfirmedCount returns how many of regs are confirmed. Cancelled and
// waitlisted registrations never count toward capacity.
func ConfirmedCount(regs []Registration) int {
	n := 0
	for _, r := range regs {
		if r.Status == RegistrationStatusConfirmed {
			n++
		}
	}
	return n
}

// SpotsRemaining returns capacity minus the confirmed count. It may be
// negative when an overshoot slipped in; callers treat <= 0 as full.
func SpotsRemaining(capacity, confirmed int) int {
	return capacity - confirmed
}

// RegisteredCount counts the confirmed registrations loaded on the event.
func (e *Event) RegisteredCount() int {
	return ConfirmedCount(e.Registrations)
}

// AvailableSpots returns capacity minus the confirmed registrations.
func (e *Event) AvailableSpots() int {
	return SpotsRemaining(e.Capacity, e.RegisteredCount())
}

// IsFull reports whether the event has no spots left.
func (e *Event) IsFull() bool {
	return e.AvailableSpots() <= 0
}

// IsUpcomingAt reports whether the event accepts registrations at the given
// instant: its date (UTC, truncated to day) has not passed and its status is
// still upcoming. A cancelled, completed or ongoing event is never upcoming,
// and neither is a past-dated event whose status was never transitioned.
func (e *Event) IsUpcomingAt(now time.Time) bool {
	today := TruncateToDay(now)
	return !TruncateToDay(e.EventDate).Before(today) && e.Status == EventStatusUpcoming
}

// IsUpcoming is IsUpcomingAt against the current UTC time.
func (e *Event) IsUpcoming() bool {
	return e.IsUpcomingAt(time.Now().UTC())
}

// TruncateToDay normalizes t to UTC midnight.
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
