package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func regWithStatus(status RegistrationStatus) Registration {
	return Registration{
		UserID:           uuid.New(),
		EventID:          1,
		RegistrationDate: time.Now().UTC(),
		Status:           status,
	}
}

func TestConfirmedCountIgnoresInactiveStatuses(t *testing.T) {
	regs := []Registration{
		regWithStatus(RegistrationStatusConfirmed),
		regWithStatus(RegistrationStatusCancelled),
		regWithStatus(RegistrationStatusConfirmed),
		regWithStatus(RegistrationStatusWaitlisted),
		regWithStatus(RegistrationStatusCancelled),
	}
	assert.Equal(t, 2, ConfirmedCount(regs))
	assert.Equal(t, 0, ConfirmedCount(nil))
}

func TestEventFillState(t *testing.T) {
	tests := []struct {
		name      string
		capacity  int
		confirmed int
		cancelled int
		spots     int
		full      bool
	}{
		{"empty", 100, 0, 0, 100, false},
		{"partially filled", 10, 4, 3, 6, false},
		{"exactly full", 2, 2, 0, 0, true},
		{"overshoot reads as full", 2, 3, 0, -1, true},
		{"cancelled rows free capacity", 2, 1, 5, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := Event{Capacity: tt.capacity}
			for i := 0; i < tt.confirmed; i++ {
				evt.Registrations = append(evt.Registrations, regWithStatus(RegistrationStatusConfirmed))
			}
			for i := 0; i < tt.cancelled; i++ {
				evt.Registrations = append(evt.Registrations, regWithStatus(RegistrationStatusCancelled))
			}
			assert.Equal(t, tt.confirmed, evt.RegisteredCount())
			assert.Equal(t, tt.spots, evt.AvailableSpots())
			assert.Equal(t, tt.full, evt.IsFull())
		})
	}
}

func TestIsUpcomingAt(t *testing.T) {
	now := time.Date(2026, time.March, 10, 23, 45, 0, 0, time.UTC)

	tests := []struct {
		name   string
		date   time.Time
		status EventStatus
		want   bool
	}{
		{"future date", now.AddDate(0, 0, 30), EventStatusUpcoming, true},
		{"same day late in the evening", now, EventStatusUpcoming, true},
		{"yesterday", now.AddDate(0, 0, -1), EventStatusUpcoming, false},
		{"future but cancelled", now.AddDate(0, 0, 5), EventStatusCancelled, false},
		{"future but completed", now.AddDate(0, 0, 5), EventStatusCompleted, false},
		{"future but ongoing", now.AddDate(0, 0, 5), EventStatusOngoing, false},
		{"past and cancelled", now.AddDate(0, 0, -5), EventStatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := Event{EventDate: TruncateToDay(tt.date), Status: tt.status}
			assert.Equal(t, tt.want, evt.IsUpcomingAt(now))
		})
	}
}

func TestTruncateToDay(t *testing.T) {
	loc := time.FixedZone("UTC+11", 11*3600)
	in := time.Date(2026, time.July, 1, 3, 30, 0, 0, loc) // June 30 16:30 UTC
	got := TruncateToDay(in)
	assert.Equal(t, time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestValidEventStatus(t *testing.T) {
	for _, s := range []EventStatus{EventStatusUpcoming, EventStatusOngoing, EventStatusCompleted, EventStatusCancelled} {
		assert.True(t, ValidEventStatus(s))
	}
	assert.False(t, ValidEventStatus("postponed"))
}
