package models

import "time"

// Venue is reference data describing where events take place. MaxCapacity is
// advisory; an event's own capacity is what the registration engine enforces.
type Venue struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	MaxCapacity int       `json:"max_capacity"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
