package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherpoint/backend/internal/models"
)

// ErrNotFound is returned when the referenced event does not exist.
var ErrNotFound = errors.New("event not found")

// ErrVenueNotFound is returned when an event references a missing venue.
var ErrVenueNotFound = errors.New("venue not found")

// ErrActivityNotFound is returned when an event links a missing activity.
var ErrActivityNotFound = errors.New("activity not found")

// pgForeignKeyViolation is the PostgreSQL error code for FK violations;
// event writes hit it when venue_id or an activity id does not exist.
const pgForeignKeyViolation = "23503"

// Summary is an event with its derived fill-state, for list responses where
// hydrating every registration row would be wasteful.
type Summary struct {
	models.Event
	RegisteredCount int  `json:"registered_count"`
	AvailableSpots  int  `json:"available_spots"`
	IsFull          bool `json:"is_full"`
}

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `e.id, e.name, e.description, e.event_date, e.start_time::text, e.end_time::text, e.capacity, e.status, e.image_url, e.venue_id, e.created_at, e.updated_at`

const listQuery = `SELECT ` + eventColumns + `, COALESCE(r.confirmed, 0)
	FROM events e
	LEFT JOIN (
		SELECT event_id, COUNT(*) AS confirmed FROM registrations WHERE status = 'confirmed' GROUP BY event_id
	) r ON r.event_id = e.id`

// List returns all events with their confirmed counts, newest date first.
func (r *Repository) List(ctx context.Context) ([]Summary, error) {
	return r.listSummaries(ctx, listQuery+` ORDER BY e.event_date DESC, e.start_time`)
}

// ListUpcoming returns events whose date has not passed and whose status is
// upcoming, soonest first.
func (r *Repository) ListUpcoming(ctx context.Context) ([]Summary, error) {
	today := models.TruncateToDay(time.Now())
	return r.listSummaries(ctx,
		listQuery+` WHERE e.event_date >= $1 AND e.status = $2 ORDER BY e.event_date, e.start_time`,
		today, models.EventStatusUpcoming)
}

// ListByVenue returns all events hosted at the venue.
func (r *Repository) ListByVenue(ctx context.Context, venueID int64) ([]Summary, error) {
	return r.listSummaries(ctx,
		listQuery+` WHERE e.venue_id = $1 ORDER BY e.event_date DESC, e.start_time`, venueID)
}

func (r *Repository) listSummaries(ctx context.Context, q string, args ...interface{}) ([]Summary, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var list []Summary
	for rows.Next() {
		var s Summary
		var confirmed int
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.EventDate, &s.StartTime, &s.EndTime,
			&s.Capacity, &s.Status, &s.ImageURL, &s.VenueID, &s.CreatedAt, &s.UpdatedAt, &confirmed); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		s.RegisteredCount = confirmed
		s.AvailableSpots = models.SpotsRemaining(s.Capacity, confirmed)
		s.IsFull = s.AvailableSpots <= 0
		list = append(list, s)
	}
	return list, rows.Err()
}

// GetByID returns the event hydrated with venue, activities and
// registrations, or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	const q = `SELECT ` + eventColumns + `, v.id, v.name, v.address, v.max_capacity, v.description, v.created_at, v.updated_at
		FROM events e JOIN venues v ON v.id = e.venue_id WHERE e.id = $1`
	var evt models.Event
	var venue models.Venue
	err := r.pool.QueryRow(ctx, q, id).Scan(&evt.ID, &evt.Name, &evt.Description, &evt.EventDate, &evt.StartTime, &evt.EndTime,
		&evt.Capacity, &evt.Status, &evt.ImageURL, &evt.VenueID, &evt.CreatedAt, &evt.UpdatedAt,
		&venue.ID, &venue.Name, &venue.Address, &venue.MaxCapacity, &venue.Description, &venue.CreatedAt, &venue.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	evt.Venue = &venue

	activities, err := r.listActivities(ctx, id)
	if err != nil {
		return nil, err
	}
	evt.Activities = activities

	regs, err := r.listRegistrations(ctx, id)
	if err != nil {
		return nil, err
	}
	evt.Registrations = regs
	return &evt, nil
}

func (r *Repository) listActivities(ctx context.Context, eventID int64) ([]models.Activity, error) {
	const q = `SELECT a.id, a.name, a.description, a.category, a.created_at, a.updated_at
		FROM activities a JOIN event_activities ea ON ea.activity_id = a.id
		WHERE ea.event_id = $1 ORDER BY a.name`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event activities: %w", err)
	}
	defer rows.Close()

	var list []models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Category, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *Repository) listRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error) {
	const q = `SELECT id, user_id, event_id, registration_date, status, notes, cancelled_at
		FROM registrations WHERE event_id = $1 ORDER BY registration_date`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event registrations: %w", err)
	}
	defer rows.Close()

	var list []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.RegistrationDate, &reg.Status, &reg.Notes, &reg.CancelledAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// Create inserts an event and its activity links in one transaction.
func (r *Repository) Create(ctx context.Context, evt *models.Event, activityIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO events (name, description, event_date, start_time, end_time, capacity, status, image_url, venue_id)
		VALUES ($1, $2, $3, $4::time, $5::time, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, q, evt.Name, evt.Description, evt.EventDate, evt.StartTime, evt.EndTime,
		evt.Capacity, evt.Status, evt.ImageURL, evt.VenueID).
		Scan(&evt.ID, &evt.CreatedAt, &evt.UpdatedAt)
	if err != nil {
		return translateFK(err, "insert event")
	}

	if err := insertActivityLinks(ctx, tx, evt.ID, activityIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update rewrites event fields and replaces the activity set.
func (r *Repository) Update(ctx context.Context, evt *models.Event, activityIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE events SET name = $1, description = $2, event_date = $3, start_time = $4::time, end_time = $5::time,
		capacity = $6, status = $7, image_url = $8, venue_id = $9, updated_at = NOW()
		WHERE id = $10 RETURNING updated_at`
	err = tx.QueryRow(ctx, q, evt.Name, evt.Description, evt.EventDate, evt.StartTime, evt.EndTime,
		evt.Capacity, evt.Status, evt.ImageURL, evt.VenueID, evt.ID).Scan(&evt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return translateFK(err, "update event")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM event_activities WHERE event_id = $1`, evt.ID); err != nil {
		return fmt.Errorf("clear event activities: %w", err)
	}
	if err := insertActivityLinks(ctx, tx, evt.ID, activityIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete removes the event; registrations and activity links cascade.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetImageURL stores the uploaded image location for the event.
func (r *Repository) SetImageURL(ctx context.Context, id int64, url string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET image_url = $1, updated_at = NOW() WHERE id = $2`, url, id)
	if err != nil {
		return fmt.Errorf("set image url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Availability returns the event's capacity and confirmed count in one
// round trip, for the cached availability read path.
func (r *Repository) Availability(ctx context.Context, id int64) (capacity, confirmed int, err error) {
	const q = `SELECT e.capacity,
		(SELECT COUNT(*) FROM registrations WHERE event_id = e.id AND status = 'confirmed')
		FROM events e WHERE e.id = $1`
	if err := r.pool.QueryRow(ctx, q, id).Scan(&capacity, &confirmed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("event availability: %w", err)
	}
	return capacity, confirmed, nil
}

func insertActivityLinks(ctx context.Context, tx pgx.Tx, eventID int64, activityIDs []int64) error {
	for _, activityID := range activityIDs {
		const q = `INSERT INTO event_activities (event_id, activity_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		if _, err := tx.Exec(ctx, q, eventID, activityID); err != nil {
			return translateFK(err, "link activity")
		}
	}
	return nil
}

func translateFK(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		if pgErr.ConstraintName == "event_activities_activity_id_fkey" {
			return ErrActivityNotFound
		}
		return ErrVenueNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
