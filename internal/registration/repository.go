package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherpoint/backend/internal/models"
)

// pgUniqueViolation is the PostgreSQL error code for a unique constraint
// violation; the partial unique index on (user_id, event_id) WHERE status =
// 'confirmed' turns a duplicate-registration race into this code.
const pgUniqueViolation = "23505"

// Repository is the pgx-backed Store. The registration insert takes a row
// lock on the event so the capacity check and the insert observe one
// consistent snapshot.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registration repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const registrationColumns = `id, user_id, event_id, registration_date, status, notes, cancelled_at`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.RegistrationDate, &reg.Status, &reg.Notes, &reg.CancelledAt)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetEventWithRegistrations loads an event and all of its registrations.
func (r *Repository) GetEventWithRegistrations(ctx context.Context, eventID int64) (*models.Event, error) {
	const q = `SELECT id, name, description, event_date, start_time::text, end_time::text, capacity, status, image_url, venue_id, created_at, updated_at
		FROM events WHERE id = $1`
	var evt models.Event
	err := r.pool.QueryRow(ctx, q, eventID).Scan(&evt.ID, &evt.Name, &evt.Description, &evt.EventDate, &evt.StartTime, &evt.EndTime,
		&evt.Capacity, &evt.Status, &evt.ImageURL, &evt.VenueID, &evt.CreatedAt, &evt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	regs, err := r.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	evt.Registrations = regs
	return &evt, nil
}

// GetActiveRegistration returns the confirmed registration for the pair, or
// nil when there is none.
func (r *Repository) GetActiveRegistration(ctx context.Context, userID uuid.UUID, eventID int64) (*models.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations
		WHERE user_id = $1 AND event_id = $2 AND status = $3`
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, userID, eventID, models.RegistrationStatusConfirmed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active registration: %w", err)
	}
	return reg, nil
}

// CreateRegistration inserts a confirmed registration after re-validating
// eligibility inside one transaction. The event row is locked FOR UPDATE so
// two racing inserts serialize on the capacity check; the partial unique
// index is the backstop for the uniqueness axis.
func (r *Repository) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const eventQ = `SELECT event_date, capacity, status FROM events WHERE id = $1 FOR UPDATE`
	var evt models.Event
	if err := tx.QueryRow(ctx, eventQ, reg.EventID).Scan(&evt.EventDate, &evt.Capacity, &evt.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("lock event: %w", err)
	}

	const countQ = `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = $2`
	var confirmed int
	if err := tx.QueryRow(ctx, countQ, reg.EventID, models.RegistrationStatusConfirmed).Scan(&confirmed); err != nil {
		return fmt.Errorf("count registrations: %w", err)
	}

	const activeQ = `SELECT EXISTS (SELECT 1 FROM registrations WHERE user_id = $1 AND event_id = $2 AND status = $3)`
	var hasActive bool
	if err := tx.QueryRow(ctx, activeQ, reg.UserID, reg.EventID, models.RegistrationStatusConfirmed).Scan(&hasActive); err != nil {
		return fmt.Errorf("check active registration: %w", err)
	}

	if err := checkEligibility(&evt, confirmed, hasActive, time.Now().UTC()); err != nil {
		return err
	}

	const insertQ = `INSERT INTO registrations (user_id, event_id, registration_date, status, notes)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err = tx.QueryRow(ctx, insertQ, reg.UserID, reg.EventID, reg.RegistrationDate, reg.Status, reg.Notes).Scan(&reg.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("insert registration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpdateRegistration persists status, notes and cancelled_at for a row.
func (r *Repository) UpdateRegistration(ctx context.Context, reg *models.Registration) error {
	const q = `UPDATE registrations SET status = $1, notes = $2, cancelled_at = $3 WHERE id = $4`
	tag, err := r.pool.Exec(ctx, q, reg.Status, reg.Notes, reg.CancelledAt, reg.ID)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

// GetRegistrationByID returns the registration or nil when absent.
func (r *Repository) GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// ListByUser returns a user's registrations, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations
		WHERE user_id = $1 ORDER BY registration_date DESC`
	return r.list(ctx, q, userID)
}

// ListByEvent returns an event's registrations in registration order.
func (r *Repository) ListByEvent(ctx context.Context, eventID int64) ([]models.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations
		WHERE event_id = $1 ORDER BY registration_date`
	return r.list(ctx, q, eventID)
}

func (r *Repository) list(ctx context.Context, q string, arg interface{}) ([]models.Registration, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
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
