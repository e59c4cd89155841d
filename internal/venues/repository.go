package venues

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherpoint/backend/internal/models"
)

// ErrNotFound is returned when the venue does not exist.
var ErrNotFound = errors.New("venue not found")

// Repository reads venue reference data. Venues are seeded; there is no
// write path here, and the events FK is RESTRICT so a venue with events can
// never be removed out from under them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a venue repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const venueColumns = `id, name, address, max_capacity, description, created_at, updated_at`

// List returns all venues ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Venue, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+venueColumns+` FROM venues ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	defer rows.Close()

	var list []models.Venue
	for rows.Next() {
		var v models.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Address, &v.MaxCapacity, &v.Description, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan venue: %w", err)
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// GetByID returns a venue or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Venue, error) {
	var v models.Venue
	err := r.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = $1`, id).
		Scan(&v.ID, &v.Name, &v.Address, &v.MaxCapacity, &v.Description, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get venue: %w", err)
	}
	return &v, nil
}
