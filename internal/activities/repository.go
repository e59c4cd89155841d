package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherpoint/backend/internal/models"
)

// ErrNotFound is returned when the activity does not exist.
var ErrNotFound = errors.New("activity not found")

// Repository reads activity reference data (seeded, read-only).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an activity repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityColumns = `id, name, description, category, created_at, updated_at`

// List returns all activities ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Activity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+activityColumns+` FROM activities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
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

// GetByID returns an activity or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Activity, error) {
	var a models.Activity
	err := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Description, &a.Category, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return &a, nil
}
