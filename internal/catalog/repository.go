package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/intakebot/core/logger"
)

const component = "service.catalog"

// Repository reads and writes offerings in Postgres.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open connection pool.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ListOfferings returns every offering ordered by id.
func (r *Repository) ListOfferings(ctx context.Context) ([]Offering, error) {
	start := time.Now()
	const q = `SELECT id, name, description FROM offerings ORDER BY id`
	var out []Offering
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		logger.Error(ctx, component, "offerings.list",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	logger.Debug(ctx, component, "offerings.list",
		slog.String("status", "ok"),
		slog.Int("count", len(out)),
		slog.Duration("duration", logger.Took(start)),
	)
	return out, nil
}

// GetOffering returns the offering with the given id or ErrNotFound.
func (r *Repository) GetOffering(ctx context.Context, id int64) (Offering, error) {
	const q = `SELECT id, name, description FROM offerings WHERE id = $1`
	var o Offering
	if err := r.db.GetContext(ctx, &o, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Offering{}, fmt.Errorf("offering %d: %w", id, ErrNotFound)
		}
		logger.Error(ctx, component, "offerings.get",
			slog.Int64("offering_id", id),
			slog.String("err", err.Error()),
		)
		return Offering{}, fmt.Errorf("get offering %d: %w", id, err)
	}
	return o, nil
}

// Count returns the number of stored offerings.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM offerings`); err != nil {
		return 0, fmt.Errorf("count offerings: %w", err)
	}
	return n, nil
}

// Create inserts an offering and returns it with its id.
func (r *Repository) Create(ctx context.Context, name, description string) (Offering, error) {
	const q = `INSERT INTO offerings (name, description) VALUES ($1, $2) RETURNING id`
	o := Offering{Name: name, Description: description}
	if err := r.db.QueryRowxContext(ctx, q, name, description).Scan(&o.ID); err != nil {
		return Offering{}, fmt.Errorf("create offering %q: %w", name, err)
	}
	return o, nil
}
