package requests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/intakebot/core/logger"
	"github.com/m3rciful/intakebot/internal/intake"
)

const (
	component = "service.requests"

	pgForeignKeyViolation = "23503"
)

// Repository persists requests in Postgres.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open connection pool.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Submit stores a request and returns its id. A key that is already stored
// returns the existing id with an error matching intake.ErrDuplicateSubmission.
func (r *Repository) Submit(ctx context.Context, sub intake.Submission) (int64, error) {
	req, err := r.Create(ctx, SubmittedRequest{
		Key:        nullKey(sub.Key),
		Name:       sub.Name,
		Phone:      sub.Phone,
		OfferingID: sub.OfferingID,
	})
	return req.ID, err
}

// Create stores req and returns it as persisted. When req.Key is already
// stored, the stored request is returned with a duplicate error.
func (r *Repository) Create(ctx context.Context, req SubmittedRequest) (SubmittedRequest, error) {
	start := time.Now()
	const q = `INSERT INTO requests (submission_key, name, phone, offering_id) VALUES ($1, $2, $3, $4)
		ON CONFLICT (submission_key) DO NOTHING
		RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, q, req.Key, req.Name, req.Phone, req.OfferingID).Scan(&req.ID, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r.existing(ctx, req, start)
	}
	if err != nil {
		err = classify(err)
		logger.Error(ctx, component, "requests.create",
			slog.String("status", "fail"),
			slog.Int64("offering_id", req.OfferingID),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return SubmittedRequest{}, fmt.Errorf("create request: %w", err)
	}
	logger.Info(ctx, component, "requests.create",
		slog.String("status", "ok"),
		slog.Int64("request_id", req.ID),
		slog.Int64("offering_id", req.OfferingID),
		slog.Duration("duration", logger.Took(start)),
	)
	return req, nil
}

func (r *Repository) existing(ctx context.Context, req SubmittedRequest, start time.Time) (SubmittedRequest, error) {
	const q = `SELECT id, submission_key, name, phone, offering_id, created_at FROM requests WHERE submission_key = $1`
	var stored SubmittedRequest
	if err := r.db.GetContext(ctx, &stored, q, req.Key); err != nil {
		logger.Error(ctx, component, "requests.create",
			slog.String("status", "fail"),
			slog.Int64("offering_id", req.OfferingID),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return SubmittedRequest{}, fmt.Errorf("load request %s: %w", req.Key.String, err)
	}
	logger.Info(ctx, component, "requests.create",
		slog.String("status", "skip"),
		slog.String("err_code", "DUPLICATE_SUBMISSION"),
		slog.Int64("request_id", stored.ID),
		slog.Duration("duration", logger.Took(start)),
	)
	return stored, fmt.Errorf("create request %s: %w", req.Key.String, intake.ErrDuplicateSubmission)
}

func nullKey(key string) sql.NullString {
	return sql.NullString{String: key, Valid: key != ""}
}

// classify maps driver errors onto package sentinels, keeping the cause.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgForeignKeyViolation {
		return fmt.Errorf("%w: %s", ErrOfferingGone, pqErr.Message)
	}
	return err
}
