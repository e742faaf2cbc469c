// Package requests stores the contact requests users submit.
package requests

import (
	"database/sql"
	"errors"
	"time"
)

// ErrOfferingGone is returned when the chosen offering was deleted before the
// request reached the store.
var ErrOfferingGone = errors.New("requests: offering no longer exists")

// SubmittedRequest is one stored request. Each non-null Key is stored once.
type SubmittedRequest struct {
	ID         int64          `db:"id"`
	Key        sql.NullString `db:"submission_key"`
	Name       string         `db:"name"`
	Phone      string         `db:"phone"`
	OfferingID int64          `db:"offering_id"`
	CreatedAt  time.Time      `db:"created_at"`
}
