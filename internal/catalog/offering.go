// Package catalog is the read side of the offering store: the list the bot
// shows and the lookup it performs when a user picks an item.
package catalog

import "errors"

// ErrNotFound is returned when an offering id does not resolve.
var ErrNotFound = errors.New("catalog: offering not found")

// Offering is a service a user may request.
type Offering struct {
	ID          int64  `db:"id" json:"id" yaml:"-"`
	Name        string `db:"name" json:"name" yaml:"name"`
	Description string `db:"description" json:"description" yaml:"description"`
}
