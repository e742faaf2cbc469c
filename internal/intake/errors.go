package intake

import (
	"errors"
	"strings"
)

// Kind classifies why a transition did not go the happy way.
type Kind string

const (
	// KindValidation is malformed input; the user is re-prompted.
	KindValidation Kind = "validation"
	// KindNotFound is an offering that vanished between listing and selection.
	KindNotFound Kind = "not_found"
	// KindCatalog is a catalog lookup that failed for any other reason.
	KindCatalog Kind = "catalog"
	// KindSubmission is a failed call to the submission service.
	KindSubmission Kind = "submission"
	// KindDuplicate is an event that arrived after the session already
	// submitted, or a submission the store had already recorded.
	KindDuplicate Kind = "duplicate_submission"
)

// Error carries a Kind and the underlying cause. Callers match kinds with
// errors.Is against the Err* values below.
type Error struct {
	Kind Kind
	Err  error
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrCatalog             = &Error{Kind: KindCatalog}
	ErrSubmission          = &Error{Kind: KindSubmission}
	ErrDuplicateSubmission = &Error{Kind: KindDuplicate}

	ErrInvalidPhone = errors.New("phone must be at least 5 digits")
	ErrNameTooLong  = errors.New("name exceeds 100 characters")
	ErrPhoneTooLong = errors.New("phone exceeds 20 digits")
)

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Code is the upper-case form logged as err_code.
func (e *Error) Code() string {
	return strings.ToUpper(string(e.Kind))
}

func wrap(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}
