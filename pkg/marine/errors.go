package marine

import (
	"errors"
	"fmt"

	"github.com/ssargent/marinedb/pkg/auth"
	"github.com/ssargent/marinedb/pkg/store"
	"github.com/ssargent/marinedb/pkg/validation"
)

// ErrNotFound is matched by every *NotFoundError.
var ErrNotFound = errors.New("not found")

// NotFoundError reports a missing record, or an empty listing.
type NotFoundError struct {
	Entity string
	ID     uint64 // zero for listings
	Msg    string
}

func (e *NotFoundError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("%s with id=%d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ErrorKind classifies facade errors for transports.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindNotFound      ErrorKind = "not_found"
	KindValidation    ErrorKind = "validation_failed"
	KindNotAuthorized ErrorKind = "not_authorized"
	KindEncoding      ErrorKind = "encoding_error"
	KindInternal      ErrorKind = "internal"
)

// Kind maps err onto the facade's error taxonomy.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, validation.ErrValidationFailed):
		return KindValidation
	case errors.Is(err, auth.ErrNotAuthorized):
		return KindNotAuthorized
	case errors.Is(err, store.ErrEncoding):
		return KindEncoding
	default:
		return KindInternal
	}
}
