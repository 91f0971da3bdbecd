// Package auth decides whether a caller may mutate a record.
package auth

import (
	"errors"
	"fmt"
)

// Principal is an opaque, stable-per-caller identity supplied by the transport.
type Principal string

// Anonymous is the principal of a caller that presented no identity.
const Anonymous Principal = "anonymous"

// ErrNotAuthorized is matched by every *NotAuthorizedError.
var ErrNotAuthorized = errors.New("not authorized")

// NotAuthorizedError reports a caller acting on a record it does not own.
type NotAuthorizedError struct {
	Owner  Principal
	Caller Principal
}

func (e *NotAuthorizedError) Error() string {
	if e.Caller.IsAnonymous() {
		return "not authorized: mutations require an identified caller"
	}
	return fmt.Sprintf("not authorized: %q is not the researcher that created this record", e.Caller)
}

func (e *NotAuthorizedError) Unwrap() error { return ErrNotAuthorized }

// Authorize allows the call only when caller is the record's owner. An
// anonymous caller owns nothing, even a record stamped "anonymous".
func Authorize(owner, caller Principal) error {
	if caller.IsAnonymous() || owner != caller {
		return &NotAuthorizedError{Owner: owner, Caller: caller}
	}
	return nil
}

// RequireIdentity rejects anonymous callers. Records are only ever stamped
// with an identified owner.
func RequireIdentity(caller Principal) error {
	if caller.IsAnonymous() {
		return &NotAuthorizedError{Caller: caller}
	}
	return nil
}

// IsAnonymous reports whether p carries no identity.
func (p Principal) IsAnonymous() bool {
	return p == "" || p == Anonymous
}

func (p Principal) String() string {
	if p == "" {
		return string(Anonymous)
	}
	return string(p)
}
