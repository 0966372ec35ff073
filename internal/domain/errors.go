package domain

import (
	"fmt"
	"strings"
)

// NotFoundError represents a record that is absent or soft-deleted.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// VersionConflictError means the record exists but the caller's expected
// version no longer matches the stored one. It is deliberately distinct from
// NotFoundError so clients can choose between "reload" and "retry".
type VersionConflictError struct {
	ID string
}

func (e VersionConflictError) Error() string {
	if e.ID == "" {
		return "version conflict"
	}
	return fmt.Sprintf("version conflict on %s", e.ID)
}

func (e VersionConflictError) Is(target error) bool {
	_, ok := target.(VersionConflictError)
	if ok {
		return true
	}
	_, ok = target.(*VersionConflictError)
	return ok
}

var ErrVersionConflict = VersionConflictError{}

// ForbiddenError means the actor's role lacks the permission, regardless of
// whether the record exists.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

func (e ForbiddenError) Is(target error) bool {
	_, ok := target.(ForbiddenError)
	if ok {
		return true
	}
	_, ok = target.(*ForbiddenError)
	return ok
}

var ErrForbidden = ForbiddenError{}

// ValidationError means the input was malformed or incomplete before any
// storage was touched.
type ValidationError struct {
	Message string
	Missing []string
}

func (e ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
	}
	if e.Message == "" {
		return "invalid input"
	}
	return e.Message
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

var ErrValidation = ValidationError{}
