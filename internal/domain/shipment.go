package domain

import (
	"github.com/acbops/tracker"
)

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	Role        tracker.Role `json:"role"`
}

// ListQuery describes a projected shipment listing.
type ListQuery struct {
	Search  string
	SortKey string
	Order   string // "asc" or "desc"
	Page    int
	Limit   int
}

// BulkStatus is the per-id outcome of a bulk update.
type BulkStatus string

const (
	BulkUpdated BulkStatus = "updated"
	// BulkConflictOrNotFound intentionally does not distinguish a missing or
	// deleted record from a version mismatch; bulk callers only need to know
	// the row was skipped.
	BulkConflictOrNotFound BulkStatus = "conflict_or_not_found"
)

// BulkOutcome reports what happened to one id inside a bulk update.
type BulkOutcome struct {
	ID     string     `json:"id"`
	Status BulkStatus `json:"status"`
}
