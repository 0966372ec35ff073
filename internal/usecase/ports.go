package usecase

import (
	"context"

	"github.com/acbops/tracker/internal/domain"
)

// ShipmentRepository defines the storage operations the shipment usecase
// consumes. Projections and patches are keyed by catalog field keys; the
// repository owns the mapping to storage columns.
type ShipmentRepository interface {
	// FindProjected returns one page of non-deleted shipments restricted to
	// the projection, plus the total match count.
	FindProjected(ctx context.Context, q domain.ListQuery, projection []string, searchKeys []string) ([]map[string]any, int64, error)

	// FindOneProjected returns a single non-deleted shipment restricted to
	// the projection, or domain.ErrNotFound.
	FindOneProjected(ctx context.Context, id string, projection []string) (map[string]any, error)

	// Insert stores a new shipment at version 1 and returns its id.
	Insert(ctx context.Context, fields map[string]any) (string, error)

	// CompareAndSwap atomically applies fields and increments the version by
	// one, but only when the stored version equals expectedVersion and the
	// record is not soft-deleted. On a match it returns the new stored state
	// restricted to the projection (nil projection skips the re-read);
	// matched=false means no row satisfied the condition.
	CompareAndSwap(ctx context.Context, id string, expectedVersion int64, fields map[string]any, projection []string) (map[string]any, bool, error)

	// Exists reports whether a non-deleted shipment with the id exists. Used
	// only to disambiguate a CAS miss into not-found versus conflict.
	Exists(ctx context.Context, id string) (bool, error)

	// UnconditionalUpdate applies fields to the current version, still
	// incrementing it, still skipping deleted or missing rows.
	UnconditionalUpdate(ctx context.Context, id string, fields map[string]any) (bool, error)

	// SoftDelete tombstones a non-deleted shipment, stamping the deleting
	// actor and incrementing the version once.
	SoftDelete(ctx context.Context, id string, actorID string) (bool, error)
}

// UserRepository defines persistence/lookup for tracker accounts.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	Upsert(ctx context.Context, user domain.User) error
}
