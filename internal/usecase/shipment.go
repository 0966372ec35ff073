package usecase

import (
	"context"

	"github.com/pkg/errors"

	"github.com/acbops/tracker"
	"github.com/acbops/tracker/internal/domain"
)

const (
	defaultLimit = 25
	maxLimit     = 200
)

// searchFields are the candidate keys for free-text search; the actual set
// used per request is the intersection with the actor's projection.
var searchFields = []string{"client", "flightNumber", "awb", "analyst", "invoiceNumber"}

// ShipmentUsecase implements the role-gated read paths and the optimistic
// concurrency protocol over the shipment repository.
type ShipmentUsecase struct {
	repo  ShipmentRepository
	users UserRepository
	authz *tracker.Authorizer
}

func NewShipmentUsecase(repo ShipmentRepository, users UserRepository, authz *tracker.Authorizer) *ShipmentUsecase {
	return &ShipmentUsecase{repo: repo, users: users, authz: authz}
}

// List returns one projected page of shipments for the actor's role.
func (uc *ShipmentUsecase) List(ctx context.Context, actor domain.Actor, q domain.ListQuery) ([]map[string]any, int64, error) {
	projection := uc.authz.ProjectionFor(actor.Role)
	if len(projection) == 0 {
		return nil, 0, domain.ErrForbidden
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	readable := toSet(projection)
	if q.SortKey == "" || !uc.authz.Catalog().IsSortable(q.SortKey) || !readable[q.SortKey] {
		q.SortKey = "createdAt"
	}
	if q.Order != "asc" {
		q.Order = "desc"
	}

	var search []string
	if q.Search != "" {
		for _, key := range searchFields {
			if readable[key] {
				search = append(search, key)
			}
		}
	}

	items, total, err := uc.repo.FindProjected(ctx, q, projection, search)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list shipments")
	}
	uc.decorateActors(ctx, items)
	return items, total, nil
}

// Get returns a single projected shipment.
func (uc *ShipmentUsecase) Get(ctx context.Context, actor domain.Actor, id string) (map[string]any, error) {
	projection := uc.authz.ProjectionFor(actor.Role)
	if len(projection) == 0 {
		return nil, domain.ErrForbidden
	}
	item, err := uc.repo.FindOneProjected(ctx, id, projection)
	if err != nil {
		return nil, err
	}
	uc.decorateActors(ctx, []map[string]any{item})
	return item, nil
}

// Create stores a new shipment at version 1.
func (uc *ShipmentUsecase) Create(ctx context.Context, actor domain.Actor, payload map[string]any) (map[string]any, error) {
	if !uc.authz.Can(actor.Role, tracker.ActionCreate) {
		return nil, domain.ErrForbidden
	}

	fields := uc.authz.FilterWritable(actor.Role, payload)
	if len(fields) == 0 {
		return nil, domain.ValidationError{Message: "no writable fields provided"}
	}
	if missing := uc.authz.ValidateRequired(fields); len(missing) > 0 {
		return nil, domain.ValidationError{Missing: missing}
	}

	coerced, err := uc.authz.CoercePatch(fields)
	if err != nil {
		return nil, domain.ValidationError{Message: err.Error()}
	}

	coerced["createdBy"] = actor.ID
	coerced["updatedBy"] = actor.ID

	id, err := uc.repo.Insert(ctx, coerced)
	if err != nil {
		return nil, errors.Wrap(err, "insert shipment")
	}

	item, err := uc.repo.FindOneProjected(ctx, id, uc.authz.ProjectionFor(actor.Role))
	if err != nil {
		return nil, err
	}
	uc.decorateActors(ctx, []map[string]any{item})
	return item, nil
}

// Update performs a compare-and-swap against the stored version. A nil
// expectedVersion is a validation error, never a wildcard.
func (uc *ShipmentUsecase) Update(ctx context.Context, actor domain.Actor, id string, expectedVersion *int64, payload map[string]any) (map[string]any, error) {
	writable := uc.authz.FilterWritable(actor.Role, payload)
	if len(uc.authz.Catalog().FieldsWritableBy(actor.Role)) == 0 {
		return nil, domain.ErrForbidden
	}
	if expectedVersion == nil {
		return nil, domain.ValidationError{Message: "version is required for updates"}
	}
	if len(writable) == 0 {
		return nil, domain.ValidationError{Message: "no writable fields provided"}
	}

	patch, err := uc.authz.CoercePatch(writable)
	if err != nil {
		return nil, domain.ValidationError{Message: err.Error()}
	}
	patch["updatedBy"] = actor.ID

	projection := uc.authz.ProjectionFor(actor.Role)
	updated, matched, err := uc.repo.CompareAndSwap(ctx, id, *expectedVersion, patch, projection)
	if err != nil {
		return nil, errors.Wrap(err, "compare-and-swap")
	}
	if matched {
		uc.decorateActors(ctx, []map[string]any{updated})
		return updated, nil
	}

	// The CAS missed: either the record is gone (or tombstoned) or its
	// version moved on. The follow-up check does not need to be atomic with
	// the update; both causes are terminal for this attempt.
	exists, err := uc.repo.Exists(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "existence check after cas miss")
	}
	if !exists {
		return nil, domain.NotFoundError{Resource: "shipment"}
	}
	return nil, domain.VersionConflictError{ID: id}
}

// BulkUpdate applies one patch to many shipments, each independently. Ids
// with a supplied version follow CAS rules; ids without one are applied to
// whatever version is current, still bumping it.
func (uc *ShipmentUsecase) BulkUpdate(ctx context.Context, actor domain.Actor, ids []string, payload map[string]any, versions map[string]int64) ([]domain.BulkOutcome, error) {
	if !uc.authz.Can(actor.Role, tracker.ActionBulkEdit) {
		return nil, domain.ErrForbidden
	}
	if len(ids) == 0 {
		return nil, domain.ValidationError{Message: "ids array is required"}
	}

	writable := uc.authz.FilterWritable(actor.Role, payload)
	if len(writable) == 0 {
		return nil, domain.ValidationError{Message: "no writable fields provided"}
	}
	patch, err := uc.authz.CoercePatch(writable)
	if err != nil {
		return nil, domain.ValidationError{Message: err.Error()}
	}
	patch["updatedBy"] = actor.ID

	outcomes := make([]domain.BulkOutcome, 0, len(ids))
	for _, id := range ids {
		var matched bool
		var opErr error
		if version, ok := versions[id]; ok {
			_, matched, opErr = uc.repo.CompareAndSwap(ctx, id, version, patch, nil)
		} else {
			matched, opErr = uc.repo.UnconditionalUpdate(ctx, id, patch)
		}

		status := domain.BulkUpdated
		if opErr != nil || !matched {
			status = domain.BulkConflictOrNotFound
		}
		outcomes = append(outcomes, domain.BulkOutcome{ID: id, Status: status})
	}
	return outcomes, nil
}

// SoftDelete tombstones a shipment. It is unconditional on version but
// conditional on the record not already being deleted.
func (uc *ShipmentUsecase) SoftDelete(ctx context.Context, actor domain.Actor, id string) error {
	if !uc.authz.Can(actor.Role, tracker.ActionDelete) {
		return domain.ErrForbidden
	}

	matched, err := uc.repo.SoftDelete(ctx, id, actor.ID)
	if err != nil {
		return errors.Wrap(err, "soft delete")
	}
	if !matched {
		return domain.NotFoundError{Resource: "shipment"}
	}
	return nil
}

// decorateActors replaces raw account ids in the audit fields with the
// account's display data, so clients never have to resolve ids themselves.
// Lookups are memoized per call, and an unresolvable id stays raw.
func (uc *ShipmentUsecase) decorateActors(ctx context.Context, items []map[string]any) {
	memo := make(map[string]map[string]any)
	for _, item := range items {
		for _, key := range []string{"createdBy", "updatedBy"} {
			raw, ok := item[key]
			if !ok {
				continue
			}

			var id string
			switch v := raw.(type) {
			case string:
				id = v
			case *string:
				if v != nil {
					id = *v
				}
			}
			if id == "" {
				continue
			}

			ref, seen := memo[id]
			if !seen {
				user, err := uc.users.GetByID(ctx, id)
				if err != nil {
					memo[id] = nil
					continue
				}
				ref = map[string]any{
					"id":          user.ID,
					"username":    user.Username,
					"displayName": user.DisplayName,
				}
				memo[id] = ref
			}
			if ref != nil {
				item[key] = ref
			}
		}
	}
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, key := range keys {
		set[key] = true
	}
	return set
}
