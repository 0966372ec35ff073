package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/acbops/tracker"
	"github.com/acbops/tracker/internal/domain"
	"github.com/acbops/tracker/internal/infra/database/models"
)

// listCacheTTL bounds how stale a cached listing may be. Reads are allowed
// to lag writes, so the cache is TTL-only and never invalidated.
const listCacheTTL = 15 // seconds

type ShipmentRepository struct {
	db      *gorm.DB
	catalog *tracker.Catalog
	cache   *memcache.Client // optional; nil disables list caching
}

func NewShipmentRepository(db *gorm.DB, catalog *tracker.Catalog, cache *memcache.Client) *ShipmentRepository {
	return &ShipmentRepository{db: db, catalog: catalog, cache: cache}
}

type cachedListing struct {
	Items []map[string]any `json:"items"`
	Total int64            `json:"total"`
}

func (r *ShipmentRepository) FindProjected(ctx context.Context, q domain.ListQuery, projection []string, searchKeys []string) ([]map[string]any, int64, error) {
	cacheKey := r.listingKey(q, projection, searchKeys)
	if r.cache != nil {
		if item, err := r.cache.Get(cacheKey); err == nil {
			var cached cachedListing
			if err := json.Unmarshal(item.Value, &cached); err == nil {
				return cached.Items, cached.Total, nil
			}
		}
	}

	base := r.db.WithContext(ctx).Model(&models.Shipment{}).Where("deleted_at IS NULL")
	if q.Search != "" && len(searchKeys) > 0 {
		pattern := "%" + escapeLike(q.Search) + "%"
		var clauses []string
		var args []any
		for _, key := range searchKeys {
			fd, ok := r.catalog.Descriptor(key)
			if !ok {
				continue
			}
			clauses = append(clauses, fd.Column+" ILIKE ?")
			args = append(args, pattern)
		}
		if len(clauses) > 0 {
			base = base.Where(strings.Join(clauses, " OR "), args...)
		}
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortColumn := "created_at"
	if fd, ok := r.catalog.Descriptor(q.SortKey); ok {
		sortColumn = fd.Column
	}
	direction := "DESC"
	if q.Order == "asc" {
		direction = "ASC"
	}

	var rows []models.Shipment
	err := base.
		Select(r.selectColumns(projection)).
		Order(sortColumn + " " + direction).
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	items := make([]map[string]any, 0, len(rows))
	for i := range rows {
		items = append(items, project(&rows[i], projection))
	}

	if r.cache != nil {
		if payload, err := json.Marshal(cachedListing{Items: items, Total: total}); err == nil {
			_ = r.cache.Set(&memcache.Item{Key: cacheKey, Value: payload, Expiration: listCacheTTL})
		}
	}
	return items, total, nil
}

func (r *ShipmentRepository) FindOneProjected(ctx context.Context, id string, projection []string) (map[string]any, error) {
	if uuid.Validate(id) != nil {
		return nil, domain.NotFoundError{Resource: "shipment"}
	}

	var row models.Shipment
	err := r.db.WithContext(ctx).
		Select(r.selectColumns(projection)).
		Where("id = ? AND deleted_at IS NULL", id).
		Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.NotFoundError{Resource: "shipment"}
		}
		return nil, err
	}
	return project(&row, projection), nil
}

func (r *ShipmentRepository) Insert(ctx context.Context, fields map[string]any) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	assigns := r.columns(fields)
	assigns["id"] = id
	assigns["version"] = int64(1)
	assigns["created_at"] = now
	assigns["updated_at"] = now

	err := r.db.WithContext(ctx).Model(&models.Shipment{}).Create(assigns).Error
	if err != nil {
		return "", err
	}
	return id, nil
}

// CompareAndSwap is the single atomic conditional write the whole update
// protocol rests on: the version check, the field assignment and the
// increment happen in one UPDATE, so two racing callers can never both win.
func (r *ShipmentRepository) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, fields map[string]any, projection []string) (map[string]any, bool, error) {
	if uuid.Validate(id) != nil {
		return nil, false, nil
	}

	assigns := r.columns(fields)
	assigns["version"] = gorm.Expr("version + 1")
	assigns["updated_at"] = time.Now().UTC()

	var updated models.Shipment
	res := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND version = ? AND deleted_at IS NULL", id, expectedVersion).
		Updates(assigns)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}
	if len(projection) == 0 {
		return nil, true, nil
	}
	return project(&updated, projection), true, nil
}

func (r *ShipmentRepository) Exists(ctx context.Context, id string) (bool, error) {
	if uuid.Validate(id) != nil {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ShipmentRepository) UnconditionalUpdate(ctx context.Context, id string, fields map[string]any) (bool, error) {
	if uuid.Validate(id) != nil {
		return false, nil
	}

	assigns := r.columns(fields)
	assigns["version"] = gorm.Expr("version + 1")
	assigns["updated_at"] = time.Now().UTC()

	res := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(assigns)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ShipmentRepository) SoftDelete(ctx context.Context, id string, actorID string) (bool, error) {
	if uuid.Validate(id) != nil {
		return false, nil
	}

	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"deleted_at": now,
			"deleted_by": actorID,
			"updated_at": now,
			"updated_by": actorID,
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// columns translates catalog field keys into column assignments.
func (r *ShipmentRepository) columns(fields map[string]any) map[string]any {
	assigns := make(map[string]any, len(fields))
	for key, value := range fields {
		fd, ok := r.catalog.Descriptor(key)
		if !ok {
			continue
		}
		assigns[fd.Column] = value
	}
	return assigns
}

func (r *ShipmentRepository) selectColumns(projection []string) []string {
	cols := make([]string, 0, len(projection))
	for _, key := range projection {
		if fd, ok := r.catalog.Descriptor(key); ok {
			cols = append(cols, fd.Column)
		}
	}
	return cols
}

func (r *ShipmentRepository) listingKey(q domain.ListQuery, projection []string, searchKeys []string) string {
	sig := fmt.Sprintf("%s|%s|%s|%d|%d|%s|%s",
		q.Search, q.SortKey, q.Order, q.Page, q.Limit,
		strings.Join(projection, ","), strings.Join(searchKeys, ","))
	return fmt.Sprintf("shipments:%x", xxh3.HashString(sig))
}

func project(row *models.Shipment, projection []string) map[string]any {
	full := row.AsMap()
	out := make(map[string]any, len(projection))
	for _, key := range projection {
		if value, ok := full[key]; ok {
			out[key] = value
		}
	}
	return out
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
