package tracker

import (
	"fmt"
	"strings"
	"time"
)

// Authorizer answers field-level and action-level permission questions for a
// role, backed by the catalog's role registry.
type Authorizer struct {
	catalog *Catalog
}

func NewAuthorizer(catalog *Catalog) *Authorizer {
	return &Authorizer{catalog: catalog}
}

// Catalog exposes the backing field catalog.
func (a *Authorizer) Catalog() *Catalog {
	return a.catalog
}

// ProjectionFor returns the read field-set for a role. An empty projection
// means the role has no read access at all; callers must treat it as
// forbidden, not as "no fields to show".
func (a *Authorizer) ProjectionFor(role Role) []string {
	return a.catalog.FieldsReadableBy(role)
}

// FilterWritable restricts an input map to the role's write-allowlist.
// Unknown and forbidden keys are dropped silently: extra fields in a payload
// are noise, not a validation failure.
func (a *Authorizer) FilterWritable(role Role, input map[string]any) map[string]any {
	out := make(map[string]any)
	if input == nil {
		return out
	}
	for _, key := range a.catalog.FieldsWritableBy(role) {
		if value, ok := input[key]; ok {
			out[key] = value
		}
	}
	return out
}

// Can reports whether a role may perform a coarse action.
func (a *Authorizer) Can(role Role, action Action) bool {
	cap, ok := a.catalog.capability(role)
	if !ok {
		return false
	}
	switch action {
	case ActionCreate:
		return cap.CanCreate
	case ActionDelete:
		return cap.CanDelete
	case ActionBulkEdit:
		return cap.CanBulkEdit
	default:
		return false
	}
}

// ValidateRequired returns the names of required fields that are missing from
// a create payload. Textual fields must be non-blank after trimming; numbers
// and booleans only have to be present.
func (a *Authorizer) ValidateRequired(payload map[string]any) []string {
	var missing []string
	for _, key := range a.catalog.RequiredFields() {
		value, ok := payload[key]
		if !ok || value == nil {
			missing = append(missing, key)
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// CoercePatch converts raw JSON values into their catalog-declared types.
// Nil values pass through so a patch can clear a field. A value that cannot
// be coerced makes the whole patch invalid.
func (a *Authorizer) CoercePatch(patch map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(patch))
	for key, value := range patch {
		fd, ok := a.catalog.Descriptor(key)
		if !ok {
			continue
		}
		if value == nil {
			out[key] = nil
			continue
		}
		coerced, err := coerceValue(fd.Kind, value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		out[key] = coerced
	}
	return out, nil
}

func coerceValue(kind FieldKind, value any) (any, error) {
	switch kind {
	case FieldText, FieldLongText:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return strings.TrimSpace(s), nil
	case FieldNumber:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		default:
			return nil, fmt.Errorf("expected number, got %T", value)
		}
	case FieldBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", value)
		}
		return b, nil
	case FieldDate:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("expected RFC3339 date: %w", err)
			}
			return t, nil
		default:
			return nil, fmt.Errorf("expected date string, got %T", value)
		}
	default:
		return nil, fmt.Errorf("unknown field kind %q", kind)
	}
}
