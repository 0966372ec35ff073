package tracker

import (
	"time"
)

// Role identifies a capability set in the role registry. The set of roles is
// open: a new role is added by registering a Capability row, not by extending
// a switch somewhere.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleTL      Role = "TL"
	RoleAnalyst Role = "Analyst"
	RoleBilling Role = "Billing"
)

// Action is a coarse-grained operation gated per role.
type Action string

const (
	ActionCreate   Action = "create"
	ActionDelete   Action = "delete"
	ActionBulkEdit Action = "bulk-edit"
)

// FieldKind describes how a field value is typed and coerced.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldNumber   FieldKind = "number"
	FieldDate     FieldKind = "date"
	FieldBoolean  FieldKind = "boolean"
	FieldLongText FieldKind = "longtext"
)

// FieldDescriptor is the static metadata for one shipment field.
type FieldDescriptor struct {
	Key      string    `json:"key"`
	Column   string    `json:"-"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"inputKind"`
	Sortable bool      `json:"sortable"`
	Required bool      `json:"required"`
}

// Capability is one row of the role registry.
type Capability struct {
	Read        []string
	Write       []string
	CanCreate   bool
	CanDelete   bool
	CanBulkEdit bool
}

// Editor is one active editor of a shipment, as broadcast to viewers.
type Editor struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// RecordEditors pairs a shipment with its current editor list.
type RecordEditors struct {
	ShipmentID string   `json:"shipmentId"`
	Editors    []Editor `json:"editors"`
}

// PresenceEvent is the wire format pushed over the realtime channel.
type PresenceEvent struct {
	Type       string          `json:"type"`
	Items      []RecordEditors `json:"items,omitempty"`
	ShipmentID string          `json:"shipmentId,omitempty"`
	Editors    []Editor        `json:"editors,omitempty"`
}

const (
	EventPresenceState  = "presence:state"
	EventPresenceUpdate = "presence:update"
	EventPing           = "ping"
)
