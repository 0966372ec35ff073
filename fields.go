package tracker

// The field catalog is the single source of truth for shipment field metadata
// and role-to-field grants. It is built once at startup and never mutated
// afterwards. Grouping exists only so roles can be granted whole slices of
// the record at once; it is not a runtime concept.

func field(key, column, label string, kind FieldKind) FieldDescriptor {
	return FieldDescriptor{Key: key, Column: column, Label: label, Kind: kind, Sortable: true}
}

// Operational fields, maintained by analysts. All of them are required when a
// shipment is created.
var operationalFields = []FieldDescriptor{
	field("client", "client", "Client", FieldText),
	field("flightNumber", "flight_number", "Flight Number", FieldText),
	field("flightStatus", "flight_status", "Flight Status", FieldText),
	field("etaEst", "eta_est", "ETA (Estimated)", FieldDate),
	field("etaStatus", "eta_status", "ETA Status", FieldText),
	field("preAlertDate", "pre_alert_date", "Pre-Alert Date", FieldDate),
	field("etaDate", "eta_date", "ETA Date", FieldDate),
	field("releaseDate", "release_date", "Release Date", FieldDate),
	field("releaseStatus", "release_status", "Release Status", FieldText),
	field("port", "port", "Port", FieldText),
	field("nameAddress", "name_address", "Name/Address Checked", FieldBoolean),
	field("lateSecured", "late_secured", "Late Secured", FieldBoolean),
	field("goodsDescription", "goods_description", "Goods Description Checked", FieldBoolean),
	field("changeMAWB", "change_mawb", "MAWB Changed", FieldBoolean),
	field("changeCounts", "change_counts", "Counts Changed", FieldBoolean),
	field("mismatchValues", "mismatch_values", "Values Mismatch", FieldBoolean),
	field("awb", "awb", "AWB", FieldText),
	field("clvs", "clvs", "CLVS", FieldNumber),
	field("lvs", "lvs", "LVS", FieldNumber),
	field("pga", "pga", "PGA", FieldNumber),
	field("total", "total", "Total", FieldNumber),
	field("totalFoodItems", "total_food_items", "Total Food Items", FieldNumber),
	field("analyst", "analyst", "Analyst", FieldText),
	field("shipmentComments", "shipment_comments", "Shipment Comments", FieldLongText),
}

// Billing fields, maintained by the billing desk.
var billingFields = []FieldDescriptor{
	field("cadTransactionNumber", "cad_transaction_number", "CAD Transaction Number", FieldText),
	field("cadTransNumStatus", "cad_trans_num_status", "CAD Trans. Number Status", FieldText),
	field("dutiesLvs", "duties_lvs", "Duties (LVS)", FieldNumber),
	field("taxesLvs", "taxes_lvs", "Taxes (LVS)", FieldNumber),
	field("dutiesPga", "duties_pga", "Duties (PGA)", FieldNumber),
	field("taxesPga", "taxes_pga", "Taxes (PGA)", FieldNumber),
	field("invoiceNumber", "invoice_number", "Invoice Number", FieldText),
	field("billingDate", "billing_date", "Billing Date", FieldDate),
	field("billingClerk", "billing_clerk", "Billing Clerk", FieldText),
	field("droppedToSftp", "dropped_to_sftp", "Dropped To SFTP", FieldBoolean),
	field("billingComments", "billing_comments", "Billing Comments", FieldLongText),
}

// Internal fields, visible to supervisors only. Not sortable: listings may
// only be ordered by the operational and billing groups plus the audit
// timestamps.
var internalFields = []FieldDescriptor{
	{Key: "activityLogs", Column: "activity_logs", Label: "Activity Logs", Kind: FieldLongText},
}

// System fields are readable by any role that can read at all, and are never
// writable through a patch.
var systemFields = []FieldDescriptor{
	{Key: "id", Column: "id", Label: "ID", Kind: FieldText},
	{Key: "version", Column: "version", Label: "Version", Kind: FieldNumber},
	{Key: "createdBy", Column: "created_by", Label: "Created By", Kind: FieldText},
	{Key: "createdAt", Column: "created_at", Label: "Created At", Kind: FieldDate, Sortable: true},
	{Key: "updatedBy", Column: "updated_by", Label: "Updated By", Kind: FieldText},
	{Key: "updatedAt", Column: "updated_at", Label: "Updated At", Kind: FieldDate, Sortable: true},
	{Key: "deletedAt", Column: "deleted_at", Label: "Deleted At", Kind: FieldDate},
	{Key: "deletedBy", Column: "deleted_by", Label: "Deleted By", Kind: FieldText},
}

// Catalog holds the field descriptors and the role registry.
type Catalog struct {
	descriptors []FieldDescriptor
	byKey       map[string]FieldDescriptor
	caps        map[Role]Capability
	required    []string
}

// NewCatalog builds the default catalog with the reference roles.
func NewCatalog() *Catalog {
	c := &Catalog{
		byKey: make(map[string]FieldDescriptor),
		caps:  make(map[Role]Capability),
	}

	for _, group := range [][]FieldDescriptor{operationalFields, billingFields, internalFields, systemFields} {
		for _, fd := range group {
			c.descriptors = append(c.descriptors, fd)
			c.byKey[fd.Key] = fd
		}
	}

	for _, fd := range operationalFields {
		c.required = append(c.required, fd.Key)
	}

	operational := keysOf(operationalFields)
	billing := keysOf(billingFields)
	internal := keysOf(internalFields)
	system := keysOf(systemFields)

	full := concat(operational, billing, internal)

	c.Register(RoleAdmin, Capability{
		Read:        concat(full, system),
		Write:       full,
		CanCreate:   true,
		CanDelete:   true,
		CanBulkEdit: true,
	})
	c.Register(RoleTL, Capability{
		Read:        concat(full, system),
		Write:       full,
		CanCreate:   true,
		CanDelete:   true,
		CanBulkEdit: true,
	})
	c.Register(RoleAnalyst, Capability{
		Read:      concat(operational, system),
		Write:     operational,
		CanCreate: true,
	})
	c.Register(RoleBilling, Capability{
		Read:        concat(operational, billing, system),
		Write:       concat(operational, billing),
		CanBulkEdit: true,
	})

	return c
}

// Register adds or replaces the capability row for a role. Unknown field keys
// in the capability are dropped so a registration can never grant fields the
// catalog does not know about.
func (c *Catalog) Register(role Role, cap Capability) {
	cap.Read = c.known(cap.Read)
	cap.Write = c.known(cap.Write)
	c.caps[role] = cap
}

// Descriptor looks up a field by key.
func (c *Catalog) Descriptor(key string) (FieldDescriptor, bool) {
	fd, ok := c.byKey[key]
	return fd, ok
}

// Descriptors returns the catalog in declaration order.
func (c *Catalog) Descriptors() []FieldDescriptor {
	out := make([]FieldDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// FieldsReadableBy returns the ordered read field-set for a role. An unknown
// role reads nothing.
func (c *Catalog) FieldsReadableBy(role Role) []string {
	cap, ok := c.caps[role]
	if !ok {
		return nil
	}
	out := make([]string, len(cap.Read))
	copy(out, cap.Read)
	return out
}

// FieldsWritableBy returns the write field-set for a role.
func (c *Catalog) FieldsWritableBy(role Role) []string {
	cap, ok := c.caps[role]
	if !ok {
		return nil
	}
	out := make([]string, len(cap.Write))
	copy(out, cap.Write)
	return out
}

// IsSortable reports whether results may be ordered by the given field key.
func (c *Catalog) IsSortable(key string) bool {
	fd, ok := c.byKey[key]
	return ok && fd.Sortable
}

// RequiredFields returns the keys that must be present on create.
func (c *Catalog) RequiredFields() []string {
	out := make([]string, len(c.required))
	copy(out, c.required)
	return out
}

// Roles returns every registered role.
func (c *Catalog) Roles() []Role {
	out := make([]Role, 0, len(c.caps))
	for role := range c.caps {
		out = append(out, role)
	}
	return out
}

func (c *Catalog) capability(role Role) (Capability, bool) {
	cap, ok := c.caps[role]
	return cap, ok
}

func (c *Catalog) known(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := c.byKey[key]; ok {
			out = append(out, key)
		}
	}
	return out
}

func keysOf(fields []FieldDescriptor) []string {
	out := make([]string, 0, len(fields))
	for _, fd := range fields {
		out = append(out, fd.Key)
	}
	return out
}

func concat(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
