package models

import (
	"time"
)

// Shipment is the storage model for a tracked air shipment. Domain fields
// are nullable pointers; columns mirror the field catalog. Version starts at
// 1 and is bumped by exactly one on every successful mutation, including the
// soft-delete tombstone.
type Shipment struct {
	ID string `json:"id" gorm:"primaryKey;type:uuid;column:id"`

	Client           *string    `json:"client" gorm:"type:text;column:client"`
	FlightNumber     *string    `json:"flightNumber" gorm:"type:text;column:flight_number"`
	FlightStatus     *string    `json:"flightStatus" gorm:"type:text;column:flight_status"`
	EtaEst           *time.Time `json:"etaEst" gorm:"type:timestamp with time zone;column:eta_est"`
	EtaStatus        *string    `json:"etaStatus" gorm:"type:text;column:eta_status"`
	PreAlertDate     *time.Time `json:"preAlertDate" gorm:"type:timestamp with time zone;column:pre_alert_date"`
	EtaDate          *time.Time `json:"etaDate" gorm:"type:timestamp with time zone;column:eta_date"`
	ReleaseDate      *time.Time `json:"releaseDate" gorm:"type:timestamp with time zone;column:release_date"`
	ReleaseStatus    *string    `json:"releaseStatus" gorm:"type:text;column:release_status"`
	Port             *string    `json:"port" gorm:"type:text;column:port"`
	NameAddress      *bool      `json:"nameAddress" gorm:"column:name_address"`
	LateSecured      *bool      `json:"lateSecured" gorm:"column:late_secured"`
	GoodsDescription *bool      `json:"goodsDescription" gorm:"column:goods_description"`
	ChangeMAWB       *bool      `json:"changeMAWB" gorm:"column:change_mawb"`
	ChangeCounts     *bool      `json:"changeCounts" gorm:"column:change_counts"`
	MismatchValues   *bool      `json:"mismatchValues" gorm:"column:mismatch_values"`
	AWB              *string    `json:"awb" gorm:"type:text;column:awb"`
	CLVS             *float64   `json:"clvs" gorm:"column:clvs"`
	LVS              *float64   `json:"lvs" gorm:"column:lvs"`
	PGA              *float64   `json:"pga" gorm:"column:pga"`
	Total            *float64   `json:"total" gorm:"column:total"`
	TotalFoodItems   *float64   `json:"totalFoodItems" gorm:"column:total_food_items"`
	Analyst          *string    `json:"analyst" gorm:"type:text;column:analyst"`
	ShipmentComments *string    `json:"shipmentComments" gorm:"type:text;column:shipment_comments"`

	CadTransactionNumber *string    `json:"cadTransactionNumber" gorm:"type:text;column:cad_transaction_number"`
	CadTransNumStatus    *string    `json:"cadTransNumStatus" gorm:"type:text;column:cad_trans_num_status"`
	DutiesLvs            *float64   `json:"dutiesLvs" gorm:"column:duties_lvs"`
	TaxesLvs             *float64   `json:"taxesLvs" gorm:"column:taxes_lvs"`
	DutiesPga            *float64   `json:"dutiesPga" gorm:"column:duties_pga"`
	TaxesPga             *float64   `json:"taxesPga" gorm:"column:taxes_pga"`
	InvoiceNumber        *string    `json:"invoiceNumber" gorm:"type:text;column:invoice_number"`
	BillingDate          *time.Time `json:"billingDate" gorm:"type:timestamp with time zone;column:billing_date"`
	BillingClerk         *string    `json:"billingClerk" gorm:"type:text;column:billing_clerk"`
	DroppedToSftp        *bool      `json:"droppedToSftp" gorm:"column:dropped_to_sftp"`
	BillingComments      *string    `json:"billingComments" gorm:"type:text;column:billing_comments"`

	ActivityLogs *string `json:"activityLogs" gorm:"type:text;column:activity_logs"`

	Version   int64      `json:"version" gorm:"not null;default:1;column:version"`
	CreatedBy *string    `json:"createdBy" gorm:"type:uuid;column:created_by"`
	CreatedAt time.Time  `json:"createdAt" gorm:"column:created_at"`
	UpdatedBy *string    `json:"updatedBy" gorm:"type:uuid;column:updated_by"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"column:updated_at"`
	DeletedAt *time.Time `json:"deletedAt" gorm:"index;column:deleted_at"`
	DeletedBy *string    `json:"deletedBy" gorm:"type:uuid;column:deleted_by"`
}

// AsMap exposes the shipment keyed by catalog field keys, for projection.
func (s *Shipment) AsMap() map[string]any {
	return map[string]any{
		"id":               s.ID,
		"client":           s.Client,
		"flightNumber":     s.FlightNumber,
		"flightStatus":     s.FlightStatus,
		"etaEst":           s.EtaEst,
		"etaStatus":        s.EtaStatus,
		"preAlertDate":     s.PreAlertDate,
		"etaDate":          s.EtaDate,
		"releaseDate":      s.ReleaseDate,
		"releaseStatus":    s.ReleaseStatus,
		"port":             s.Port,
		"nameAddress":      s.NameAddress,
		"lateSecured":      s.LateSecured,
		"goodsDescription": s.GoodsDescription,
		"changeMAWB":       s.ChangeMAWB,
		"changeCounts":     s.ChangeCounts,
		"mismatchValues":   s.MismatchValues,
		"awb":              s.AWB,
		"clvs":             s.CLVS,
		"lvs":              s.LVS,
		"pga":              s.PGA,
		"total":            s.Total,
		"totalFoodItems":   s.TotalFoodItems,
		"analyst":          s.Analyst,
		"shipmentComments": s.ShipmentComments,

		"cadTransactionNumber": s.CadTransactionNumber,
		"cadTransNumStatus":    s.CadTransNumStatus,
		"dutiesLvs":            s.DutiesLvs,
		"taxesLvs":             s.TaxesLvs,
		"dutiesPga":            s.DutiesPga,
		"taxesPga":             s.TaxesPga,
		"invoiceNumber":        s.InvoiceNumber,
		"billingDate":          s.BillingDate,
		"billingClerk":         s.BillingClerk,
		"droppedToSftp":        s.DroppedToSftp,
		"billingComments":      s.BillingComments,

		"activityLogs": s.ActivityLogs,

		"version":   s.Version,
		"createdBy": s.CreatedBy,
		"createdAt": s.CreatedAt,
		"updatedBy": s.UpdatedBy,
		"updatedAt": s.UpdatedAt,
		"deletedAt": s.DeletedAt,
		"deletedBy": s.DeletedBy,
	}
}
