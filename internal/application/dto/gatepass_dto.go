package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain/compliance"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

// LineRequest línea solicitada al crear o ampliar un pase.
type LineRequest struct {
	ItemCode     string           `json:"item_code"`
	ConfirmedQty decimal.Decimal  `json:"confirmed_qty"`
	UnitRate     *decimal.Decimal `json:"unit_rate,omitempty"`
}

// CreateMovementRecordRequest body para POST /api/gate-passes.
type CreateMovementRecordRequest struct {
	ParentType    string        `json:"parent_type"`
	ParentID      string        `json:"parent_id"`
	Direction     string        `json:"direction,omitempty"`
	ReturnOf      string        `json:"return_of,omitempty"`
	VehicleNumber string        `json:"vehicle_number"`
	DriverName    string        `json:"driver_name"`
	DriverContact string        `json:"driver_contact"`
	OpenEnded     bool          `json:"open_ended"`
	RecordDate    *time.Time    `json:"record_date,omitempty"`
	Lines         []LineRequest `json:"lines,omitempty"`
}

// TransportRequest body para PATCH /api/gate-passes/{id}/transport. Campos nil no cambian.
type TransportRequest struct {
	VehicleNumber *string `json:"vehicle_number"`
	DriverName    *string `json:"driver_name"`
	DriverContact *string `json:"driver_contact"`
}

// LineQuantityRequest body para PUT /api/gate-passes/{id}/lines/{lineId}.
type LineQuantityRequest struct {
	ConfirmedQty decimal.Decimal `json:"confirmed_qty"`
}

// DiscrepancyRequest body para PUT /api/gate-passes/{id}/discrepancy.
type DiscrepancyRequest struct {
	HasDiscrepancy bool            `json:"has_discrepancy"`
	LostQty        decimal.Decimal `json:"lost_qty"`
	DamagedQty     decimal.Decimal `json:"damaged_qty"`
	Notes          *string         `json:"notes"`
}

// ReturnLinkRequest body para PUT /api/gate-passes/{id}/return-link. Ambos vacíos limpian el vínculo.
type ReturnLinkRequest struct {
	OutboundRecordID   string `json:"outbound_record_id"`
	OutboundTransferID string `json:"outbound_transfer_id"`
}

// LineResponse línea del pase.
type LineResponse struct {
	ID            string          `json:"id"`
	Position      int             `json:"position"`
	ItemCode      string          `json:"item_code"`
	ItemName      string          `json:"item_name"`
	UOM           string          `json:"uom"`
	ParentItemRef string          `json:"parent_item_ref,omitempty"`
	RequiredQty   decimal.Decimal `json:"required_qty"`
	ConfirmedQty  decimal.Decimal `json:"confirmed_qty"`
	UnitRate      decimal.Decimal `json:"unit_rate"`
	Amount        decimal.Decimal `json:"amount"`
	OpenEnded     bool            `json:"open_ended"`
}

// DiscrepancyResponse faltantes y daños.
type DiscrepancyResponse struct {
	HasDiscrepancy bool            `json:"has_discrepancy"`
	LostQty        decimal.Decimal `json:"lost_qty"`
	DamagedQty     decimal.Decimal `json:"damaged_qty"`
	Notes          *string         `json:"notes,omitempty"`
}

// MovementRecordResponse salida de un pase de portería.
type MovementRecordResponse struct {
	ID            string              `json:"id"`
	CompanyID     string              `json:"company_id"`
	Direction     string              `json:"direction"`
	ParentType    string              `json:"parent_type"`
	ParentID      string              `json:"parent_id,omitempty"`
	Status        string              `json:"status"`
	Origin        string              `json:"origin"`
	Party         string              `json:"party"`
	VehicleNumber string              `json:"vehicle_number"`
	DriverName    string              `json:"driver_name"`
	DriverContact string              `json:"driver_contact"`
	OpenEnded     bool                `json:"open_ended"`
	Discrepancy   DiscrepancyResponse `json:"discrepancy"`
	ReturnLink    *ReturnLinkRequest  `json:"return_link,omitempty"`
	Receipt       *entity.DocumentRef `json:"receipt,omitempty"`
	RecordDate    time.Time           `json:"record_date"`
	SubmittedAt   *time.Time          `json:"submitted_at,omitempty"`
	CancelledAt   *time.Time          `json:"cancelled_at,omitempty"`
	CreatedBy     string              `json:"created_by"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Lines         []LineResponse      `json:"lines"`
}

// MovementRecordListResponse lista paginada de pases.
type MovementRecordListResponse struct {
	Items []MovementRecordResponse `json:"items"`
	Page  PageResponse             `json:"page"`
}

// ComplianceResponse evaluación de la compuerta de cumplimiento.
type ComplianceResponse struct {
	Applicable    bool            `json:"applicable"`
	Required      bool            `json:"required"`
	Passed        bool            `json:"passed"`
	Status        string          `json:"status"`
	Missing       []string        `json:"missing,omitempty"`
	Threshold     decimal.Decimal `json:"threshold"`
	DocumentValue decimal.Decimal `json:"document_value"`
	InvoiceState  string          `json:"invoice_state,omitempty"`
	WayBillState  string          `json:"waybill_state,omitempty"`
}

// GuardDetails detalle de la guarda que bloqueó la operación.
type GuardDetails struct {
	Kind      string           `json:"kind"`
	Field     string           `json:"field,omitempty"`
	ItemCode  string           `json:"item_code,omitempty"`
	Requested *decimal.Decimal `json:"requested,omitempty"`
	Available *decimal.Decimal `json:"available,omitempty"`
	Missing   []string         `json:"missing,omitempty"`
}

// ToMovementRecordResponse mapea la entidad a su salida HTTP.
func ToMovementRecordResponse(rec *entity.MovementRecord) MovementRecordResponse {
	out := MovementRecordResponse{
		ID:            rec.ID,
		CompanyID:     rec.CompanyID,
		Direction:     string(rec.Direction),
		ParentType:    string(rec.ParentType),
		ParentID:      rec.ParentID,
		Status:        string(rec.Status),
		Origin:        string(rec.Origin),
		Party:         rec.Party,
		VehicleNumber: rec.VehicleNumber,
		DriverName:    rec.DriverName,
		DriverContact: rec.DriverContact,
		OpenEnded:     rec.OpenEnded,
		Discrepancy: DiscrepancyResponse{
			HasDiscrepancy: rec.Discrepancy.HasDiscrepancy,
			LostQty:        rec.Discrepancy.LostQty,
			DamagedQty:     rec.Discrepancy.DamagedQty,
			Notes:          rec.Discrepancy.Notes,
		},
		Receipt:     rec.Receipt,
		RecordDate:  rec.RecordDate,
		SubmittedAt: rec.SubmittedAt,
		CancelledAt: rec.CancelledAt,
		CreatedBy:   rec.CreatedBy,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		Lines:       make([]LineResponse, 0, len(rec.Lines)),
	}
	if !rec.ReturnLink.IsZero() {
		out.ReturnLink = &ReturnLinkRequest{
			OutboundRecordID:   rec.ReturnLink.OutboundRecordID,
			OutboundTransferID: rec.ReturnLink.OutboundTransferID,
		}
	}
	for _, l := range rec.Lines {
		out.Lines = append(out.Lines, LineResponse{
			ID:            l.ID,
			Position:      l.Position,
			ItemCode:      l.ItemCode,
			ItemName:      l.ItemName,
			UOM:           l.UOM,
			ParentItemRef: l.ParentItemRef,
			RequiredQty:   l.RequiredQty,
			ConfirmedQty:  l.ConfirmedQty,
			UnitRate:      l.UnitRate,
			Amount:        l.Amount,
			OpenEnded:     l.OpenEnded,
		})
	}
	return out
}

// ToComplianceResponse mapea la evaluación de la compuerta.
func ToComplianceResponse(r compliance.Result) ComplianceResponse {
	return ComplianceResponse{
		Applicable:    r.Applicable,
		Required:      r.Required,
		Passed:        r.Passed,
		Status:        r.Status,
		Missing:       r.Missing,
		Threshold:     r.Threshold,
		DocumentValue: r.DocumentValue,
		InvoiceState:  r.InvoiceState,
		WayBillState:  r.WayBillState,
	}
}
