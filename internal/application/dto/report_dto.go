package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/reconciliation"
)

// PendingRowResponse pase pendiente con antigüedad y color.
type PendingRowResponse struct {
	RecordID          string             `json:"record_id"`
	Direction         string             `json:"direction"`
	Parent            entity.DocumentRef `json:"parent"`
	Status            string             `json:"status"`
	Party             string             `json:"party"`
	VehicleNumber     string             `json:"vehicle_number"`
	Reason            string             `json:"reason"`
	ComplianceStatus  string             `json:"compliance_status,omitempty"`
	CompliancePending bool               `json:"compliance_pending"`
	RecordDate        time.Time          `json:"record_date"`
	AgingDays         int                `json:"aging_days"`
	AgingColor        string             `json:"aging_color"`
}

// PendingSummaryResponse conteos de pendientes.
type PendingSummaryResponse struct {
	Total                      int `json:"total"`
	InboundAwaitingReceipt     int `json:"inbound_awaiting_receipt"`
	OutboundAwaitingSubmission int `json:"outbound_awaiting_submission"`
	CompliancePending          int `json:"compliance_pending"`
}

// PendingReportResponse GET /api/reports/pending.
type PendingReportResponse struct {
	Rows    []PendingRowResponse   `json:"rows"`
	Summary PendingSummaryResponse `json:"summary"`
}

// RegisterEntryResponse movimiento del libro diario.
type RegisterEntryResponse struct {
	RecordID        string             `json:"record_id"`
	Direction       string             `json:"direction"`
	Parent          entity.DocumentRef `json:"parent"`
	Status          string             `json:"status"`
	Party           string             `json:"party"`
	VehicleNumber   string             `json:"vehicle_number"`
	DriverName      string             `json:"driver_name"`
	MaterialSummary string             `json:"material_summary"`
	TotalQty        decimal.Decimal    `json:"total_qty"`
	RecordDate      time.Time          `json:"record_date"`
}

// RegisterDayResponse movimientos de un día.
type RegisterDayResponse struct {
	Date     string                  `json:"date"`
	Inbound  int                     `json:"inbound"`
	Outbound int                     `json:"outbound"`
	Entries  []RegisterEntryResponse `json:"entries"`
}

// VarianceRowResponse fila de conciliación.
type VarianceRowResponse struct {
	Parent          entity.DocumentRef `json:"parent"`
	ItemCode        string             `json:"item_code"`
	ItemName        string             `json:"item_name"`
	UOM             string             `json:"uom"`
	Direction       string             `json:"direction"`
	ReturnFlow      bool               `json:"return_flow"`
	RequiredQty     decimal.Decimal    `json:"required_qty"`
	ConfirmedQty    decimal.Decimal    `json:"confirmed_qty"`
	Variance        decimal.Decimal    `json:"variance"`
	OpenEnded       bool               `json:"open_ended"`
	HasDiscrepancy  bool               `json:"has_discrepancy"`
	ParentAvailable bool               `json:"parent_available"`
	RecordIDs       []string           `json:"record_ids"`
}

// VarianceSummaryResponse totales de conciliación.
type VarianceSummaryResponse struct {
	Rows           int             `json:"rows"`
	TotalRequired  decimal.Decimal `json:"total_required"`
	TotalConfirmed decimal.Decimal `json:"total_confirmed"`
	TotalVariance  decimal.Decimal `json:"total_variance"`
	Discrepancies  int             `json:"discrepancies"`
	Indicator      string          `json:"indicator"`
}

// VarianceReportResponse GET /api/reports/variance.
type VarianceReportResponse struct {
	Rows    []VarianceRowResponse   `json:"rows"`
	Summary VarianceSummaryResponse `json:"summary"`
}

// ToPendingReportResponse mapea el informe de pendientes.
func ToPendingReportResponse(rows []reconciliation.PendingRow, s reconciliation.PendingSummary) PendingReportResponse {
	out := PendingReportResponse{
		Rows: make([]PendingRowResponse, 0, len(rows)),
		Summary: PendingSummaryResponse{
			Total:                      s.Total,
			InboundAwaitingReceipt:     s.InboundAwaitingReceipt,
			OutboundAwaitingSubmission: s.OutboundAwaitingSubmission,
			CompliancePending:          s.CompliancePending,
		},
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, PendingRowResponse{
			RecordID:          r.RecordID,
			Direction:         string(r.Direction),
			Parent:            r.Parent,
			Status:            string(r.Status),
			Party:             r.Party,
			VehicleNumber:     r.VehicleNumber,
			Reason:            r.Reason,
			ComplianceStatus:  r.ComplianceStatus,
			CompliancePending: r.CompliancePending,
			RecordDate:        r.RecordDate,
			AgingDays:         r.AgingDays,
			AgingColor:        r.AgingColor,
		})
	}
	return out
}

// ToRegisterResponse mapea el libro diario.
func ToRegisterResponse(days []reconciliation.RegisterDay) []RegisterDayResponse {
	out := make([]RegisterDayResponse, 0, len(days))
	for _, d := range days {
		day := RegisterDayResponse{
			Date:     d.Date,
			Inbound:  d.Inbound,
			Outbound: d.Outbound,
			Entries:  make([]RegisterEntryResponse, 0, len(d.Entries)),
		}
		for _, e := range d.Entries {
			day.Entries = append(day.Entries, RegisterEntryResponse{
				RecordID:        e.RecordID,
				Direction:       string(e.Direction),
				Parent:          e.Parent,
				Status:          string(e.Status),
				Party:           e.Party,
				VehicleNumber:   e.VehicleNumber,
				DriverName:      e.DriverName,
				MaterialSummary: e.MaterialSummary,
				TotalQty:        e.TotalQty,
				RecordDate:      e.RecordDate,
			})
		}
		out = append(out, day)
	}
	return out
}

// ToVarianceReportResponse mapea la conciliación.
func ToVarianceReportResponse(rows []reconciliation.VarianceRow, s reconciliation.VarianceSummary) VarianceReportResponse {
	out := VarianceReportResponse{
		Rows: make([]VarianceRowResponse, 0, len(rows)),
		Summary: VarianceSummaryResponse{
			Rows:           s.Rows,
			TotalRequired:  s.TotalRequired,
			TotalConfirmed: s.TotalConfirmed,
			TotalVariance:  s.TotalVariance,
			Discrepancies:  s.Discrepancies,
			Indicator:      s.Indicator,
		},
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, VarianceRowResponse{
			Parent:          r.Parent,
			ItemCode:        r.ItemCode,
			ItemName:        r.ItemName,
			UOM:             r.UOM,
			Direction:       string(r.Direction),
			ReturnFlow:      r.ReturnFlow,
			RequiredQty:     r.RequiredQty,
			ConfirmedQty:    r.ConfirmedQty,
			Variance:        r.Variance,
			OpenEnded:       r.OpenEnded,
			HasDiscrepancy:  r.HasDiscrepancy,
			ParentAvailable: r.ParentAvailable,
			RecordIDs:       r.RecordIDs,
		})
	}
	return out
}
