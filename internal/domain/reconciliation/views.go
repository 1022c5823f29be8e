package reconciliation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain/compliance"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

// Motivos de pendiente.
const (
	ReasonAwaitingReceipt    = "Awaiting Receipt"
	ReasonCompliancePending  = "Compliance pending"
	ReasonAwaitingSubmission = "Awaiting Guard Submission"
)

// PendingRow pase pendiente con su antigüedad.
type PendingRow struct {
	RecordID          string
	Direction         entity.Direction
	Parent            entity.DocumentRef
	Status            entity.RecordStatus
	Party             string
	VehicleNumber     string
	Reason            string
	ComplianceStatus  string
	CompliancePending bool
	RecordDate        time.Time
	AgingDays         int
	AgingColor        string
}

// PendingSummary conteos del informe de pendientes.
type PendingSummary struct {
	Total                      int
	InboundAwaitingReceipt     int
	OutboundAwaitingSubmission int
	CompliancePending          int
}

// PendingInput registros candidatos y compuerta evaluada por ID de registro.
type PendingInput struct {
	Records    []*entity.MovementRecord
	Compliance map[string]compliance.Result
	Now        time.Time
}

// PendingAging borradores por confirmar en portería y entradas confirmadas sin recepción.
// Orden: más reciente primero.
func PendingAging(in PendingInput) ([]PendingRow, PendingSummary) {
	var rows []PendingRow
	var sum PendingSummary
	for _, rec := range in.Records {
		row := PendingRow{
			RecordID:      rec.ID,
			Direction:     rec.Direction,
			Parent:        rec.Parent(),
			Status:        rec.Status,
			Party:         rec.Party,
			VehicleNumber: rec.VehicleNumber,
			RecordDate:    rec.RecordDate,
		}
		switch {
		case rec.Status == entity.StatusSubmitted && rec.Direction == entity.DirectionInbound && rec.Receipt == nil:
			row.Reason = ReasonAwaitingReceipt
			sum.InboundAwaitingReceipt++
		case rec.Status == entity.StatusDraft:
			row.Reason = ReasonAwaitingSubmission
			if res, ok := in.Compliance[rec.ID]; ok {
				row.ComplianceStatus = res.Status
				if !res.Passed {
					row.Reason = ReasonCompliancePending
					row.CompliancePending = true
					sum.CompliancePending++
				}
			}
			if rec.Direction == entity.DirectionOutbound {
				sum.OutboundAwaitingSubmission++
			}
		default:
			continue
		}
		row.AgingDays = AgingDays(rec.RecordDate, in.Now)
		row.AgingColor = AgingColor(row.AgingDays)
		rows = append(rows, row)
	}
	sum.Total = len(rows)
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].RecordDate.Equal(rows[j].RecordDate) {
			return rows[i].RecordDate.After(rows[j].RecordDate)
		}
		return rows[i].RecordID > rows[j].RecordID
	})
	return rows, sum
}

// AgingDays días calendario entre la fecha del registro y now.
func AgingDays(recordDate, now time.Time) int {
	from := truncateDay(recordDate)
	to := truncateDay(now)
	return int(to.Sub(from).Hours() / 24)
}

// AgingColor verde hasta el mismo día, naranja a un día, rojo después.
func AgingColor(days int) string {
	switch {
	case days <= 0:
		return IndicatorGreen
	case days <= 1:
		return IndicatorOrange
	default:
		return IndicatorRed
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RegisterEntry línea del libro diario de portería.
type RegisterEntry struct {
	RecordID        string
	Direction       entity.Direction
	Parent          entity.DocumentRef
	Status          entity.RecordStatus
	Party           string
	VehicleNumber   string
	DriverName      string
	MaterialSummary string
	TotalQty        decimal.Decimal
	RecordDate      time.Time
}

// RegisterDay movimientos de un día.
type RegisterDay struct {
	Date     string
	Inbound  int
	Outbound int
	Entries  []RegisterEntry
}

// DailyRegister agrupa por día los registros confirmados. Días más recientes primero.
func DailyRegister(records []*entity.MovementRecord) []RegisterDay {
	byDay := make(map[string]*RegisterDay)
	for _, rec := range records {
		if !isCommitted(rec.Status) {
			continue
		}
		date := rec.RecordDate.UTC().Format("2006-01-02")
		day, ok := byDay[date]
		if !ok {
			day = &RegisterDay{Date: date}
			byDay[date] = day
		}
		if rec.Direction == entity.DirectionInbound {
			day.Inbound++
		} else {
			day.Outbound++
		}
		day.Entries = append(day.Entries, RegisterEntry{
			RecordID:        rec.ID,
			Direction:       rec.Direction,
			Parent:          rec.Parent(),
			Status:          rec.Status,
			Party:           rec.Party,
			VehicleNumber:   rec.VehicleNumber,
			DriverName:      rec.DriverName,
			MaterialSummary: MaterialSummary(rec.Lines),
			TotalQty:        rec.TotalConfirmed(),
			RecordDate:      rec.RecordDate,
		})
	}

	out := make([]RegisterDay, 0, len(byDay))
	for _, day := range byDay {
		sort.SliceStable(day.Entries, func(i, j int) bool {
			return day.Entries[i].RecordDate.Before(day.Entries[j].RecordDate)
		})
		out = append(out, *day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// MaterialSummary "ITEM (qty UOM), ..." en el orden de las líneas.
func MaterialSummary(lines []entity.ItemAllocation) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		qty := l.ConfirmedQty.String()
		if l.UOM != "" {
			parts = append(parts, fmt.Sprintf("%s (%s %s)", l.ItemCode, qty, l.UOM))
		} else {
			parts = append(parts, fmt.Sprintf("%s (%s)", l.ItemCode, qty))
		}
	}
	return strings.Join(parts, ", ")
}
