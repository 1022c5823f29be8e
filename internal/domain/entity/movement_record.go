package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain"
)

// Direction sentido del movimiento respecto a la portería.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"  // entrada
	DirectionOutbound Direction = "OUTBOUND" // salida
)

// Valid indica si la dirección es conocida.
func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// RecordStatus estado del pase de portería.
type RecordStatus string

const (
	StatusDraft     RecordStatus = "DRAFT"
	StatusSubmitted RecordStatus = "SUBMITTED"
	StatusReceipted RecordStatus = "RECEIPTED"
	StatusCancelled RecordStatus = "CANCELLED"
)

// LiveStatuses estados que cuentan para la asignación (todo lo no anulado).
var LiveStatuses = []RecordStatus{StatusDraft, StatusSubmitted, StatusReceipted}

// CommittedStatuses estados confirmados en portería.
var CommittedStatuses = []RecordStatus{StatusSubmitted, StatusReceipted}

var transitions = map[RecordStatus][]RecordStatus{
	StatusDraft:     {StatusSubmitted, StatusCancelled},
	StatusSubmitted: {StatusReceipted, StatusCancelled},
}

// CanTransition indica si from -> to es una transición legal.
func CanTransition(from, to RecordStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Origin cómo se creó el registro.
type Origin string

const (
	OriginManual Origin = "MANUAL"
	OriginAuto   Origin = "AUTO"
)

// Discrepancy faltantes o daños detectados en portería.
type Discrepancy struct {
	HasDiscrepancy bool
	LostQty        decimal.Decimal
	DamagedQty     decimal.Decimal
	Notes          *string
}

// ReturnLink vínculo de un registro de entrada con la salida que revierte.
// Puede apuntar al registro de salida, al traslado de salida, o a ambos.
type ReturnLink struct {
	OutboundRecordID   string
	OutboundTransferID string
}

// IsZero indica que el vínculo no apunta a nada.
func (l *ReturnLink) IsZero() bool {
	return l == nil || (l.OutboundRecordID == "" && l.OutboundTransferID == "")
}

// ItemAllocation línea del pase: porción de la cantidad requerida que reclama este registro.
type ItemAllocation struct {
	ID            string
	Position      int
	ItemCode      string
	ItemName      string
	UOM           string
	ParentItemRef string
	RequiredQty   decimal.Decimal // copia al crear
	ConfirmedQty  decimal.Decimal
	UnitRate      decimal.Decimal
	Amount        decimal.Decimal
	OpenEnded     bool
}

// MovementRecord pase de portería (entrada o salida de material).
type MovementRecord struct {
	ID            string
	CompanyID     string
	Direction     Direction
	ParentType    DocumentType
	ParentID      string // vacío si el documento origen fue anulado o eliminado
	Status        RecordStatus
	Origin        Origin
	Party         string
	VehicleNumber string
	DriverName    string
	DriverContact string
	OpenEnded     bool
	Discrepancy   Discrepancy
	ReturnLink    *ReturnLink
	Receipt       *DocumentRef
	RecordDate    time.Time
	SubmittedAt   *time.Time
	CancelledAt   *time.Time
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []ItemAllocation
}

// Parent referencia al documento origen.
func (r *MovementRecord) Parent() DocumentRef {
	return DocumentRef{Type: r.ParentType, ID: r.ParentID}
}

// IsReturnFlow indica una entrada que revierte un traslado de salida.
func (r *MovementRecord) IsReturnFlow() bool {
	return r.Direction == DirectionInbound && r.ReturnLink != nil && r.ReturnLink.OutboundTransferID != ""
}

// CanModify solo los borradores se editan.
func (r *MovementRecord) CanModify() error {
	if r.Status != StatusDraft {
		return domain.ErrInvalidTransition
	}
	return nil
}

// TransitionTo cambia de estado si la transición es legal.
func (r *MovementRecord) TransitionTo(to RecordStatus, now time.Time) error {
	if !CanTransition(r.Status, to) {
		return domain.ErrInvalidTransition
	}
	r.Status = to
	r.UpdatedAt = now
	switch to {
	case StatusSubmitted:
		r.SubmittedAt = &now
	case StatusCancelled:
		r.CancelledAt = &now
	}
	return nil
}

// RecalculateAmounts amount = confirmada × tarifa en cada línea; reordena posiciones.
func (r *MovementRecord) RecalculateAmounts() {
	for i := range r.Lines {
		r.Lines[i].Position = i + 1
		r.Lines[i].Amount = r.Lines[i].ConfirmedQty.Mul(r.Lines[i].UnitRate)
	}
}

// TotalConfirmed suma de cantidades confirmadas.
func (r *MovementRecord) TotalConfirmed() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(l.ConfirmedQty)
	}
	return total
}

// ConfirmedByItem suma confirmada agrupada por ítem.
func (r *MovementRecord) ConfirmedByItem() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, l := range r.Lines {
		out[l.ItemCode] = out[l.ItemCode].Add(l.ConfirmedQty)
	}
	return out
}

// Line busca una línea por ID.
func (r *MovementRecord) Line(lineID string) (*ItemAllocation, bool) {
	for i := range r.Lines {
		if r.Lines[i].ID == lineID {
			return &r.Lines[i], true
		}
	}
	return nil, false
}

// ApplyDiscrepancy asigna la discrepancia. Si hasDiscrepancy es falso se limpian cantidades y notas.
func (r *MovementRecord) ApplyDiscrepancy(has bool, lost, damaged decimal.Decimal, notes *string) {
	if !has {
		r.Discrepancy = Discrepancy{LostQty: decimal.Zero, DamagedQty: decimal.Zero}
		return
	}
	r.Discrepancy = Discrepancy{HasDiscrepancy: true, LostQty: lost, DamagedQty: damaged, Notes: notes}
}

// ValidateDiscrepancy perdido y dañado no negativos y su suma no supera lo confirmado.
func (r *MovementRecord) ValidateDiscrepancy() error {
	d := r.Discrepancy
	if !d.HasDiscrepancy {
		return nil
	}
	if d.LostQty.IsNegative() {
		return &domain.GuardError{Kind: domain.GuardDiscrepancyOutOfBounds, Field: "lost_qty"}
	}
	if d.DamagedQty.IsNegative() {
		return &domain.GuardError{Kind: domain.GuardDiscrepancyOutOfBounds, Field: "damaged_qty"}
	}
	total := r.TotalConfirmed()
	if d.LostQty.Add(d.DamagedQty).GreaterThan(total) {
		return &domain.GuardError{
			Kind:      domain.GuardDiscrepancyOutOfBounds,
			Field:     "lost_qty + damaged_qty",
			Requested: d.LostQty.Add(d.DamagedQty),
			Available: total,
		}
	}
	return nil
}

// Clone copia profunda (líneas, punteros).
func (r *MovementRecord) Clone() *MovementRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Lines = append([]ItemAllocation(nil), r.Lines...)
	if r.ReturnLink != nil {
		l := *r.ReturnLink
		c.ReturnLink = &l
	}
	if r.Receipt != nil {
		rc := *r.Receipt
		c.Receipt = &rc
	}
	if r.Discrepancy.Notes != nil {
		n := *r.Discrepancy.Notes
		c.Discrepancy.Notes = &n
	}
	if r.SubmittedAt != nil {
		t := *r.SubmittedAt
		c.SubmittedAt = &t
	}
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
