package compliance

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

// Soportes regulatorios.
const (
	ArtifactEInvoice = "E-Invoice"
	ArtifactEWayBill = "E-Way Bill"
)

// Textos de estado visibles.
const (
	StatusNotApplicable = "Not Applicable"
	StatusNotRequired   = "Not Required"
	StatusReady         = "Ready"
	StatusPending       = "Pending"
)

var generatedStates = map[string]struct{}{
	"generated":          {},
	"manually generated": {},
	"valid":              {},
	"active":             {},
}

// Policy política de la compuerta. Threshold cero desactiva los requisitos.
type Policy struct {
	Threshold               decimal.Decimal
	WayBillFromDeliveryNote bool
}

// Result evaluación de la compuerta.
type Result struct {
	Applicable    bool
	Required      bool
	Passed        bool
	Status        string
	Missing       []string
	Threshold     decimal.Decimal
	DocumentValue decimal.Decimal
	InvoiceState  string
	WayBillState  string
}

// Applies la compuerta aplica solo a salidas contra documentos de venta.
func Applies(direction entity.Direction, docType entity.DocumentType) bool {
	return direction == entity.DirectionOutbound && docType.IsSales()
}

// IsGenerated indica si el estado upstream del soporte cuenta como generado.
func IsGenerated(state string) bool {
	_, ok := generatedStates[cases.Fold().String(strings.TrimSpace(state))]
	return ok
}

// DisplayState normaliza el estado para mostrarlo ("manually generated" -> "Manually Generated").
func DisplayState(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return ""
	}
	return cases.Title(language.English).String(state)
}

// Evaluate decide Pass o Block para un documento de venta. El umbral del snapshot tiene prioridad
// sobre el de la política cuando es positivo.
func (p Policy) Evaluate(docType entity.DocumentType, snap entity.ComplianceSnapshot) Result {
	threshold := p.Threshold
	if snap.ThresholdValue.IsPositive() {
		threshold = snap.ThresholdValue
	}
	res := Result{
		Applicable:    true,
		Threshold:     threshold,
		DocumentValue: snap.DocumentValue,
		InvoiceState:  DisplayState(snap.InvoiceApprovalState),
		WayBillState:  DisplayState(snap.WayBillApprovalState),
	}
	if !threshold.IsPositive() || snap.DocumentValue.LessThan(threshold) {
		res.Passed = true
		res.Status = StatusNotRequired
		return res
	}

	res.Required = true
	if docType == entity.DocSalesInvoice && !IsGenerated(snap.InvoiceApprovalState) {
		res.Missing = append(res.Missing, ArtifactEInvoice)
	}
	if p.requiresWayBill(docType) && !IsGenerated(snap.WayBillApprovalState) {
		res.Missing = append(res.Missing, ArtifactEWayBill)
	}
	res.Passed = len(res.Missing) == 0
	if res.Passed {
		res.Status = StatusReady
	} else {
		res.Status = StatusPending
	}
	return res
}

func (p Policy) requiresWayBill(docType entity.DocumentType) bool {
	switch docType {
	case entity.DocSalesInvoice:
		return true
	case entity.DocDeliveryNote:
		return p.WayBillFromDeliveryNote
	}
	return false
}

// NotApplicable resultado para registros fuera del alcance de la compuerta.
func NotApplicable() Result {
	return Result{Passed: true, Status: StatusNotApplicable}
}
