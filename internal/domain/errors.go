package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Errores de dominio.
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	ErrOverAllocation         = errors.New("la cantidad supera lo pendiente del documento origen")
	ErrComplianceBlocked      = errors.New("faltan soportes de cumplimiento del documento origen")
	ErrInvalidTransition      = errors.New("transición de estado no permitida")
	ErrMissingRequiredField   = errors.New("falta un campo obligatorio")
	ErrDiscrepancyOutOfBounds = errors.New("cantidades de discrepancia fuera de rango")
	ErrDanglingReference      = errors.New("la referencia apunta a un documento inexistente o no vigente")
	ErrAdapterUnavailable     = errors.New("sistema de documentos origen no disponible")
)

// GuardKind identifica la guarda que bloqueó una transición.
type GuardKind string

const (
	GuardAllocationExceeded     GuardKind = "ALLOCATION_EXCEEDED"
	GuardComplianceBlocked      GuardKind = "COMPLIANCE_BLOCKED"
	GuardMissingField           GuardKind = "MISSING_FIELD"
	GuardDiscrepancyOutOfBounds GuardKind = "DISCREPANCY_OUT_OF_BOUNDS"
)

// GuardError resultado tipado de una guarda fallida. Es estructurado para que el operador vea
// qué soporte falta o en cuánto se excede la cantidad.
type GuardError struct {
	Kind      GuardKind
	Field     string
	ItemCode  string
	Requested decimal.Decimal
	Available decimal.Decimal
	Missing   []string
}

func (e *GuardError) Error() string {
	switch e.Kind {
	case GuardAllocationExceeded:
		return fmt.Sprintf("%s: item %s solicitado %s, disponible %s",
			ErrOverAllocation.Error(), e.ItemCode, e.Requested.StringFixed(3), e.Available.StringFixed(3))
	case GuardComplianceBlocked:
		return fmt.Sprintf("%s: %s", ErrComplianceBlocked.Error(), strings.Join(e.Missing, ", "))
	case GuardMissingField:
		return fmt.Sprintf("%s: %s", ErrMissingRequiredField.Error(), e.Field)
	case GuardDiscrepancyOutOfBounds:
		if e.Field != "" {
			return fmt.Sprintf("%s: %s", ErrDiscrepancyOutOfBounds.Error(), e.Field)
		}
		return ErrDiscrepancyOutOfBounds.Error()
	}
	return "guarda fallida"
}

// Unwrap permite errors.Is contra el sentinel de cada tipo de guarda.
func (e *GuardError) Unwrap() error {
	switch e.Kind {
	case GuardAllocationExceeded:
		return ErrOverAllocation
	case GuardComplianceBlocked:
		return ErrComplianceBlocked
	case GuardMissingField:
		return ErrMissingRequiredField
	case GuardDiscrepancyOutOfBounds:
		return ErrDiscrepancyOutOfBounds
	}
	return nil
}

// NewMissingField construye la guarda de campo obligatorio.
func NewMissingField(field string) *GuardError {
	return &GuardError{Kind: GuardMissingField, Field: field}
}

// NewOverAllocation construye la guarda de sobre-asignación.
func NewOverAllocation(itemCode string, requested, available decimal.Decimal) *GuardError {
	return &GuardError{Kind: GuardAllocationExceeded, ItemCode: itemCode, Requested: requested, Available: available}
}

// AsGuardError extrae un *GuardError de la cadena de errores.
func AsGuardError(err error) (*GuardError, bool) {
	var ge *GuardError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
