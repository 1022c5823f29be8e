package ledger

import "github.com/shopspring/decimal"

// Precision decimales con los que se comparan cantidades.
const Precision = 6

// Epsilon tolerancia de redondeo (1e-6).
var Epsilon = decimal.New(1, -Precision)

// Result resultado de una reserva.
type Result struct {
	OK             bool
	RemainingAfter decimal.Decimal // pendiente tras la reserva (solo si OK)
	Available      decimal.Decimal // pendiente antes de la reserva
}

// Check evalúa una reserva sobre el libro de asignación (servicio de dominio).
// allocated es lo ya confirmado por otros registros vivos del mismo ítem del documento origen.
// Rechaza si (allocated + requested) - required > Epsilon. Los ítems abiertos (contrato de tarifa)
// siempre pasan.
func Check(required, allocated, requested decimal.Decimal, openEnded bool) Result {
	required = Round(required)
	allocated = Round(allocated)
	requested = Round(requested)

	available := required.Sub(allocated)
	if openEnded {
		return Result{OK: true, RemainingAfter: available.Sub(requested), Available: available}
	}
	if allocated.Add(requested).Sub(required).GreaterThan(Epsilon) {
		return Result{OK: false, Available: Clamp(available)}
	}
	return Result{OK: true, RemainingAfter: Clamp(available.Sub(requested)), Available: Clamp(available)}
}

// Remaining pendiente por asignar (nunca negativo).
func Remaining(required, allocated decimal.Decimal) decimal.Decimal {
	return Clamp(Round(required).Sub(Round(allocated)))
}

// Round redondea a Precision decimales.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

// Clamp negativos a cero.
func Clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Equal compara con tolerancia Epsilon.
func Equal(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}
