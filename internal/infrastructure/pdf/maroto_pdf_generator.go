// Package pdf genera el comprobante de portería que acompaña al vehículo.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Entrada/Salida + Documento origen │ N° Pase + Fecha│
//	│  ─────────────────────────────────────────────────────────  │
//	│  TRANSPORTE: Tercero / Vehículo / Conductor                  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: # | Ítem | UdM | Cantidad | Tarifa | Importe         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Cantidad confirmada / Importe                      │
//	│  DISCREPANCIA (si aplica)                                    │
//	│  FOOTER: QR con el ID del pase + firmas                      │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorAlert   = &props.Color{Red: 170, Green: 30, Blue: 30}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator implementa gatepass.SlipGenerator usando Maroto v2.
type MarotoPDFGenerator struct {
	site string
}

// NewMarotoPDFGenerator construye el generador. site aparece como autor del documento.
func NewMarotoPDFGenerator(site string) *MarotoPDFGenerator {
	return &MarotoPDFGenerator{site: site}
}

// GenerateSlip genera el PDF del pase y devuelve sus bytes.
func (g *MarotoPDFGenerator) GenerateSlip(_ context.Context, rec *entity.MovementRecord) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Pase de portería "+rec.ID, true).
		WithAuthor(nonEmpty(g.site, "Portería"), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(rec))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(transportRow(rec))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableLineRows(rec.Lines)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(rec))
	if rec.Discrepancy.HasDiscrepancy {
		m.AddRows(discrepancyRows(rec.Discrepancy)...)
	}

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(rec)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func directionLabel(d entity.Direction) string {
	if d == entity.DirectionInbound {
		return "PASE DE ENTRADA"
	}
	return "PASE DE SALIDA"
}

// headerRow: tipo de pase + documento origen (izq) y N° pase + fecha (der).
func headerRow(rec *entity.MovementRecord) core.Row {
	parent := "Sin documento origen"
	if rec.ParentID != "" {
		parent = fmt.Sprintf("%s %s", rec.ParentType, rec.ParentID)
	}
	return row.New(18).Add(
		col.New(7).Add(
			text.New(directionLabel(rec.Direction), props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Documento origen: "+parent, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(string(rec.Status), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(rec.ID, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+rec.RecordDate.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// transportRow: tercero, vehículo y conductor.
func transportRow(rec *entity.MovementRecord) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("TRANSPORTE", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(rec.Party, "—"), props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("Vehículo: %s   |   Conductor: %s   |   Contacto: %s",
				nonEmpty(rec.VehicleNumber, "—"),
				nonEmpty(rec.DriverName, "—"),
				nonEmpty(rec.DriverContact, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("#", 1, align.Center),
		h("Ítem", 5, align.Left),
		h("UdM", 1, align.Center),
		h("Cantidad", 2, align.Right),
		h("Tarifa", 1, align.Right),
		h("Importe", 2, align.Right),
	)
}

// tableLineRows: una fila por línea del pase.
func tableLineRows(lines []entity.ItemAllocation) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for i, l := range lines {
		item := l.ItemCode
		if l.ItemName != "" && l.ItemName != l.ItemCode {
			item = l.ItemCode + " · " + l.ItemName
		}
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(fmt.Sprint(i+1), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(5).Add(text.New(item, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(1).Add(text.New(nonEmpty(l.UOM, "—"), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(formatQty(l.ConfirmedQty), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(formatMoney(l.UnitRate), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(formatMoney(l.Amount), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

func totalsRow(rec *entity.MovementRecord) core.Row {
	amount := decimal.Zero
	for _, l := range rec.Lines {
		amount = amount.Add(l.Amount)
	}
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}
	return row.New(12).Add(
		col.New(6),
		col.New(3).Add(
			label("Cantidad confirmada:"),
			text.New("Importe:", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: 5}),
		),
		col.New(3).Add(
			value(formatQty(rec.TotalConfirmed()), 0),
			value(formatMoney(amount), 5),
		),
	)
}

func discrepancyRows(d entity.Discrepancy) []core.Row {
	rows := []core.Row{
		row.New(10).Add(col.New(12).Add(
			text.New("DISCREPANCIA EN PORTERÍA", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorAlert, Top: 2,
			}),
			text.New(fmt.Sprintf("Faltante: %s   |   Dañado: %s", formatQty(d.LostQty), formatQty(d.DamagedQty)),
				props.Text{Size: 8, Top: 6}),
		)),
	}
	if d.Notes != nil && *d.Notes != "" {
		rows = append(rows, row.New(8).Add(col.New(12).Add(
			text.New("Observaciones: "+*d.Notes, props.Text{Size: 8, Color: colorGray, Top: 1}),
		)))
	}
	return rows
}

// footerRows: QR con el ID del pase para la verificación en portería + firmas.
func footerRows(rec *entity.MovementRecord) []core.Row {
	signature := func(label string) core.Component {
		return text.New("______________________\n"+label, props.Text{
			Size: 8, Align: align.Center, Top: 20, Color: colorGray,
		})
	}
	return []core.Row{
		row.New(40).Add(
			col.New(4).Add(code.NewQr(rec.ID, props.Rect{Percent: 90, Center: true})),
			col.New(4).Add(signature("Portería")),
			col.New(4).Add(signature("Conductor")),
		),
		row.New(8).Add(col.New(12).Add(
			text.New("Escanee el código QR en portería para validar el pase.", props.Text{
				Size: 6.5, Color: colorGray, Top: 2,
			}),
		)),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

// formatQty muestra la cantidad sin ceros decimales sobrantes. Ej: 12.500 → "12.5"
func formatQty(d decimal.Decimal) string {
	return d.String()
}

// formatMoney redondea a dos decimales e inserta puntos de miles en la parte entera.
// Ej: 1234567.891 → "1.234.567,89"
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	n := len(intPart)
	buf := make([]byte, 0, n+n/3+4)
	if neg {
		buf = append(buf, '-')
	}
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	buf = append(buf, ',')
	buf = append(buf, frac...)
	return string(buf)
}
