// Package pdf genera el reporte imprimible del stock de la bóveda externa.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Título + nombre de la app │ Fecha de generación    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Quilate | Gramos | Actualizado                       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTAL: gramos totales (todas las purezas)                   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  DIFERENCIAS: quilates cuyo stock no cuadra con el libro     │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
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

	"github.com/jhoicas/goldvault-api/internal/application/vault"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
)

var _ vault.StockReportRenderer = (*StockReportGenerator)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 153, Green: 115, Blue: 0}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorAlert   = &props.Color{Red: 180, Green: 30, Blue: 30}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// StockReportGenerator implementa vault.StockReportRenderer usando Maroto v2.
type StockReportGenerator struct {
	appName string
	now     func() time.Time
}

// NewStockReportGenerator construye el generador.
func NewStockReportGenerator(appName string) *StockReportGenerator {
	return &StockReportGenerator{appName: appName, now: time.Now}
}

// RenderStock genera el PDF y devuelve sus bytes.
func (g *StockReportGenerator) RenderStock(
	_ context.Context,
	rows []*entity.StockBalance,
	drifts []vault.StockDrift,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Stock bóveda externa", true).
		WithAuthor(g.appName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(g.appName, g.now()))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	m.AddRows(tableHeaderRow())
	total := decimal.Zero
	for _, b := range rows {
		m.AddRows(stockRow(b))
		total = total.Add(b.Amount)
	}
	if len(rows) == 0 {
		m.AddRows(text.NewRow(8, "Sin movimientos registrados", props.Text{
			Size: 8, Align: align.Center, Top: 2, Color: colorGray,
		}))
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalRow(total))

	if len(drifts) > 0 {
		m.AddRows(line.NewRow(3))
		m.AddRows(line.NewRow(1, props.Line{Color: colorAlert, Thickness: 0.3}))
		for _, r := range driftRows(drifts) {
			m.AddRows(r)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(appName string, at time.Time) core.Row {
	return row.New(16).Add(
		col.New(8).Add(
			text.New("STOCK BÓVEDA EXTERNA", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(appName, props.Text{Size: 9, Top: 9, Color: colorGray}),
		),
		col.New(4).Add(
			text.New("Generado: "+at.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 3, Color: colorGray,
			}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2,
		}))
	}
	return row.New(8).Add(
		h("Quilate", 3, align.Left),
		h("Gramos", 5, align.Right),
		h("Actualizado", 4, align.Right),
	)
}

func stockRow(b *entity.StockBalance) core.Row {
	amountProps := props.Text{Size: 9, Align: align.Right, Top: 1}
	if b.Amount.IsNegative() {
		amountProps.Color = colorAlert
	}
	return row.New(7).Add(
		col.New(3).Add(text.New(fmt.Sprintf("%dk", b.Karat), props.Text{Size: 9, Top: 1})),
		col.New(5).Add(text.New(b.Amount.StringFixed(entity.AmountScale)+" g", amountProps)),
		col.New(4).Add(text.New(b.UpdatedAt.Format("02/01/2006 15:04"), props.Text{
			Size: 8, Align: align.Right, Top: 1, Color: colorGray,
		})),
	)
}

func totalRow(total decimal.Decimal) core.Row {
	return row.New(9).Add(
		col.New(8).Add(text.New("TOTAL", props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 2,
		})),
		col.New(4).Add(text.New(total.StringFixed(entity.AmountScale)+" g", props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 2, Color: colorPrimary,
		})),
	)
}

// driftRows: quilates desincronizados; se corrigen con la sincronización de stock.
func driftRows(drifts []vault.StockDrift) []core.Row {
	out := []core.Row{
		text.NewRow(8, "DIFERENCIAS CON EL LIBRO (ejecutar sincronización)", props.Text{
			Style: fontstyle.Bold, Size: 8, Color: colorAlert, Top: 2,
		}),
	}
	for _, d := range drifts {
		out = append(out, row.New(6).Add(
			col.New(3).Add(text.New(fmt.Sprintf("%dk", d.Karat), props.Text{Size: 8, Top: 1})),
			col.New(3).Add(text.New("Libro: "+d.Ledger.StringFixed(entity.AmountScale), props.Text{Size: 8, Align: align.Right, Top: 1})),
			col.New(3).Add(text.New("Stock: "+d.Stock.StringFixed(entity.AmountScale), props.Text{Size: 8, Align: align.Right, Top: 1})),
			col.New(3).Add(text.New("Dif: "+d.Difference.StringFixed(entity.AmountScale), props.Text{
				Size: 8, Align: align.Right, Top: 1, Color: colorAlert,
			})),
		))
	}
	return out
}
