// Package report renders persisted estimates as PDF proposal sheets and
// XLSX history exports.
package report

import (
	"fmt"
	"io"

	"github.com/phpdave11/gofpdf"

	"github.com/Simplici0/slabquote/internal/records"
)

// WritePDF renders rec as a one-page proposal sheet. proposal may be empty.
func WritePDF(w io.Writer, rec records.Record, proposal string) error {
	est := rec.Estimate

	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle("Concrete Slab Estimate", false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Concrete Slab Estimate")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	if rec.ClientName != nil && *rec.ClientName != "" {
		pdf.Cell(0, 6, tr(fmt.Sprintf("Client: %s", *rec.ClientName)))
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Estimate: %s", rec.ID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", rec.CreatedAt.Format("2006-01-02")))
	pdf.Ln(10)

	section(pdf, "Slab")
	row(pdf, "Dimensions", fmt.Sprintf("%.2f ft x %.2f ft", est.Inputs.WidthFt, est.Inputs.LengthFt))
	row(pdf, "Area", fmt.Sprintf("%.2f sq ft", est.Inputs.AreaSqft))
	row(pdf, "Thickness", fmt.Sprintf("%.2f in", est.Inputs.ThicknessIn))
	row(pdf, "Concrete volume", fmt.Sprintf("%.3f cu yd", est.Inputs.VolumeCY))
	pdf.Ln(4)

	section(pdf, "Line items")
	row(pdf, "Concrete", money(est.LineItems.ConcreteCost))
	row(pdf, "Rebar", money(est.LineItems.RebarCost))
	row(pdf, "Forms", money(est.LineItems.FormsCost))
	if est.LineItems.OtherMaterials != 0 {
		row(pdf, "Other materials", money(est.LineItems.OtherMaterials))
	}
	row(pdf, fmt.Sprintf("Labor (%.2f h)", est.LineItems.LaborHours), money(est.LineItems.LaborCost))
	if est.Params.Tearout {
		row(pdf, "Tear-out", money(est.LineItems.TearoutCost))
	}
	pdf.Ln(4)

	section(pdf, "Summary")
	row(pdf, "Subtotal", money(est.Summary.Subtotal))
	row(pdf, fmt.Sprintf("Overhead (%.1f%%)", est.Params.OverheadPct*100), money(est.Summary.Overhead))
	row(pdf, fmt.Sprintf("Profit (%.1f%%)", est.Params.ProfitPct*100), money(est.Summary.Profit))
	pdf.SetFont("Helvetica", "B", 11)
	row(pdf, "Total", money(est.Summary.Total))

	if proposal != "" {
		pdf.Ln(6)
		section(pdf, "Proposal")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(proposal), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, title)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
}

func row(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(90, 6, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, value, "", 1, "R", false, 0, "")
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
