package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/slabquote/internal/records"
)

const historySheet = "Estimates"

var historyHeader = []any{
	"ID", "Created", "Client", "Width (ft)", "Length (ft)", "Area (sq ft)", "Thickness (in)",
	"Volume (cy)", "Concrete", "Rebar", "Forms", "Other materials", "Labor hours", "Labor",
	"Tear-out", "Subtotal", "Overhead", "Profit", "Total",
}

// WriteXLSX writes recs, one per row in the given order, as a workbook.
func WriteXLSX(w io.Writer, recs []records.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(historySheet, "A1", &historyHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range recs {
		est := rec.Estimate
		client := ""
		if rec.ClientName != nil {
			client = *rec.ClientName
		}

		values := []any{
			rec.ID,
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			client,
			est.Inputs.WidthFt,
			est.Inputs.LengthFt,
			est.Inputs.AreaSqft,
			est.Inputs.ThicknessIn,
			est.Inputs.VolumeCY,
			est.LineItems.ConcreteCost,
			est.LineItems.RebarCost,
			est.LineItems.FormsCost,
			est.LineItems.OtherMaterials,
			est.LineItems.LaborHours,
			est.LineItems.LaborCost,
			est.LineItems.TearoutCost,
			est.Summary.Subtotal,
			est.Summary.Overhead,
			est.Summary.Profit,
			est.Summary.Total,
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name for row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(historySheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(historySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
