package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const valuationSheet = "Valuation"

var valuationHeadings = []string{"SKU", "Name", "Type", "Unit", "Quantity", "Reserved", "Average Cost", "Total Value", "Below Min Stock"}

func (r InventoryValuationRow) GetCellValues() []interface{} {
	return []interface{}{
		r.Sku,
		r.Name,
		string(r.ItemType),
		r.Unit,
		r.Quantity.InexactFloat64(),
		r.Reserved.InexactFloat64(),
		r.AverageCost.InexactFloat64(),
		r.TotalValue.InexactFloat64(),
		r.BelowMinStock,
	}
}

// WriteInventoryValuationExcel writes the report as an xlsx workbook with one row per item
// followed by the per-type subtotals and the grand total.
func WriteInventoryValuationExcel(w io.Writer, report *InventoryValuationReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", valuationSheet); err != nil {
		return err
	}
	for i, h := range valuationHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(valuationSheet, cell, h); err != nil {
			return err
		}
	}

	rowNo := 2
	for _, row := range report.Rows {
		if err := setRow(f, rowNo, row.GetCellValues()); err != nil {
			return err
		}
		rowNo++
	}

	rowNo++
	for _, sub := range report.Subtotals {
		if err := setRow(f, rowNo, []interface{}{"", "Subtotal", string(sub.ItemType), "",
			sub.Quantity.InexactFloat64(), "", "", sub.TotalValue.InexactFloat64()}); err != nil {
			return err
		}
		rowNo++
	}
	if err := setRow(f, rowNo, []interface{}{"", "Total", "", "", "", "", "", report.TotalValue.InexactFloat64()}); err != nil {
		return err
	}

	return f.Write(w)
}

func setRow(f *excelize.File, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(valuationSheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", rowNo, err)
	}
	return nil
}
