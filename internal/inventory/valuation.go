package inventory

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const valuationSheet = "Valuation"

// ExportValuation writes an xlsx stock valuation of every item to w.
func (s *Service) ExportValuation(ctx context.Context, w io.Writer) error {
	items, err := s.ListItems(ctx, ItemFilter{})
	if err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := fillValuation(f, valuationSheet, items); err != nil {
		return err
	}
	return f.Write(w)
}

// fillValuation renames the default sheet to sheet and writes items to it.
func fillValuation(f *excelize.File, sheet string, items []Item) error {
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	headers := []any{"Item", "Category", "Unit", "Qty", "Avg Cost", "Value"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	total := decimal.Zero
	for i, item := range items {
		value := item.Value()
		total = total.Add(value)
		row := []any{
			item.Name,
			item.Category,
			item.Unit,
			item.Qty.InexactFloat64(),
			item.AvgCost.InexactFloat64(),
			value.Round(2).InexactFloat64(),
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	totalRow := len(items) + 2
	if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", totalRow), "Total"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, fmt.Sprintf("F%d", totalRow), total.Round(2).InexactFloat64()); err != nil {
		return err
	}
	return nil
}
