package workflow

import (
	"context"
	"fmt"

	"github.com/warepulse/stockwatch_backend/models"
	"github.com/xuri/excelize/v2"
)

// ExportActiveAlertsXLSX renders active alerts into a workbook. Gated by the
// EXPORT access level at the transport layer.
func ExportActiveAlertsXLSX(ctx context.Context, warehouseName string) (*excelize.File, error) {
	alerts, err := models.GetActiveAlerts(ctx, warehouseName)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet("Sheet1"); err != nil {
		return nil, err
	}

	// Add headers
	f.SetCellValue("Sheet1", "A1", "SKU")
	f.SetCellValue("Sheet1", "B1", "Warehouse")
	f.SetCellValue("Sheet1", "C1", "AlertType")
	f.SetCellValue("Sheet1", "D1", "Level")
	f.SetCellValue("Sheet1", "E1", "CurrentStock")
	f.SetCellValue("Sheet1", "F1", "DaysUntilStockout")
	f.SetCellValue("Sheet1", "G1", "Status")
	f.SetCellValue("Sheet1", "H1", "CreatedAt")
	f.SetCellValue("Sheet1", "I1", "Message")

	// Add data
	for i, a := range alerts {
		row := fmt.Sprint(i + 2)
		f.SetCellValue("Sheet1", "A"+row, a.Sku)
		f.SetCellValue("Sheet1", "B"+row, a.WarehouseName)
		f.SetCellValue("Sheet1", "C"+row, string(a.AlertType))
		f.SetCellValue("Sheet1", "D"+row, string(a.AlertLevel))
		f.SetCellValue("Sheet1", "E"+row, a.CurrentStock.String())
		if a.DaysUntilStockout != nil {
			f.SetCellValue("Sheet1", "F"+row, a.DaysUntilStockout.String())
		}
		f.SetCellValue("Sheet1", "G"+row, string(a.Status))
		f.SetCellValue("Sheet1", "H"+row, a.CreatedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue("Sheet1", "I"+row, a.Message)
	}

	return f, nil
}
