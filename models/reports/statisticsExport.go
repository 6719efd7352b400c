package reports

import (
	"context"
	"fmt"
	"net/http"

	"bitbucket.org/mmdatafocus/stockflow_backend/models"
	"github.com/xuri/excelize/v2"
)

// ExportDailyStatistics writes the last `days` daily rows as an xlsx sheet.
func ExportDailyStatistics(ctx context.Context, days int) (*excelize.File, error) {
	stats, err := models.GetStatisticsRange(ctx, days)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Sheet1"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Date", "Sales", "DirectSales", "CustomerOrders", "SupplierOrders",
		"TotalRevenue", "DirectSaleRevenue", "CustomerOrderRevenue",
		"NewCustomers", "NewSuppliers", "ActiveProducts", "OutOfStock",
		"LowStock", "StockMovements", "ActiveUsers",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, s := range stats {
		values := []interface{}{
			s.Date.Format("2006-01-02"),
			s.SaleCount,
			s.DirectSaleCount,
			s.CustomerOrderCount,
			s.SupplierOrderCount,
			s.TotalRevenue.StringFixed(2),
			s.DirectSaleRevenue.StringFixed(2),
			s.CustomerOrderRevenue.StringFixed(2),
			s.NewCustomerCount,
			s.NewSupplierCount,
			s.ActiveProductCount,
			s.OutOfStockCount,
			s.LowStockCount,
			s.StockMovementCount,
			s.ActiveUserCount,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	return f, nil
}

// WriteDailyStatisticsExcel streams the export as an attachment.
func WriteDailyStatisticsExcel(ctx context.Context, w http.ResponseWriter, days int) error {
	f, err := ExportDailyStatistics(ctx, days)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=daily-statistics-%ddays.xlsx", days))
	return f.Write(w)
}
