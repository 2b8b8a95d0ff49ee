package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"homeserve/internal/models"

	"github.com/xuri/excelize/v2"
)

var reportColumns = []string{"Booking ID", "Customer", "Provider", "Service", "Status", "Date", "Slot", "Address", "Total"}

// WriteExcelReport создает Excel файл с бронированиями за период
func WriteExcelReport(exportPath string, bookings []*models.Booking, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(exportPath, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	// Заголовок периода
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for i, col := range reportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, col)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 3
	for _, b := range bookings {
		providerID := int64(0)
		if b.ProviderID != nil {
			providerID = *b.ProviderID
		}
		cells := []interface{}{
			b.BookingID,
			b.CustomerID,
			providerID,
			b.ServiceName,
			b.Status,
			b.ScheduledDate.Format("02.01.2006"),
			fmt.Sprintf("%s-%s", b.TimeSlot.Start, b.TimeSlot.End),
			b.ServiceAddress,
			b.Pricing.Total,
		}
		for i, v := range cells {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		row++
	}

	_ = f.SetColWidth(sheetName, "A", "A", 16)
	_ = f.SetColWidth(sheetName, "D", "E", 22)
	_ = f.SetColWidth(sheetName, "H", "H", 32)

	lastCol, _ := excelize.ColumnNumberToName(len(reportColumns))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"))
	filePath := filepath.Join(exportPath, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	return filePath, nil
}
