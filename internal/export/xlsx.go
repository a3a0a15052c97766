package export

import (
	"fmt"
	"io"
	"strings"

	"dogsitter/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

var headers = []string{
	"ID", "Owner ID", "Sitter ID", "Start", "End", "Days", "Animals", "Services", "Status", "Total", "Created At",
}

var colWidths = map[string]float64{
	"A": 8, "B": 10, "C": 10, "D": 12, "E": 12, "F": 6, "G": 35, "H": 30, "I": 12, "J": 12, "K": 18,
}

var statusColors = map[string]string{
	models.StatusPending:   "#FFEB9C",
	models.StatusConfirmed: "#C6EFCE",
	models.StatusCompleted: "#DDEBF7",
	models.StatusCancelled: "#FFC7CE",
}

// Filename is the attachment name for a period export.
func Filename(from, to models.Date) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", from, to)
}

// BookingsXLSX writes bookings of the period [from, to] as a workbook. The
// summary row totals revenue over bookings that are not cancelled.
func BookingsXLSX(w io.Writer, from, to models.Date, bookings []models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s", from, to))
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	_ = f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle)

	statusStyles := make(map[string]int, len(statusColors))
	for status, color := range statusColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("error creating style: %w", err)
		}
		statusStyles[status] = id
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	var revenue models.Money
	row := 3
	for i := range bookings {
		b := &bookings[i]
		values := []interface{}{
			b.ID,
			b.UserID,
			b.DogSitterID,
			b.StartDate.String(),
			b.EndDate.String(),
			b.Days(),
			animalNames(b.Animals),
			serviceNames(b.Services),
			b.Status,
			b.TotalPrice.Float64(),
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if style, ok := statusStyles[b.Status]; ok {
			statusCell := fmt.Sprintf("I%d", row)
			_ = f.SetCellStyle(sheetName, statusCell, statusCell, style)
		}
		totalCell := fmt.Sprintf("J%d", row)
		_ = f.SetCellStyle(sheetName, totalCell, totalCell, moneyStyle)

		if b.Status != models.StatusCancelled {
			revenue += b.TotalPrice
		}
		row++
	}

	summaryStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}
	_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), "Total revenue")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), revenue.Float64())
	_ = f.SetCellStyle(sheetName, fmt.Sprintf("I%d", row), fmt.Sprintf("J%d", row), summaryStyle)

	for col, width := range colWidths {
		_ = f.SetColWidth(sheetName, col, col, width)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func animalNames(animals []models.BookingAnimal) string {
	names := make([]string, 0, len(animals))
	for _, a := range animals {
		names = append(names, fmt.Sprintf("%s (%s)", a.Name, a.Size))
	}
	return strings.Join(names, ", ")
}

func serviceNames(services []models.Service) string {
	names := make([]string, 0, len(services))
	for _, s := range services {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}
