// Package report renders the orders of an agency as an Excel workbook.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/xuri/excelize/v2"
)

// ErrNoOrders is returned when a report is requested for an empty period.
var ErrNoOrders = errors.New("failed to generate report, 0 orders were provided")

const (
	dateLayout  = "02.01.2006 15:04"
	headerIndex = 2
	lastColumn  = "G"
	otherSheet  = "other"
)

var headers = []string{"Order ID", "Created At", "Received At", "Client", "Phone", "Total", "Notes"}

// sheetOrder fixes the order of the sheets in the workbook.
var sheetOrder = []models.OrderStatus{
	models.StatusSent,
	models.StatusReceived,
	models.StatusInProgress,
	models.StatusReady,
	models.StatusDelivered,
	models.StatusCancelled,
}

// Generator holds the state for the Excel report generation process.
type Generator struct {
	file *excelize.File
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		file: excelize.NewFile(),
	}
}

// GenerateOrdersReport builds a workbook with one sheet per order status.
// Each sheet holds a header row and a styled table of the orders in that status.
func GenerateOrdersReport(rows []models.AgencyOrderRow) (*bytes.Buffer, error) {
	var err error

	if len(rows) == 0 {
		return nil, ErrNoOrders
	}

	rowsByStatus := make(map[models.OrderStatus][]models.AgencyOrderRow)
	var otherRows []models.AgencyOrderRow
	for _, row := range rows {
		if !slices.Contains(sheetOrder, row.Status) {
			otherRows = append(otherRows, row)
			continue
		}
		rowsByStatus[row.Status] = append(rowsByStatus[row.Status], row)
	}

	gen := NewGenerator()
	defer gen.file.Close()

	for _, status := range sheetOrder {
		if len(rowsByStatus[status]) == 0 {
			continue
		}
		if err = gen.addSheet(string(status), rowsByStatus[status]); err != nil {
			return nil, err
		}
	}
	if len(otherRows) > 0 {
		if err = gen.addSheet(otherSheet, otherRows); err != nil {
			return nil, err
		}
	}

	// the default sheet goes once the status sheets exist
	if err = gen.file.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet 'Sheet1': %w", err)
	}
	gen.file.SetActiveSheet(0)

	buffer, err := gen.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write data from saved file: %w", err)
	}

	return buffer, nil
}

func (g *Generator) addSheet(sheetName string, rows []models.AgencyOrderRow) error {
	var err error

	if _, err = g.file.NewSheet(sheetName); err != nil {
		return fmt.Errorf("failed to generate new sheet '%s': %w", sheetName, err)
	}

	if err = g.setupSheet(sheetName, len(rows)); err != nil {
		return fmt.Errorf("failed to setup sheet '%s': %w", sheetName, err)
	}

	for i, row := range rows {
		if err = g.addRow(sheetName, i+headerIndex, row); err != nil {
			return fmt.Errorf("failed to add row '%d': %w", i+headerIndex, err)
		}
	}

	return nil
}

// setupSheet writes the styled header row, sets column widths and adds a
// table covering rowCount data rows.
func (g *Generator) setupSheet(sheetName string, rowCount int) error {
	headerStyle, err := g.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#F5A623"}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center", Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create new style: %w", err)
	}

	rowHeight := 20
	if err = g.file.SetRowHeight(sheetName, 1, float64(rowHeight)); err != nil {
		return fmt.Errorf("failed to set row height for headers: %w", err)
	}
	if err = g.file.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to set sheet row for headers: %w", err)
	}
	if err = g.file.SetCellStyle(sheetName, "A1", lastColumn+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set cell style for headers: %w", err)
	}

	widths := map[string]float64{
		"A": 12, "B": 18, "C": 18, "D": 30, "E": 16, "F": 14, "G": 40, //nolint:mnd // column widths
	}
	for col, width := range widths {
		if err = g.file.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if err = g.file.AddTable(sheetName, &excelize.Table{
		Range:     fmt.Sprintf("A1:%s%d", lastColumn, rowCount+1),
		Name:      "table_" + sheetName,
		StyleName: "TableStyleMedium9",
	}); err != nil {
		return fmt.Errorf("failed to add table: %w", err)
	}

	return nil
}

func (g *Generator) addRow(sheetName string, rowNum int, row models.AgencyOrderRow) error {
	receivedAt := ""
	if row.ReceivedAt != nil {
		receivedAt = row.ReceivedAt.Format(dateLayout)
	}

	rowData := []interface{}{
		row.OrderID,
		row.CreatedAt.Format(dateLayout),
		receivedAt,
		row.ClientName,
		row.ClientPhone,
		row.Total,
		row.Notes,
	}
	cell, _ := excelize.CoordinatesToCellName(1, rowNum)

	if err := g.file.SetSheetRow(sheetName, cell, &rowData); err != nil {
		return fmt.Errorf("failed to set sheet row: %w", err)
	}

	return nil
}
