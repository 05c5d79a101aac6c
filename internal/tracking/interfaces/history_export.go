package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	tracking "fleettrack-harvest/internal/tracking/domain"
)

// BuildHistoryPDF renders a minimal PDF for a device's point history.
func BuildHistoryPDF(device *tracking.Device, points []tracking.LoggedPoint) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Device Point History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", device.ExternalID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Registration: %s", device.Registration))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Source: %s", device.SourceType))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Last Seen: %s", device.Seen.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Points: %d", len(points)))
	pdf.Ln(8)

	// Points table
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(42, 6, "Seen", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Longitude", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Latitude", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Heading", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Velocity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Altitude", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, point := range points {
		pdf.CellFormat(42, 6, point.Seen.Format("2006-01-02 15:04:05"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.6f", point.Point.Longitude), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.6f", point.Point.Latitude), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.1f", point.Heading), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.1f", point.Velocity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.1f", point.Altitude), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders a minimal XLSX for a device's point history.
func BuildHistoryXLSX(device *tracking.Device, points []tracking.LoggedPoint) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	pointsSheet := "points"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(pointsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Device Point History")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", device.ExternalID)
	_ = f.SetCellValue(summarySheet, "A4", "Registration")
	_ = f.SetCellValue(summarySheet, "B4", device.Registration)
	_ = f.SetCellValue(summarySheet, "A5", "Source")
	_ = f.SetCellValue(summarySheet, "B5", device.SourceType)
	_ = f.SetCellValue(summarySheet, "A6", "Last Seen")
	_ = f.SetCellValue(summarySheet, "B6", device.Seen.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A7", "Points")
	_ = f.SetCellValue(summarySheet, "B7", len(points))

	_ = f.SetCellValue(pointsSheet, "A1", "Seen")
	_ = f.SetCellValue(pointsSheet, "B1", "Longitude")
	_ = f.SetCellValue(pointsSheet, "C1", "Latitude")
	_ = f.SetCellValue(pointsSheet, "D1", "Heading")
	_ = f.SetCellValue(pointsSheet, "E1", "Velocity")
	_ = f.SetCellValue(pointsSheet, "F1", "Altitude")
	_ = f.SetCellValue(pointsSheet, "G1", "Raw")
	for i, point := range points {
		row := i + 2
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("A%d", row), point.Seen.Format(time.RFC3339))
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("B%d", row), point.Point.Longitude)
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("C%d", row), point.Point.Latitude)
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("D%d", row), point.Heading)
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("E%d", row), point.Velocity)
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("F%d", row), point.Altitude)
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("G%d", row), point.Raw)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
