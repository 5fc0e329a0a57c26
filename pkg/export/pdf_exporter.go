package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Orientation values accepted by NewPDFExporter.
const (
	Portrait  = "P"
	Landscape = "L"
)

// PDFExporter renders datasets into a tabular PDF.
type PDFExporter struct {
	orientation string
}

// NewPDFExporter constructs a PDF exporter. An unknown orientation falls back to portrait.
func NewPDFExporter(orientation string) *PDFExporter {
	if orientation != Landscape {
		orientation = Portrait
	}
	return &PDFExporter{orientation: orientation}
}

// Render creates a PDF document with the dataset title, subtitle and table body.
// The first column is treated as the row label and kept narrower than the rest.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New(e.orientation, "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageWidth - left - right

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 9, strings.ToUpper(data.Title), "", 1, "C", false, 0, "")
	}
	if data.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, data.Subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	widths := columnWidths(usable, len(data.Headers))

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	for idx, row := range data.Rows {
		if data.Emphasis[idx] {
			pdf.SetFont("Arial", "I", 8)
			pdf.SetFillColor(245, 245, 245)
			pdf.CellFormat(widths[0], 7, row[data.Headers[0]], "1", 0, "", true, 0, "")
			pdf.CellFormat(usable-widths[0], 7, row[data.Headers[1%len(data.Headers)]], "1", 0, "C", true, 0, "")
			pdf.Ln(-1)
			continue
		}

		pdf.SetFont("Arial", "", 8)
		lines := 1
		for _, header := range data.Headers {
			if n := strings.Count(row[header], "\n") + 1; n > lines {
				lines = n
			}
		}
		height := 4.5 * float64(lines)
		x, y := pdf.GetXY()
		for i, header := range data.Headers {
			pdf.Rect(x, y, widths[i], height, "D")
			pdf.MultiCell(widths[i], 4.5, row[header], "", "L", false)
			x += widths[i]
			pdf.SetXY(x, y)
		}
		pdf.SetXY(left, y+height)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(usable float64, columns int) []float64 {
	widths := make([]float64, columns)
	if columns == 1 {
		widths[0] = usable
		return widths
	}
	label := usable * 0.14
	rest := (usable - label) / float64(columns-1)
	widths[0] = label
	for i := 1; i < columns; i++ {
		widths[i] = rest
	}
	return widths
}
