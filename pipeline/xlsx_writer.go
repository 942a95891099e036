package pipeline

import (
	"fmt"
	"os"
	"sync"

	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/xuri/excelize/v2"
)

// XLSXSheet is the worksheet name used for exports.
const XLSXSheet = "Products"

// XLSXWriter keeps listings in a workbook and saves it after every batch.
// Numeric prices are stored as numbers.
type XLSXWriter struct {
	filename string
	file     *excelize.File
	nextRow  int
	mu       sync.Mutex
}

// NewXLSXWriter creates the workbook with a header row.
func NewXLSXWriter(filename string) (*XLSXWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), XLSXSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename worksheet: %w", err)
	}

	header := make([]interface{}, len(models.Header))
	for i, h := range models.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(XLSXSheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	if err := f.SetPanes(XLSXSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freeze xlsx header: %w", err)
	}
	if err := f.SaveAs(filename); err != nil {
		f.Close()
		return nil, fmt.Errorf("save xlsx file: %w", err)
	}

	return &XLSXWriter{
		filename: filename,
		file:     f,
		nextRow:  2,
	}, nil
}

// Write appends listings and saves the workbook.
func (xw *XLSXWriter) Write(listings []*models.Listing) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	for _, l := range listings {
		cell, err := excelize.CoordinatesToCellName(1, xw.nextRow)
		if err != nil {
			return fmt.Errorf("xlsx cell name: %w", err)
		}
		row := xlsxRow(l)
		if err := xw.file.SetSheetRow(XLSXSheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", xw.nextRow, err)
		}
		xw.nextRow++
	}
	if err := xw.file.SaveAs(xw.filename); err != nil {
		return fmt.Errorf("save xlsx file: %w", err)
	}
	return nil
}

func xlsxRow(l *models.Listing) []interface{} {
	values := l.Row()
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	row[0] = l.Record.SerialNo
	if l.Price.Kind == models.PriceAmount {
		row[4] = l.Price.Amount
	}
	return row
}

// Close releases the workbook.
func (xw *XLSXWriter) Close() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()
	return xw.file.Close()
}

// Validate ensures the workbook was saved.
func (xw *XLSXWriter) Validate() error {
	info, err := os.Stat(xw.filename)
	if err != nil {
		return fmt.Errorf("stat xlsx file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("xlsx file is empty")
	}
	return nil
}
