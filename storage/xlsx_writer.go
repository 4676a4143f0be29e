package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"maps-scraper/models"
)

const xlsxColumnWidth = 32

// XLSXWriter collects listing records into a single-sheet workbook that is
// saved to disk on Close.
type XLSXWriter struct {
	mu    sync.Mutex
	path  string
	file  *excelize.File
	sheet string
	next  int // next data row, 1-based
}

// NewXLSXWriter prepares a workbook with the header row. Intermediate
// directories of path are created automatically.
func NewXLSXWriter(path string) (*XLSXWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("xlsx: create output dir: %w", err)
	}

	f := excelize.NewFile()
	x := &XLSXWriter{path: path, file: f, sheet: f.GetSheetName(0), next: 2}

	if err := x.writeRow(1, models.ExportColumns); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx: write header: %w", err)
	}
	for i := 1; i <= len(models.ExportColumns); i++ {
		col, err := excelize.ColumnNumberToName(i)
		if err != nil {
			continue
		}
		_ = f.SetColWidth(x.sheet, col, col, xlsxColumnWidth)
	}
	return x, nil
}

func (x *XLSXWriter) writeRow(row int, values []string) error {
	for c, v := range values {
		cell, err := excelize.CoordinatesToCellName(c+1, row)
		if err != nil {
			return err
		}
		if err := x.file.SetCellValue(x.sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

// WriteRecords appends one row per record, in order.
func (x *XLSXWriter) WriteRecords(records []models.ListingRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, r := range records {
		if err := x.writeRow(x.next, r.Row()); err != nil {
			return fmt.Errorf("xlsx: write row %d: %w", x.next, err)
		}
		x.next++
	}
	return nil
}

// Discard releases the workbook without saving it.
func (x *XLSXWriter) Discard() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.file.Close()
}

// Close saves the workbook to its path and releases it.
func (x *XLSXWriter) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.file.SaveAs(x.path); err != nil {
		_ = x.file.Close()
		return fmt.Errorf("xlsx: save %q: %w", x.path, err)
	}
	return x.file.Close()
}
