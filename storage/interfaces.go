package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"maps-scraper/models"
)

// RecordWriter is the interface any export backend must satisfy.
type RecordWriter interface {
	WriteRecords(records []models.ListingRecord) error
	Close() error
}

// Discarder is implemented by file writers that can abandon a partial
// export, leaving nothing at the output path.
type Discarder interface {
	Discard() error
}

// NewExporter returns the file writer matching the extension of path:
// .csv writes CSV and .xlsx writes a workbook.
func NewExporter(path string) (RecordWriter, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return NewCSVWriter(path)
	case ".xlsx":
		return NewXLSXWriter(path)
	default:
		return nil, fmt.Errorf("storage: unsupported export format %q", ext)
	}
}
