package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"langarhall/internal/provisioning"
)

// Header is the first row of every exported report.
var Header = []string{"Item", "Quantity"}

// FormatQuantity prints a quantity without trailing zeros (4, 0.8, 1.05).
func FormatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// WriteCSV writes the table as a two-column CSV: header, then one row per resource.
func WriteCSV(w io.Writer, table provisioning.Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range table.Rows() {
		if err := writer.Write([]string{row.Name, FormatQuantity(row.Quantity)}); err != nil {
			return fmt.Errorf("failed to write row %s: %w", row.Name, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// FileName returns the report file name for a given time.
func FileName(now time.Time) string {
	return fmt.Sprintf("food_report_%s.csv", now.Format("20060102_150405"))
}

// SaveCSV writes the report into dir and returns the file path.
func SaveCSV(dir string, table provisioning.Table, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, FileName(now))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	defer file.Close()

	if err := WriteCSV(file, table); err != nil {
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close report: %w", err)
	}
	return path, nil
}
