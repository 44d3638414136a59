package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"langarhall/internal/model"
	"langarhall/internal/provisioning"
)

// HistoryHeader returns the columns of a history export: snapshot fields,
// then one column per resource.
func HistoryHeader() []string {
	header := []string{"Timestamp", "Session", "Source", "Occupancy", "Capacity", "Exceeded"}
	for _, r := range provisioning.Resources {
		header = append(header, r.String())
	}
	return header
}

// WriteHistoryCSV writes stored snapshots, one per line, in the given order.
func WriteHistoryCSV(w io.Writer, records []model.OccupancyRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(HistoryHeader()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, rec := range records {
		line := []string{
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.SessionID,
			rec.Source,
			strconv.Itoa(rec.Occupancy),
			strconv.Itoa(rec.HallCapacity),
			strconv.FormatBool(rec.CapacityExceeded),
		}

		quantities := make(map[string]float64, len(rec.Resources))
		for _, q := range rec.Resources {
			quantities[q.Name] = q.Quantity
		}
		for _, r := range provisioning.Resources {
			line = append(line, FormatQuantity(quantities[r.String()]))
		}

		if err := writer.Write(line); err != nil {
			return fmt.Errorf("failed to write snapshot %d: %w", rec.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
