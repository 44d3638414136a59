package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"langarhall/internal/model"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert stores a snapshot and its resource table in a single transaction.
func (r *SnapshotRepository) Insert(rec *model.OccupancyRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO snapshots (session_id, source, occupancy, hall_capacity, capacity_exceeded, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.SessionID, rec.Source, rec.Occupancy, rec.HallCapacity, rec.CapacityExceeded, rec.Timestamp.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO snapshot_resources (snapshot_id, position, name, quantity)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, res := range rec.Resources {
		if _, err := stmt.Exec(id, i, res.Name, res.Quantity); err != nil {
			return 0, fmt.Errorf("failed to insert resource %s: %w", res.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return id, nil
}

// GetByID retrieves a snapshot by its ID. It returns nil when absent.
func (r *SnapshotRepository) GetByID(id int64) (*model.OccupancyRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.getOne(`WHERE id = ?`, id)
}

// GetLatest retrieves the most recent snapshot. It returns nil when the table is empty.
func (r *SnapshotRepository) GetLatest() (*model.OccupancyRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.getOne(`ORDER BY timestamp DESC, id DESC LIMIT 1`)
}

func (r *SnapshotRepository) getOne(clause string, args ...interface{}) (*model.OccupancyRecord, error) {
	var rec model.OccupancyRecord
	err := r.db.Conn().QueryRow(`
		SELECT id, session_id, source, occupancy, hall_capacity, capacity_exceeded, timestamp
		FROM snapshots `+clause, args...).Scan(
		&rec.ID, &rec.SessionID, &rec.Source, &rec.Occupancy, &rec.HallCapacity, &rec.CapacityExceeded, &rec.Timestamp)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	records := []model.OccupancyRecord{rec}
	if err := r.loadResources(records); err != nil {
		return nil, err
	}
	return &records[0], nil
}

// GetAll retrieves snapshots matching the filter, newest first.
func (r *SnapshotRepository) GetAll(filter *model.OccupancyFilter) ([]model.OccupancyRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, session_id, source, occupancy, hall_capacity, capacity_exceeded, timestamp
		FROM snapshots
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}

	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}

	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UTC())
	}

	if filter.ExceededOnly {
		query += " AND capacity_exceeded = 1"
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	var records []model.OccupancyRecord
	for rows.Next() {
		var rec model.OccupancyRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Source, &rec.Occupancy, &rec.HallCapacity, &rec.CapacityExceeded, &rec.Timestamp); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		records = append(records, rec)
	}
	// single connection: rows must be released before loading resources
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	if err := r.loadResources(records); err != nil {
		return nil, err
	}
	return records, nil
}

// resourceBatchSize keeps each IN list well below SQLite's bind variable limit.
const resourceBatchSize = 500

// loadResources fills the resource table of each record. Callers hold the read lock.
func (r *SnapshotRepository) loadResources(records []model.OccupancyRecord) error {
	index := make(map[int64]int, len(records))
	for i, rec := range records {
		index[rec.ID] = i
	}

	for start := 0; start < len(records); start += resourceBatchSize {
		end := start + resourceBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := r.loadResourceBatch(records[start:end], records, index); err != nil {
			return err
		}
	}
	return nil
}

func (r *SnapshotRepository) loadResourceBatch(batch, records []model.OccupancyRecord, index map[int64]int) error {
	placeholders := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch))
	for _, rec := range batch {
		placeholders = append(placeholders, "?")
		args = append(args, rec.ID)
	}

	rows, err := r.db.Conn().Query(`
		SELECT snapshot_id, name, quantity
		FROM snapshot_resources
		WHERE snapshot_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY snapshot_id, position
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var snapshotID int64
		var res model.ResourceQuantity
		if err := rows.Scan(&snapshotID, &res.Name, &res.Quantity); err != nil {
			return fmt.Errorf("failed to scan resource: %w", err)
		}
		i := index[snapshotID]
		records[i].Resources = append(records[i].Resources, res)
	}
	return rows.Err()
}

// Count returns the number of stored snapshots.
func (r *SnapshotRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// DeleteAll removes every snapshot and its resources.
func (r *SnapshotRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}
