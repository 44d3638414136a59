package repository

import (
	"langarhall/internal/model"
)

// SnapshotRepository defines the interface for occupancy history operations.
type SnapshotRepository interface {
	// Create operations
	Insert(rec *model.OccupancyRecord) (int64, error)

	// Read operations
	GetByID(id int64) (*model.OccupancyRecord, error)
	GetLatest() (*model.OccupancyRecord, error)
	GetAll(filter *model.OccupancyFilter) ([]model.OccupancyRecord, error)
	Count() (int, error)

	// Delete operations
	DeleteAll() error
}
