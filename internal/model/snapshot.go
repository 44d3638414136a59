package model

import "time"

// ResourceQuantity is one stored line of a snapshot's resource table.
type ResourceQuantity struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

// OccupancyRecord represents a committed occupancy snapshot stored in the database.
type OccupancyRecord struct {
	ID               int64              `json:"id"`
	SessionID        string             `json:"session_id"`
	Source           string             `json:"source"`
	Occupancy        int                `json:"occupancy"`
	HallCapacity     int                `json:"hall_capacity"`
	CapacityExceeded bool               `json:"capacity_exceeded"`
	Timestamp        time.Time          `json:"timestamp"`
	Resources        []ResourceQuantity `json:"resources"`
}

// OccupancyFilter contains filtering options for querying snapshots.
type OccupancyFilter struct {
	SessionID    string
	Source       string
	Since        time.Time
	ExceededOnly bool
	Limit        int
}
