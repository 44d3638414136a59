package dto

import (
	"encoding/base64"
	"time"

	"langarhall/internal/occupancy"
	"langarhall/internal/provisioning"
)

// Message types sent to dashboard viewers.
const (
	TypeFrame     = "frame"
	TypeOccupancy = "occupancy"
)

// FrameMessage carries one annotated camera frame.
type FrameMessage struct {
	Type   string `json:"type"`
	Camera string `json:"camera"`
	Image  string `json:"image"` // base64 JPEG
}

// OccupancyData is the dashboard view of a snapshot.
type OccupancyData struct {
	Type             string             `json:"type"`
	SessionID        string             `json:"session_id"`
	Source           string             `json:"source"`
	Committed        bool               `json:"committed"`
	Occupancy        int                `json:"occupancy"`
	HallCapacity     int                `json:"hall_capacity"`
	CapacityExceeded bool               `json:"capacity_exceeded"`
	Window           []int              `json:"window"`
	Timestamp        *time.Time         `json:"timestamp,omitempty"`
	Resources        []provisioning.Row `json:"resources"`
}

func NewFrameMessage(camera string, jpeg []byte) FrameMessage {
	return FrameMessage{
		Type:   TypeFrame,
		Camera: camera,
		Image:  base64.StdEncoding.EncodeToString(jpeg),
	}
}

// NewOccupancyData builds the dashboard payload. committed is false for the
// zeroed view shown before the first commit or after a reset.
func NewOccupancyData(sessionID, source string, snap occupancy.Snapshot, committed bool) OccupancyData {
	data := OccupancyData{
		Type:             TypeOccupancy,
		SessionID:        sessionID,
		Source:           source,
		Committed:        committed,
		Occupancy:        snap.Occupancy,
		HallCapacity:     snap.HallCapacity,
		CapacityExceeded: snap.CapacityExceeded,
		Window:           snap.Window,
		Resources:        snap.Resources.Rows(),
	}
	if data.Window == nil {
		data.Window = []int{}
	}
	if committed {
		ts := snap.Timestamp
		data.Timestamp = &ts
	}
	return data
}
