package film

import (
	"time"

	"github.com/google/uuid"
)

// Video statuses.
const (
	StatusPending  = "pending"
	StatusUploaded = "uploaded"
	StatusFailed   = "failed"
)

// Video represents a row in the videos table.
type Video struct {
	ID           uuid.UUID
	TeamID       uuid.UUID
	GameID       uuid.UUID
	Title        string
	CameraLane   int
	CameraLabel  string
	ObjectKey    string
	ContentType  string
	SizeBytes    int64
	DurationMs   int64
	SyncOffsetMs int64
	Status       string
	CreatedBy    *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpdateFields holds optional fields for a partial video update.
// Nil fields are not updated.
type UpdateFields struct {
	Title        *string
	CameraLane   *int
	CameraLabel  *string
	DurationMs   *int64
	SyncOffsetMs *int64
	Status       *string
	SizeBytes    *int64
}
