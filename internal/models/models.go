// internal/models/image.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an image record.
// Transitions are one-directional: queued -> processing -> done|failed.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions may occur.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Image is the persisted record for one uploaded image. Result fields stay
// nil until the pipeline reaches a terminal state; Error is nil unless the
// record failed. Only the pipeline mutates a record after creation.
type Image struct {
	ID           uuid.UUID `db:"id"`
	OriginalName string    `db:"original_name"`
	ContentType  string    `db:"content_type"`
	Ext          string    `db:"ext"`
	Status       Status    `db:"status"`
	OriginalPath string    `db:"original_path"`

	Width     *int    `db:"width"`
	Height    *int    `db:"height"`
	Format    *string `db:"format"`
	SizeBytes *int64  `db:"size_bytes"`

	EXIF    map[string]any `db:"exif"`
	Caption *string        `db:"caption"`

	ThumbSmallPath  *string `db:"thumb_small_path"`
	ThumbMediumPath *string `db:"thumb_medium_path"`

	CreatedAt    time.Time  `db:"created_at"`
	ProcessedAt  *time.Time `db:"processed_at"`
	ProcessingMS *float64   `db:"processing_ms"`
	Error        *string    `db:"error"`
}
