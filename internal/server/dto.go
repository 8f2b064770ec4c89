package server

import (
	"time"

	"image-pipeline/internal/models"
)

type ThumbnailURLs struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
}

type UploadData struct {
	ImageID      string        `json:"image_id"`
	OriginalName string        `json:"original_name"`
	Status       models.Status `json:"status"`
	Thumbnails   ThumbnailURLs `json:"thumbnails"`
}

type UploadResponse struct {
	Status string     `json:"status"`
	Data   UploadData `json:"data"`
	Error  *string    `json:"error"`
}

type ListImageOut struct {
	ID           string        `json:"id"`
	OriginalName string        `json:"original_name"`
	Status       models.Status `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	ProcessedAt  *time.Time    `json:"processed_at"`
}

type ImageMetadata struct {
	Width     *int           `json:"width"`
	Height    *int           `json:"height"`
	Format    *string        `json:"format"`
	SizeBytes *int64         `json:"size_bytes"`
	EXIF      map[string]any `json:"exif"`
}

type ImageOut struct {
	ImageID      string        `json:"image_id"`
	OriginalName string        `json:"original_name"`
	ProcessedAt  *time.Time    `json:"processed_at"`
	Status       models.Status `json:"status"`
	Metadata     ImageMetadata `json:"metadata"`
	Thumbnails   ThumbnailURLs `json:"thumbnails"`
	Caption      *string       `json:"caption"`
	Error        *string       `json:"error"`
}

type StatsOut struct {
	Total               int64    `json:"total"`
	Done                int64    `json:"done"`
	Failed              int64    `json:"failed"`
	Processing          int64    `json:"processing"`
	Queued              int64    `json:"queued"`
	SuccessRate         float64  `json:"success_rate"`
	AverageProcessingMS *float64 `json:"average_processing_ms"`
}
