// Package pipeline derives metadata, thumbnails and an optional caption for
// one uploaded image and drives its record through the status transitions.
// Process is the error boundary for a record: metadata or thumbnail failures
// land in the record's error field, EXIF and caption failures degrade to
// null, and nothing escapes to the worker loop except store-level errors.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"image-pipeline/internal/metrics"
	"image-pipeline/internal/models"
)

const (
	SmallSize  = 256
	MediumSize = 768
)

// Store is the subset of the record store the pipeline needs.
type Store interface {
	GetImage(ctx context.Context, id uuid.UUID) (*models.Image, error)
	UpdateImage(ctx context.Context, img *models.Image) error
}

// Captioner produces a short caption for an image file. An empty string
// means no caption is available; errors are never fatal to the record.
type Captioner interface {
	Caption(ctx context.Context, path string) (string, error)
}

type Processor struct {
	store       Store
	captioner   Captioner
	storagePath string
	log         *slog.Logger
}

func New(store Store, captioner Captioner, storagePath string, log *slog.Logger) *Processor {
	return &Processor{store: store, captioner: captioner, storagePath: storagePath, log: log}
}

// ThumbPath returns the deterministic destination for one rendition.
func (p *Processor) ThumbPath(size string, id uuid.UUID) string {
	return filepath.Join(p.storagePath, "thumbs", size, id.String()+".jpg")
}

// Process fetches the record, guards against re-entry, and runs the record
// through metadata extraction, thumbnailing and captioning. Records already
// past queued are left untouched.
func (p *Processor) Process(ctx context.Context, id uuid.UUID) error {
	const op = "pipeline.Process"

	img, err := p.store.GetImage(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	if img.Status != models.StatusQueued {
		return nil // already picked up or terminal
	}

	img.Status = models.StatusProcessing
	if err := p.store.UpdateImage(ctx, img); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	start := time.Now()

	meta, err := ExtractMetadata(img.OriginalPath)
	if err != nil {
		return p.fail(ctx, img, start, fmt.Sprintf("read image: %v", err))
	}
	format := meta.Format
	if format == "" {
		format = strings.TrimPrefix(img.Ext, ".")
	}
	format = strings.ToLower(format)
	img.Width = &meta.Width
	img.Height = &meta.Height
	img.Format = &format
	img.SizeBytes = &meta.SizeBytes
	img.EXIF = ExtractEXIF(img.OriginalPath)

	smallPath := p.ThumbPath("small", img.ID)
	mediumPath := p.ThumbPath("medium", img.ID)
	if _, _, err := MakeThumbnail(img.OriginalPath, smallPath, SmallSize); err != nil {
		return p.fail(ctx, img, start, fmt.Sprintf("generate small thumbnail: %v", err))
	}
	if _, _, err := MakeThumbnail(img.OriginalPath, mediumPath, MediumSize); err != nil {
		return p.fail(ctx, img, start, fmt.Sprintf("generate medium thumbnail: %v", err))
	}
	img.ThumbSmallPath = &smallPath
	img.ThumbMediumPath = &mediumPath

	if caption, err := p.captioner.Caption(ctx, img.OriginalPath); err != nil {
		p.log.Warn("caption unavailable", "id", img.ID, "err", err)
	} else if caption != "" {
		img.Caption = &caption
	}

	img.Status = models.StatusDone
	img.Error = nil
	p.stamp(img, start)
	if err := p.store.UpdateImage(ctx, img); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	metrics.ImagesProcessed.WithLabelValues(string(models.StatusDone)).Inc()
	metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	p.log.Info("processed image", "id", img.ID, "ms", *img.ProcessingMS)
	return nil
}

// fail records a terminal failure. Thumbnail paths stay nil so readers never
// see a partial rendition.
func (p *Processor) fail(ctx context.Context, img *models.Image, start time.Time, msg string) error {
	const op = "pipeline.fail"

	img.Status = models.StatusFailed
	img.Error = &msg
	img.ThumbSmallPath = nil
	img.ThumbMediumPath = nil
	p.stamp(img, start)
	if err := p.store.UpdateImage(ctx, img); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	metrics.ImagesProcessed.WithLabelValues(string(models.StatusFailed)).Inc()
	metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	p.log.Error("failed processing image", "id", img.ID, "err", msg)
	return nil
}

func (p *Processor) stamp(img *models.Image, start time.Time) {
	now := time.Now().UTC()
	elapsed := float64(time.Since(start).Nanoseconds()) / 1e6
	img.ProcessedAt = &now
	img.ProcessingMS = &elapsed
}
