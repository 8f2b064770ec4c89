// internal/storage/storage.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"image-pipeline/internal/models"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("image not found")

type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewStorage(dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

const imageColumns = `id, original_name, content_type, ext, status, original_path,
	width, height, format, size_bytes, exif, caption,
	thumb_small_path, thumb_medium_path, created_at, processed_at, processing_ms, error`

func (s *Storage) SaveImage(ctx context.Context, img *models.Image) error {
	const op = "storage.SaveImage"

	exifJSON, err := marshalEXIF(img.EXIF)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO images (id, original_name, content_type, ext, status, original_path,
			width, height, format, size_bytes, exif, caption,
			thumb_small_path, thumb_medium_path, processed_at, processing_ms, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at`,
		img.ID, img.OriginalName, img.ContentType, img.Ext, img.Status, img.OriginalPath,
		img.Width, img.Height, img.Format, img.SizeBytes, exifJSON, img.Caption,
		img.ThumbSmallPath, img.ThumbMediumPath, img.ProcessedAt, img.ProcessingMS, img.Error).
		Scan(&img.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) GetImage(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	const op = "storage.GetImage"

	row := s.pool.QueryRow(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = $1`, id)
	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return img, nil
}

// UpdateImage rewrites every mutable field of the record. created_at and the
// identity columns never change after SaveImage.
func (s *Storage) UpdateImage(ctx context.Context, img *models.Image) error {
	const op = "storage.UpdateImage"

	exifJSON, err := marshalEXIF(img.EXIF)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE images SET status = $2, width = $3, height = $4, format = $5, size_bytes = $6,
			exif = $7, caption = $8, thumb_small_path = $9, thumb_medium_path = $10,
			processed_at = $11, processing_ms = $12, error = $13
		WHERE id = $1`,
		img.ID, img.Status, img.Width, img.Height, img.Format, img.SizeBytes,
		exifJSON, img.Caption, img.ThumbSmallPath, img.ThumbMediumPath,
		img.ProcessedAt, img.ProcessingMS, img.Error)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	return nil
}

func (s *Storage) ListImages(ctx context.Context) ([]models.Image, error) {
	const op = "storage.ListImages"

	rows, err := s.pool.Query(ctx,
		`SELECT `+imageColumns+` FROM images ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return images, nil
}

func (s *Storage) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	const op = "storage.CountByStatus"

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM images GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int64)
	for rows.Next() {
		var status models.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return counts, nil
}

// AverageProcessingMS returns nil when no record has been processed yet.
func (s *Storage) AverageProcessingMS(ctx context.Context) (*float64, error) {
	const op = "storage.AverageProcessingMS"

	var avg *float64
	err := s.pool.QueryRow(ctx,
		`SELECT AVG(processing_ms) FROM images WHERE processing_ms IS NOT NULL`).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return avg, nil
}

func marshalEXIF(exif map[string]any) ([]byte, error) {
	if exif == nil {
		return nil, nil
	}
	return json.Marshal(exif)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*models.Image, error) {
	var img models.Image
	var exifJSON []byte
	err := row.Scan(&img.ID, &img.OriginalName, &img.ContentType, &img.Ext, &img.Status, &img.OriginalPath,
		&img.Width, &img.Height, &img.Format, &img.SizeBytes, &exifJSON, &img.Caption,
		&img.ThumbSmallPath, &img.ThumbMediumPath, &img.CreatedAt, &img.ProcessedAt, &img.ProcessingMS, &img.Error)
	if err != nil {
		return nil, err
	}
	if len(exifJSON) > 0 {
		if err := json.Unmarshal(exifJSON, &img.EXIF); err != nil {
			return nil, err
		}
	}
	return &img, nil
}
