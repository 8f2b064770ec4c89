package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"image-pipeline/internal/metrics"
	"image-pipeline/internal/models"
	"image-pipeline/internal/storage"
)

const maxUploadSize = 10 << 20 // 10 MiB

var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// Store is the record-store surface the API layer reads and writes.
type Store interface {
	SaveImage(ctx context.Context, img *models.Image) error
	GetImage(ctx context.Context, id uuid.UUID) (*models.Image, error)
	ListImages(ctx context.Context) ([]models.Image, error)
	CountByStatus(ctx context.Context) (map[models.Status]int64, error)
	AverageProcessingMS(ctx context.Context) (*float64, error)
}

// Enqueuer hands record ids to the background worker.
type Enqueuer interface {
	Enqueue(id uuid.UUID)
	Len() int
}

type Server struct {
	cfg    *models.Config
	router *gin.Engine
	db     Store
	jobs   Enqueuer
	log    *slog.Logger
	http   *http.Server
}

func NewServer(cfg *models.Config, db Store, jobs Enqueuer, log *slog.Logger) *Server {
	r := gin.Default()
	r.Use(cors())

	s := &Server{cfg: cfg, router: r, db: db, jobs: jobs, log: log}

	r.POST("/api/images", s.handleUpload)
	r.GET("/api/images", s.handleList)
	r.GET("/api/images/:id", s.handleGetImage)
	r.GET("/api/images/:id/thumbnails/:size", s.handleThumbnail)
	r.GET("/api/stats", s.handleStats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s is running.", cfg.AppName)})
	})

	s.http = &http.Server{Addr: cfg.ServerAddr, Handler: r}
	return s
}

func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// secureExt normalizes the filename extension; .jpeg collapses to .jpg so
// derived paths stay uniform.
func secureExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return ext
}

func validateUpload(filename, contentType string) error {
	ext := secureExt(filename)
	if !allowedExts[ext] {
		return fmt.Errorf("unsupported file extension: %s. Only JPG and PNG are supported", ext)
	}
	if !allowedContentTypes[strings.ToLower(contentType)] {
		return fmt.Errorf("unsupported content-type: %s. Only image/jpeg and image/png are supported", contentType)
	}
	return nil
}

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	file, err := c.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if err := validateUpload(file.Filename, contentType); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if file.Size > maxUploadSize {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large. Maximum size is 10MB"})
		return
	}

	id := uuid.New()
	ext := secureExt(file.Filename)
	originalPath := filepath.Join(s.cfg.StoragePath, "originals", id.String()+ext)
	if err := os.MkdirAll(filepath.Dir(originalPath), 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	f, err := os.Create(originalPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	defer f.Close()

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	defer src.Close()

	if _, err := io.Copy(f, src); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	img := models.Image{
		ID:           id,
		OriginalName: file.Filename,
		ContentType:  contentType,
		Ext:          ext,
		Status:       models.StatusQueued,
		OriginalPath: originalPath,
	}
	if err := s.db.SaveImage(c.Request.Context(), &img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	s.jobs.Enqueue(id)
	metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	metrics.QueueDepth.Set(float64(s.jobs.Len()))
	s.log.Info("image accepted", "id", id, "name", file.Filename)

	c.JSON(http.StatusAccepted, UploadResponse{
		Status: "accepted",
		Data: UploadData{
			ImageID:      id.String(),
			OriginalName: file.Filename,
			Status:       img.Status,
			Thumbnails:   s.thumbURLs(id),
		},
	})
}

func (s *Server) handleList(c *gin.Context) {
	const op = "server.handleList"

	images, err := s.db.ListImages(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	out := make([]ListImageOut, 0, len(images))
	for _, img := range images {
		out = append(out, ListImageOut{
			ID:           img.ID.String(),
			OriginalName: img.OriginalName,
			Status:       img.Status,
			CreatedAt:    img.CreatedAt,
			ProcessedAt:  img.ProcessedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetImage(c *gin.Context) {
	const op = "server.handleGetImage"

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	img, err := s.db.GetImage(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	c.JSON(http.StatusOK, ImageOut{
		ImageID:      img.ID.String(),
		OriginalName: img.OriginalName,
		ProcessedAt:  img.ProcessedAt,
		Status:       img.Status,
		Metadata: ImageMetadata{
			Width:     img.Width,
			Height:    img.Height,
			Format:    img.Format,
			SizeBytes: img.SizeBytes,
			EXIF:      img.EXIF,
		},
		Thumbnails: s.thumbURLs(img.ID),
		Caption:    img.Caption,
		Error:      img.Error,
	})
}

func (s *Server) handleThumbnail(c *gin.Context) {
	const op = "server.handleThumbnail"

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	img, err := s.db.GetImage(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	size := c.Param("size")
	var path *string
	switch size {
	case "small":
		path = img.ThumbSmallPath
	case "medium":
		path = img.ThumbMediumPath
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "size must be 'small' or 'medium'"})
		return
	}

	if path == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Thumbnail not available yet"})
		return
	}
	if _, err := os.Stat(*path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Thumbnail not available yet"})
		return
	}
	c.FileAttachment(*path, fmt.Sprintf("%s_%s.jpg", id, size))
}

func (s *Server) handleStats(c *gin.Context) {
	const op = "server.handleStats"

	counts, err := s.db.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	avg, err := s.db.AverageProcessingMS(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	done := counts[models.StatusDone]
	total := done + counts[models.StatusFailed] + counts[models.StatusProcessing] + counts[models.StatusQueued]
	var successRate float64
	if total > 0 {
		successRate = math.Round(float64(done)/float64(total)*100*100) / 100
	}

	c.JSON(http.StatusOK, StatsOut{
		Total:               total,
		Done:                done,
		Failed:              counts[models.StatusFailed],
		Processing:          counts[models.StatusProcessing],
		Queued:              counts[models.StatusQueued],
		SuccessRate:         successRate,
		AverageProcessingMS: avg,
	})
}

func (s *Server) thumbURLs(id uuid.UUID) ThumbnailURLs {
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	return ThumbnailURLs{
		Small:  fmt.Sprintf("%s/api/images/%s/thumbnails/small", base, id),
		Medium: fmt.Sprintf("%s/api/images/%s/thumbnails/medium", base, id),
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Authorization, Accept, Origin, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
