package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

const thumbJPEGQuality = 90

// MakeThumbnail writes an aspect-preserving JPEG rendition of srcPath whose
// longer side is at most maxDim, never upscaling. The file is written to a
// temp name in the destination directory and renamed into place so a reader
// never observes a partial thumbnail. Returns the output dimensions.
func MakeThumbnail(srcPath, dstPath string, maxDim int) (int, int, error) {
	const op = "pipeline.MakeThumbnail"

	src, err := imaging.Open(srcPath)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %v", op, err)
	}

	thumb := imaging.Fit(src, maxDim, maxDim, imaging.Lanczos)

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return 0, 0, fmt.Errorf("%s: %v", op, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dstPath), ".thumb-*.jpg")
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %v", op, err)
	}
	if err := imaging.Encode(tmp, thumb, imaging.JPEG, imaging.JPEGQuality(thumbJPEGQuality)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, 0, fmt.Errorf("%s: %v", op, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, 0, fmt.Errorf("%s: %v", op, err)
	}
	if err := os.Rename(tmp.Name(), dstPath); err != nil {
		os.Remove(tmp.Name())
		return 0, 0, fmt.Errorf("%s: %v", op, err)
	}

	bounds := thumb.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}
