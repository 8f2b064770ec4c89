package pipeline

import (
	"fmt"
	"image"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	_ "image/jpeg"
	_ "image/png"
)

type Metadata struct {
	Width     int
	Height    int
	Format    string
	SizeBytes int64
}

// ExtractMetadata reads dimensions, detected format and byte size without
// decoding the full pixel data.
func ExtractMetadata(path string) (*Metadata, error) {
	const op = "pipeline.ExtractMetadata"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &Metadata{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    format,
		SizeBytes: fi.Size(),
	}, nil
}

// ExtractEXIF returns the image's EXIF tags keyed by name, or nil when the
// file has no EXIF block or it cannot be decoded. It never fails the record.
func ExtractEXIF(path string) map[string]any {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil
	}
	w := &exifWalker{tags: make(map[string]any)}
	if err := x.Walk(w); err != nil {
		return nil
	}
	if len(w.tags) == 0 {
		return nil
	}
	return w.tags
}

type exifWalker struct {
	tags map[string]any
}

// Walk keeps scalar numbers and strings as-is; everything else (rationals,
// arrays, binary blobs) is stringified so the mapping stays serializable.
func (w *exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	switch tag.Format() {
	case tiff.IntVal:
		if tag.Count == 1 {
			if v, err := tag.Int(0); err == nil {
				w.tags[string(name)] = v
				return nil
			}
		}
	case tiff.FloatVal:
		if tag.Count == 1 {
			if v, err := tag.Float(0); err == nil {
				w.tags[string(name)] = v
				return nil
			}
		}
	case tiff.StringVal:
		if s, err := tag.StringVal(); err == nil {
			w.tags[string(name)] = s
			return nil
		}
	}
	w.tags[string(name)] = tag.String()
	return nil
}
