package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractMetadataPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.png")
	writePNG(t, path, 120, 80)

	meta, err := ExtractMetadata(path)
	if err != nil {
		t.Fatalf("ExtractMetadata: %v", err)
	}
	if meta.Width != 120 || meta.Height != 80 {
		t.Fatalf("expected 120x80, got %dx%d", meta.Width, meta.Height)
	}
	if meta.Format != "png" {
		t.Fatalf("expected format png, got %q", meta.Format)
	}
	fi, _ := os.Stat(path)
	if meta.SizeBytes != fi.Size() {
		t.Fatalf("expected size %d, got %d", fi.Size(), meta.SizeBytes)
	}
}

func TestExtractMetadataJPEG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.jpg")
	writeJPEG(t, path, 32, 48)

	meta, err := ExtractMetadata(path)
	if err != nil {
		t.Fatalf("ExtractMetadata: %v", err)
	}
	if meta.Width != 32 || meta.Height != 48 || meta.Format != "jpeg" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestExtractMetadataUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junk.jpg")
	if err := os.WriteFile(path, []byte("not pixels"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ExtractMetadata(path); err == nil {
		t.Fatal("expected error for undecodable file")
	}
	if _, err := ExtractMetadata(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractEXIFAbsent(t *testing.T) {
	dir := t.TempDir()

	// PNGs carry no EXIF block; JPEGs from the stdlib encoder don't either.
	png := filepath.Join(dir, "plain.png")
	writePNG(t, png, 16, 16)
	if exif := ExtractEXIF(png); exif != nil {
		t.Fatalf("expected nil EXIF for plain png, got %v", exif)
	}

	jpg := filepath.Join(dir, "plain.jpg")
	writeJPEG(t, jpg, 16, 16)
	if exif := ExtractEXIF(jpg); exif != nil {
		t.Fatalf("expected nil EXIF for plain jpeg, got %v", exif)
	}

	if exif := ExtractEXIF(filepath.Join(dir, "missing.jpg")); exif != nil {
		t.Fatalf("expected nil EXIF for missing file, got %v", exif)
	}
}
