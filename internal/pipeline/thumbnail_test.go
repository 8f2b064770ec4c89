package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMakeThumbnailFitsBoundingBox(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wide.jpg")
	writeJPEG(t, src, 1024, 512)

	dst := filepath.Join(dir, "thumbs", "small", "wide.jpg")
	w, h, err := MakeThumbnail(src, dst, 256)
	if err != nil {
		t.Fatalf("MakeThumbnail: %v", err)
	}
	if w != 256 || h != 128 {
		t.Fatalf("expected 256x128, got %dx%d", w, h)
	}

	img, format := decodeFile(t, dst)
	if format != "jpeg" {
		t.Fatalf("expected jpeg output, got %s", format)
	}
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		t.Fatalf("returned dimensions %dx%d do not match file %dx%d", w, h, b.Dx(), b.Dy())
	}
}

func TestMakeThumbnailNeverUpscales(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tiny.png")
	writePNG(t, src, 40, 30)

	dst := filepath.Join(dir, "tiny_thumb.jpg")
	w, h, err := MakeThumbnail(src, dst, 256)
	if err != nil {
		t.Fatalf("MakeThumbnail: %v", err)
	}
	if w != 40 || h != 30 {
		t.Fatalf("expected original 40x30 to be kept, got %dx%d", w, h)
	}
}

func TestMakeThumbnailCreatesDestinationDirs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sample.png")
	writePNG(t, src, 64, 64)

	dst := filepath.Join(dir, "a", "b", "c", "sample.jpg")
	if _, _, err := MakeThumbnail(src, dst, 64); err != nil {
		t.Fatalf("MakeThumbnail: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected thumbnail at %s: %v", dst, err)
	}
}

func TestMakeThumbnailCorruptSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "junk.jpg")
	if err := os.WriteFile(src, []byte("garbage"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dst := filepath.Join(dir, "out.jpg")
	if _, _, err := MakeThumbnail(src, dst, 256); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatal("no output file should exist after a failed generation")
	}
}

func TestMakeThumbnailLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sample.png")
	writePNG(t, src, 64, 64)

	dstDir := filepath.Join(dir, "out")
	dst := filepath.Join(dstDir, "sample.jpg")
	if _, _, err := MakeThumbnail(src, dst, 64); err != nil {
		t.Fatalf("MakeThumbnail: %v", err)
	}

	entries, err := os.ReadDir(dstDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".thumb-") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly the final thumbnail, found %d entries", len(entries))
	}
}
