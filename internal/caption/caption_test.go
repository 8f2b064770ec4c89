package caption

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"image-pipeline/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeImageFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.jpg")
	if err := os.WriteFile(path, []byte{0xff, 0xd8, 0xff, 0xd9}, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDisabledModelNeverContactsBackend(t *testing.T) {
	var requests atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer backend.Close()

	path := writeImageFile(t)
	for _, model := range []string{"", "disabled", "DISABLED", "  Disabled  "} {
		p := NewProvider(models.CaptionConfig{Model: model, Endpoint: backend.URL}, testLogger())
		text, err := p.Caption(context.Background(), path)
		if err != nil {
			t.Fatalf("model %q: unexpected error: %v", model, err)
		}
		if text != "" {
			t.Fatalf("model %q: expected empty caption, got %q", model, text)
		}
	}
	if n := requests.Load(); n != 0 {
		t.Fatalf("expected zero backend requests while disabled, got %d", n)
	}
}

func TestInitFailurePermanentlyDisables(t *testing.T) {
	var loadCalls atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models/load" {
			loadCalls.Add(1)
			http.Error(w, "model fetch failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer backend.Close()

	p := NewProvider(models.CaptionConfig{Model: "vit-gpt2", Endpoint: backend.URL}, testLogger())
	path := writeImageFile(t)

	for i := 0; i < 3; i++ {
		text, err := p.Caption(context.Background(), path)
		if err != nil {
			t.Fatalf("call %d: init failure must degrade to null, got error: %v", i, err)
		}
		if text != "" {
			t.Fatalf("call %d: expected empty caption, got %q", i, text)
		}
	}
	if n := loadCalls.Load(); n != 1 {
		t.Fatalf("expected exactly one init attempt (no retry), got %d", n)
	}
}

func TestCaptionFieldPriority(t *testing.T) {
	cases := []struct {
		name    string
		results []map[string]string
		want    string
	}{
		{"primary wins", []map[string]string{{"generated_text": "a dog", "caption": "x", "text": "y"}}, "a dog"},
		{"secondary fallback", []map[string]string{{"generated_text": "", "caption": "a cat", "text": "y"}}, "a cat"},
		{"tertiary fallback", []map[string]string{{"text": "a bird"}}, "a bird"},
		{"all empty", []map[string]string{{}}, ""},
		{"no results", []map[string]string{}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/v1/models/load":
					w.WriteHeader(http.StatusOK)
				case "/v1/caption":
					json.NewEncoder(w).Encode(tc.results)
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer backend.Close()

			p := NewProvider(models.CaptionConfig{Model: "vit-gpt2", Endpoint: backend.URL}, testLogger())
			text, err := p.Caption(context.Background(), writeImageFile(t))
			if err != nil {
				t.Fatalf("Caption: %v", err)
			}
			if text != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, text)
			}
		})
	}
}

func TestRuntimeFailureIsPerCall(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models/load":
			w.WriteHeader(http.StatusOK)
		case "/v1/caption":
			if fail.Load() {
				http.Error(w, "inference error", http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode([]map[string]string{{"generated_text": "recovered"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer backend.Close()

	p := NewProvider(models.CaptionConfig{Model: "vit-gpt2", Endpoint: backend.URL}, testLogger())
	path := writeImageFile(t)

	if _, err := p.Caption(context.Background(), path); err == nil {
		t.Fatal("expected error from failing backend call")
	}

	// The backend stays usable; only the failed call is lost.
	fail.Store(false)
	text, err := p.Caption(context.Background(), path)
	if err != nil {
		t.Fatalf("Caption after recovery: %v", err)
	}
	if text != "recovered" {
		t.Fatalf("expected %q, got %q", "recovered", text)
	}
}

func TestPicksAcceleratedDevice(t *testing.T) {
	var captionReq struct {
		Model  string `json:"model"`
		Device string `json:"device"`
		Image  string `json:"image"`
	}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/devices":
			json.NewEncoder(w).Encode(map[string][]string{"devices": {"cuda", "cpu"}})
		case "/v1/models/load":
			w.WriteHeader(http.StatusOK)
		case "/v1/caption":
			json.NewDecoder(r.Body).Decode(&captionReq)
			json.NewEncoder(w).Encode([]map[string]string{{"generated_text": "ok"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer backend.Close()

	p := NewProvider(models.CaptionConfig{Model: "vit-gpt2", Endpoint: backend.URL}, testLogger())
	if _, err := p.Caption(context.Background(), writeImageFile(t)); err != nil {
		t.Fatalf("Caption: %v", err)
	}
	if captionReq.Device != "cuda" {
		t.Fatalf("expected accelerated device cuda, got %q", captionReq.Device)
	}
	if captionReq.Model != "vit-gpt2" {
		t.Fatalf("expected model in request, got %q", captionReq.Model)
	}
	if captionReq.Image == "" {
		t.Fatal("expected image payload in request")
	}
}
