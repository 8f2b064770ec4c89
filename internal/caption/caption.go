// Package caption asks an external image-to-text inference service for a
// short caption. Captioning is strictly best-effort: a disabled model, a
// backend that fails to initialize, or a failed call all degrade to no
// caption and never affect the record's status.
package caption

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"image-pipeline/internal/models"
)

const (
	disabledSentinel = "disabled"
	maxNewTokens     = 30
	requestTimeout   = 60 * time.Second
)

// Provider lazily initializes the captioning backend on first use and caches
// it for the process lifetime. Initialization failure permanently disables
// captioning; no retry is attempted.
type Provider struct {
	model    string
	endpoint string
	client   *http.Client
	log      *slog.Logger

	initOnce sync.Once
	backend  *backend // nil after a failed init
}

func NewProvider(cfg models.CaptionConfig, log *slog.Logger) *Provider {
	return &Provider{
		model:    strings.TrimSpace(cfg.Model),
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: requestTimeout},
		log:      log,
	}
}

// Enabled reports whether captioning is configured at all. When false, no
// backend is ever contacted.
func (p *Provider) Enabled() bool {
	return p.model != "" && !strings.EqualFold(p.model, disabledSentinel)
}

// Caption returns a caption for the image at path, or "" when captioning is
// disabled or unavailable. Errors apply to this call only.
func (p *Provider) Caption(ctx context.Context, path string) (string, error) {
	if !p.Enabled() {
		return "", nil
	}
	p.initOnce.Do(p.initBackend)
	if p.backend == nil {
		return "", nil // init failed earlier, captioning is off for good
	}
	return p.backend.caption(ctx, path)
}

func (p *Provider) initBackend() {
	b := &backend{
		model:    p.model,
		endpoint: p.endpoint,
		client:   p.client,
	}
	b.device = b.pickDevice()
	if err := b.loadModel(); err != nil {
		p.log.Warn("caption backend unavailable, captioning disabled", "model", p.model, "err", err)
		return
	}
	p.log.Info("caption backend ready", "model", p.model, "device", b.device)
	p.backend = b
}

type backend struct {
	model    string
	endpoint string
	device   string
	client   *http.Client
}

// pickDevice asks the inference server for an accelerator; any failure
// falls back to the default compute path.
func (b *backend) pickDevice() string {
	resp, err := b.client.Get(b.endpoint + "/v1/devices")
	if err != nil {
		return "cpu"
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "cpu"
	}
	var payload struct {
		Devices []string `json:"devices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "cpu"
	}
	for _, d := range payload.Devices {
		if d != "" && d != "cpu" {
			return d
		}
	}
	return "cpu"
}

// loadModel warms the model on the server. This is the expensive part of
// initialization and the reason the backend is created once per process.
func (b *backend) loadModel() error {
	const op = "caption.loadModel"

	body, err := json.Marshal(map[string]string{
		"model":  b.model,
		"device": b.device,
	})
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	resp, err := b.client.Post(b.endpoint+"/v1/models/load", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: backend returned %s", op, resp.Status)
	}
	return nil
}

type captionResult struct {
	GeneratedText string `json:"generated_text"`
	Caption       string `json:"caption"`
	Text          string `json:"text"`
}

func (b *backend) caption(ctx context.Context, path string) (string, error) {
	const op = "caption.caption"

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: %v", op, err)
	}
	body, err := json.Marshal(map[string]any{
		"model":          b.model,
		"device":         b.device,
		"image":          base64.StdEncoding.EncodeToString(data),
		"max_new_tokens": maxNewTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %v", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/v1/caption", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %v", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %v", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: backend returned %s", op, resp.Status)
	}

	var results []captionResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("%s: %v", op, err)
	}
	if len(results) == 0 {
		return "", nil
	}
	// First non-empty field of the first result, in this order.
	first := results[0]
	for _, text := range []string{first.GeneratedText, first.Caption, first.Text} {
		if text != "" {
			return text, nil
		}
	}
	return "", nil
}
