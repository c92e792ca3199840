package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// HTTPSource pulls the device's latest.json document.
type HTTPSource struct {
	mu     sync.RWMutex
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for url. The client timeout caps every
// fetch regardless of the caller's context.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{url: url, client: &http.Client{Timeout: timeout}}
}

// SetURL points the source at a new endpoint.
func (h *HTTPSource) SetURL(url string) {
	h.mu.Lock()
	h.url = url
	h.mu.Unlock()
}

// URL returns the current endpoint.
func (h *HTTPSource) URL() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.url
}

// Latest fetches and decodes one reading. Null or missing numeric fields
// stay nil.
func (h *HTTPSource) Latest(ctx context.Context) (models.SensorReading, error) {
	url := h.URL()
	if url == "" {
		return models.SensorReading{}, fmt.Errorf("no device url configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.SensorReading{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return models.SensorReading{}, fmt.Errorf("fetch reading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return models.SensorReading{}, fmt.Errorf("fetch reading: status %d", resp.StatusCode)
	}

	var r models.SensorReading
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&r); err != nil {
		return models.SensorReading{}, fmt.Errorf("decode reading: %w", err)
	}
	if r.Timestamp == "" {
		r.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return r, nil
}
