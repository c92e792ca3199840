// Package probe checks whether the garden device endpoint is reachable and
// how quickly it answers.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sproutwatch/sproutwatch/internal/metrics"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

var tracer = otel.Tracer("sproutwatch/probe")

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// Latency thresholds.
const (
	OnlineBelow  = 100 * time.Millisecond
	WarningBelow = 500 * time.Millisecond
)

var ErrNoEndpoint = errors.New("no device endpoint configured")

// Prober runs connectivity checks and remembers the last result.
type Prober struct {
	client *http.Client

	mu      sync.RWMutex
	timeout time.Duration
	last    *models.ProbeResult
	now     func() time.Time
}

// New creates a prober. A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{client: &http.Client{}, timeout: timeout, now: time.Now}
}

// SetTimeout changes the timeout for subsequent checks.
func (p *Prober) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.timeout = d
	p.mu.Unlock()
}

// Timeout returns the current probe timeout.
func (p *Prober) Timeout() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.timeout
}

// Last returns the most recent result, if any.
func (p *Prober) Last() (models.ProbeResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return models.ProbeResult{}, false
	}
	return *p.last, true
}

// Classify maps a successful round trip to a status. Slow answers at or
// above WarningBelow stay a warning, never online.
func Classify(latency time.Duration) models.ProbeStatus {
	if latency < OnlineBelow {
		return models.ProbeOnline
	}
	return models.ProbeWarning
}

// LatencyNote is the human description of a latency reading.
func LatencyNote(latencyMs *int64) string {
	switch {
	case latencyMs == nil:
		return "No data available"
	case *latencyMs < OnlineBelow.Milliseconds():
		return "Excellent response time"
	case *latencyMs < WarningBelow.Milliseconds():
		return "Acceptable response time"
	default:
		return "High latency detected"
	}
}

// Check probes url once. The only error returned is ErrNoEndpoint; every
// network outcome is encoded in the result.
func (p *Prober) Check(ctx context.Context, url string) (models.ProbeResult, error) {
	if url == "" {
		return models.ProbeResult{}, ErrNoEndpoint
	}
	timeout := p.Timeout()

	ctx, span := tracer.Start(ctx, "probe.check")
	defer span.End()
	span.SetAttributes(attribute.String("probe.url", url))

	start := p.now()
	err := p.fetch(ctx, url, timeout)
	elapsed := p.now().Sub(start)
	ms := elapsed.Milliseconds()

	res := models.ProbeResult{URL: url, LastCheck: p.now().UTC()}

	switch {
	case err == nil:
		res.Connected = true
		res.Status = Classify(elapsed)
		res.LatencyMs = &ms
		res.Message = "Connection successful"
		res.Description = fmt.Sprintf("Device responding in %dms", ms)
	case isTimeout(err):
		res.Status = models.ProbeOffline
		res.Message = "Connection timeout"
		res.Description = fmt.Sprintf("Device not responding (timeout after %s)", timeout)
	default:
		res.Status = models.ProbeOffline
		if elapsed <= timeout {
			res.LatencyMs = &ms
		}
		res.Message = "Connection failed"
		res.Description = "Unable to reach device: " + err.Error()
	}

	res.LatencyNote = LatencyNote(res.LatencyMs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Message)
	}
	span.SetAttributes(attribute.String("probe.status", string(res.Status)))
	metrics.ProbeCompleted(res.Status, elapsed)

	log.Info().
		Str("url", url).
		Str("status", string(res.Status)).
		Int64("latency_ms", ms).
		Msg("Connectivity probe finished")

	p.mu.Lock()
	p.last = &res
	p.mu.Unlock()
	return res, nil
}

func (p *Prober) fetch(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var body json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
