// Package sampler polls the garden device for sensor readings on a fixed
// cadence and publishes each one.
package sampler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sproutwatch/sproutwatch/internal/observe"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// DefaultInterval is the dashboard refresh cadence.
const DefaultInterval = 2 * time.Second

// Source produces the device's current reading.
type Source interface {
	Latest(ctx context.Context) (models.SensorReading, error)
}

// Sampler runs a background goroutine that fetches one reading per tick.
// Each reading replaces the previous one wholesale; no history is kept.
type Sampler struct {
	source   Source
	interval time.Duration
	readings *observe.Subject[models.SensorReading]
	latest   atomic.Pointer[models.SensorReading]

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	resetCh chan time.Duration
	wg      sync.WaitGroup
	now     func() time.Time
}

// New creates a sampler with the given interval.
func New(src Source, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		source:   src,
		interval: interval,
		readings: observe.NewSubject[models.SensorReading](),
		resetCh:  make(chan time.Duration, 1),
		now:      time.Now,
	}
}

// Start begins the polling loop. It samples once immediately.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	interval := s.interval
	s.wg.Add(1)
	s.mu.Unlock()

	log.Info().Dur("interval", interval).Msg("Reading sampler started")
	go s.loop(ctx, interval)
}

// Stop ends the polling loop and waits for an in-progress sample to finish.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	log.Info().Msg("Reading sampler stopped")
}

// SetInterval changes the cadence; a running loop picks it up on its next
// iteration.
func (s *Sampler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()

	select {
	case s.resetCh <- d:
	default:
		// Replace a queued value nobody has read yet.
		select {
		case <-s.resetCh:
		default:
		}
		s.resetCh <- d
	}
}

// Interval returns the current cadence.
func (s *Sampler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Latest returns the most recent reading, or nil before the first sample.
func (s *Sampler) Latest() *models.SensorReading {
	return s.latest.Load()
}

// Subscribe registers fn for every new reading.
func (s *Sampler) Subscribe(fn func(models.SensorReading)) func() {
	return s.readings.Subscribe(fn)
}

// SampleNow fetches, stores and publishes one reading. A failed fetch yields
// an offline reading carrying the error text.
func (s *Sampler) SampleNow(ctx context.Context) models.SensorReading {
	reading, err := s.source.Latest(ctx)
	if err != nil {
		msg := err.Error()
		reading = models.SensorReading{
			Timestamp: s.now().UTC().Format(time.RFC3339),
			OK:        false,
			Error:     &msg,
		}
		log.Debug().Err(err).Msg("sampler: fetch failed")
	}

	r := reading
	s.latest.Store(&r)
	s.readings.Publish(r)
	return r
}

func (s *Sampler) loop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sample(ctx, interval)

	for {
		select {
		case <-ticker.C:
			s.sample(ctx, interval)
		case d := <-s.resetCh:
			interval = d
			ticker.Reset(d)
			log.Info().Dur("interval", d).Msg("Reading sampler interval changed")
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sample bounds each fetch by the interval so a hung device never stacks
// up ticks.
func (s *Sampler) sample(ctx context.Context, interval time.Duration) {
	fetchCtx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()
	s.SampleNow(fetchCtx)
}
