// Package assistant runs the garden chat: it forwards the transcript to the
// chat endpoint, streams the reply into the transcript and applies any
// plant profile directive the reply carries.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sproutwatch/sproutwatch/internal/directive"
	"github.com/sproutwatch/sproutwatch/internal/llm"
	"github.com/sproutwatch/sproutwatch/internal/observe"
	"github.com/sproutwatch/sproutwatch/internal/stream"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

var tracer = otel.Tracer("sproutwatch/assistant")

var (
	ErrEmptyMessage      = errors.New("message is empty")
	ErrBusy              = errors.New("a chat request is already in progress")
	ErrUpstream          = errors.New("chat endpoint unavailable")
	ErrStreamInterrupted = errors.New("chat stream interrupted")
)

// Greeting is the assistant message every transcript starts with.
const Greeting = "Selamat datang! I'm your Plant AI assistant for Malaysian gardens. Ask me about local plants and growing conditions, or let me pick the right plant profile for your climate controller. 🌿"

// Streamer opens a streamed chat completion.
type Streamer interface {
	Stream(ctx context.Context, transcript []models.ChatMessage, currentPlant string) (io.ReadCloser, error)
}

// Profiles is the active-profile state the session reads and updates.
type Profiles interface {
	Active() models.PlantProfile
	Apply(ctx context.Context, p models.PlantProfile, source models.ProfileSource) error
}

// Recorder receives activity log lines.
type Recorder interface {
	Add(message, highlight string) models.ActivityEntry
}

// Reply is the outcome of a completed Send.
type Reply struct {
	Message models.ChatMessage   `json:"message"`
	Profile *models.PlantProfile `json:"profile,omitempty"`
}

// Session is one chat transcript. At most one request is in flight.
type Session struct {
	streamer Streamer
	profiles Profiles
	activity Recorder

	inflight atomic.Bool

	mu         sync.RWMutex
	transcript []models.ChatMessage

	partials *observe.Subject[models.ChatPartial]
	notices  *observe.Subject[models.Notice]
	results  *observe.Subject[string]
}

// NewSession creates a session seeded with the greeting.
func NewSession(s Streamer, p Profiles, a Recorder) *Session {
	return &Session{
		streamer:   s,
		profiles:   p,
		activity:   a,
		transcript: []models.ChatMessage{greeting()},
		partials:   observe.NewSubject[models.ChatPartial](),
		notices:    observe.NewSubject[models.Notice](),
		results:    observe.NewSubject[string](),
	}
}

func greeting() models.ChatMessage {
	return models.ChatMessage{ID: uuid.NewString(), Role: models.RoleAssistant, Content: Greeting, CreatedAt: time.Now().UTC()}
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Reset restores the greeting-only transcript. It fails with ErrBusy while
// a request is in flight.
func (s *Session) Reset() error {
	if !s.inflight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.inflight.Store(false)

	s.mu.Lock()
	s.transcript = []models.ChatMessage{greeting()}
	s.mu.Unlock()
	return nil
}

// Busy reports whether a request is in flight.
func (s *Session) Busy() bool {
	return s.inflight.Load()
}

// OnPartial subscribes to the growing assistant reply.
func (s *Session) OnPartial(fn func(models.ChatPartial)) func() { return s.partials.Subscribe(fn) }

// OnNotice subscribes to transient user-visible notices.
func (s *Session) OnNotice(fn func(models.Notice)) func() { return s.notices.Subscribe(fn) }

// OnResult subscribes to the outcome label of every Send.
func (s *Session) OnResult(fn func(string)) func() { return s.results.Subscribe(fn) }

// SendOption adds callbacks scoped to a single Send.
type SendOption func(*sendHooks)

type sendHooks struct {
	partial func(models.ChatPartial)
	notice  func(models.Notice)
}

// WithPartial calls fn with the growing reply of this request only.
func WithPartial(fn func(models.ChatPartial)) SendOption {
	return func(h *sendHooks) { h.partial = fn }
}

// WithNotice calls fn with the notices raised by this request only.
func WithNotice(fn func(models.Notice)) SendOption {
	return func(h *sendHooks) { h.notice = fn }
}

func (s *Session) publishPartial(h *sendHooks, p models.ChatPartial) {
	if h.partial != nil {
		h.partial(p)
	}
	s.partials.Publish(p)
}

func (s *Session) publishNotice(h *sendHooks, n models.Notice) {
	if h.notice != nil {
		h.notice(n)
	}
	s.notices.Publish(n)
}

// Send appends text as a user message and streams the assistant reply.
//
// Rate-limit and quota responses publish a notice and change nothing but
// the user message. A stream that breaks off midway removes the partial
// assistant message entirely. When the finished reply carries a valid
// directive, the new profile is applied once.
func (s *Session) Send(ctx context.Context, text string, opts ...SendOption) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !s.inflight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.inflight.Store(false)

	hooks := &sendHooks{}
	for _, opt := range opts {
		opt(hooks)
	}

	ctx, span := tracer.Start(ctx, "assistant.send")
	defer span.End()

	active := s.profiles.Active()
	span.SetAttributes(attribute.String("sproutwatch.plant", active.Name))

	s.appendMessage(models.ChatMessage{ID: uuid.NewString(), Role: models.RoleUser, Content: text, CreatedAt: time.Now().UTC()})

	body, err := s.streamer.Stream(ctx, s.Messages(), active.Name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, s.failRequest(hooks, err)
	}
	defer body.Close()

	reply := models.ChatMessage{ID: uuid.NewString(), Role: models.RoleAssistant, CreatedAt: time.Now().UTC()}
	s.appendMessage(reply)

	var buf strings.Builder
	done, err := stream.Drain(body, func(delta string) {
		buf.WriteString(delta)
		content := buf.String()
		s.setContent(reply.ID, content)
		s.publishPartial(hooks, models.ChatPartial{MessageID: reply.ID, Content: content})
	})
	// A body cut short by cancellation can read as a clean EOF.
	if err == nil && !done {
		err = ctx.Err()
	}
	if err != nil {
		s.removeMessage(reply.ID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream interrupted")
		log.Warn().Err(err).Int("received", buf.Len()).Msg("Chat stream interrupted")
		s.publishNotice(hooks, models.Notice{
			Level:       models.NoticeError,
			Title:       "Failed to send message",
			Description: "Please check your connection and try again.",
		})
		s.results.Publish("interrupted")
		return nil, fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
	}

	reply.Content = buf.String()
	out := &Reply{Message: reply}

	if p, ok := directive.Parse(reply.Content); ok {
		// The reply is complete, so a cancelled request still applies it.
		if err := s.profiles.Apply(context.WithoutCancel(ctx), p, models.ProfileSourceAssistant); err != nil {
			log.Warn().Err(err).Str("plant", p.Name).Msg("Plant directive not applied")
		} else {
			out.Profile = &p
			if s.activity != nil {
				s.activity.Add("Assistant switched monitoring to "+p.Name, p.Name)
			}
			s.publishNotice(hooks, models.Notice{
				Level:       models.NoticeSuccess,
				Title:       "Plant updated!",
				Description: "Command Center now monitoring " + p.Name,
			})
			span.SetAttributes(attribute.String("sproutwatch.directive", p.ID))
		}
	} else if directive.Contains(reply.Content) {
		log.Debug().Msg("Ignoring malformed plant directive")
	}

	log.Info().
		Int("chars", len(reply.Content)).
		Bool("profile_updated", out.Profile != nil).
		Msg("Chat reply completed")
	s.results.Publish("ok")
	return out, nil
}

func (s *Session) failRequest(h *sendHooks, err error) error {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		s.publishNotice(h, models.Notice{
			Level:       models.NoticeError,
			Title:       "Rate limit exceeded",
			Description: "Please try again in a moment.",
		})
		s.results.Publish("rate_limited")
		return err
	case errors.Is(err, llm.ErrQuotaExceeded):
		s.publishNotice(h, models.Notice{
			Level:       models.NoticeError,
			Title:       "Payment required",
			Description: "Please add credits to your AI workspace.",
		})
		s.results.Publish("quota_exceeded")
		return err
	default:
		log.Warn().Err(err).Msg("Chat request failed")
		s.publishNotice(h, models.Notice{
			Level:       models.NoticeError,
			Title:       "Failed to send message",
			Description: "Please check your connection and try again.",
		})
		s.results.Publish("error")
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}

func (s *Session) appendMessage(m models.ChatMessage) {
	s.mu.Lock()
	s.transcript = append(s.transcript, m)
	s.mu.Unlock()
}

func (s *Session) setContent(id, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].ID == id {
			s.transcript[i].Content = content
			return
		}
	}
}

func (s *Session) removeMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].ID == id {
			s.transcript = append(s.transcript[:i:i], s.transcript[i+1:]...)
			return
		}
	}
}
