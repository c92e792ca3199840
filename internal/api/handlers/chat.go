package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sproutwatch/sproutwatch/internal/assistant"
	"github.com/sproutwatch/sproutwatch/internal/stream"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// ── Chat ────────────────────────────────────────────────────

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Chat.Messages())
}

func (h *Handlers) ResetMessages(w http.ResponseWriter, r *http.Request) {
	if err := h.Chat.Reset(); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.Chat.Messages())
}

// SendMessage relays one chat turn as server-sent events.
//
// Reply text goes out as OpenAI-style delta chunks on unnamed data lines, so
// any client that reads chat completion streams can consume it. A profile
// change is sent as "event: profile" and notices as "event: notice". The
// stream ends with "data: [DONE]". Failures that happen before the first
// delta are answered with a plain JSON error and a status code instead.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}
	if h.Chat.Busy() {
		respondError(w, http.StatusConflict, "a chat request is already in progress")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	sw := &sseWriter{w: w, flusher: flusher}
	reply, err := h.Chat.Send(r.Context(), req.Message,
		assistant.WithPartial(sw.partial),
		assistant.WithNotice(sw.notice),
	)

	if err != nil {
		if !sw.started {
			status := statusFor(err)
			body := map[string]interface{}{"error": err.Error()}
			if len(sw.queued) > 0 {
				body["notice"] = sw.queued[0]
			}
			respondJSON(w, status, body)
			return
		}
		sw.flushNotices()
		sw.event("error", map[string]string{"error": err.Error()})
		sw.done()
		return
	}

	sw.start()
	if reply.Profile != nil {
		sw.event("profile", reply.Profile)
	}
	sw.flushNotices()
	sw.done()
}

// sseWriter writes the chat event stream. Headers go out with the first
// delta so early failures can still use a real status code. Its callbacks
// are scoped to this handler's Send call and run on its goroutine.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	sent    int
	queued  []models.Notice
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.Header().Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

func (s *sseWriter) partial(p models.ChatPartial) {
	if len(p.Content) < s.sent {
		return
	}
	delta := p.Content[s.sent:]
	s.sent = len(p.Content)
	if delta == "" {
		return
	}
	s.start()

	chunk := map[string]interface{}{
		"id":      p.MessageID,
		"object":  "chat.completion.chunk",
		"choices": []map[string]interface{}{{"index": 0, "delta": map[string]string{"content": delta}}},
	}
	data, _ := json.Marshal(chunk)
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		log.Debug().Err(err).Msg("chat client went away")
		return
	}
	s.flusher.Flush()
}

func (s *sseWriter) notice(n models.Notice) {
	s.queued = append(s.queued, n)
}

func (s *sseWriter) flushNotices() {
	for _, n := range s.queued {
		s.event("notice", n)
	}
	s.queued = nil
}

func (s *sseWriter) event(name string, payload interface{}) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data)
	s.flusher.Flush()
}

func (s *sseWriter) done() {
	fmt.Fprintf(s.w, "data: %s\n\n", stream.DoneSentinel)
	s.flusher.Flush()
}
