package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutwatch/sproutwatch/internal/activity"
	"github.com/sproutwatch/sproutwatch/internal/actuator"
	"github.com/sproutwatch/sproutwatch/internal/api"
	"github.com/sproutwatch/sproutwatch/internal/api/handlers"
	"github.com/sproutwatch/sproutwatch/internal/assistant"
	"github.com/sproutwatch/sproutwatch/internal/config"
	"github.com/sproutwatch/sproutwatch/internal/device"
	"github.com/sproutwatch/sproutwatch/internal/live"
	"github.com/sproutwatch/sproutwatch/internal/llm"
	"github.com/sproutwatch/sproutwatch/internal/probe"
	"github.com/sproutwatch/sproutwatch/internal/profiles"
	"github.com/sproutwatch/sproutwatch/internal/sampler"
	"github.com/sproutwatch/sproutwatch/internal/store"
	"github.com/sproutwatch/sproutwatch/internal/stream"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

type staticSource struct{ reading models.SensorReading }

func (s staticSource) Latest(context.Context) (models.SensorReading, error) { return s.reading, nil }

type scriptedStreamer struct {
	body string
	err  error
}

func (s *scriptedStreamer) Stream(context.Context, []models.ChatMessage, string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

type env struct {
	handler  http.Handler
	profiles *profiles.Service
	activity *activity.Log
	streamer *scriptedStreamer
	sampler  *sampler.Sampler
	commands []device.Command
}

func newEnv(t *testing.T, cfg *config.Config) *env {
	t.Helper()
	e := &env{
		profiles: profiles.NewService(store.NewMemoryStore()),
		activity: activity.NewLog(activity.DefaultCapacity),
		streamer: &scriptedStreamer{},
	}
	temp, hum := 24.0, 70.0
	e.sampler = sampler.New(staticSource{models.SensorReading{Timestamp: "2026-06-01T09:00:00Z", TempC: &temp, HumidityPercent: &hum, OK: true}}, 0)
	pub := actuator.PublisherFunc(func(_ context.Context, cmd device.Command) error {
		e.commands = append(e.commands, cmd)
		return nil
	})

	h := &handlers.Handlers{
		Profiles:  e.profiles,
		Activity:  e.activity,
		Sampler:   e.sampler,
		Actuator:  actuator.New(pub, e.profiles, e.activity),
		Chat:      assistant.NewSession(e.streamer, e.profiles, e.activity),
		Prober:    probe.New(0),
		DeviceURL: func() string { return "" },
	}
	hub := live.NewHub()
	t.Cleanup(hub.Close)

	if cfg == nil {
		cfg = &config.Config{Version: "test"}
	}
	e.handler = api.NewRouter(cfg, h, hub)
	return e
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestHealthAndVersion(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = e.do(t, http.MethodGet, "/version", "")
	assert.Contains(t, w.Body.String(), `"version":"test"`)
}

func TestProfilesEndpoints(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/api/v1/profiles", "")
	require.Equal(t, http.StatusOK, w.Code)
	var catalog []models.PlantProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &catalog))
	assert.Len(t, catalog, len(profiles.Catalog()))

	w = e.do(t, http.MethodPut, "/api/v1/profiles/active", `{"id":"lettuce"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lettuce", e.profiles.Active().ID)

	w = e.do(t, http.MethodGet, "/api/v1/profiles/active", "")
	assert.Contains(t, w.Body.String(), `"id":"lettuce"`)

	w = e.do(t, http.MethodPut, "/api/v1/profiles/active", `{"id":"durian"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPut, "/api/v1/profiles/active", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardAndReadings(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/api/v1/readings/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/dashboard", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap models.DashboardSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.False(t, snap.Online)
	assert.Equal(t, models.StatusOffline, snap.Temperature.Status)

	e.sampler.SampleNow(context.Background())

	w = e.do(t, http.MethodGet, "/api/v1/readings/latest", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/dashboard", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.True(t, snap.Online)
	assert.Equal(t, models.StatusOptimal, snap.Temperature.Status)
	assert.Equal(t, models.StatusOptimal, snap.Humidity.Status)
}

func TestActionsAndActivity(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/v1/actions/water", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	w = e.do(t, http.MethodPost, "/api/v1/actions/light", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"light_on":true`)
	require.Len(t, e.commands, 2)

	w = e.do(t, http.MethodGet, "/api/v1/activity?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.ActivityEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Grow light switched ON", entries[0].Message)

	w = e.do(t, http.MethodGet, "/api/v1/activity?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatStreamsAndSwitchesProfile(t *testing.T) {
	e := newEnv(t, nil)
	e.streamer.body = `data: {"choices":[{"delta":{"content":"Try kangkung. "}}]}` + "\n\n" +
		`data: {"choices":[{"delta":{"content":"UPDATE_PLANT:Kangkung:24:32:70:90:85"}}]}` + "\n\n" +
		"data: [DONE]\n\n"

	w := e.do(t, http.MethodPost, "/api/v1/chat", `{"message":"what grows fast?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: profile\n")
	assert.Contains(t, body, "event: notice\n")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	// The relayed stream is itself a valid chat completion stream.
	var text strings.Builder
	require.NoError(t, stream.Pump(strings.NewReader(body), func(d string) { text.WriteString(d) }))
	assert.Equal(t, "Try kangkung. UPDATE_PLANT:Kangkung:24:32:70:90:85", text.String())

	assert.Equal(t, "kangkung", e.profiles.Active().ID)

	w = e.do(t, http.MethodGet, "/api/v1/chat/messages", "")
	var msgs []models.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 3)

	w = e.do(t, http.MethodDelete, "/api/v1/chat/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 1)
}

func TestChatErrors(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/v1/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.streamer.err = llm.ErrRateLimited
	w = e.do(t, http.MethodPost, "/api/v1/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")

	e.streamer.err = llm.ErrQuotaExceeded
	w = e.do(t, http.MethodPost, "/api/v1/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	assert.Equal(t, "tomato", e.profiles.Active().ID)
}

func TestProbeEndpoints(t *testing.T) {
	dev := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer dev.Close()

	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/api/v1/probe", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/probe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "no configured device and no url")

	w = e.do(t, http.MethodPost, "/api/v1/probe", `{"url":"`+dev.URL+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res models.ProbeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Connected)
	assert.NotEmpty(t, res.LatencyNote)

	w = e.do(t, http.MethodGet, "/api/v1/probe", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	e := newEnv(t, &config.Config{Version: "test", APIKeys: []string{"secret"}})

	w := e.do(t, http.MethodGet, "/api/v1/dashboard", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t, nil)
	e.do(t, http.MethodGet, "/api/v1/profiles", "")

	w := e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sproutwatch_http_requests_total")
}
