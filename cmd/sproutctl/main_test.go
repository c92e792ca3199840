package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutwatch/sproutwatch/pkg/models"
)

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL, "--api-key", "k1"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestProfilesUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k1", r.Header.Get("Authorization"))
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/v1/profiles/active", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "basil", body["id"])
		json.NewEncoder(w).Encode(models.PlantProfile{ID: "basil", Name: "Basil", Icon: "🌿"})
	}))
	defer srv.Close()

	out, err := run(t, srv, "profiles", "use", "basil")
	require.NoError(t, err)
	assert.Equal(t, "Monitoring switched to 🌿 Basil\n", out)
}

func TestAPIErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"unknown plant profile"}`))
	}))
	defer srv.Close()

	_, err := run(t, srv, "profiles", "use", "durian")
	require.Error(t, err)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "unknown plant profile", apiErr.Message)
}

func TestChatPrintsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"choices":[{"index":0,"delta":{"content":"Grow "}}]}` + "\n\n" +
			`data: {"choices":[{"index":0,"delta":{"content":"kangkung."}}]}` + "\n\n" +
			"event: profile\n" + `data: {"id":"kangkung","name":"Kangkung","temp_min":24,"temp_max":32,"humidity_min":70,"humidity_max":90,"icon":"🌱"}` + "\n\n" +
			"event: notice\n" + `data: {"level":"success","title":"Plant profile updated"}` + "\n\n" +
			"data: [DONE]\n\n"))
	}))
	defer srv.Close()

	out, err := run(t, srv, "chat", "what", "grows", "fast?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Grow kangkung.\n"))
	assert.Contains(t, out, "Now monitoring Kangkung (24-32 °C, 70-90 %)")
	assert.Contains(t, out, "[success] Plant profile updated")
}

func TestChatStreamError(t *testing.T) {
	var buf bytes.Buffer
	err := printChatStream(&buf, strings.NewReader(
		`data: {"choices":[{"delta":{"content":"Hal"}}]}`+"\n\n"+
			"event: error\n"+`data: {"error":"stream interrupted"}`+"\n\n"+
			"data: [DONE]\n\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream interrupted")
	assert.Equal(t, "Hal", buf.String())
}

func TestProbePrintsLatency(t *testing.T) {
	latency := int64(42)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "http://10.0.0.5/latest.json", body["url"])
		json.NewEncoder(w).Encode(models.ProbeResult{
			Connected:   true,
			Status:      models.ProbeOnline,
			LatencyMs:   &latency,
			Message:     "Connection successful",
			Description: "Device responding in 42ms",
			LatencyNote: "Excellent response time",
		})
	}))
	defer srv.Close()

	out, err := run(t, srv, "probe", "http://10.0.0.5/latest.json")
	require.NoError(t, err)
	assert.Contains(t, out, "Connection successful")
	assert.Contains(t, out, "Latency 42ms, Excellent response time")
}
