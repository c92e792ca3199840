// Package handlers implements the HTTP handlers for the SproutWatch API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sproutwatch/sproutwatch/internal/activity"
	"github.com/sproutwatch/sproutwatch/internal/actuator"
	"github.com/sproutwatch/sproutwatch/internal/assistant"
	"github.com/sproutwatch/sproutwatch/internal/llm"
	"github.com/sproutwatch/sproutwatch/internal/probe"
	"github.com/sproutwatch/sproutwatch/internal/profiles"
	"github.com/sproutwatch/sproutwatch/internal/sampler"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Profiles *profiles.Service
	Activity *activity.Log
	Sampler  *sampler.Sampler
	Actuator *actuator.Actuator
	Chat     *assistant.Session
	Prober   *probe.Prober

	// DeviceURL returns the configured device endpoint, used when a probe
	// request names none.
	DeviceURL func() string
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps a domain error to its status code.
func respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, assistant.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, assistant.ErrEmptyMessage),
		errors.Is(err, profiles.ErrInvalidProfile),
		errors.Is(err, probe.ErrNoEndpoint):
		return http.StatusBadRequest
	case errors.Is(err, profiles.ErrUnknownProfile):
		return http.StatusNotFound
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, llm.ErrQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, assistant.ErrUpstream),
		errors.Is(err, assistant.ErrStreamInterrupted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
