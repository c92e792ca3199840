package handlers

import (
	"net/http"
	"strconv"

	"github.com/sproutwatch/sproutwatch/internal/dashboard"
	"github.com/sproutwatch/sproutwatch/internal/profiles"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

// ── Profiles ────────────────────────────────────────────────

func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, profiles.Catalog())
}

func (h *Handlers) GetActiveProfile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Profiles.Active())
}

// SelectProfile makes a catalog profile active.
func (h *Handlers) SelectProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.ID == "" {
		respondError(w, http.StatusBadRequest, "Invalid request body: id is required")
		return
	}

	p, err := h.Profiles.Select(r.Context(), req.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// ── Readings & Dashboard ────────────────────────────────────

func (h *Handlers) LatestReading(w http.ResponseWriter, r *http.Request) {
	reading := h.Sampler.Latest()
	if reading == nil {
		respondError(w, http.StatusNotFound, "no reading sampled yet")
		return
	}
	respondJSON(w, http.StatusOK, reading)
}

func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	snap := dashboard.Build(h.Sampler.Latest(), h.Profiles.Active(), h.Actuator.LightOn())
	respondJSON(w, http.StatusOK, snap)
}

// ListActivity returns the log newest first. ?limit=n trims it.
func (h *Handlers) ListActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries := h.Activity.Entries(limit)
	if entries == nil {
		entries = []models.ActivityEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// ── Actions ─────────────────────────────────────────────────

func (h *Handlers) Water(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Actuator.Water(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, entry)
}

func (h *Handlers) ToggleLight(w http.ResponseWriter, r *http.Request) {
	on, entry, err := h.Actuator.ToggleLight(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"light_on": on,
		"activity": entry,
	})
}

// ── Connectivity ────────────────────────────────────────────

func (h *Handlers) LastProbe(w http.ResponseWriter, r *http.Request) {
	res, ok := h.Prober.Last()
	if !ok {
		respondError(w, http.StatusNotFound, "no probe has run yet")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// RunProbe checks the given url, or the configured device when the body is
// empty or names none.
func (h *Handlers) RunProbe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.URL == "" && h.DeviceURL != nil {
		req.URL = h.DeviceURL()
	}

	res, err := h.Prober.Check(r.Context(), req.URL)
	if err != nil {
		respondErr(w, err)
		return
	}
	if res.Connected {
		h.Activity.Add("Device connection check: "+string(res.Status), string(res.Status))
	} else {
		h.Activity.Add("Device connection check failed: "+res.Message, res.Message)
	}
	respondJSON(w, http.StatusOK, res)
}
