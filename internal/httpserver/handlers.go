package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/owenriverk/recgov-permit-checker/internal/logger"
	"github.com/owenriverk/recgov-permit-checker/internal/models"
	"github.com/owenriverk/recgov-permit-checker/internal/preferences"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	store    PreferenceStore
	sections map[string]bool
}

type preferenceRequest struct {
	Email     string   `json:"email"`
	Sections  []string `json:"sections"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
}

type saveResponse struct {
	Status           string `json:"status"`
	ID               string `json:"id"`
	TotalPreferences int    `json:"total_preferences"`
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Permit checker is running!"})
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if err := h.store.Ping(r.Context()); err != nil {
		logger.Warn("Health check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) savePreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	for _, s := range req.Sections {
		if !h.sections[s] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown section %q", s))
			return
		}
	}

	p := &models.Preference{
		Email:     req.Email,
		Sections:  req.Sections,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := h.store.Save(r.Context(), p); err != nil {
		if errors.Is(err, preferences.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("Failed to save preference: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save preference")
		return
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		logger.Error("Failed to count preferences: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to count preferences")
		return
	}

	logger.Info("Saved preference %s for %s (%d sections)", p.ID, p.Email, len(p.Sections))
	writeJSON(w, http.StatusCreated, saveResponse{Status: "saved", ID: p.ID, TotalPreferences: total})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
