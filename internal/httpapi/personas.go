package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"spectra/internal/persona"
)

func (s *Server) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"personas": s.personas.List()})
}

func (s *Server) handleGetCurrentPersona(w http.ResponseWriter, r *http.Request) {
	sessionID := s.sessionID(w, r)
	name, rec, err := s.orchestrator.CurrentPersona(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "persona_lookup_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"name":   name,
		"config": rec,
	})
}

type switchPersonaRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSwitchPersona(w http.ResponseWriter, r *http.Request) {
	var req switchPersonaRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing_persona_name", "field name is required")
		return
	}

	sessionID := s.sessionID(w, r)
	if err := s.orchestrator.SwitchPersona(r.Context(), sessionID, name); err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			respondError(w, http.StatusNotFound, "persona_not_found", "no persona named "+name)
			return
		}
		respondError(w, http.StatusInternalServerError, "persona_switch_failed", err.Error())
		return
	}

	_, rec, err := s.orchestrator.CurrentPersona(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "persona_lookup_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"name":   name,
		"config": rec,
	})
}

type personaSettingsRequest struct {
	Name     string                     `json:"name"`
	Settings map[string]json.RawMessage `json:"settings"`
}

func (s *Server) handleUpdatePersonaSettings(w http.ResponseWriter, r *http.Request) {
	var req personaSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing_persona_name", "field name is required")
		return
	}
	if len(req.Settings) == 0 {
		respondError(w, http.StatusBadRequest, "missing_settings", "field settings is required")
		return
	}

	if err := s.personas.Update(name, req.Settings); err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			respondError(w, http.StatusNotFound, "persona_not_found", "no persona named "+name)
			return
		}
		respondError(w, http.StatusInternalServerError, "persona_update_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"name":   name,
		"config": s.personas.Load(name),
	})
}
