package httpapi

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"spectra/internal/backend"
)

// maxUploadBytes bounds the multipart body so an oversized image upload
// cannot exhaust memory.
const maxUploadBytes = 10 << 20

type chatResponse struct {
	Response string  `json:"response"`
	AudioURL *string `json:"audio_url"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "expected multipart form data: "+err.Error())
		return
	}

	message := r.FormValue("message")
	if strings.TrimSpace(message) == "" {
		respondError(w, http.StatusBadRequest, "missing_message", "field message is required")
		return
	}

	var images []string
	if file, _, err := r.FormFile("image"); err == nil {
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			respondError(w, http.StatusBadRequest, "invalid_image", readErr.Error())
			return
		}
		if len(data) > 0 {
			images = append(images, base64.StdEncoding.EncodeToString(data))
		}
	}

	sessionID := s.sessionID(w, r)
	result, err := s.orchestrator.RunTurn(r.Context(), sessionID, message, images)
	if err != nil {
		if errors.Is(err, backend.ErrUnavailable) {
			respondError(w, http.StatusBadGateway, "backend_unavailable", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "chat_failed", err.Error())
		return
	}

	resp := chatResponse{Response: result.Text}
	if result.AudioURL != "" {
		resp.AudioURL = &result.AudioURL
	}
	s.hub.Broadcast(turnEvent{Type: "turn", Response: result.Text, AudioURL: result.AudioURL})
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := s.sessionID(w, r)
	if err := s.orchestrator.ResetSession(r.Context(), sessionID); err != nil {
		respondError(w, http.StatusInternalServerError, "reset_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := s.sessionID(w, r)
	history, err := s.orchestrator.History(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleAudioAsset(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(strings.TrimSpace(chi.URLParam(r, "file")))
	if name == "" || name == "." || name == string(filepath.Separator) {
		respondError(w, http.StatusNotFound, "asset_not_found", "no such audio asset")
		return
	}
	http.ServeFile(w, r, filepath.Join(s.cfg.AssetDir, name))
}
