package httpapi

import (
	"embed"
	"html/template"
	"net/http"
)

//go:embed static/index.html
var embeddedStatic embed.FS

var indexTemplate = template.Must(template.ParseFS(embeddedStatic, "static/index.html"))

type indexData struct {
	AvatarName               string
	AvatarFullName           string
	AvatarImageIdle          string
	AvatarImageTalk          string
	TypewriterDelayMS        int64
	MouthAnimationIntervalMS int64
	BeepFrequencyHz          int
	BeepDurationMS           int64
	BeepVolume               float64
	BeepVolumeEnd            float64
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sessionID := s.sessionID(w, r)
	_, rec, err := s.orchestrator.CurrentPersona(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "persona_lookup_failed", err.Error())
		return
	}

	data := indexData{
		AvatarName:               rec.AvatarName,
		AvatarFullName:           rec.AvatarFullName,
		AvatarImageIdle:          rec.AvatarImageIdle,
		AvatarImageTalk:          rec.AvatarImageTalk,
		TypewriterDelayMS:        s.cfg.TypewriterDelay.Milliseconds(),
		MouthAnimationIntervalMS: s.cfg.MouthAnimationInterval.Milliseconds(),
		BeepFrequencyHz:          s.cfg.BeepFrequencyHz,
		BeepDurationMS:           s.cfg.BeepDuration.Milliseconds(),
		BeepVolume:               s.cfg.BeepVolume,
		BeepVolumeEnd:            s.cfg.BeepVolumeEnd,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.log.Error().Err(err).Msg("rendering index page")
	}
}
