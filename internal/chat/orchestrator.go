// Package chat binds the per-turn control flow: resolve persona, thread
// conversation history, invoke the model backend, and manage the reply's
// audio asset.
package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spectra/internal/backend"
	"spectra/internal/conversation"
	"spectra/internal/observability"
	"spectra/internal/persona"
	"spectra/internal/sessionstore"
	"spectra/internal/speech"
	"spectra/internal/transcript"
)

// AudioURLPrefix is where synthesized assets are served from.
const AudioURLPrefix = "/static/audio/"

// TurnResult is the outcome of one completed chat turn. AudioURL is empty
// when no asset was produced.
type TurnResult struct {
	Text     string
	AudioURL string
}

// Orchestrator runs chat turns and persona operations for sessions.
type Orchestrator struct {
	personas       *persona.Store
	sessions       sessionstore.Store
	conversations  *conversation.Manager
	backend        backend.Backend
	assets         *speech.Manager
	transcripts    transcript.Store
	metrics        *observability.Metrics
	log            zerolog.Logger
	defaultPersona string

	mu        sync.Mutex
	turnLocks map[string]*sync.Mutex
}

func NewOrchestrator(
	personas *persona.Store,
	sessions sessionstore.Store,
	be backend.Backend,
	assets *speech.Manager,
	transcripts transcript.Store,
	metrics *observability.Metrics,
	log zerolog.Logger,
	defaultPersona string,
) *Orchestrator {
	return &Orchestrator{
		personas:       personas,
		sessions:       sessions,
		conversations:  conversation.NewManager(sessions),
		backend:        be,
		assets:         assets,
		transcripts:    transcripts,
		metrics:        metrics,
		log:            log,
		defaultPersona: defaultPersona,
		turnLocks:      make(map[string]*sync.Mutex),
	}
}

// RunTurn executes one chat turn for a session. Backend failure aborts the
// turn with history untouched; synthesis failure degrades to a reply without
// audio. Turns for the same session are serialized so the supersede-then-
// create sequence never races against itself.
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID, message string, images []string) (TurnResult, error) {
	lock := o.turnLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	name, rec, err := o.CurrentPersona(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	history, err := o.conversations.StartOrContinue(ctx, sessionID, rec.SystemInstruction, o.backend.SystemInHistory())
	if err != nil {
		return TurnResult{}, err
	}

	var reply string
	if len(images) > 0 && !o.backend.SupportsImages() {
		// Declared variant limitation: answer with the fixed placeholder and
		// record the turn, without contacting the backend.
		reply = backend.UnsupportedImageReply
		o.metrics.ChatTurns.WithLabelValues(o.backend.Name(), "unsupported_input").Inc()
	} else {
		start := time.Now()
		reply, err = o.backend.Generate(ctx, backend.Request{
			SystemPrompt: rec.SystemInstruction,
			History:      history,
			UserText:     message,
			Images:       images,
		})
		o.metrics.ObserveBackendLatency(time.Since(start))
		if err != nil {
			o.metrics.ChatTurns.WithLabelValues(o.backend.Name(), "unavailable").Inc()
			return TurnResult{}, fmt.Errorf("generate reply: %w", err)
		}
		o.metrics.ChatTurns.WithLabelValues(o.backend.Name(), "ok").Inc()
	}

	userMsg := conversation.Message{Role: conversation.RoleUser, Content: message, Images: images}
	assistantMsg := conversation.Message{Role: conversation.RoleAssistant, Content: reply}
	if err := o.conversations.AppendTurn(ctx, sessionID, userMsg, assistantMsg); err != nil {
		return TurnResult{}, fmt.Errorf("append turn: %w", err)
	}
	o.archive(ctx, sessionID, name, userMsg, assistantMsg)

	if err := o.assets.Supersede(ctx, sessionID); err != nil {
		o.log.Warn().Err(err).Str("session", sessionID).Msg("asset supersede failed")
	}

	result := TurnResult{Text: reply}
	assetPath, err := o.assets.Synthesize(ctx, reply, rec.VsayOptions)
	if err != nil {
		o.metrics.SynthesisResults.WithLabelValues("failed").Inc()
		o.log.Warn().Err(err).Str("session", sessionID).Msg("speech synthesis failed, responding without audio")
	} else if assetPath != "" {
		if err := o.assets.Record(ctx, sessionID, assetPath); err != nil {
			o.log.Warn().Err(err).Str("session", sessionID).Msg("failed to record asset path")
		}
		o.metrics.SynthesisResults.WithLabelValues("ok").Inc()
		result.AudioURL = AudioURLPrefix + filepath.Base(assetPath)
	} else {
		o.metrics.SynthesisResults.WithLabelValues("skipped").Inc()
	}

	return result, nil
}

// CurrentPersona resolves the session's active persona, falling back to the
// process default.
func (o *Orchestrator) CurrentPersona(ctx context.Context, sessionID string) (string, persona.Record, error) {
	name, ok, err := o.sessions.Get(ctx, sessionID, sessionstore.KeyPersona)
	if err != nil {
		return "", persona.Record{}, fmt.Errorf("resolve persona: %w", err)
	}
	if !ok || name == "" {
		name = o.defaultPersona
	}
	return name, o.personas.Load(name), nil
}

// SwitchPersona activates a different persona for the session. The held
// history is invalidated and the current audio asset is superseded. Returns
// persona.ErrNotFound for names without a stored record.
func (o *Orchestrator) SwitchPersona(ctx context.Context, sessionID, name string) error {
	lock := o.turnLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if !o.personas.Exists(name) {
		return persona.ErrNotFound
	}
	if err := o.sessions.Set(ctx, sessionID, sessionstore.KeyPersona, name); err != nil {
		return fmt.Errorf("switch persona: %w", err)
	}
	if err := o.conversations.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	if err := o.assets.Supersede(ctx, sessionID); err != nil {
		o.log.Warn().Err(err).Str("session", sessionID).Msg("asset supersede failed on persona switch")
	}
	o.metrics.SessionEvents.WithLabelValues("persona_switch").Inc()
	return nil
}

// ResetSession discards the session's history and current asset.
func (o *Orchestrator) ResetSession(ctx context.Context, sessionID string) error {
	lock := o.turnLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := o.assets.Supersede(ctx, sessionID); err != nil {
		o.log.Warn().Err(err).Str("session", sessionID).Msg("asset supersede failed on reset")
	}
	if err := o.sessions.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	o.metrics.SessionEvents.WithLabelValues("reset").Inc()
	return nil
}

// History exposes the session's stored message list.
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	return o.conversations.History(ctx, sessionID)
}

func (o *Orchestrator) archive(ctx context.Context, sessionID, personaName string, msgs ...conversation.Message) {
	if o.transcripts == nil {
		return
	}
	for _, msg := range msgs {
		err := o.transcripts.SaveTurn(ctx, transcript.TurnRecord{
			SessionID: sessionID,
			Persona:   personaName,
			Role:      string(msg.Role),
			Content:   msg.Content,
		})
		if err != nil {
			o.log.Warn().Err(err).Str("session", sessionID).Msg("transcript archive failed")
		}
	}
}

func (o *Orchestrator) turnLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.turnLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.turnLocks[sessionID] = lock
	}
	return lock
}
