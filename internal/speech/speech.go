// Package speech generates spoken-audio assets for assistant replies by
// invoking the external vsay synthesizer, and owns the lifecycle of those
// assets: at most one current asset per session, with expired files swept
// from the asset directory.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"spectra/internal/sessionstore"
)

var (
	// ErrToolMissing means the synthesis executable is not present in the
	// execution environment.
	ErrToolMissing = errors.New("synthesis tool missing")
	// ErrSynthesisFailed means the tool ran but exited non-zero.
	ErrSynthesisFailed = errors.New("synthesis failed")
)

// Manager synthesizes audio assets and enforces the single-current-asset
// policy per session.
type Manager struct {
	toolPath string
	assetDir string
	timeout  time.Duration
	maxAge   time.Duration
	sessions sessionstore.Store
	log      zerolog.Logger

	sweepHook func(removed int)
}

type Config struct {
	ToolPath string
	AssetDir string
	Timeout  time.Duration
	MaxAge   time.Duration
}

func NewManager(cfg Config, sessions sessionstore.Store, log zerolog.Logger) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	return &Manager{
		toolPath: cfg.ToolPath,
		assetDir: cfg.AssetDir,
		timeout:  cfg.Timeout,
		maxAge:   cfg.MaxAge,
		sessions: sessions,
		log:      log,
	}
}

// Synthesize produces a fresh uniquely named audio file for the text and
// returns its path. Empty or whitespace-only text is a no-op: no process is
// spawned and an empty path is returned. Voice parameters are passed to the
// tool as named flags in sorted key order.
func (m *Manager) Synthesize(ctx context.Context, text string, voiceParams map[string]float64) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	toolPath, err := exec.LookPath(m.toolPath)
	if err != nil {
		return "", fmt.Errorf("%w: %q not found", ErrToolMissing, m.toolPath)
	}

	if err := os.MkdirAll(m.assetDir, 0o755); err != nil {
		return "", fmt.Errorf("create asset dir: %w", err)
	}
	outPath := filepath.Join(m.assetDir, uuid.NewString()+".wav")

	args := []string{"say", "-q", "-s", outPath}
	keys := make([]string, 0, len(voiceParams))
	for k := range voiceParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--"+k, strconv.FormatFloat(voiceParams[k], 'f', -1, 64))
	}
	args = append(args, text)

	runCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, toolPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(outPath)
		if runCtx.Err() != nil {
			// exec.CommandContext may surface "signal: killed" instead of the
			// context error.
			return "", fmt.Errorf("%w: %v", ErrSynthesisFailed, runCtx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("%w: %v: %s", ErrSynthesisFailed, err, detail)
		}
		return "", fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	return outPath, nil
}

// Record registers path as the session's current asset.
func (m *Manager) Record(ctx context.Context, sessionID, path string) error {
	return m.sessions.Set(ctx, sessionID, sessionstore.KeyAudioPath, path)
}

// Current returns the session's recorded asset path, if any.
func (m *Manager) Current(ctx context.Context, sessionID string) (string, bool, error) {
	return m.sessions.Get(ctx, sessionID, sessionstore.KeyAudioPath)
}

// Supersede deletes the session's previously recorded asset. The recorded
// path is cleared before the file is removed so a failed delete cannot be
// retried against an already-superseded asset. Deletion errors are logged,
// never propagated.
func (m *Manager) Supersede(ctx context.Context, sessionID string) error {
	path, ok, err := m.sessions.Get(ctx, sessionID, sessionstore.KeyAudioPath)
	if err != nil {
		return fmt.Errorf("lookup current asset: %w", err)
	}
	if !ok || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := m.sessions.Delete(ctx, sessionID, sessionstore.KeyAudioPath); err != nil {
		return fmt.Errorf("clear current asset: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.log.Warn().Err(err).Str("path", path).Msg("failed to delete superseded asset")
	}
	return nil
}

// SetSweepHook registers a callback invoked with the removal count after each
// sweep that deleted at least one asset. Must be called before StartJanitor.
func (m *Manager) SetSweepHook(hook func(removed int)) {
	m.sweepHook = hook
}

// SweepExpired deletes every asset file whose modification time is older
// than maxAge and reports how many were removed.
func (m *Manager) SweepExpired(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.assetDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read asset dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.assetDir, entry.Name())
		if err := os.Remove(path); err != nil {
			m.log.Warn().Err(err).Str("path", path).Msg("failed to delete expired asset")
			continue
		}
		removed++
	}
	if removed > 0 && m.sweepHook != nil {
		m.sweepHook(removed)
	}
	return removed, nil
}

// StartJanitor sweeps expired assets on a ticker until ctx is cancelled.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := m.SweepExpired(m.maxAge)
				if err != nil {
					m.log.Warn().Err(err).Msg("asset sweep failed")
					continue
				}
				if removed > 0 {
					m.log.Info().Int("removed", removed).Msg("swept expired audio assets")
				}
			}
		}
	}()
}
