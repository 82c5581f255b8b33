// Package persona loads and persists named persona definitions: display
// metadata, the system prompt, and voice-synthesis tunables. One JSON record
// per persona, keyed by name. Loads never fail hard; a missing or corrupt
// record resolves to the built-in default.
package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("persona not found")

// Record is a persisted persona definition. The on-disk schema is extensible;
// fields unknown to this struct are preserved across partial updates.
type Record struct {
	AvatarName        string             `json:"avatarName"`
	AvatarFullName    string             `json:"avatarFullName"`
	SystemInstruction string             `json:"systemInstruction"`
	AvatarImageIdle   string             `json:"avatarImageIdle"`
	AvatarImageTalk   string             `json:"avatarImageTalk"`
	VsayOptions       map[string]float64 `json:"vsayOptions"`
}

// DefaultVsayOptions returns the neutral voice parameter set.
func DefaultVsayOptions() map[string]float64 {
	return map[string]float64{
		"speed":      1.0,
		"pitch":      1.0,
		"intonation": 1.0,
		"tempo":      1.0,
	}
}

// Store reads and writes persona records under a single directory.
type Store struct {
	dir      string
	defaults Record
	log      zerolog.Logger
}

func NewStore(dir string, defaults Record, log zerolog.Logger) *Store {
	if defaults.VsayOptions == nil {
		defaults.VsayOptions = DefaultVsayOptions()
	}
	return &Store{dir: dir, defaults: defaults, log: log}
}

// Default returns a structurally-complete copy of the built-in default record.
func (s *Store) Default() Record {
	return fillDefaults(Record{}, s.defaults)
}

// Load resolves a persona by name. It never fails: an invalid name, missing
// file, or unparseable record yields the default record, and partially
// populated records are completed from the defaults.
func (s *Store) Load(name string) Record {
	path, ok := s.recordPath(name)
	if !ok {
		return s.Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("persona", name).Msg("persona record unreadable, using defaults")
		}
		return s.Default()
	}
	var rec Record
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		s.log.Warn().Err(err).Str("persona", name).Msg("persona record corrupt, using defaults")
		return s.Default()
	}
	return fillDefaults(rec, s.defaults)
}

// List returns the names of all personas present in the store, sorted
// lexicographically. A missing store directory yields an empty list.
func (s *Store) List() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := entry.Name()
		if !strings.HasSuffix(base, ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(base, ".json"))
	}
	sort.Strings(names)
	return names
}

// Exists reports whether a record file is present for the name.
func (s *Store) Exists(name string) bool {
	path, ok := s.recordPath(name)
	if !ok {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Save persists a complete record atomically.
func (s *Store) Save(name string, rec Record) error {
	path, ok := s.recordPath(name)
	if !ok {
		return fmt.Errorf("invalid persona name %q", name)
	}
	raw, err := sonic.Marshal(fillDefaults(rec, s.defaults))
	if err != nil {
		return fmt.Errorf("encode persona record: %w", err)
	}
	return s.writeAtomic(path, raw)
}

// EnsureDefault writes the default record under the given name unless a
// record already exists. Run once at startup so the store is never empty.
func (s *Store) EnsureDefault(name string) error {
	if s.Exists(name) {
		return nil
	}
	return s.Save(name, s.Default())
}

// Update merges partial fields into an existing record and persists the
// result atomically: either the full merged record lands, or the prior file
// is left intact. Fields not named in the partial, including fields this
// package does not know about, are preserved. Returns ErrNotFound when no
// record exists for the name.
func (s *Store) Update(name string, partial map[string]json.RawMessage) error {
	path, ok := s.recordPath(name)
	if !ok {
		return ErrNotFound
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("read persona record: %w", err)
	}

	existing := map[string]json.RawMessage{}
	if err := sonic.Unmarshal(raw, &existing); err != nil {
		return fmt.Errorf("decode persona record: %w", err)
	}

	for key, value := range partial {
		if key == "vsayOptions" {
			merged, err := mergeObjects(existing[key], value)
			if err != nil {
				return fmt.Errorf("merge vsayOptions: %w", err)
			}
			existing[key] = merged
			continue
		}
		existing[key] = value
	}

	out, err := sonic.Marshal(existing)
	if err != nil {
		return fmt.Errorf("encode persona record: %w", err)
	}
	return s.writeAtomic(path, out)
}

func mergeObjects(base, overlay json.RawMessage) (json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := sonic.Unmarshal(base, &merged); err != nil {
			return nil, err
		}
	}
	patch := map[string]json.RawMessage{}
	if len(overlay) > 0 {
		if err := sonic.Unmarshal(overlay, &patch); err != nil {
			return nil, err
		}
	}
	for k, v := range patch {
		merged[k] = v
	}
	return sonic.Marshal(merged)
}

func (s *Store) writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create persona dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write persona record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace persona record: %w", err)
	}
	return nil
}

// recordPath rejects names that would escape the store directory.
func (s *Store) recordPath(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return "", false
	}
	return filepath.Join(s.dir, name+".json"), true
}

func fillDefaults(rec, defaults Record) Record {
	if rec.AvatarName == "" {
		rec.AvatarName = defaults.AvatarName
	}
	if rec.AvatarFullName == "" {
		rec.AvatarFullName = defaults.AvatarFullName
	}
	if rec.SystemInstruction == "" {
		rec.SystemInstruction = defaults.SystemInstruction
	}
	if rec.AvatarImageIdle == "" {
		rec.AvatarImageIdle = defaults.AvatarImageIdle
	}
	if rec.AvatarImageTalk == "" {
		rec.AvatarImageTalk = defaults.AvatarImageTalk
	}
	opts := make(map[string]float64, len(defaults.VsayOptions))
	for k, v := range defaults.VsayOptions {
		opts[k] = v
	}
	for k, v := range rec.VsayOptions {
		opts[k] = v
	}
	rec.VsayOptions = opts
	return rec
}
