package sessionstore

import "context"

// Well-known keys held per session.
const (
	KeyPersona   = "persona"
	KeyHistory   = "history"
	KeyAudioPath = "audio_path"
)

// Store is a key-value store scoped to a client session. Values are opaque
// strings; callers own serialization. A missing key is not an error.
type Store interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Delete(ctx context.Context, sessionID, key string) error
	Clear(ctx context.Context, sessionID string) error
	Close() error
}
