package transcript

import (
	"context"
	"time"
)

// TurnRecord stores a single user or assistant conversational entry.
type TurnRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Persona   string    `json:"persona"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store archives completed chat turns for later review. Archive failures are
// never fatal to a turn.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	Recent(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
	Close() error
}
