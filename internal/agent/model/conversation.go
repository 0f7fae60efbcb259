package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// MemoryStore persists the per-session memory written by the answer stage.
// Each Record call appends one user message (the question) and one assistant
// message (the context the answer was grounded in).
type MemoryStore interface {
	// Record appends one input/output pair to the session's memory
	Record(ctx context.Context, sessionID, input, output string) error

	// Load retrieves the recorded memory for a session
	Load(ctx context.Context, sessionID string) (*MemoryHistory, error)

	// Clear removes all memory for a session
	Clear(ctx context.Context, sessionID string) error

	// Count returns the number of messages recorded for a session
	Count(ctx context.Context, sessionID string) (int, error)
}

// MemoryHistory represents loaded session memory.
type MemoryHistory struct {
	SessionID string
	Messages  []*schema.Message
}
