package conversations

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/defi-rag-assistant/server/internal/agent/model"
)

// MemoryManager owns the session memory written by the answer stage and
// assembles the answer model's message list.
type MemoryManager struct {
	store           model.MemoryStore
	historyMaxTurns int
}

func NewMemoryManager(store model.MemoryStore, historyMaxTurns int) *MemoryManager {
	if historyMaxTurns < 0 {
		historyMaxTurns = 0
	}
	return &MemoryManager{
		store:           store,
		historyMaxTurns: historyMaxTurns,
	}
}

// RecordTurn stores the question together with the context it was answered from.
func (mm *MemoryManager) RecordTurn(ctx context.Context, sessionID, query, marketContext string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("record turn: empty session id")
	}
	if err := mm.store.Record(ctx, sessionID, query, marketContext); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// History returns what has been recorded for a session.
func (mm *MemoryManager) History(ctx context.Context, sessionID string) (*model.MemoryHistory, error) {
	return mm.store.Load(ctx, sessionID)
}

// Evict drops a session's memory.
func (mm *MemoryManager) Evict(ctx context.Context, sessionID string) error {
	return mm.store.Clear(ctx, sessionID)
}

// BuildAnswerMessages places the last historyMaxTurns caller turns ahead of the
// instruction message. With no turns configured only the instruction is sent.
func (mm *MemoryManager) BuildAnswerMessages(history []model.ConversationTurn, instruction *schema.Message) []*schema.Message {
	prior := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		prior = append(prior, turn.Message())
	}

	messages := trimTail(prior, mm.historyMaxTurns)
	return append(messages, instruction)
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 {
		return []*schema.Message{}
	}
	if len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
