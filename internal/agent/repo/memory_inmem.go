package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/defi-rag-assistant/server/internal/agent/model"
)

// InMemoryStore keeps session memory for the lifetime of the process.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]*schema.Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]*schema.Message)}
}

func (s *InMemoryStore) Record(_ context.Context, sessionID, input, output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID],
		schema.UserMessage(input),
		schema.AssistantMessage(output, nil),
	)
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, sessionID string) (*model.MemoryHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.sessions[sessionID]
	msgs := make([]*schema.Message, len(stored))
	for i, m := range stored {
		cp := *m
		msgs[i] = &cp
	}
	return &model.MemoryHistory{SessionID: sessionID, Messages: msgs}, nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *InMemoryStore) Count(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID]), nil
}

var _ model.MemoryStore = (*InMemoryStore)(nil)
