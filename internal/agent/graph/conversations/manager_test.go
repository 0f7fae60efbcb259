package conversations

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-rag-assistant/server/internal/agent/model"
	"github.com/defi-rag-assistant/server/internal/agent/repo"
)

type failingStore struct {
	model.MemoryStore
}

func (failingStore) Record(context.Context, string, string, string) error {
	return errors.New("store down")
}

var history = []model.ConversationTurn{
	{Role: "assistant", Content: "Hello! I'm your DeFi assistant."},
	{Role: "user", Content: "What is Aave?"},
	{Role: "assistant", Content: "A lending protocol."},
	{Role: "user", Content: ""},
}

func TestBuildAnswerMessagesWithoutHistory(t *testing.T) {
	mm := NewMemoryManager(repo.NewInMemoryStore(), 0)
	instruction := schema.UserMessage("instruction")

	msgs := mm.BuildAnswerMessages(history, instruction)
	require.Len(t, msgs, 1)
	assert.Same(t, instruction, msgs[0])
}

func TestBuildAnswerMessagesKeepsLastTurns(t *testing.T) {
	mm := NewMemoryManager(repo.NewInMemoryStore(), 2)
	msgs := mm.BuildAnswerMessages(history, schema.UserMessage("instruction"))

	require.Len(t, msgs, 3)
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Equal(t, "What is Aave?", msgs[0].Content)
	assert.Equal(t, schema.Assistant, msgs[1].Role)
	assert.Equal(t, "instruction", msgs[2].Content)
}

func TestBuildAnswerMessagesNegativeTurns(t *testing.T) {
	mm := NewMemoryManager(repo.NewInMemoryStore(), -3)
	assert.Len(t, mm.BuildAnswerMessages(history, schema.UserMessage("i")), 1)
}

func TestRecordTurnHistoryEvict(t *testing.T) {
	ctx := context.Background()
	mm := NewMemoryManager(repo.NewInMemoryStore(), 0)

	require.NoError(t, mm.RecordTurn(ctx, "s1", "What is Aave's TVL?", "Protocol: aave"))
	h, err := mm.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, "Protocol: aave", h.Messages[1].Content)

	require.NoError(t, mm.Evict(ctx, "s1"))
	h, err = mm.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, h.Messages)

	assert.Error(t, mm.RecordTurn(ctx, " ", "q", "c"))
}

func TestRecordTurnPropagatesStoreErrors(t *testing.T) {
	mm := NewMemoryManager(failingStore{}, 0)
	err := mm.RecordTurn(context.Background(), "s1", "q", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
}

func TestTrimTail(t *testing.T) {
	msgs := []*schema.Message{schema.UserMessage("1"), schema.UserMessage("2"), schema.UserMessage("3")}
	assert.Len(t, trimTail(msgs, 5), 3)
	got := trimTail(msgs, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Content)
	assert.Empty(t, trimTail(msgs, 0))
}
