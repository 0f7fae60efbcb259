package nodes

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/defi-rag-assistant/server/internal/agent/graph/conversations"
	"github.com/defi-rag-assistant/server/internal/agent/graph/prompts"
	"github.com/defi-rag-assistant/server/internal/agent/model"
	errx "github.com/defi-rag-assistant/server/internal/core/error"
)

// AnswerGenerator produces the final answer from the formatted context.
type AnswerGenerator struct {
	chatModel einomodel.BaseChatModel
	modelName string
	memory    *conversations.MemoryManager
}

func NewAnswerGenerator(chatModel einomodel.BaseChatModel, modelName string, memory *conversations.MemoryManager) *AnswerGenerator {
	return &AnswerGenerator{chatModel: chatModel, modelName: modelName, memory: memory}
}

// Answer records the turn into session memory, renders the answer prompt and
// calls the answer model. The memory write happens before the model call and
// stores the context, not the answer. Model failures are fatal and surface as
// an LLM AppError.
func (g *AnswerGenerator) Answer(ctx context.Context, sessionID, marketContext, query string, history []model.ConversationTurn) (*schema.Message, error) {
	if err := g.memory.RecordTurn(ctx, sessionID, query, marketContext); err != nil {
		return nil, err
	}

	instruction, err := prompts.RenderAnswerPrompt(componentCtx(ctx, NodeAnswerGenerator, components.ComponentOfPrompt), marketContext, query)
	if err != nil {
		return nil, err
	}
	msgs := g.memory.BuildAnswerMessages(history, instruction)

	out, err := g.chatModel.Generate(componentCtx(ctx, g.modelName, components.ComponentOfChatModel), msgs)
	if err != nil {
		return nil, errx.WrapLLM(err)
	}
	if out == nil {
		return nil, errx.WrapLLM(errors.New("empty model response"))
	}
	return out, nil
}
