package nodes

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/defi-rag-assistant/server/internal/agent/graph/parsers"
	"github.com/defi-rag-assistant/server/internal/agent/graph/prompts"
	"github.com/defi-rag-assistant/server/internal/agent/model"
	"github.com/defi-rag-assistant/server/internal/observability/metrics"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

// Fallback reasons reported on the descriptor fallback counter.
const (
	FallbackEmptyQuery  = "empty_query"
	FallbackPromptError = "prompt_error"
	FallbackModelError  = "model_error"
	FallbackParseError  = "parse_error"
)

// IntentExtractor turns free text into a QueryDescriptor with one model call.
// It never fails: any problem yields model.DefaultQueryDescriptor.
type IntentExtractor struct {
	chatModel einomodel.BaseChatModel
	modelName string
}

func NewIntentExtractor(chatModel einomodel.BaseChatModel, modelName string) *IntentExtractor {
	return &IntentExtractor{chatModel: chatModel, modelName: modelName}
}

// Extract renders the extraction instruction for query and classifies it.
// The raw model reply is returned for usage accounting and is nil when no
// reply was received.
func (e *IntentExtractor) Extract(ctx context.Context, query string) (model.QueryDescriptor, *schema.Message) {
	if strings.TrimSpace(query) == "" {
		return fallback(FallbackEmptyQuery, errors.New("empty query"), ""), nil
	}

	msg, err := prompts.RenderExtractorPrompt(componentCtx(ctx, NodeIntentExtractor, components.ComponentOfPrompt), query)
	if err != nil {
		return fallback(FallbackPromptError, err, ""), nil
	}

	out, err := e.chatModel.Generate(componentCtx(ctx, e.modelName, components.ComponentOfChatModel), []*schema.Message{msg})
	if err != nil {
		return fallback(FallbackModelError, err, ""), nil
	}
	if out == nil {
		return fallback(FallbackModelError, errors.New("empty model response"), ""), nil
	}

	d, err := parsers.ParseQueryDescriptor(out.Content)
	if err != nil {
		return fallback(FallbackParseError, err, out.Content), out
	}
	return d, out
}

func fallback(reason string, err error, content string) model.QueryDescriptor {
	metrics.DescriptorFallbacks.WithLabelValues(reason).Inc()
	ev := logx.Warn().Str("reason", reason)
	if err != nil {
		ev = ev.Err(err)
	}
	if content != "" {
		ev = ev.Int("content_len", len(content))
	}
	ev.Msg("Intent extraction failed, using default descriptor")
	return model.DefaultQueryDescriptor()
}
