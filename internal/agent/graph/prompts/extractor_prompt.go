package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/defi-rag-assistant/server/internal/agent/model"
)

//go:embed template/extractor_prompt.txt
var extractorPrompt string

// RenderExtractorPrompt renders the intent extraction instruction for a query
// via the Eino prompt component, which also emits prompt callbacks.
func RenderExtractorPrompt(ctx context.Context, query string) (*schema.Message, error) {
	intents := make([]string, 0, len(model.Intents))
	for _, i := range model.Intents {
		intents = append(intents, string(i))
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.UserMessage(extractorPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"Query":   query,
		"Intents": strings.Join(intents, ", "),
	})
	if err != nil {
		return nil, fmt.Errorf("extractor prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("extractor prompt render: empty result")
	}
	return msgs[0], nil
}
