package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/answer_prompt.txt
var answerPrompt string

// RenderAnswerPrompt renders the answer instruction embedding the formatted
// market data context and the raw user question.
func RenderAnswerPrompt(ctx context.Context, marketContext, query string) (*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.UserMessage(answerPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"Context": marketContext,
		"Query":   query,
	})
	if err != nil {
		return nil, fmt.Errorf("answer prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("answer prompt render: empty result")
	}
	return msgs[0], nil
}
