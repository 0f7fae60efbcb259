package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/prompt"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

// newPromptHandler builds a typed PromptCallbackHandler that logs rendered prompts.
func newPromptHandler(sessionID string) *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			if output != nil && len(output.Result) > 0 && output.Result[0] != nil {
				logx.Debug().
					Str("session_id", sessionID).
					Str("name", info.Name).
					Str("rendered", clip(output.Result[0].Content)).
					Msg("Prompt rendered")
			}
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Warn().
				Err(err).
				Str("session_id", sessionID).
				Str("name", info.Name).
				Msg("Prompt render failed")
			return ctx
		},
	}
}
