package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks aggregates the prompt and chat model observers into one callbacks.Handler.
func NewAllCallbacks(sessionID string) einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler(sessionID)).
		Prompt(newPromptHandler(sessionID)).
		Handler()
}
