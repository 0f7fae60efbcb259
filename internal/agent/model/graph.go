package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
type AppState struct {
	SessionID  string
	Query      string
	History    []ConversationTurn
	Descriptor *QueryDescriptor // set by the extractor post-handler
	Context    string           // formatted market data handed to the answer model

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// ConversationTurn is one message of the caller-owned chat history.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message converts the turn into an Eino message. Unknown roles are sent as user text.
func (t ConversationTurn) Message() *schema.Message {
	if t.Role == string(schema.Assistant) {
		return schema.AssistantMessage(t.Content, nil)
	}
	return schema.UserMessage(t.Content)
}

// QueryInput represents the input for processing user queries.
type QueryInput struct {
	SessionID string             `json:"session_id"`
	Query     string             `json:"query"`
	History   []ConversationTurn `json:"history,omitempty"`
}

// RetrievalResult carries the descriptor together with the data fetched for it.
type RetrievalResult struct {
	Descriptor QueryDescriptor
	Data       FetchedDataSet
}
