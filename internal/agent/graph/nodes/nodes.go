package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/defi-rag-assistant/server/internal/agent/formatter"
	"github.com/defi-rag-assistant/server/internal/agent/model"
	"github.com/defi-rag-assistant/server/internal/agent/retrieval"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

// Graph node keys, in execution order.
const (
	NodeInputConverter   = "InputConverter"
	NodeIntentExtractor  = "IntentExtractor"
	NodeDataFetcher      = "DataFetcher"
	NodeContextFormatter = "ContextFormatter"
	NodeAnswerGenerator  = "AnswerGenerator"
)

// NewInputConverterPreHandler seeds the invocation state from the query input
func NewInputConverterPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.SessionID = in.SessionID
		s.Query = in.Query
		s.History = in.History
		s.Descriptor = nil
		s.Context = ""
		// Reset accumulated total cost for each new query
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode hands the trimmed query to the extractor
func NewInputConverterNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) (string, error) {
		return strings.TrimSpace(input.Query), nil
	})
}

// NewIntentExtractorNode classifies the query. Prompt, model and parse failures
// fall back to the default descriptor so this node never fails the graph.
func NewIntentExtractorNode(extractor *IntentExtractor, modelName string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, query string) (model.QueryDescriptor, error) {
		d, raw := extractor.Extract(ctx, query)
		if raw != nil {
			err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
				applyUsageCost(state, NodeIntentExtractor, modelName, raw)
				return nil
			})
			if err != nil {
				logx.Warn().Err(err).Msg("Unable to record extractor usage")
			}
		}
		return d, nil
	})
}

// NewIntentExtractorPostHandler saves the descriptor to state
func NewIntentExtractorPostHandler() func(context.Context, model.QueryDescriptor, *model.AppState) (model.QueryDescriptor, error) {
	return func(ctx context.Context, out model.QueryDescriptor, state *model.AppState) (model.QueryDescriptor, error) {
		d := out
		state.Descriptor = &d

		logx.Debug().
			Str("session_id", state.SessionID).
			Str("intent", string(out.Intent)).
			Strs("protocols", out.Protocols).
			Strs("chains", out.Chains).
			Strs("metrics", out.Metrics).
			Msg("Intent extracted")
		return out, nil
	}
}

// NewDataFetcherNode retrieves the market data the descriptor asks for
func NewDataFetcherNode(orchestrator *retrieval.Orchestrator) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, d model.QueryDescriptor) (model.RetrievalResult, error) {
		return model.RetrievalResult{
			Descriptor: d,
			Data:       orchestrator.Fetch(ctx, d),
		}, nil
	})
}

// NewContextFormatterNode renders the fetched data as plain text
func NewContextFormatterNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.RetrievalResult) (string, error) {
		return formatter.FormatContext(in.Descriptor, in.Data), nil
	})
}

// NewContextFormatterPostHandler saves the formatted context to state
func NewContextFormatterPostHandler() func(context.Context, string, *model.AppState) (string, error) {
	return func(ctx context.Context, out string, state *model.AppState) (string, error) {
		state.Context = out
		logx.Debug().
			Str("session_id", state.SessionID).
			Int("context_len", len(out)).
			Bool("fallback", out == formatter.FallbackContext).
			Msg("Context formatted")
		return out, nil
	}
}

// NewAnswerGeneratorNode records the turn and asks the answer model
func NewAnswerGeneratorNode(generator *AnswerGenerator) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, marketContext string) (*schema.Message, error) {
		var (
			sessionID string
			query     string
			history   []model.ConversationTurn
		)
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			sessionID = state.SessionID
			query = state.Query
			history = state.History
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		return generator.Answer(ctx, sessionID, marketContext, query, history)
	})
}

// NewAnswerGeneratorPostHandler computes and logs usage cost for the answer model
func NewAnswerGeneratorPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		applyUsageCost(state, NodeAnswerGenerator, modelName, out)
		logx.Debug().
			Str("session_id", state.SessionID).
			Float64("total_cost_usd", state.TotalCostUSD).
			Msg("Answer ready")
		return out, nil
	}
}
