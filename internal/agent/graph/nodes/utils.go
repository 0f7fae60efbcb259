package nodes

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/schema"

	"github.com/defi-rag-assistant/server/internal/agent/model"
	"github.com/defi-rag-assistant/server/internal/observability/metrics"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

// applyUsageCost prices the usage reported on out, exposes it in out.Extra and
// accumulates it into the invocation state.
func applyUsageCost(state *model.AppState, node, modelName string, out *schema.Message) {
	cost, ok := model.MessageCost(modelName, out)
	if !ok {
		return
	}
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = cost

	logx.Debug().
		Str("session_id", state.SessionID).
		Str("node", node).
		Str("model", modelName).
		Int("prompt_tokens", cost.PromptTokens).
		Int("completion_tokens", cost.CompletionTokens).
		Int("total_tokens", cost.TotalTokens).
		Float64("input_cost_usd", cost.InputCost).
		Float64("output_cost_usd", cost.OutputCost).
		Float64("total_cost_usd", cost.TotalCost).
		Msg("LLM usage")

	// Accumulate only total cost into state
	state.TotalCostUSD += cost.TotalCost
	out.Extra["usage_cost_total_usd"] = state.TotalCostUSD

	metrics.LLMCost.WithLabelValues(modelName).Add(cost.TotalCost)
}

// componentCtx tags ctx with the run info of a component invoked from inside a
// lambda node, so prompt and model callbacks reach their typed handlers.
func componentCtx(ctx context.Context, name string, component components.Component) context.Context {
	return callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{Name: name, Component: component})
}
