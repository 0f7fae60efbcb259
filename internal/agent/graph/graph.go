package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/defi-rag-assistant/server/internal/agent/graph/conversations"
	"github.com/defi-rag-assistant/server/internal/agent/graph/nodes"
	"github.com/defi-rag-assistant/server/internal/agent/graph/observers"
	"github.com/defi-rag-assistant/server/internal/agent/model"
	"github.com/defi-rag-assistant/server/internal/agent/retrieval"
	"github.com/defi-rag-assistant/server/internal/observability/metrics"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

const maxRunSteps = 20

// Runner is a thin wrapper to execute the compiled graph with the public QueryInput.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (string, error)
}

// Config holds everything needed to compose the full response graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs ChatModels
// and the Orchestrator.
type Config struct {
	APIKey         string
	BaseURL        string
	ExtractorModel model.ExtractorModelConfig
	AnswerModel    model.AnswerModelConfig
	MarketData     retrieval.MarketData
	Memory         *conversations.MemoryManager
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels    *nodes.ChatModels
	Orchestrator  *retrieval.Orchestrator
	MemoryManager *conversations.MemoryManager
}

// GraphBuilder handles the construction of the query answering graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (answer string, err error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
		metrics.PipelineRequests.WithLabelValues(metrics.Outcome(err)).Inc()
	}()

	if strings.TrimSpace(in.SessionID) == "" {
		return "", fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("query is required")
	}

	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks(in.SessionID)))
	if err != nil {
		logx.Error().Err(err).Str("session_id", in.SessionID).Msg("Query pipeline failed")
		return "", fmt.Errorf("answer query: %w", err)
	}
	if out == nil {
		return "", nil
	}

	ev := logx.Info().
		Str("session_id", in.SessionID).
		Dur("elapsed", time.Since(start))
	if total, ok := out.Extra["usage_cost_total_usd"].(float64); ok {
		ev = ev.Float64("total_cost_usd", total)
	}
	ev.Msg("Query answered")

	return out.Content, nil
}

// BuildResponseGraph composes ChatModels and the Orchestrator with the MemoryManager, builds the graph, and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Memory == nil {
		return nil, fmt.Errorf("memory manager is nil")
	}
	if cfg.MarketData == nil {
		return nil, fmt.Errorf("market data client is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		ExtractorConfig: &cfg.ExtractorModel,
		AnswerConfig:    &cfg.AnswerModel,
	})
	if err != nil {
		return nil, err
	}

	runner, err := NewRunner(ctx, &GraphConfig{
		ChatModels:    cms,
		Orchestrator:  retrieval.NewOrchestrator(cfg.MarketData),
		MemoryManager: cfg.Memory,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Response graph built successfully")
	return runner, nil
}

// NewRunner compiles the graph for config and wraps it as a Runner.
func NewRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled query answering graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Extractor == nil || config.ChatModels.Answer == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is nil")
	}
	if config.MemoryManager == nil {
		return nil, fmt.Errorf("memory manager is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	cms := b.config.ChatModels
	extractor := nodes.NewIntentExtractor(cms.Extractor, cms.ExtractorModelName)
	generator := nodes.NewAnswerGenerator(cms.Answer, cms.AnswerModelName, b.config.MemoryManager)

	steps := []func() error{
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeInputConverter,
				nodes.NewInputConverterNode(),
				compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeIntentExtractor,
				nodes.NewIntentExtractorNode(extractor, cms.ExtractorModelName),
				compose.WithStatePostHandler(nodes.NewIntentExtractorPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeDataFetcher,
				nodes.NewDataFetcherNode(b.config.Orchestrator),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeContextFormatter,
				nodes.NewContextFormatterNode(),
				compose.WithStatePostHandler(nodes.NewContextFormatterPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeAnswerGenerator,
				nodes.NewAnswerGeneratorNode(generator),
				compose.WithStatePostHandler(nodes.NewAnswerGeneratorPostHandler(cms.AnswerModelName)),
			)
		},
	}

	for _, step := range steps {
		if err := step(); err != nil {
			logx.Error().Err(err).Msg("Error adding graph node")
			return fmt.Errorf("error adding graph node: %w", err)
		}
	}
	return nil
}

// addEdges wires the linear pipeline
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeIntentExtractor},
		{nodes.NodeIntentExtractor, nodes.NodeDataFetcher},
		{nodes.NodeDataFetcher, nodes.NodeContextFormatter},
		{nodes.NodeContextFormatter, nodes.NodeAnswerGenerator},
		{nodes.NodeAnswerGenerator, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("defi_rag"),
		compose.WithMaxRunSteps(maxRunSteps),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
