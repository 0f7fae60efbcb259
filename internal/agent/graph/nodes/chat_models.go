package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/defi-rag-assistant/server/internal/agent/model"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey          string
	BaseURL         string
	ExtractorConfig *model.ExtractorModelConfig
	AnswerConfig    *model.AnswerModelConfig
}

// ChatModels holds the extractor and answer chat models
type ChatModels struct {
	Extractor          einomodel.BaseChatModel
	Answer             einomodel.BaseChatModel
	ExtractorModelName string
	AnswerModelName    string
}

// NewChatModels creates both Gemini chat models sharing one client
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.ExtractorConfig == nil || config.AnswerConfig == nil {
		return nil, fmt.Errorf("chat model config is incomplete")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	extractor, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:         client,
		Model:          config.ExtractorConfig.Model,
		Temperature:    &config.ExtractorConfig.Temperature,
		MaxTokens:      &config.ExtractorConfig.MaxTokens,
		ThinkingConfig: thinkingConfig(config.ExtractorConfig.ThinkingBudget),
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating extractor model")
		return nil, fmt.Errorf("error creating extractor model: %w", err)
	}

	answer, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:         client,
		Model:          config.AnswerConfig.Model,
		Temperature:    &config.AnswerConfig.Temperature,
		MaxTokens:      &config.AnswerConfig.MaxTokens,
		ThinkingConfig: thinkingConfig(config.AnswerConfig.ThinkingBudget),
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating answer model")
		return nil, fmt.Errorf("error creating answer model: %w", err)
	}

	return &ChatModels{
		Extractor:          extractor,
		Answer:             answer,
		ExtractorModelName: config.ExtractorConfig.Model,
		AnswerModelName:    config.AnswerConfig.Model,
	}, nil
}

// thinkingConfig leaves the model default in place for a negative budget.
func thinkingConfig(budget int32) *genai.ThinkingConfig {
	if budget < 0 {
		return nil
	}
	return &genai.ThinkingConfig{
		IncludeThoughts: false,
		ThinkingBudget:  genai.Ptr(budget),
	}
}
