package analyzer

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Nat-hsm/DragonRise/internal/config"
	"github.com/Nat-hsm/DragonRise/internal/model"
)

// OpenAIAnalyzer asks a vision-capable chat model to read the screenshot.
type OpenAIAnalyzer struct {
	client openai.Client
	model  string
	cfg    config.AnalyzerConfig
}

// NewOpenAI builds an analyzer from cfg.  BaseURL may point at any
// OpenAI-compatible endpoint.
func NewOpenAI(cfg config.AnalyzerConfig) *OpenAIAnalyzer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(1)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIAnalyzer{client: openai.NewClient(opts...), model: cfg.Model, cfg: cfg}
}

// Analyze sends the image inline as a data URL.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, kind model.ActivityKind, image []byte, mimeType string) (Result, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(Prompt(kind)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	})
	if err != nil {
		return Result{}, err
	}
	if len(resp.Choices) == 0 {
		return Result{}, errors.New("analysis reply had no choices")
	}
	return ParseResponse(kind, resp.Choices[0].Message.Content), nil
}
