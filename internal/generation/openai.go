package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/rex/internal/metrics"
	"go.uber.org/zap"
)

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// OpenAI generates replies through the chat completions API.
type OpenAI struct {
	config OpenAIConfig
	client *openai.Client
	runner runner
}

func NewOpenAI(config OpenAIConfig, policy RetryPolicy, m *metrics.Metrics, logger *zap.Logger) *OpenAI {
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAI{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		runner: runner{provider: "openai", policy: policy, metrics: m, logger: logger},
	}
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) string {
	return o.runner.run(ctx, prompt, func(ctx context.Context) (string, error) {
		return o.call(ctx, prompt)
	})
}

func (o *OpenAI) call(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: o.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   o.config.MaxTokens,
			Temperature: float32(o.config.Temperature),
		},
	)
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrNoText
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError maps client errors onto StatusError so the shared
// retry rules apply.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 200 {
			return fmt.Errorf("%w: %v", ErrMalformed, reqErr.Err)
		}
		return &StatusError{Code: reqErr.HTTPStatusCode, Body: fmt.Sprint(reqErr.Err)}
	}
	return err
}
