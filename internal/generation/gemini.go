package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xaenox/rex/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

type Gemini struct {
	config GeminiConfig
	client *http.Client
	runner runner
}

func NewGemini(config GeminiConfig, policy RetryPolicy, m *metrics.Metrics, logger *zap.Logger) *Gemini {
	if config.BaseURL == "" {
		config.BaseURL = DefaultGeminiBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultGeminiModel
	}
	return &Gemini{
		config: config,
		client: &http.Client{},
		runner: runner{provider: "gemini", policy: policy, metrics: m, logger: logger},
	}
}

type geminiPart struct {
	Text *string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Generate(ctx context.Context, prompt string) string {
	return g.runner.run(ctx, prompt, func(ctx context.Context) (string, error) {
		return g.call(ctx, prompt)
	})
}

func (g *Gemini) endpoint() string {
	return fmt.Sprintf("%s/%s:generateContent", strings.TrimSuffix(g.config.BaseURL, "/"), g.config.Model)
}

func (g *Gemini) call(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: &prompt}},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     g.config.Temperature,
			TopP:            g.config.TopP,
			TopK:            g.config.TopK,
			MaxOutputTokens: g.config.MaxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.config.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if isTimeout(err) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if len(decoded.Candidates) == 0 || decoded.Candidates[0].Content == nil {
		return "", ErrNoText
	}
	parts := decoded.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == nil {
		return "", ErrNoText
	}
	return *parts[0].Text, nil
}
