package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Long-form generation produces thousands of words, so the HTTP client
// carries a far longer timeout than a typical API call.
const DefaultGenerationTimeout = 30 * time.Minute

// OpenAIGenerator calls an OpenAI-compatible /v1/chat/completions endpoint
// with a model-appropriate token ceiling and a creative temperature.
type OpenAIGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIGenerator builds a chat-completions TextGenerator.
// baseURL should include the /v1 prefix, e.g. "https://api.openai.com/v1".
func NewOpenAIGenerator(baseURL, apiKey, model string) *OpenAIGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIGenerator{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: DefaultGenerationTimeout,
		},
	}
}

// Configured reports whether a usable API key is present. Placeholder
// keys from config templates count as unconfigured.
func (g *OpenAIGenerator) Configured() bool {
	return g.apiKey != "" && g.apiKey != "default-key"
}

// MaxTokens returns the fixed token ceiling for the configured model.
// The ceiling must stay within the provider's model-specific maximum.
func (g *OpenAIGenerator) MaxTokens() int {
	if strings.Contains(g.model, "gpt-4") || strings.Contains(g.model, "gpt-3.5-turbo-16k") {
		return 8000
	}
	return 4000
}

// GenerateText implements TextGenerator with a single attempt and no retry.
func (g *OpenAIGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !g.Configured() {
		return "", fmt.Errorf("openai api key not configured")
	}
	if g.model == "" {
		return "", fmt.Errorf("openai generation model required")
	}

	reqBody := oaiChatRequest{
		Model: g.model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   g.MaxTokens(),
		Temperature: 0.8,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := g.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("openai api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("openai api error: %s", resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("openai decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai api")
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from openai api")
	}
	return text, nil
}

// OpenAI request/response types.

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
