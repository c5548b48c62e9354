package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultOpenAIBaseURL routes OpenAI-compatible requests through OpenRouter.
const DefaultOpenAIBaseURL = "https://openrouter.ai/api/v1"

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	llm         llms.Model
	model       string
	temperature float64
}

func NewOpenAIClient(apiKey, model, baseURL string, temperature float64) (*OpenAIClient, error) {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	m, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
		openai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return &OpenAIClient{llm: m, model: model, temperature: temperature}, nil
}

func (c *OpenAIClient) Model() string { return c.model }

// Complete sends prompt as a single human message.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", &RetryableError{Message: err.Error()}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", fmt.Errorf("empty response from %s", c.model)
	}
	return resp.Choices[0].Content, nil
}
