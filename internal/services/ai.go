package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"examdeck/internal/config"
)

var (
	// ErrAIUnavailable is returned when the OpenAI integration is not configured.
	ErrAIUnavailable = errors.New("openai integration is not configured")
)

// AIProvider produces a free-form text reply for one question's raw text.
// Implementations do not retry; a failed call surfaces as an error and
// the caller decides whether to move on.
type AIProvider interface {
	Run(ctx context.Context, content string) (string, error)
}

// OpenAIProvider implements AIProvider against a chat-completion endpoint.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIProvider(cfg config.OpenAIConfig) *OpenAIProvider {
	if cfg.APIKey == "" {
		return &OpenAIProvider{}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
	}
}

func (p *OpenAIProvider) disabled() bool {
	return p.client == nil || p.model == ""
}

const enrichmentInstruction = `Strictly respond with a JSON object {"question":"","options":{"A":"","B":""},"correctAnswer":"","correctAnswerText":"","topic":"","explanation":"","notes":[""]}.
Restate the question cleanly, list every answer option keyed by its letter, and name the correct answer letter(s) (comma-separated for multi-select) with the full text of the correct option.
Explain why the correct answer is right and add short study notes covering the concepts the question tests.`

func (p *OpenAIProvider) Run(ctx context.Context, content string) (string, error) {
	if p.disabled() {
		return "", ErrAIUnavailable
	}

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an exam tutor who turns scraped multiple-choice questions into structured study flashcard content.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: enrichmentInstruction + "\n\nQuestion text:\n" + content,
			},
		},
		Temperature: 0.2,
		MaxTokens:   4096,
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("request openai enrichment: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
