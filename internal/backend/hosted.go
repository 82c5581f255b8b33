package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// HostedBackend calls a hosted chat-completions API. The dialogue is
// re-sent each call, extended by one user turn; the system instruction is
// applied per request and never stored in session history. Image input is a
// declared limitation of this variant.
type HostedBackend struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

type HostedConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewHostedBackend(cfg HostedConfig) *HostedBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HostedBackend{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
	}
}

func (b *HostedBackend) Name() string          { return "hosted" }
func (b *HostedBackend) SupportsImages() bool  { return false }
func (b *HostedBackend) SystemInHistory() bool { return false }

func (b *HostedBackend) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserText,
	})

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    b.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices in response", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Backend = (*HostedBackend)(nil)
