package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"spectra/internal/conversation"
)

// LocalBackend talks to an Ollama-compatible local server. Stateless per
// call: the full message history, including base64 image payloads, is sent
// on every invocation and the response is a single assistant message.
type LocalBackend struct {
	host   string
	model  string
	client *http.Client
}

type LocalConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

func NewLocalBackend(cfg LocalConfig) *LocalBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LocalBackend{
		host:   strings.TrimRight(strings.TrimSpace(cfg.Host), "/"),
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}
}

func (b *LocalBackend) Name() string          { return "local" }
func (b *LocalBackend) SupportsImages() bool  { return true }
func (b *LocalBackend) SystemInHistory() bool { return true }

type localChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type localChatRequest struct {
	Model    string             `json:"model"`
	Messages []localChatMessage `json:"messages"`
	Stream   bool               `json:"stream"`
}

type localChatResponse struct {
	Message localChatMessage `json:"message"`
	Error   string           `json:"error,omitempty"`
}

func (b *LocalBackend) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]localChatMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		messages = append(messages, localChatMessage{
			Role:    string(m.Role),
			Content: m.Content,
			Images:  m.Images,
		})
	}
	messages = append(messages, localChatMessage{
		Role:    string(conversation.RoleUser),
		Content: req.UserText,
		Images:  req.Images,
	})

	payload, err := json.Marshal(localChatRequest{
		Model:    b.model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, res.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed localChatResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, parsed.Error)
	}
	return parsed.Message.Content, nil
}

var _ Backend = (*LocalBackend)(nil)
