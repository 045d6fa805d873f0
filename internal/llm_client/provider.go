package llm_client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotInitialized = errors.New("llm client not initialized")

const (
	BackendEndpoint = "endpoint"
	BackendGemini   = "gemini"
	BackendOllama   = "ollama"
)

type Config struct {
	Backend      string
	Model        string
	OllamaHost   string
	EndpointURL  string
	Token        string
	GeminiAPIKey string
	Timeout      time.Duration
}

// Message is one role-tagged turn as sent over the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider sends a conversation to a model and returns the raw response body.
type Provider interface {
	Init(cfg Config) error
	Name() string
	DefaultModel() string
	Chat(ctx context.Context, messages []Message) (string, error)
}

func New(cfg Config) (Provider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendEndpoint
	}
	var p Provider
	switch backend {
	case BackendEndpoint:
		p = &endpointProvider{}
	case BackendGemini:
		p = &geminiProvider{}
	case BackendOllama:
		p = &ollamaProvider{}
	default:
		return nil, fmt.Errorf("unsupported LLM backend: %s", backend)
	}
	if err := p.Init(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// splitSystem joins all system turns into one instruction and returns the rest.
func splitSystem(messages []Message) (string, []Message) {
	var sys []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			sys = append(sys, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(sys, "\n\n"), rest
}
