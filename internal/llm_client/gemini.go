package llm_client

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

type geminiProvider struct {
	client *genai.Client
	model  string
}

const geminiDefault = "gemini-2.0-flash"

func (p *geminiProvider) Init(cfg Config) error {
	apiKey := cfg.GeminiAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}
	c, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("gemini client init: %w", err)
	}
	p.client = c
	p.model = p.allowedModelOrDefault(cfg.Model)
	return nil
}

func (p *geminiProvider) Name() string         { return BackendGemini }
func (p *geminiProvider) DefaultModel() string { return geminiDefault }

// Hard guardrail on model names
func (p *geminiProvider) allowedModelOrDefault(model string) string {
	m := strings.TrimSpace(model)
	if m == "" || !strings.HasPrefix(strings.ToLower(m), "gemini-") {
		return geminiDefault
	}
	return m
}

func (p *geminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.client == nil {
		return "", ErrNotInitialized
	}
	system, contents := geminiContents(messages)
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}
	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}

// geminiContents maps the conversation onto Gemini turns: system text becomes
// the instruction and assistant turns take the model role.
func geminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	sys, rest := splitSystem(messages)

	contents := make([]*genai.Content, 0, len(rest)+1)
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.Role(genai.RoleModel)
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText("Begin.", genai.RoleUser))
	}

	var system *genai.Content
	if sys != "" {
		system = genai.NewContentFromText(sys, genai.RoleUser)
	}
	return system, contents
}
