package llm_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const endpointDefaultTimeout = 2 * time.Minute

// endpointProvider talks to the research API, which accepts {messages} and
// answers with a JSON envelope or plain text.
type endpointProvider struct {
	url        string
	token      string
	httpClient *http.Client
}

func (p *endpointProvider) Init(cfg Config) error {
	u := strings.TrimSpace(cfg.EndpointURL)
	if u == "" {
		return fmt.Errorf("LAWGPT_ENDPOINT_URL is not set")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = endpointDefaultTimeout
	}
	p.url = u
	p.token = cfg.Token
	p.httpClient = &http.Client{Timeout: timeout}
	return nil
}

func (p *endpointProvider) Name() string         { return BackendEndpoint }
func (p *endpointProvider) DefaultModel() string { return "" }

func (p *endpointProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.httpClient == nil {
		return "", ErrNotInitialized
	}
	body, err := json.Marshal(struct {
		Messages []Message `json:"messages"`
	}{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("endpoint marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("endpoint build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("endpoint request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("endpoint read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("endpoint status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	return string(raw), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
