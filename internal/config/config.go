package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"lawgpt/internal/llm_client"
)

type Config struct {
	Backend      string
	EndpointURL  string
	Token        string
	Model        string
	OllamaHost   string
	GeminiAPIKey string
	LLMTimeout   time.Duration

	PromptsPath string
	DBPath      string
	LogPath     string
	Debug       bool

	MaxPhaseAttempts int
	MaxIntakeNudges  int
	BatchConcurrency int

	Retries    int
	RetryDelay time.Duration

	SearchDelay     time.Duration
	SearchCacheSize int
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getIntEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, n)
	}
	return n, nil
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, d)
	}
	return d, nil
}

// Load reads LAWGPT_* variables. Unset values fall back to defaults; values
// that do not parse are errors.
func Load() (*Config, error) {
	cfg := &Config{
		Backend:      getEnv("LAWGPT_BACKEND", llm_client.BackendEndpoint),
		EndpointURL:  getEnv("LAWGPT_ENDPOINT_URL", ""),
		Token:        getEnv("LAWGPT_TOKEN", ""),
		Model:        getEnv("LAWGPT_MODEL", ""),
		OllamaHost:   getEnv("LAWGPT_OLLAMA_HOST", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),

		PromptsPath: getEnv("LAWGPT_PROMPTS", ""),
		DBPath:      getEnv("LAWGPT_DB", defaultDataPath("runs.db")),
		LogPath:     getEnv("LAWGPT_LOG", "lawgpt.log"),
		Debug:       getBoolEnv("LAWGPT_DEBUG", false),
	}

	var err error
	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"LAWGPT_MAX_PHASE_ATTEMPTS", 3, &cfg.MaxPhaseAttempts},
		{"LAWGPT_MAX_INTAKE_NUDGES", 2, &cfg.MaxIntakeNudges},
		{"LAWGPT_BATCH_CONCURRENCY", 4, &cfg.BatchConcurrency},
		{"LAWGPT_RETRIES", 3, &cfg.Retries},
		{"LAWGPT_SEARCH_CACHE_SIZE", 256, &cfg.SearchCacheSize},
	}
	for _, i := range ints {
		if *i.dst, err = getIntEnv(i.key, i.def); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"LAWGPT_LLM_TIMEOUT", 2 * time.Minute, &cfg.LLMTimeout},
		{"LAWGPT_RETRY_DELAY", time.Second, &cfg.RetryDelay},
		{"LAWGPT_SEARCH_DELAY", 1500 * time.Millisecond, &cfg.SearchDelay},
	}
	for _, d := range durations {
		if *d.dst, err = getDurationEnv(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.MaxPhaseAttempts == 0 {
		return nil, fmt.Errorf("LAWGPT_MAX_PHASE_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}

func (c *Config) LLM() llm_client.Config {
	return llm_client.Config{
		Backend:      c.Backend,
		Model:        c.Model,
		OllamaHost:   c.OllamaHost,
		EndpointURL:  c.EndpointURL,
		Token:        c.Token,
		GeminiAPIKey: c.GeminiAPIKey,
		Timeout:      c.LLMTimeout,
	}
}

func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".lawgpt", name)
}
