package cli

import (
	"fmt"

	"lawgpt/internal/config"
	"lawgpt/internal/llm_client"
	"lawgpt/internal/logger"
	"lawgpt/internal/pipeline"
	"lawgpt/internal/prompts"
	"lawgpt/internal/quickchat"
	"lawgpt/internal/search"
	"lawgpt/internal/store"
	"lawgpt/internal/supervisor"
	"lawgpt/internal/transport"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg      *config.Config
	prompts  *prompts.Set
	provider llm_client.Provider
	client   *transport.Client
	searcher search.Searcher
	archive  *store.Store
}

func newApp(cfg *config.Config, withArchive bool) (*app, error) {
	set, err := prompts.Load(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}

	provider, err := llm_client.New(cfg.LLM())
	if err != nil {
		return nil, fmt.Errorf("init %s backend: %w", cfg.Backend, err)
	}
	logger.Log.Infow("LLM backend ready", "backend", provider.Name(), "model", cfg.Model)

	client := transport.New(provider,
		transport.WithRetries(cfg.Retries),
		transport.WithBaseDelay(cfg.RetryDelay),
	)

	searcher, err := search.NewCached(&search.Simulated{Delay: cfg.SearchDelay}, cfg.SearchCacheSize)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, prompts: set, provider: provider, client: client, searcher: searcher}
	if withArchive {
		a.archive, err = store.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) options(observer pipeline.Observer) pipeline.Options {
	opts := pipeline.Options{
		MaxPhaseAttempts: a.cfg.MaxPhaseAttempts,
		Prompts:          a.prompts,
		Searcher:         a.searcher,
		Observer:         observer,
	}
	if a.archive != nil {
		opts.Archive = a.archive
	}
	return opts
}

func (a *app) manager(observer pipeline.Observer) *supervisor.Manager {
	return supervisor.New(a.client, a.options(observer))
}

func (a *app) chat() *quickchat.Service {
	return quickchat.New(a.client, a.prompts.BaseChat)
}

func (a *app) conversation() *quickchat.Conversation {
	return quickchat.NewConversation(a.client, a.prompts.MiniChat)
}

func (a *app) close() {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			logger.Log.Warnw("closing archive", "error", err)
		}
	}
}
