package main

import (
	"context"
	"errors"
	"fmt"

	"fapassist/internal/config"
	"fapassist/internal/domain"
	"fapassist/internal/kb"
	"fapassist/internal/knowledge"
	"fapassist/internal/lexicon"
	"fapassist/internal/llm/mistral"
	"fapassist/internal/logging"
	"fapassist/internal/service"
	"fapassist/internal/textproc"
)

type app struct {
	cfg  *config.AppConfig
	base *kb.Base
	svc  *service.AssistantService
}

func loadApp(ctx context.Context, cfgPath string) (*app, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.Configure(cfg.Log.Level, nil)

	lex := lexicon.Default()
	if cfg.Lexicon.Path != "" {
		if lex, err = lexicon.Load(cfg.Lexicon.Path); err != nil {
			return nil, fmt.Errorf("failed to load lexicon: %w", err)
		}
	}

	base := kb.New(kb.FileSource{Path: cfg.Knowledge.Path}, kb.Options{
		Refresh:  cfg.Knowledge.RefreshInterval(),
		Parser:   knowledge.NewParser(lex.Priority),
		Analyzer: textproc.NewAnalyzer(lex),
	})
	if err := base.Init(ctx); err != nil {
		logger.Warn("kb: initial load failed, answering without context", "path", cfg.Knowledge.Path, "err", err)
	}

	var chat domain.ChatClient
	client, err := mistral.NewClient(mistral.Config{
		BaseURL:           cfg.LLM.BaseURL,
		APIKeyEnv:         cfg.LLM.APIKeyEnv,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		TopP:              cfg.LLM.TopP,
		MaxTokens:         cfg.LLM.MaxTokens,
		Timeout:           cfg.LLM.Timeout(),
		MaxRetries:        cfg.LLM.MaxRetries,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	})
	switch {
	case err == nil:
		chat = client
	case errors.Is(err, mistral.ErrMissingAPIKey):
		logger.Warn("llm: disabled", "env", cfg.LLM.APIKeyEnv)
	default:
		return nil, fmt.Errorf("llm init failed: %w", err)
	}

	svc := service.NewAssistantService(base, chat, service.Options{
		TopK:          cfg.Retrieval.TopK,
		CacheTTL:      cfg.Cache.TTL(),
		CacheCapacity: cfg.Cache.Capacity,
		Debug:         cfg.Server.Debug,
		Lexicon:       lex,
	})
	return &app{cfg: cfg, base: base, svc: svc}, nil
}

func (a *app) Close() error { return a.base.Close() }
