package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/logging"
	"github.com/tbxark/intakeagent/store"
)

// app holds the wired services and the cleanups to run on exit.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	sessions *agent.Sessions
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, logToStdout bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err = cfg.RequireLLM(); err != nil {
		return nil, err
	}
	var out io.Writer
	if logToStdout {
		out = os.Stdout
	}
	logger, closeLog := logging.New(cfg.Log, out)
	slog.SetDefault(logger)
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = closeLog() })

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	var (
		recorder agent.Recorder
		states   agent.StateReadWriter
	)
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, sErr := store.NewSQLite(cfg.Store.DBPath)
		if sErr != nil {
			a.Close()
			return nil, fmt.Errorf("initialize database: %w", sErr)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		recorder = db
		states = agent.NewCacheStateReadWriter(db)
	case config.DriverPostgres:
		pg, pErr := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if pErr != nil {
			a.Close()
			return nil, fmt.Errorf("initialize database: %w", pErr)
		}
		a.closers = append(a.closers, pg.Close)
		recorder = pg
		states = agent.NewMemoryStateReadWriter()
	default:
		recorder = store.NewMemoryRecorder()
		states = agent.NewMemoryStateReadWriter()
	}
	logger.Info("storage ready", "driver", cfg.Store.Driver)

	if cfg.NATS.URL != "" {
		nc, nErr := store.NewNATSClient(cfg.NATS.URL, cfg.NATS.Token, logger)
		if nErr != nil {
			a.Close()
			return nil, nErr
		}
		a.closers = append(a.closers, nc.Close)
		recorder = store.NewPublishingRecorder(recorder, nc, cfg.NATS.Subject, logger)
		logger.Info("publishing submissions", "subject", cfg.NATS.Subject)
	}

	flow, err := agent.NewToolBasedIntakeFlow(cm, recorder, cfg.ModelConfig(),
		agent.WithLogger(logger),
		agent.WithPolicy(cfg.Policy),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sessions = agent.NewSessions(flow, states, logger)
	return a, nil
}
