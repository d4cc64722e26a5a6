package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/masteryforge/internal/config"
	"github.com/abhisek/masteryforge/internal/curriculum"
	"github.com/abhisek/masteryforge/internal/hints"
	"github.com/abhisek/masteryforge/internal/llm"
	"github.com/abhisek/masteryforge/internal/logger"
	"github.com/abhisek/masteryforge/internal/mastery"
	"github.com/abhisek/masteryforge/internal/session"
	"github.com/abhisek/masteryforge/internal/store"
	"github.com/abhisek/masteryforge/internal/tutor"
)

// env is everything a learner-facing command needs.
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	holder *curriculum.Holder
	store  store.Store
	engine *mastery.Engine
	tutor  *tutor.Service
}

// openEnv loads config, the curriculum and the store, and wires the tutor
// service. Callers must Close the returned env.
func openEnv(cmd *cobra.Command) (*env, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	holder := curriculum.NewHolder(log)
	if _, err := holder.Load(cfg.CurriculumPath); err != nil {
		return nil, fmt.Errorf("load curriculum: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	engine := mastery.NewEngine(cfg.Engine)
	svc := tutor.NewService(holder, st, engine,
		tutor.WithHints(buildHints(ctx, cmd, cfg, log)),
		tutor.WithSessions(session.NewTracker(st, session.WithTimeout(cfg.Session.Timeout))),
		tutor.WithLogger(log),
	)

	return &env{
		cfg:    cfg,
		log:    log,
		holder: holder,
		store:  st,
		engine: engine,
		tutor:  svc,
	}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Warn("close store", zap.Error(err))
	}
	_ = e.log.Sync()
}

// buildHints picks the LLM hint provider when one is configured and the
// rule-based hints otherwise.
func buildHints(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log *zap.Logger) hints.Provider {
	provider, err := llm.NewProvider(ctx, cfg.LLM, log)
	if err != nil {
		if !errors.Is(err, llm.ErrDisabled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "LLM provider not configured:", err)
			fmt.Fprintln(cmd.ErrOrStderr(), "Falling back to built-in hints.")
		}
		return hints.Static{}
	}

	opts := []hints.Option{hints.WithLogger(log)}
	if cfg.Hints.StaticFallback {
		opts = append(opts, hints.WithFallback(hints.Static{}))
	}
	return hints.NewLLM(provider, cfg.Hints.LLMConfig, opts...)
}
