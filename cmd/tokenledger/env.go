package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pario-ai/tokenledger/pkg/config"
	"github.com/pario-ai/tokenledger/pkg/events"
	"github.com/pario-ai/tokenledger/pkg/history"
	"github.com/pario-ai/tokenledger/pkg/logging"
	"github.com/pario-ai/tokenledger/pkg/models"
	"github.com/pario-ai/tokenledger/pkg/tracker"
)

// env bundles the loaded config and logger for a command run.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func (e *env) pricingPath(flag string) string {
	if flag != "" {
		return flag
	}
	return e.cfg.PricingPath
}

// loadEvents reads events from JSONL files, or from the tracker when fromDB is set.
func (e *env) loadEvents(ctx context.Context, paths []string, fromDB bool, month string) ([]models.UsageEvent, error) {
	if fromDB {
		tr, err := tracker.New(e.cfg.DBPath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = tr.Close() }()
		e.logger.Debug("loading events from tracker", "db", e.cfg.DBPath, "month", month)
		return tr.Query(ctx, tracker.QueryOpts{Month: month})
	}

	if len(paths) == 0 {
		paths = e.cfg.Events
	}
	if len(paths) == 0 {
		return nil, errors.New("no event files given: pass --events or set events in config")
	}
	e.logger.Debug("loading events", "files", paths)
	evs, err := events.Load(ctx, paths)
	if err != nil {
		return nil, err
	}
	e.logger.Info("events loaded", "count", len(evs))
	return evs, nil
}

func (e *env) openHistory() (*history.Store, error) {
	return history.New(models.HistoryConfig{
		DBPath:        e.cfg.DBPath,
		RetentionDays: e.cfg.History.RetentionDays,
	})
}
