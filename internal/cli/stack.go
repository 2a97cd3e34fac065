package cli

import (
	"matchpoint/internal/analysis"
	"matchpoint/internal/cache"
	"matchpoint/internal/config"
	"matchpoint/internal/engine"
	"matchpoint/internal/errors"
	"matchpoint/internal/session"
)

// stack is the wired reconciliation core shared by all commands: the durable
// resume cache, the analysis-service client, and the engine layered on top.
type stack struct {
	Engine *engine.Engine
	Client analysis.Client
	Cache  *cache.Store
}

// buildStack wires the cache, session store, and analysis client into a
// reconciliation engine. The returned cleanup releases the cache database and
// idle analysis-service connections.
func buildStack(cfg *config.Config, logger *errors.Logger) (*stack, func(), error) {
	store, err := cache.Open(cfg.Cache.Path, logger)
	if err != nil {
		return nil, nil, err
	}

	client := analysis.NewHTTPClient(cfg, logger)
	eng := engine.New(store, session.NewStore(), client, logger)

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.LogError(err, "Failed to close analysis client")
		}
		if err := store.Close(); err != nil {
			logger.LogError(err, "Failed to close resume cache")
		}
	}

	return &stack{Engine: eng, Client: client, Cache: store}, cleanup, nil
}
