package cli

import (
	"context"
	"time"

	"github.com/petrijr/packflow/internal/config"
	"github.com/petrijr/packflow/internal/engine"
	"github.com/petrijr/packflow/internal/fixtures"
	"github.com/petrijr/packflow/pkg/api"
)

// openEngine opens the configured backend, loads the demo plant when
// store.seed is set and returns an engine over it. The caller closes the
// backend.
func openEngine(ctx context.Context, cfg *config.Config, obs api.Observer) (*config.Backend, api.Engine, error) {
	b, err := config.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Seed {
		if _, err := fixtures.LoadDefault(ctx, b.Persistence, time.Now()); err != nil {
			_ = b.Close()
			return nil, nil, err
		}
	}
	eng := engine.NewEngineWithConfig(engine.Config{
		Persistence: b.Persistence,
		Observer:    obs,
	})
	return b, eng, nil
}
