package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/grumpyguvner/mailkeys/internal/backend"
	"github.com/grumpyguvner/mailkeys/internal/config"
	"github.com/grumpyguvner/mailkeys/internal/keys"
	"github.com/grumpyguvner/mailkeys/internal/logging"
)

// Seams replaced by tests
var (
	loadConfig     = config.Load
	openBackend    = backend.Open
	migrateBackend = backend.Migrate
)

// withStore loads configuration, opens the configured backend, runs fn and
// closes the backend again.
func withStore(ctx context.Context, fn func(*config.Config, keys.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.InitLogger(cfg.LogMode)

	store, closer, err := openBackend(ctx, cfg, logging.Component("backend"))
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	return fn(cfg, store)
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		logging.Get().Warnw("failed to close key index backend", "error", err)
	}
}
