// Package testsupport provides per-test constructors for configuration, the
// database, and stub collaborators.
package testsupport

import (
	"path/filepath"
	"testing"

	"cohesivm/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with a unique temp database per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "cohesivm.db")
	cfg.DCMI.Creator = "test"
	cfg.Workflow.PixelSettleMillis = 1
	cfg.Workflow.AbortTimeoutSeconds = 2

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithSettleMillis sets the pixel settle delay on the test config.
func WithSettleMillis(ms int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.PixelSettleMillis = ms
	}
}
