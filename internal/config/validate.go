package config

import (
	"fmt"
	"path/filepath"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if ext := filepath.Ext(c.Database.Path); ext != ".db" && ext != ".sqlite" {
		return fmt.Errorf("database.path must end in .db or .sqlite, got %q", c.Database.Path)
	}
	if c.Workflow.PixelSettleMillis < 0 {
		return fmt.Errorf("workflow.pixel_settle_ms must not be negative, got %d", c.Workflow.PixelSettleMillis)
	}
	if c.Workflow.AbortTimeoutSeconds <= 0 {
		return fmt.Errorf("workflow.abort_timeout_seconds must be positive, got %d", c.Workflow.AbortTimeoutSeconds)
	}
	if c.Simulation.ResistanceOhm <= 0 {
		return fmt.Errorf("simulation.resistance_ohm must be positive, got %v", c.Simulation.ResistanceOhm)
	}
	if c.Simulation.CapacitanceFarad <= 0 {
		return fmt.Errorf("simulation.capacitance_farad must be positive, got %v", c.Simulation.CapacitanceFarad)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
