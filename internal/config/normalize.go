package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = defaultDatabasePath
	}
	if c.Database.Path, err = ExpandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}

	c.DCMI.Publisher = strings.TrimSpace(c.DCMI.Publisher)
	c.DCMI.Creator = strings.TrimSpace(c.DCMI.Creator)
	c.DCMI.Rights = strings.TrimSpace(c.DCMI.Rights)
	c.DCMI.Subject = strings.TrimSpace(c.DCMI.Subject)
	c.Hardware.MA8X8Port = strings.TrimSpace(c.Hardware.MA8X8Port)

	// PixelSettleMillis stays untouched: decoding starts from Default(), so
	// an absent field keeps 500 while an explicit 0 means no settle wait.
	if c.Workflow.AbortTimeoutSeconds == 0 {
		c.Workflow.AbortTimeoutSeconds = defaultAbortTimeoutSeconds
	}
	if c.Simulation.ResistanceOhm == 0 {
		c.Simulation.ResistanceOhm = defaultSimResistanceOhm
	}
	if c.Simulation.CapacitanceFarad == 0 {
		c.Simulation.CapacitanceFarad = defaultSimCapacitanceFarad
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.File != "" {
		if c.Logging.File, err = ExpandPath(c.Logging.File); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	}
	return nil
}
