package config

const (
	defaultDatabasePath        = "~/.local/share/cohesivm/cohesivm.db"
	defaultPixelSettleMillis   = 500
	defaultAbortTimeoutSeconds = 5
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultSimResistanceOhm    = 1e3
	defaultSimCapacitanceFarad = 1e-9
)

// Default returns the baseline configuration before any file is applied.
func Default() Config {
	return Config{
		Database: Database{
			Path: defaultDatabasePath,
		},
		DCMI: DCMI{
			Rights: "CC BY 4.0",
		},
		Simulation: Simulation{
			ResistanceOhm:    defaultSimResistanceOhm,
			CapacitanceFarad: defaultSimCapacitanceFarad,
		},
		Workflow: Workflow{
			PixelSettleMillis:   defaultPixelSettleMillis,
			AbortTimeoutSeconds: defaultAbortTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
