// Package config loads and validates the TOML configuration. All path fields
// are expanded and absolute after Load; defaults are documented in the
// embedded sample file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Database contains the persistence layer configuration.
type Database struct {
	// Path of the SQLite file; must end in .db or .sqlite.
	Path string `toml:"path"`
}

// DCMI contains the default descriptive fields written into every dataset.
type DCMI struct {
	Publisher string `toml:"publisher"`
	Creator   string `toml:"creator"`
	Rights    string `toml:"rights"`
	Subject   string `toml:"subject"`
}

// Hardware contains addresses of attached measurement hardware.
type Hardware struct {
	// MA8X8Port is the serial port of the pixel matrix controller board.
	MA8X8Port string `toml:"ma8x8_port"`
}

// Simulation contains the component values of the simulated device.
type Simulation struct {
	ResistanceOhm    float64 `toml:"resistance_ohm"`
	CapacitanceFarad float64 `toml:"capacitance_farad"`
}

// Workflow contains run timing configuration.
type Workflow struct {
	// PixelSettleMillis is the wait between pixel selection and measurement.
	// An explicit 0 disables the wait; leaving the field out keeps the
	// 500 ms default.
	PixelSettleMillis int `toml:"pixel_settle_ms"`
	// AbortTimeoutSeconds bounds how long an abort waits for the worker.
	AbortTimeoutSeconds int `toml:"abort_timeout_seconds"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// File receives a copy of the log output when set.
	File string `toml:"file"`
}

// Config encapsulates all configuration values.
type Config struct {
	Database   Database   `toml:"database"`
	DCMI       DCMI       `toml:"dcmi"`
	Hardware   Hardware   `toml:"hardware"`
	Simulation Simulation `toml:"simulation"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/cohesivm/config.toml")
}

// Load locates, parses, and validates a configuration file. An empty path
// falls back to the default location, then to cohesivm.toml in the working
// directory; a missing file yields the defaults. The second result is the
// resolved path, the third whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("cohesivm.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// CreateSample writes the documented sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
