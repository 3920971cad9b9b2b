package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cohesivm/internal/config"
)

func writeCLIConfig(t *testing.T, base string) string {
	t.Helper()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[database]
path = %q

[workflow]
pixel_settle_ms = 1

[logging]
format = "console"
level = "error"
`, filepath.Join(base, "cohesivm.db"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunThenListDatasets(t *testing.T) {
	base := t.TempDir()
	configPath := writeCLIConfig(t, base)

	out, err := runCLI(t, configPath, "run",
		"--sample", "sample-001",
		"--measurement", "iv",
		"--start", "0", "--end", "0.2", "--step", "0.1",
		"--no-progress",
	)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Run finished") {
		t.Fatalf("expected completion message, got %q", out)
	}
	if !strings.Contains(out, "/CurrentVoltageCharacteristic/") {
		t.Fatalf("expected dataset path in output, got %q", out)
	}

	out, err = runCLI(t, configPath, "datasets", "list")
	if err != nil {
		t.Fatalf("datasets list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "sample-001") || !strings.Contains(out, "CurrentVoltageCharacteristic") {
		t.Fatalf("dataset listing missing the stored run:\n%s", out)
	}

	out, err = runCLI(t, configPath, "samples")
	if err != nil {
		t.Fatalf("samples: %v\n%s", err, out)
	}
	if !strings.Contains(out, "sample-001") {
		t.Fatalf("sample listing missing sample-001:\n%s", out)
	}
}

func TestDatasetsListFiltersBySetting(t *testing.T) {
	base := t.TempDir()
	configPath := writeCLIConfig(t, base)

	if out, err := runCLI(t, configPath, "run",
		"--sample", "s1", "--start", "0", "--end", "0.1", "--step", "0.1", "--no-progress",
	); err != nil {
		t.Fatalf("first run: %v\n%s", err, out)
	}
	if out, err := runCLI(t, configPath, "run",
		"--sample", "s2", "--start", "0", "--end", "0.2", "--step", "0.1", "--no-progress",
	); err != nil {
		t.Fatalf("second run: %v\n%s", err, out)
	}

	out, err := runCLI(t, configPath, "datasets", "list", "--setting", "end_voltage=0.2")
	if err != nil {
		t.Fatalf("filtered list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "s2") {
		t.Fatalf("filtered listing should contain s2:\n%s", out)
	}
	if strings.Contains(out, "s1") {
		t.Fatalf("filtered listing should not contain s1:\n%s", out)
	}

	out, err = runCLI(t, configPath, "datasets", "filters", "CurrentVoltageCharacteristic")
	if err != nil {
		t.Fatalf("filters: %v\n%s", err, out)
	}
	if !strings.Contains(out, "end_voltage") || !strings.Contains(out, "0.2") {
		t.Fatalf("filter summary missing end_voltage values:\n%s", out)
	}
}

func TestPreviewPrintsDatapoints(t *testing.T) {
	base := t.TempDir()
	configPath := writeCLIConfig(t, base)

	out, err := runCLI(t, configPath, "preview", "0",
		"--start", "0", "--end", "0.1", "--step", "0.1",
	)
	if err != nil {
		t.Fatalf("preview: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Voltage (V)") || !strings.Contains(out, "Current (A)") {
		t.Fatalf("expected measurement columns in preview output:\n%s", out)
	}
}

func TestPreviewRejectsUnknownPixel(t *testing.T) {
	base := t.TempDir()
	configPath := writeCLIConfig(t, base)

	if _, err := runCLI(t, configPath, "preview", "99"); err == nil {
		t.Fatal("expected an error for a pixel the interface does not expose")
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "fresh.toml")

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v\n%s", err, buf.String())
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(data), "[database]") {
		t.Fatalf("sample config missing database section:\n%s", data)
	}
}

func TestSettleDelayMapsZeroToDisabled(t *testing.T) {
	cfg := config.Default()

	cfg.Workflow.PixelSettleMillis = 0
	if d := settleDelay(&cfg); d >= 0 {
		t.Fatalf("configured 0 should disable the wait, got %v", d)
	}

	cfg.Workflow.PixelSettleMillis = 10
	if d := settleDelay(&cfg); d != 10*time.Millisecond {
		t.Fatalf("got %v, want 10ms", d)
	}
}

func TestRunRequiresSample(t *testing.T) {
	base := t.TempDir()
	configPath := writeCLIConfig(t, base)

	if _, err := runCLI(t, configPath, "run", "--no-progress"); err == nil {
		t.Fatal("expected an error when --sample is missing")
	}
}

func TestUnknownMeasurementFails(t *testing.T) {
	base := t.TempDir()
	configPath := writeCLIConfig(t, base)

	if _, err := runCLI(t, configPath, "run", "--sample", "s", "--measurement", "rc", "--no-progress"); err == nil {
		t.Fatal("expected an error for an unknown measurement name")
	}
}
