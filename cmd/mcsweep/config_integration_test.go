package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"mcsweep/internal/config"
)

const fullYAML = `
scan:
  prefixes: ["51.38", "5.39"]
  port: 25566
  thousands: 3
  workers: 64
  analysis_workers: 4
  queue_depth: 128
  connect_timeout: 500ms
  status_timeout: 2s
  rate: 1000
  flush_interval: 10s
  seed: 9
output:
  results: out/servers.json
  frontier: out/processing.txt
  stdout: true
  file: out/servers.csv
  format: csv
  webhook:
    url: http://example.invalid/hook
    batch_size: 10
    max_retries: 2
  verbose: true
  quiet: true
metrics:
  listen: ":9108"
`

// loadWithArgs runs the real flag set and returns what loadConfig produced.
func loadWithArgs(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var (
		cfg *config.Config
		err error
	)
	app := &cli.App{
		Name:  "mcsweep",
		Flags: flags(),
		Action: func(c *cli.Context) error {
			cfg, err = loadConfig(c)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"mcsweep"}, args...)))
	return cfg, err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := loadWithArgs(t)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultPrefixes, cfg.Scan.Prefixes)
	assert.Equal(t, uint16(config.DefaultPort), cfg.Scan.Port)
	assert.True(t, cfg.Continuous())
	assert.Equal(t, config.DefaultWorkers, cfg.Scan.Workers)
	assert.Equal(t, config.DefaultConnectTimeout, cfg.Scan.ConnectTimeout.Duration)
	assert.Equal(t, config.DefaultResultsPath, cfg.Output.Results)
	assert.Equal(t, config.DefaultFrontierPath, cfg.Output.Frontier)
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestLoadConfig_FileValuesSurviveUnsetFlags(t *testing.T) {
	cfg, err := loadWithArgs(t, "-c", writeConfig(t, fullYAML))
	require.NoError(t, err)

	s := cfg.Scan
	assert.Equal(t, []string{"51.38", "5.39"}, s.Prefixes)
	assert.Equal(t, uint16(25566), s.Port)
	assert.Equal(t, 3000, cfg.Target())
	assert.Equal(t, 64, s.Workers)
	assert.Equal(t, 4, s.AnalysisWorkers)
	assert.Equal(t, 128, cfg.QueueDepth(s.Workers))
	assert.Equal(t, 500*time.Millisecond, s.ConnectTimeout.Duration)
	assert.Equal(t, 2*time.Second, s.StatusTimeout.Duration)
	assert.Equal(t, 1000, s.Rate)
	assert.Equal(t, 10*time.Second, s.FlushInterval.Duration)
	assert.Equal(t, int64(9), s.Seed)

	o := cfg.Output
	assert.Equal(t, "out/servers.json", o.Results)
	assert.Equal(t, "out/processing.txt", o.Frontier)
	assert.True(t, o.Stdout)
	assert.Equal(t, "out/servers.csv", o.File)
	assert.Equal(t, "csv", o.Format)
	require.NotNil(t, o.Webhook)
	assert.Equal(t, "http://example.invalid/hook", o.Webhook.URL)
	assert.Equal(t, 10, o.Webhook.BatchSize)
	assert.True(t, o.Verbose)
	assert.True(t, o.Quiet)
	assert.Equal(t, ":9108", cfg.Metrics.Listen)
}

func TestLoadConfig_ExplicitFlagsOverrideFile(t *testing.T) {
	cfg, err := loadWithArgs(t,
		"-c", writeConfig(t, fullYAML),
		"--thousands", "0",
		"--workers", "8",
		"--prefix", "95.216", "--prefix", "3.8.0.0/16",
		"--connect-timeout", "1s",
		"--results", "elsewhere.json",
		"--webhook", "http://other.invalid",
		"--quiet=false",
	)
	require.NoError(t, err)

	assert.True(t, cfg.Continuous())
	assert.Equal(t, 8, cfg.Scan.Workers)
	assert.Equal(t, []string{"95.216", "3.8.0.0/16"}, cfg.Scan.Prefixes)
	assert.Equal(t, time.Second, cfg.Scan.ConnectTimeout.Duration)
	assert.Equal(t, "elsewhere.json", cfg.Output.Results)
	assert.Equal(t, "http://other.invalid", cfg.Output.Webhook.URL)
	assert.Equal(t, 10, cfg.Output.Webhook.BatchSize, "unrelated webhook settings are kept")
	assert.False(t, cfg.Output.Quiet)

	// Untouched values still come from the file.
	assert.Equal(t, uint16(25566), cfg.Scan.Port)
	assert.Equal(t, 4, cfg.Scan.AnalysisWorkers)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadWithArgs(t, "--workers", "0")
	assert.Error(t, err)

	_, err = loadWithArgs(t, "--port", "0")
	assert.ErrorIs(t, err, config.ErrNoPort)

	_, err = loadWithArgs(t, "--port", "70000")
	assert.ErrorIs(t, err, errPortRange)

	_, err = loadWithArgs(t, "-c", writeConfig(t, "scan: [unclosed"))
	assert.Error(t, err)

	_, err = loadWithArgs(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
