package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPrefixes are the /16 networks sampled when no prefixes are configured.
var DefaultPrefixes = []string{"51.38", "5.39", "95.216", "3.8", "13.48", "23.102"}

const (
	DefaultPort            = 25565
	DefaultWorkers         = 200
	DefaultAnalysisWorkers = 10
	DefaultConnectTimeout  = 300 * time.Millisecond
	DefaultStatusTimeout   = 5 * time.Second
	DefaultFlushInterval   = 30 * time.Second
	DefaultResultsPath     = "servers.json"
	DefaultFrontierPath    = "processing.txt"
)

// Config represents the top-level configuration structure.
type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	Output  OutputConfig  `yaml:"output"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ScanConfig holds all settings related to the scanning process.
type ScanConfig struct {
	Prefixes        []string `yaml:"prefixes"`         // "a.b" or "a.b.0.0/16"
	Exclude         []string `yaml:"exclude"`          // CIDRs, ranges or IPs never probed
	Port            uint16   `yaml:"port"`             // Service port
	Thousands       int      `yaml:"thousands"`        // Target candidates / 1000, 0 = continuous
	Workers         int      `yaml:"workers"`          // Discovery pool size
	AnalysisWorkers int      `yaml:"analysis_workers"` // Status probe pool size
	QueueDepth      int      `yaml:"queue_depth"`      // Capacity of each stage queue
	ConnectTimeout  Duration `yaml:"connect_timeout"`  // Reachability dial timeout
	StatusTimeout   Duration `yaml:"status_timeout"`   // Status round-trip timeout
	Rate            int      `yaml:"rate"`             // Candidates per second, 0 = unlimited
	FlushInterval   Duration `yaml:"flush_interval"`   // Continuous-mode store flush period
	Seed            int64    `yaml:"seed"`             // Generator seed, 0 = random
}

// OutputConfig controls where results go and how the run is reported.
type OutputConfig struct {
	Results  string         `yaml:"results"`  // JSON result store
	Frontier string         `yaml:"frontier"` // Pending-analysis address list
	Stdout   bool           `yaml:"stdout"`   // Stream new servers as JSONL to stdout
	File     string         `yaml:"file"`     // Append new servers to this file
	Format   string         `yaml:"format"`   // File format: jsonl, csv or text
	Webhook  *WebhookOutput `yaml:"webhook"`  // Webhook HTTP POST sink
	Verbose  bool           `yaml:"verbose"`  // Print every reachable host
	Debug    bool           `yaml:"debug"`    // Debug logging
	LogJSON  bool           `yaml:"log_json"` // JSON log encoding
	Quiet    bool           `yaml:"quiet"`    // Silent mode
	NoTUI    bool           `yaml:"no_tui"`   // Disable TUI
}

// WebhookOutput configures the webhook output sink.
type WebhookOutput struct {
	URL        string            `yaml:"url"`
	BatchSize  int               `yaml:"batch_size"`
	Timeout    Duration          `yaml:"timeout"`
	MaxRetries int               `yaml:"max_retries"`
	Headers    map[string]string `yaml:"headers"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // e.g. ":9108", empty = disabled
}

// Duration wraps time.Duration for YAML unmarshalling from strings like "300ms", "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Default returns a configuration with every field populated.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Prefixes:        append([]string(nil), DefaultPrefixes...),
			Port:            DefaultPort,
			Workers:         DefaultWorkers,
			AnalysisWorkers: DefaultAnalysisWorkers,
			ConnectTimeout:  Duration{DefaultConnectTimeout},
			StatusTimeout:   Duration{DefaultStatusTimeout},
			FlushInterval:   Duration{DefaultFlushInterval},
		},
		Output: OutputConfig{
			Results:  DefaultResultsPath,
			Frontier: DefaultFrontierPath,
			Format:   "jsonl",
		},
	}
}

// LoadConfig reads a YAML configuration file on top of Default().
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Continuous reports whether the run has no target count.
func (c *Config) Continuous() bool {
	return c.Scan.Thousands == 0
}

// Target returns the number of candidates a bounded run enqueues.
func (c *Config) Target() int {
	return c.Scan.Thousands * 1000
}

// QueueDepth returns the configured queue capacity or a size derived from the pool.
func (c *Config) QueueDepth(workers int) int {
	if c.Scan.QueueDepth > 0 {
		return c.Scan.QueueDepth
	}
	return workers * 4
}

var (
	ErrNoPrefixes = errors.New("config: no prefixes configured")
	ErrNoPort     = errors.New("config: port must be non-zero")
)

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	s := c.Scan
	switch {
	case len(s.Prefixes) == 0:
		return ErrNoPrefixes
	case s.Port == 0:
		return ErrNoPort
	case s.Thousands < 0:
		return fmt.Errorf("config: thousands must be >= 0, got %d", s.Thousands)
	case s.Workers <= 0:
		return fmt.Errorf("config: workers must be > 0, got %d", s.Workers)
	case s.AnalysisWorkers <= 0:
		return fmt.Errorf("config: analysis_workers must be > 0, got %d", s.AnalysisWorkers)
	case s.ConnectTimeout.Duration <= 0:
		return fmt.Errorf("config: connect_timeout must be > 0")
	case s.StatusTimeout.Duration <= 0:
		return fmt.Errorf("config: status_timeout must be > 0")
	case s.Rate < 0:
		return fmt.Errorf("config: rate must be >= 0, got %d", s.Rate)
	case c.Output.Results == "":
		return fmt.Errorf("config: output.results is required")
	case c.Output.Frontier == "":
		return fmt.Errorf("config: output.frontier is required")
	}
	return nil
}
