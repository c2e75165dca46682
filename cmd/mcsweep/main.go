package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"mcsweep/internal/config"
	"mcsweep/internal/version"
)

var errPortRange = errors.New("port out of range")

func main() {
	app := &cli.App{
		Name:    "mcsweep",
		Usage:   "find Minecraft servers in a set of IPv4 /16 networks",
		Version: version.Version,
		Flags:   flags(),
		Action:  run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mcsweep: %v\n", err)
		os.Exit(1)
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},

		// Scan
		&cli.IntFlag{Name: "thousands", Aliases: []string{"n"}, Usage: "candidates to test, in thousands (0 = continuous)"},
		&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Value: config.DefaultWorkers, Usage: "reachability workers"},
		&cli.IntFlag{Name: "analysis-workers", Value: config.DefaultAnalysisWorkers, Usage: "status probe workers"},
		&cli.IntFlag{Name: "queue-depth", Usage: "capacity of each stage queue (0 = 4x workers)"},
		&cli.StringSliceFlag{Name: "prefix", Aliases: []string{"p"}, Usage: "network prefix to sample, \"a.b\" or \"a.b.0.0/16\" (repeatable)"},
		&cli.StringSliceFlag{Name: "exclude", Aliases: []string{"x"}, Usage: "CIDR, range or IP never to probe (repeatable)"},
		&cli.UintFlag{Name: "port", Value: config.DefaultPort, Usage: "server port"},
		&cli.IntFlag{Name: "rate", Usage: "candidates per second (0 = unlimited)"},
		&cli.Int64Flag{Name: "seed", Usage: "generator seed (0 = random)"},
		&cli.DurationFlag{Name: "connect-timeout", Value: config.DefaultConnectTimeout, Usage: "reachability dial timeout"},
		&cli.DurationFlag{Name: "status-timeout", Value: config.DefaultStatusTimeout, Usage: "status round-trip timeout"},
		&cli.DurationFlag{Name: "flush-interval", Value: config.DefaultFlushInterval, Usage: "result flush period in continuous mode"},
		&cli.BoolFlag{Name: "replay", Usage: "only analyze what is left in the frontier file, then exit"},

		// Output
		&cli.StringFlag{Name: "results", Aliases: []string{"o"}, Value: config.DefaultResultsPath, Usage: "JSON result store"},
		&cli.StringFlag{Name: "frontier", Value: config.DefaultFrontierPath, Usage: "pending-analysis address list"},
		&cli.BoolFlag{Name: "stdout", Usage: "stream each new server to stdout as JSONL"},
		&cli.StringFlag{Name: "file", Usage: "append each new server to this file"},
		&cli.StringFlag{Name: "format", Value: "jsonl", Usage: "format for --file: jsonl, csv or text"},
		&cli.StringFlag{Name: "webhook", Usage: "webhook URL (HTTP POST batched JSONL)"},
		&cli.StringFlag{Name: "metrics-listen", Usage: "serve Prometheus metrics on this address"},

		// UI
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "silent mode (no terminal output)"},
		&cli.BoolFlag{Name: "no-tui", Usage: "disable TUI (text mode)"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print every reachable host"},
		&cli.BoolFlag{Name: "debug", Usage: "debug logging"},
		&cli.BoolFlag{Name: "log-json", Usage: "JSON log lines on stderr"},
	}
}

// loadConfig reads the config file, if any, and applies the flags that were
// explicitly set on the command line on top of it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}
	if err := applyFlags(c, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(c *cli.Context, cfg *config.Config) error {
	s := &cfg.Scan
	o := &cfg.Output

	if c.IsSet("thousands") {
		s.Thousands = c.Int("thousands")
	}
	if c.IsSet("workers") {
		s.Workers = c.Int("workers")
	}
	if c.IsSet("analysis-workers") {
		s.AnalysisWorkers = c.Int("analysis-workers")
	}
	if c.IsSet("queue-depth") {
		s.QueueDepth = c.Int("queue-depth")
	}
	if c.IsSet("prefix") {
		s.Prefixes = c.StringSlice("prefix")
	}
	if c.IsSet("exclude") {
		s.Exclude = c.StringSlice("exclude")
	}
	if c.IsSet("port") {
		p := c.Uint("port")
		if p > math.MaxUint16 {
			return fmt.Errorf("invalid --port %d: %w", p, errPortRange)
		}
		s.Port = uint16(p)
	}
	if c.IsSet("rate") {
		s.Rate = c.Int("rate")
	}
	if c.IsSet("seed") {
		s.Seed = c.Int64("seed")
	}
	setDuration(c, "connect-timeout", &s.ConnectTimeout)
	setDuration(c, "status-timeout", &s.StatusTimeout)
	setDuration(c, "flush-interval", &s.FlushInterval)

	if c.IsSet("results") {
		o.Results = c.String("results")
	}
	if c.IsSet("frontier") {
		o.Frontier = c.String("frontier")
	}
	if c.IsSet("stdout") {
		o.Stdout = c.Bool("stdout")
	}
	if c.IsSet("file") {
		o.File = c.String("file")
	}
	if c.IsSet("format") {
		o.Format = c.String("format")
	}
	if c.IsSet("webhook") {
		if o.Webhook == nil {
			o.Webhook = &config.WebhookOutput{}
		}
		o.Webhook.URL = c.String("webhook")
	}
	if c.IsSet("quiet") {
		o.Quiet = c.Bool("quiet")
	}
	if c.IsSet("no-tui") {
		o.NoTUI = c.Bool("no-tui")
	}
	if c.IsSet("verbose") {
		o.Verbose = c.Bool("verbose")
	}
	if c.IsSet("debug") {
		o.Debug = c.Bool("debug")
	}
	if c.IsSet("log-json") {
		o.LogJSON = c.Bool("log-json")
	}
	if c.IsSet("metrics-listen") {
		cfg.Metrics.Listen = c.String("metrics-listen")
	}
	return nil
}

func setDuration(c *cli.Context, name string, dst *config.Duration) {
	if c.IsSet(name) {
		*dst = config.Duration{Duration: c.Duration(name)}
	}
}

// elapsedRate is candidates per second over d.
func elapsedRate(n uint64, d time.Duration) float64 {
	if sec := d.Seconds(); sec > 0 {
		return float64(n) / sec
	}
	return 0
}
