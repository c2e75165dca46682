package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"mcsweep/internal/config"
	"mcsweep/internal/discovery"
	"mcsweep/internal/frontier"
	"mcsweep/internal/logging"
	"mcsweep/internal/metrics"
	"mcsweep/internal/model"
	"mcsweep/internal/output"
	"mcsweep/internal/probe"
	"mcsweep/internal/status"
	"mcsweep/internal/store"
	"mcsweep/internal/sweep"
	"mcsweep/internal/targets"
	"mcsweep/internal/ui"
	"mcsweep/internal/utils/rlimit"
)

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	replay := c.Bool("replay")

	prefixes, err := targets.ParsePrefixes(cfg.Scan.Prefixes)
	if err != nil {
		return err
	}
	exclude, err := targets.ParseExclusions(cfg.Scan.Exclude)
	if err != nil {
		return err
	}

	// ── UI mode ────────────────────────────────────────────────────────
	o := cfg.Output
	var uiMode ui.Mode
	switch {
	case o.Quiet:
		uiMode = ui.ModeSilent
	case o.NoTUI || o.Stdout || !isatty.IsTerminal(os.Stdout.Fd()):
		// bubbletea renders to stdout, so JSONL streaming forces text mode.
		uiMode = ui.ModeText
	default:
		uiMode = ui.ModeTUI
	}

	events := make(chan ui.ScanEvent, 10000)
	var (
		eventsMu     sync.Mutex
		eventsClosed bool
	)
	emit := func(ev ui.ScanEvent) {
		eventsMu.Lock()
		defer eventsMu.Unlock()
		if eventsClosed {
			return
		}
		select {
		case events <- ev:
		default: // drop if full
		}
	}

	// ── Logging ────────────────────────────────────────────────────────
	level := "info"
	switch {
	case o.Debug:
		level = "debug"
	case uiMode != ui.ModeText:
		level = "warn"
	}
	logOpts := logging.Options{Level: level, JSON: o.LogJSON}
	logOut := &heldWriter{w: os.Stderr}
	if uiMode == ui.ModeTUI {
		// The alt screen owns the terminal until the program exits; meanwhile
		// entries surface in the status line.
		logOut.held.Store(true)
		logOpts.Out = logOut
		logOpts.OnEntry = func(e zapcore.Entry) {
			emit(ui.ScanEvent{Type: ui.EvtInfo, Msg: e.Level.CapitalString() + ": " + e.Message})
		}
	}
	baseLog, err := logging.New(logOpts)
	if err != nil {
		return err
	}
	defer baseLog.Sync() //nolint:errcheck
	log := baseLog.With(zap.String("run_id", uuid.NewString()))

	want := uint64(cfg.Scan.Workers + cfg.Scan.AnalysisWorkers + 256)
	if got, err := rlimit.RaiseNoFile(want); err != nil {
		log.Warn("could not raise open file limit", zap.Uint64("want", want), zap.Error(err))
	} else if got < want {
		log.Warn("open file limit below worker count", zap.Uint64("limit", got), zap.Uint64("want", want))
	}

	// ── Components ─────────────────────────────────────────────────────
	var coll *metrics.Collector
	if cfg.Metrics.Listen != "" {
		coll = metrics.New()
	}

	fr := frontier.New(o.Frontier, log)
	fr.OnAppendError = coll.FrontierError
	st := store.New(o.Results, log)

	sink, err := buildSink(cfg, log)
	if err != nil {
		return err
	}

	orch, err := sweep.New(sweep.Options{
		Prefixes:         prefixes,
		Exclude:          exclude,
		Port:             cfg.Scan.Port,
		Target:           cfg.Target(),
		Seed:             cfg.Scan.Seed,
		Rate:             cfg.Scan.Rate,
		DiscoveryWorkers: cfg.Scan.Workers,
		DiscoveryQueue:   cfg.QueueDepth(cfg.Scan.Workers),
		AnalysisWorkers:  cfg.Scan.AnalysisWorkers,
		AnalysisQueue:    cfg.QueueDepth(cfg.Scan.AnalysisWorkers),
		FlushInterval:    cfg.Scan.FlushInterval.Duration,
		Reachability:     probe.NewTCP(cfg.Scan.ConnectTimeout.Duration),
		Status:           status.NewClient(cfg.Scan.StatusTimeout.Duration),
		Frontier:         fr,
		Store:            st,
		OnTransition: func(_, to sweep.State) {
			emit(ui.ScanEvent{Type: ui.EvtState, State: to.String()})
		},
		OnReachable: func(h discovery.Hit) {
			emit(ui.ScanEvent{Type: ui.EvtReachable, Address: h.Address, Port: h.Port, Progress: h.Progress})
		},
		OnRecord: func(rec model.StatusRecord) {
			if err := sink.Write(&rec); err != nil {
				log.Warn("output sink write failed", zap.String("address", rec.Address), zap.Error(err))
			}
			emit(ui.ScanEvent{Type: ui.EvtServer, Address: rec.Address, Port: rec.Port, Server: &rec})
		},
		Metrics: coll,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	// ── Signals ────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		if _, ok := <-sigs; !ok {
			return
		}
		emit(ui.ScanEvent{Type: ui.EvtInfo, Msg: "\nInterrupted, draining. Press Ctrl-C again to abort."})
		cancel()
		if _, ok := <-sigs; ok {
			fmt.Fprintln(os.Stderr, "\nAborted.")
			os.Exit(130)
		}
	}()

	// ── Background services ────────────────────────────────────────────
	svcCtx, stopSvc := context.WithCancel(context.Background())
	defer stopSvc()
	g, gctx := errgroup.WithContext(svcCtx)
	if coll != nil {
		g.Go(func() error {
			log.Info("serving metrics", zap.String("listen", cfg.Metrics.Listen))
			return coll.Serve(gctx, cfg.Metrics.Listen)
		})
	}

	collectStats := func() ui.ScanStats {
		s := orch.Stats()
		progress := float64(-1)
		if s.Target > 0 {
			progress = min(float64(s.Generated)/float64(s.Target), 1)
		}
		return ui.ScanStats{
			Generated:      s.Generated,
			Tested:         uint64(s.Tested),
			Duplicates:     s.Duplicates,
			Reachable:      s.Reachable,
			Servers:        s.Found,
			Failures:       s.Failures,
			DiscoveryQueue: s.DiscoveryQueue,
			AnalysisQueue:  s.AnalysisQueue,
			Elapsed:        s.Elapsed,
			Progress:       progress,
			Rate:           elapsedRate(s.Generated, s.Elapsed),
			State:          s.State.String(),
		}
	}

	runMode := fmt.Sprintf("bounded (%d)", cfg.Target())
	switch {
	case replay:
		runMode = "replay"
	case cfg.Continuous():
		runMode = "continuous"
	}
	emit(ui.ScanEvent{Type: ui.EvtInfo, Msg: fmt.Sprintf("Sweeping %s on port %d, %s, %d+%d workers",
		strings.Join(cfg.Scan.Prefixes, ","), cfg.Scan.Port, runMode, cfg.Scan.Workers, cfg.Scan.AnalysisWorkers)})

	// ── Run ────────────────────────────────────────────────────────────
	var (
		summary sweep.Summary
		runErr  error
	)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if replay {
			summary, runErr = orch.Replay(ctx)
		} else {
			summary, runErr = orch.Run(ctx)
		}
	}()

	var uiWG sync.WaitGroup
	stopTicker := make(chan struct{})

	switch uiMode {
	case ui.ModeTUI:
		program := tea.NewProgram(
			ui.NewModel(strings.Join(cfg.Scan.Prefixes, ","), runMode, o.Results),
			tea.WithAltScreen(),
		)
		uiWG.Add(1)
		go func() {
			defer uiWG.Done()
			for ev := range events {
				program.Send(ev)
			}
		}()
		go tick(250*time.Millisecond, stopTicker, func() { program.Send(collectStats()) })
		go func() {
			<-runDone
			emit(ui.ScanEvent{Type: ui.EvtDone})
		}()

		final, err := program.Run()
		logOut.held.Store(false)
		if err != nil {
			log.Error("tui failed", zap.Error(err))
		}
		if m, ok := final.(ui.Model); ok && m.Quitting() {
			// Closing the TUI early is an interrupt: stop filling, keep draining.
			cancel()
			fmt.Fprintln(os.Stderr, "Interrupted, draining...")
		}
		<-runDone

	case ui.ModeText:
		textOut := io.Writer(os.Stdout)
		if o.Stdout {
			textOut = os.Stderr
		}
		printer := &ui.TextPrinter{Verbose: o.Verbose, Out: textOut}
		uiWG.Add(1)
		go func() {
			defer uiWG.Done()
			for ev := range events {
				printer.PrintEvent(ev)
			}
		}()
		go tick(time.Second, stopTicker, func() { printer.PrintStats(collectStats()) })
		<-runDone

	case ui.ModeSilent:
		uiWG.Add(1)
		go func() {
			defer uiWG.Done()
			for range events {
			}
		}()
		<-runDone
	}

	// ── Cleanup ────────────────────────────────────────────────────────
	close(stopTicker)
	stopSvc()
	if err := g.Wait(); err != nil {
		log.Warn("metrics server failed", zap.Error(err))
	}
	if err := sink.Close(); err != nil {
		log.Warn("output sink close failed", zap.Error(err))
	}
	eventsMu.Lock()
	eventsClosed = true
	close(events)
	eventsMu.Unlock()
	uiWG.Wait()

	if runErr != nil {
		return runErr
	}
	return report(summary, o.Stdout)
}

func buildSink(cfg *config.Config, log *zap.Logger) (*output.OutputSink, error) {
	o := cfg.Output
	sink := output.NewOutputSink()
	if o.Stdout {
		sink.Add(output.NewStdoutWriter(0, log))
	}
	if o.File != "" {
		fw, err := output.NewFileWriter(o.File, o.Format)
		if err != nil {
			return nil, fmt.Errorf("failed to open output file: %w", err)
		}
		sink.Add(fw)
	}
	if wh := o.Webhook; wh != nil && wh.URL != "" {
		sink.Add(output.NewWebhookWriter(output.WebhookConfig{
			URL:        wh.URL,
			BatchSize:  wh.BatchSize,
			Timeout:    wh.Timeout.Duration,
			MaxRetries: wh.MaxRetries,
			Headers:    wh.Headers,
		}, log))
	}
	return sink, nil
}

// heldWriter drops writes while held.
type heldWriter struct {
	held atomic.Bool
	w    io.Writer
}

func (h *heldWriter) Write(p []byte) (int, error) {
	if h.held.Load() {
		return len(p), nil
	}
	return h.w.Write(p)
}

func tick(every time.Duration, stop <-chan struct{}, fn func()) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			fn()
		}
	}
}

// report prints the exit line. An empty result store exits with status 1.
func report(s sweep.Summary, toStderr bool) error {
	dest := io.Writer(os.Stdout)
	if toStderr {
		dest = os.Stderr
	}
	fmt.Fprintf(dest, "\nTested: %d, Reachable: %d, Servers: %d, Elapsed: %s\n",
		s.Tested, s.Reachable, s.Found, s.Elapsed.Round(time.Second))
	if !s.Success() {
		fmt.Fprintln(dest, "nothing found")
		return cli.Exit("", 1)
	}
	fmt.Fprintf(dest, "scan complete: %d servers saved to %s\n", s.Saved, s.ResultsPath)
	return nil
}
