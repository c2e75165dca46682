package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mcsweep/internal/analysis"
	"mcsweep/internal/discovery"
	"mcsweep/internal/limiter"
	"mcsweep/internal/metrics"
	"mcsweep/internal/model"
	"mcsweep/internal/probe"
	"mcsweep/internal/store"
	"mcsweep/internal/targets"
)

// ErrAlreadyRun is returned when Run or Replay is called a second time.
var ErrAlreadyRun = errors.New("sweep: orchestrator already used")

// Frontier is the hand-off file between discovery and analysis.
type Frontier interface {
	Append(address string)
	ReadAll() ([]string, error)
	Clear() error
}

// ResultStore persists buffered records.
type ResultStore interface {
	Flush(buf store.Drainer) store.Outcome
	Count() (int, error)
	Path() string
}

// Options wires an Orchestrator. Target 0 selects continuous mode.
type Options struct {
	Prefixes []targets.Prefix
	Exclude  *targets.Exclusions
	Port     uint16
	Target   int
	Seed     int64
	Rate     int // candidates per second, 0 = unlimited

	DiscoveryWorkers int
	DiscoveryQueue   int
	AnalysisWorkers  int
	AnalysisQueue    int
	FlushInterval    time.Duration // continuous mode only, 0 disables

	Reachability probe.Prober
	Status       analysis.StatusProber
	Frontier     Frontier
	Store        ResultStore

	// Observers. None of them may block.
	OnTransition func(from, to State)
	OnReachable  func(discovery.Hit)
	OnRecord     func(model.StatusRecord)

	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Continuous reports whether the run has no target count.
func (o Options) Continuous() bool { return o.Target == 0 }

// Summary describes a finished run.
type Summary struct {
	Continuous  bool
	Interrupted bool
	Generated   uint64
	Tested      int
	Duplicates  uint64
	Reachable   uint64
	Replayed    int
	Found       uint64
	Failures    uint64
	Flushes     uint64
	FlushErrors uint64
	Saved       int
	ResultsPath string
	Elapsed     time.Duration
}

// Success reports whether the result store holds at least one server.
func (s Summary) Success() bool { return s.Saved > 0 }

// Stats is a point-in-time view of a running Orchestrator.
type Stats struct {
	State          State
	Target         int
	Generated      uint64
	Tested         int
	Duplicates     uint64
	Reachable      uint64
	Found          uint64
	Failures       uint64
	Buffered       int
	DiscoveryQueue int
	AnalysisQueue  int
	Elapsed        time.Duration
}

// Orchestrator owns both stages, the shared buffer and the run's state machine.
type Orchestrator struct {
	opts    Options
	log     *zap.Logger
	gen     *targets.Generator
	limiter *limiter.TokenBucket
	buffer  *analysis.Buffer

	state     atomic.Int32
	used      atomic.Bool
	started   atomic.Int64 // UnixNano
	discovery atomic.Pointer[discovery.Stage]
	analysis  atomic.Pointer[analysis.Stage]

	generated   atomic.Uint64
	flushes     atomic.Uint64
	flushErrors atomic.Uint64
}

// New validates opts and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Reachability == nil:
		return nil, errors.New("sweep: reachability prober is required")
	case opts.Status == nil:
		return nil, errors.New("sweep: status prober is required")
	case opts.Frontier == nil:
		return nil, errors.New("sweep: frontier is required")
	case opts.Store == nil:
		return nil, errors.New("sweep: result store is required")
	case opts.Target < 0:
		return nil, fmt.Errorf("sweep: negative target %d", opts.Target)
	}
	if opts.AnalysisWorkers <= 0 {
		opts.AnalysisWorkers = 10
	}
	if opts.DiscoveryWorkers <= 0 {
		opts.DiscoveryWorkers = 1
	}

	gen, err := targets.NewGenerator(opts.Prefixes, opts.Port, opts.Seed)
	if err != nil {
		return nil, err
	}
	if opts.Exclude != nil {
		if err := gen.Exclude(opts.Exclude); err != nil {
			return nil, err
		}
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Orchestrator{
		opts:    opts,
		log:     log.Named("sweep"),
		gen:     gen,
		limiter: limiter.NewTokenBucket(opts.Rate, max(1, opts.Rate/10)),
		buffer:  &analysis.Buffer{},
	}, nil
}

// State returns the current state.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

func (o *Orchestrator) transition(to State) {
	from := State(o.state.Swap(int32(to)))
	if to < from {
		o.log.Error("state moved backwards", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	o.opts.Metrics.State(int(to))
	o.log.Info("state", zap.Stringer("from", from), zap.Stringer("to", to))
	if o.opts.OnTransition != nil {
		o.opts.OnTransition(from, to)
	}
}

func (o *Orchestrator) newAnalysis(ctx context.Context) *analysis.Stage {
	an := analysis.NewStage(ctx, analysis.Options{
		Workers:    o.opts.AnalysisWorkers,
		QueueDepth: o.opts.AnalysisQueue,
		Port:       o.opts.Port,
		Prober:     o.opts.Status,
		Buffer:     o.buffer,
		OnRecord:   o.opts.OnRecord,
		Metrics:    o.opts.Metrics,
		Logger:     o.log,
	})
	o.analysis.Store(an)
	return an
}

// Run executes a bounded or continuous sweep. Cancelling ctx ends Filling;
// everything already queued is still probed, analyzed and flushed.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if !o.used.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRun
	}
	o.started.Store(time.Now().UnixNano())
	continuous := o.opts.Continuous()

	// Background loops outlive an interrupt; they stop once the run is drained.
	bgCtx, stopBg := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBg()
	g, gctx := errgroup.WithContext(bgCtx)

	an := o.newAnalysis(ctx)

	discOpts := discovery.Options{
		Workers:     o.opts.DiscoveryWorkers,
		QueueDepth:  o.opts.DiscoveryQueue,
		Target:      o.opts.Target,
		Prober:      o.opts.Reachability,
		Frontier:    o.opts.Frontier,
		OnReachable: o.opts.OnReachable,
		Metrics:     o.opts.Metrics,
		Logger:      o.log,
	}
	if continuous {
		discOpts.Forward = func(addr string) {
			if err := an.Submit(context.Background(), addr); err != nil {
				o.log.Warn("analysis rejected address", zap.String("address", addr), zap.Error(err))
			}
		}
		if o.opts.FlushInterval > 0 {
			g.Go(func() error { return o.flushLoop(gctx) })
		}
	}
	disc := discovery.NewStage(ctx, discOpts)
	o.discovery.Store(disc)
	g.Go(func() error { return o.gaugeLoop(gctx) })

	o.state.Store(int32(Filling))
	o.opts.Metrics.State(int(Filling))
	o.log.Info("sweep started",
		zap.Bool("continuous", continuous),
		zap.Int("target", o.opts.Target),
		zap.Int("discovery_workers", o.opts.DiscoveryWorkers),
		zap.Int("analysis_workers", o.opts.AnalysisWorkers))

	interrupted := o.fill(ctx, disc)

	o.transition(DrainingDiscovery)
	disc.Close()

	replayed := 0
	if !continuous {
		o.transition(AnalyzingFrontier)
		replayed = o.analyzeFrontier(an)
	}

	o.transition(DrainingAnalysis)
	an.Close()

	stopBg()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		o.log.Warn("background loop failed", zap.Error(err))
	}
	if continuous {
		o.flush()
	}

	o.transition(Terminated)
	return o.summary(interrupted, replayed), nil
}

// Replay analyzes whatever a previous process left in the frontier, flushes
// and clears it. It never generates or tests candidates.
func (o *Orchestrator) Replay(ctx context.Context) (Summary, error) {
	if !o.used.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRun
	}
	o.started.Store(time.Now().UnixNano())
	an := o.newAnalysis(ctx)

	o.transition(AnalyzingFrontier)
	replayed := o.analyzeFrontier(an)

	o.transition(DrainingAnalysis)
	an.Close()

	o.transition(Terminated)
	return o.summary(false, replayed), nil
}

// fill feeds candidates until the target is reached or ctx ends. It reports
// whether it stopped early.
func (o *Orchestrator) fill(ctx context.Context, disc *discovery.Stage) bool {
	target := o.opts.Target
	for n := 0; target == 0 || n < target; n++ {
		if ctx.Err() != nil {
			break
		}
		if err := o.limiter.Wait(ctx, 1); err != nil {
			break
		}
		c := o.gen.Next()
		if err := disc.Submit(ctx, c); err != nil {
			break
		}
		o.generated.Add(1)
		o.opts.Metrics.Generated()
	}
	if ctx.Err() != nil {
		o.log.Info("interrupted, draining", zap.Uint64("generated", o.generated.Load()))
		return true
	}
	return false
}

// analyzeFrontier replays the frontier through analysis, waits for it,
// flushes, and clears the frontier only if the flush succeeded.
func (o *Orchestrator) analyzeFrontier(an *analysis.Stage) int {
	addrs, err := o.opts.Frontier.ReadAll()
	if err != nil {
		o.log.Warn("frontier unreadable, skipping analysis", zap.Error(err))
		return 0
	}
	o.log.Info("analyzing frontier", zap.Int("addresses", len(addrs)))

	submitted := 0
	for _, a := range addrs {
		if err := an.Submit(context.Background(), a); err != nil {
			o.log.Warn("analysis rejected address", zap.String("address", a), zap.Error(err))
			continue
		}
		submitted++
	}
	an.Join()

	if out := o.flush(); out.Err != nil {
		o.log.Warn("flush failed, keeping frontier for a later replay")
		return submitted
	}
	if err := o.opts.Frontier.Clear(); err != nil {
		o.log.Warn("frontier clear failed", zap.Error(err))
	}
	return submitted
}

// flush merges the buffer into the store. Store errors stop here: they are
// logged and counted, and the records stay buffered for the next attempt.
func (o *Orchestrator) flush() store.Outcome {
	out := o.opts.Store.Flush(o.buffer)
	o.opts.Metrics.Flushed(out.Added, out.Err)
	if out.Err != nil {
		o.flushErrors.Add(1)
		o.log.Warn("result flush failed", zap.Int("records", out.Taken), zap.Error(out.Err))
		return out
	}
	if out.Taken > 0 {
		o.flushes.Add(1)
		o.log.Info("results flushed",
			zap.Int("added", out.Added),
			zap.Int("duplicates", out.Duplicates),
			zap.String("path", o.opts.Store.Path()))
	}
	return out
}

func (o *Orchestrator) flushLoop(ctx context.Context) error {
	t := time.NewTicker(o.opts.FlushInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			o.flush()
		}
	}
}

func (o *Orchestrator) gaugeLoop(ctx context.Context) error {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s := o.Stats()
			o.opts.Metrics.QueueDepth("discovery", s.DiscoveryQueue)
			o.opts.Metrics.QueueDepth("analysis", s.AnalysisQueue)
		}
	}
}

// Stats is safe to call from any goroutine, including before Run.
func (o *Orchestrator) Stats() Stats {
	s := Stats{
		State:     o.State(),
		Target:    o.opts.Target,
		Generated: o.generated.Load(),
		Buffered:  o.buffer.Len(),
	}
	if started := o.started.Load(); started > 0 {
		s.Elapsed = time.Since(time.Unix(0, started))
	}
	if d := o.discovery.Load(); d != nil {
		s.Tested = d.Tested().Len()
		s.Duplicates = d.Duplicates()
		s.Reachable = d.Reachable()
		s.DiscoveryQueue = d.QueueLen()
	}
	if a := o.analysis.Load(); a != nil {
		s.Found = a.Found()
		s.Failures = a.Failures()
		s.AnalysisQueue = a.QueueLen()
	}
	return s
}

func (o *Orchestrator) summary(interrupted bool, replayed int) Summary {
	st := o.Stats()
	saved, err := o.opts.Store.Count()
	if err != nil {
		o.log.Warn("result store unreadable", zap.Error(err))
	}
	sum := Summary{
		Continuous:  o.opts.Continuous(),
		Interrupted: interrupted,
		Generated:   st.Generated,
		Tested:      st.Tested,
		Duplicates:  st.Duplicates,
		Reachable:   st.Reachable,
		Replayed:    replayed,
		Found:       st.Found,
		Failures:    st.Failures,
		Flushes:     o.flushes.Load(),
		FlushErrors: o.flushErrors.Load(),
		Saved:       saved,
		ResultsPath: o.opts.Store.Path(),
		Elapsed:     st.Elapsed,
	}
	o.log.Info("sweep finished",
		zap.Uint64("generated", sum.Generated),
		zap.Int("tested", sum.Tested),
		zap.Uint64("reachable", sum.Reachable),
		zap.Uint64("found", sum.Found),
		zap.Int("saved", sum.Saved),
		zap.Duration("elapsed", sum.Elapsed))
	return sum
}
