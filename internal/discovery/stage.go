package discovery

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"mcsweep/internal/metrics"
	"mcsweep/internal/pool"
	"mcsweep/internal/probe"
	"mcsweep/internal/targets"
)

// Appender receives every reachable address.
type Appender interface {
	Append(address string)
}

// Hit describes one reachable host.
type Hit struct {
	Address  string
	Port     uint16
	Progress string // "<tested>/<target>" or "continuous"
}

// Options configures a Stage.
type Options struct {
	Workers    int
	QueueDepth int
	Target     int // 0 means continuous

	Prober   probe.Prober
	Frontier Appender

	// Forward, when set, hands every reachable address to the next stage.
	Forward func(address string)
	// OnReachable observes every hit. It must not block.
	OnReachable func(Hit)

	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Stage deduplicates candidates, tests reachability and records survivors.
type Stage struct {
	opts   Options
	ctx    context.Context
	tested *TestedSet
	pool   *pool.Pool[targets.Candidate]
	log    *zap.Logger

	reachable  atomic.Uint64
	duplicates atomic.Uint64
}

// NewStage starts the worker pool. Probes run under a context that keeps
// ctx's values but ignores its cancellation; each probe has its own timeout.
func NewStage(ctx context.Context, opts Options) *Stage {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("discovery")

	s := &Stage{
		opts:   opts,
		ctx:    context.WithoutCancel(ctx),
		tested: NewTestedSet(),
		log:    log,
	}
	s.pool = pool.New("discovery", opts.Workers, opts.QueueDepth, s.handle, log)
	return s
}

func (s *Stage) handle(c targets.Candidate) {
	addr := c.Address()
	if !s.tested.Insert(addr) {
		s.duplicates.Add(1)
		s.opts.Metrics.Duplicate()
		return
	}

	ok := s.opts.Prober.Reachable(s.ctx, addr, c.Port)
	s.opts.Metrics.Checked(ok)
	if !ok {
		return
	}
	s.reachable.Add(1)

	hit := Hit{Address: addr, Port: c.Port, Progress: s.progress()}
	s.log.Debug("host reachable", zap.String("address", addr), zap.String("progress", hit.Progress))
	if s.opts.OnReachable != nil {
		s.opts.OnReachable(hit)
	}
	if s.opts.Frontier != nil {
		s.opts.Frontier.Append(addr)
	}
	if s.opts.Forward != nil {
		s.opts.Forward(addr)
	}
}

func (s *Stage) progress() string {
	if s.opts.Target == 0 {
		return "continuous"
	}
	return fmt.Sprintf("%d/%d", s.tested.Len(), s.opts.Target)
}

// Submit enqueues a candidate, blocking while the queue is full.
func (s *Stage) Submit(ctx context.Context, c targets.Candidate) error {
	return s.pool.Submit(ctx, c)
}

// Close lets the workers drain every queued candidate and waits for them.
func (s *Stage) Close() { s.pool.Close() }

func (s *Stage) Tested() *TestedSet { return s.tested }
func (s *Stage) QueueLen() int      { return s.pool.Len() }
func (s *Stage) Processed() uint64  { return s.pool.Processed() }
func (s *Stage) Reachable() uint64  { return s.reachable.Load() }
func (s *Stage) Duplicates() uint64 { return s.duplicates.Load() }
