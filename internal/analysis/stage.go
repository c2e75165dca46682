package analysis

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mcsweep/internal/metrics"
	"mcsweep/internal/model"
	"mcsweep/internal/pool"
)

// StatusProber queries a host for its server status.
type StatusProber interface {
	Query(ctx context.Context, host string, port uint16) (model.StatusRecord, error)
}

// Options configures a Stage.
type Options struct {
	Workers    int
	QueueDepth int
	Port       uint16

	Prober StatusProber
	Buffer *Buffer

	// OnRecord observes every new record after it is buffered. It must not block.
	OnRecord func(model.StatusRecord)

	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Stage queries reachable hosts and buffers the servers that answer.
type Stage struct {
	opts Options
	ctx  context.Context
	pool *pool.Pool[string]
	log  *zap.Logger
	now  func() time.Time

	found    atomic.Uint64
	failures atomic.Uint64
}

// NewStage starts the worker pool. As in discovery, probes are detached
// from ctx's cancellation and bounded by the prober's own timeout.
func NewStage(ctx context.Context, opts Options) *Stage {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("analysis")
	if opts.Buffer == nil {
		opts.Buffer = &Buffer{}
	}

	s := &Stage{
		opts: opts,
		ctx:  context.WithoutCancel(ctx),
		log:  log,
		now:  time.Now,
	}
	s.pool = pool.New("analysis", opts.Workers, opts.QueueDepth, s.handle, log)
	return s
}

func (s *Stage) handle(addr string) {
	start := s.now()
	rec, err := s.opts.Prober.Query(s.ctx, addr, s.opts.Port)
	if err != nil {
		// Not a server, or not one that answers; nothing to keep.
		s.failures.Add(1)
		s.opts.Metrics.Probed(false, "", 0)
		s.log.Debug("status query failed", zap.String("address", addr), zap.Error(err))
		return
	}

	rec.Address = addr
	rec.Port = s.opts.Port
	rec.PlatformTag = PlatformTag(rec.Version)
	rec.FoundAt = s.now().UTC()

	s.opts.Buffer.Append(rec)
	s.found.Add(1)
	s.opts.Metrics.Probed(true, rec.PlatformTag, s.now().Sub(start))
	if s.opts.OnRecord != nil {
		s.opts.OnRecord(rec)
	}
}

// Submit enqueues an address, blocking while the queue is full.
func (s *Stage) Submit(ctx context.Context, addr string) error {
	return s.pool.Submit(ctx, addr)
}

// Join waits until every submitted address has been processed.
func (s *Stage) Join() { s.pool.Join() }

// Close drains the queue and stops the workers.
func (s *Stage) Close() { s.pool.Close() }

func (s *Stage) Buffer() *Buffer   { return s.opts.Buffer }
func (s *Stage) QueueLen() int     { return s.pool.Len() }
func (s *Stage) Processed() uint64 { return s.pool.Processed() }
func (s *Stage) Found() uint64     { return s.found.Load() }
func (s *Stage) Failures() uint64  { return s.failures.Load() }
