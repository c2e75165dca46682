package discovery

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcsweep/internal/probe"
	"mcsweep/internal/targets"
)

type memFrontier struct {
	mu    sync.Mutex
	addrs []string
}

func (f *memFrontier) Append(a string) {
	f.mu.Lock()
	f.addrs = append(f.addrs, a)
	f.mu.Unlock()
}

func (f *memFrontier) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.addrs...)
}

func cand(s string) targets.Candidate {
	return targets.Candidate{Addr: netip.MustParseAddr(s), Port: 25565}
}

func TestTestedSet_ConcurrentInsert(t *testing.T) {
	s := NewTestedSet()
	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Insert("1.2.3.4") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), wins.Load())
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Contains("1.2.3.4"))
	assert.False(t, s.Contains("4.3.2.1"))
}

func TestStage_DuplicateProbedOnce(t *testing.T) {
	var probes sync.Map
	var calls atomic.Int64
	prober := probe.Func(func(_ context.Context, host string, _ uint16) bool {
		calls.Add(1)
		n, _ := probes.LoadOrStore(host, new(atomic.Int64))
		n.(*atomic.Int64).Add(1)
		return false
	})

	s := NewStage(context.Background(), Options{Workers: 4, QueueDepth: 8, Target: 4, Prober: prober})
	for _, a := range []string{"1.1.1.1", "1.1.1.1", "2.2.2.2", "1.1.1.1"} {
		require.NoError(t, s.Submit(context.Background(), cand(a)))
	}
	s.Close()

	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, uint64(2), s.Duplicates())
	assert.Equal(t, uint64(4), s.Processed())
	probes.Range(func(k, v any) bool {
		assert.Equal(t, int64(1), v.(*atomic.Int64).Load(), "host %s", k)
		return true
	})
}

func TestStage_DrainCompleteness(t *testing.T) {
	var handled atomic.Int64
	prober := probe.Func(func(context.Context, string, uint16) bool {
		handled.Add(1)
		return false
	})

	s := NewStage(context.Background(), Options{Workers: 16, QueueDepth: 32, Target: 500, Prober: prober})
	g, err := targets.NewGenerator([]targets.Prefix{{51, 38}}, 25565, 11)
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		require.NoError(t, s.Submit(context.Background(), g.Next()))
	}
	s.Close()

	assert.Equal(t, 0, s.QueueLen())
	assert.Equal(t, uint64(500), s.Processed())
	assert.Equal(t, int64(s.Tested().Len()), handled.Load())
	assert.Equal(t, uint64(500), uint64(s.Tested().Len())+s.Duplicates())
}

func TestStage_ReachableGoesToFrontierAndForward(t *testing.T) {
	prober := probe.Func(func(_ context.Context, host string, _ uint16) bool {
		return host == "5.39.0.1" || host == "5.39.0.3"
	})
	fr := &memFrontier{}

	var fwdMu sync.Mutex
	var forwarded []string
	var hits []Hit

	s := NewStage(context.Background(), Options{
		Workers:    1,
		QueueDepth: 4,
		Prober:     prober,
		Frontier:   fr,
		Forward: func(a string) {
			fwdMu.Lock()
			forwarded = append(forwarded, a)
			fwdMu.Unlock()
		},
		OnReachable: func(h Hit) {
			fwdMu.Lock()
			hits = append(hits, h)
			fwdMu.Unlock()
		},
	})
	for _, a := range []string{"5.39.0.1", "5.39.0.2", "5.39.0.3"} {
		require.NoError(t, s.Submit(context.Background(), cand(a)))
	}
	s.Close()

	assert.Equal(t, []string{"5.39.0.1", "5.39.0.3"}, fr.list())
	assert.Equal(t, []string{"5.39.0.1", "5.39.0.3"}, forwarded)
	require.Len(t, hits, 2)
	assert.Equal(t, "continuous", hits[0].Progress)
	assert.Equal(t, uint64(2), s.Reachable())
}

func TestStage_ProgressBounded(t *testing.T) {
	var got []string
	s := NewStage(context.Background(), Options{
		Workers: 1,
		Target:  2000,
		Prober:  probe.Func(func(context.Context, string, uint16) bool { return true }),
		OnReachable: func(h Hit) {
			got = append(got, h.Progress)
		},
	})
	require.NoError(t, s.Submit(context.Background(), cand("3.8.1.1")))
	require.NoError(t, s.Submit(context.Background(), cand("3.8.1.2")))
	s.Close()

	assert.Equal(t, []string{"1/2000", "2/2000"}, got)
}

func TestStage_ProbeIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var sawCancelled atomic.Bool
	s := NewStage(ctx, Options{
		Workers: 1,
		Prober: probe.Func(func(pctx context.Context, _ string, _ uint16) bool {
			if pctx.Err() != nil {
				sawCancelled.Store(true)
			}
			return false
		}),
	})
	require.NoError(t, s.Submit(context.Background(), cand("3.8.1.1")))
	cancel()
	require.NoError(t, s.Submit(context.Background(), cand("3.8.1.2")))
	s.Close()

	assert.False(t, sawCancelled.Load())
}
