package output

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"mcsweep/internal/model"
)

// batchWriter accumulates JSONL-encoded records and hands them to flushFn when
// the buffer passes a byte threshold or a periodic timer fires, whichever
// comes first. Servers trickle in slowly, so the timer is what usually fires.
type batchWriter struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	enc       *json.Encoder
	threshold int
	flushFn   func([]byte) error
	log       *zap.Logger
	timer     *time.Timer
	closeCh   chan struct{}
	done      chan struct{}
	closed    bool
}

const (
	defaultBatchThreshold = 4096
	batchFlushInterval    = 250 * time.Millisecond
)

func newBatchWriter(threshold int, flushFn func([]byte) error, log *zap.Logger) *batchWriter {
	if threshold <= 0 {
		threshold = defaultBatchThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	bw := &batchWriter{
		threshold: threshold,
		flushFn:   flushFn,
		log:       log,
		timer:     time.NewTimer(batchFlushInterval),
		closeCh:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	bw.enc = json.NewEncoder(&bw.buf)
	go bw.run()
	return bw
}

func (bw *batchWriter) run() {
	defer close(bw.done)
	for {
		select {
		case <-bw.closeCh:
			return
		case <-bw.timer.C:
			bw.mu.Lock()
			if bw.buf.Len() > 0 {
				if err := bw.flushLocked(); err != nil {
					bw.log.Warn("timer flush failed", zap.Error(err))
				}
			}
			if !bw.closed {
				bw.timer.Reset(batchFlushInterval)
			}
			bw.mu.Unlock()
		}
	}
}

func (bw *batchWriter) write(rec *model.StatusRecord) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return nil
	}
	if err := bw.enc.Encode(rec); err != nil {
		return err
	}
	if bw.buf.Len() >= bw.threshold {
		return bw.flushLocked()
	}
	return nil
}

// flushLocked hands off a copy of the buffer and calls flushFn with the
// lock released. Caller must hold bw.mu.
func (bw *batchWriter) flushLocked() error {
	data := bw.detachLocked()
	if data == nil {
		return nil
	}
	bw.mu.Unlock()
	err := bw.flushFn(data)
	bw.mu.Lock()
	return err
}

func (bw *batchWriter) detachLocked() []byte {
	if bw.buf.Len() == 0 {
		return nil
	}
	data := make([]byte, bw.buf.Len())
	copy(data, bw.buf.Bytes())
	bw.buf.Reset()
	bw.enc = json.NewEncoder(&bw.buf)
	return data
}

func (bw *batchWriter) close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return nil
	}
	bw.closed = true

	// Drain the timer so run() cannot start a flush concurrently with ours.
	if !bw.timer.Stop() {
		select {
		case <-bw.timer.C:
		default:
		}
	}
	close(bw.closeCh)

	var err error
	if data := bw.detachLocked(); data != nil {
		err = bw.flushFn(data)
	}
	bw.mu.Unlock()
	<-bw.done
	return err
}
