package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"mcsweep/internal/model"
)

// WebhookConfig holds settings for the webhook output sink.
type WebhookConfig struct {
	URL        string
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration // first retry delay, doubled per attempt
	Headers    map[string]string
}

// WebhookWriter posts batched JSONL to a remote HTTP endpoint.
type WebhookWriter struct {
	batch     *batchWriter
	client    *http.Client
	url       string
	headers   map[string]string
	retries   int
	backoff   time.Duration
	log       *zap.Logger
	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex // protects closed
	closed    bool
}

// NewWebhookWriter batches records and POSTs them to cfg.URL from a single
// sender goroutine.
func NewWebhookWriter(cfg WebhookConfig, log *zap.Logger) *WebhookWriter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("webhook")

	w := &WebhookWriter{
		client:  &http.Client{Timeout: cfg.Timeout},
		url:     cfg.URL,
		headers: cfg.Headers,
		retries: cfg.MaxRetries,
		backoff: cfg.Backoff,
		log:     log,
		queue:   make(chan []byte, 64),
		done:    make(chan struct{}),
	}

	w.batch = newBatchWriter(cfg.BatchSize, func(data []byte) error {
		// Holding mu across the send keeps Close from closing the queue under us.
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed {
			return nil
		}
		select {
		case w.queue <- data:
		default:
			w.log.Warn("queue full, dropping batch", zap.Int("bytes", len(data)))
		}
		return nil
	}, log)

	go w.sender()
	return w
}

func (w *WebhookWriter) sender() {
	defer close(w.done)
	for data := range w.queue {
		w.postWithRetry(data)
	}
}

func (w *WebhookWriter) postWithRetry(data []byte) {
	backoff := w.backoff
	for attempt := 1; attempt <= w.retries; attempt++ {
		err := w.post(data)
		if err == nil {
			return
		}
		w.log.Warn("POST failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", w.retries),
			zap.Error(err))
		if attempt < w.retries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	w.log.Error("dropping batch after retries", zap.Int("bytes", len(data)), zap.Int("retries", w.retries))
}

func (w *WebhookWriter) post(data []byte) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return nil
}

func (w *WebhookWriter) Write(rec *model.StatusRecord) error {
	return w.batch.write(rec)
}

// Close flushes remaining data and waits for the sender goroutine to drain.
func (w *WebhookWriter) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.batch.close()

		// Late flushes from write() must not reach the closed queue.
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		close(w.queue)
	})

	select {
	case <-w.done:
	case <-time.After(30 * time.Second):
		w.log.Warn("close timed out waiting for sender")
		return fmt.Errorf("webhook: close timed out")
	}
	return err
}
