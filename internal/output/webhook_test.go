package output

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWebhookWriter_BasicPost(t *testing.T) {
	var received []string
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-ndjson" {
			t.Errorf("Content-Type: want application/x-ndjson, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, string(body))
		mu.Unlock()
		w.WriteHeader(200)
	}))
	defer srv.Close()

	wh := NewWebhookWriter(WebhookConfig{URL: srv.URL, BatchSize: 64}, nil)
	wh.Write(testRecord("10.0.0.1"))
	wh.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) == 0 {
		t.Fatal("expected at least one POST, got 0")
	}
	if !strings.Contains(received[0], `"address":"10.0.0.1"`) {
		t.Errorf("POST body missing expected content: %s", received[0])
	}
	if !strings.Contains(received[0], `"platformTag":"paper"`) {
		t.Errorf("POST body missing platform tag: %s", received[0])
	}
}

func TestWebhookWriter_BatchAccumulation(t *testing.T) {
	var postCount int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&postCount, 1)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	wh := NewWebhookWriter(WebhookConfig{URL: srv.URL, BatchSize: 4096}, nil)
	for i := 0; i < 5; i++ {
		wh.Write(testRecord(fmt.Sprintf("10.0.0.%d", i+1)))
	}
	wh.Close()

	if n := atomic.LoadInt32(&postCount); n > 3 {
		t.Errorf("expected few POSTs due to batching, got %d", n)
	}
}

func TestWebhookWriter_RetryOnFailure(t *testing.T) {
	var attempts int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			w.WriteHeader(500)
			return
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	wh := NewWebhookWriter(WebhookConfig{
		URL:        srv.URL,
		BatchSize:  64,
		MaxRetries: 3,
		Backoff:    10 * time.Millisecond,
	}, nil)
	wh.Write(testRecord("10.0.0.1"))
	wh.Close()

	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("expected 3 attempts (2 failures + 1 success), got %d", n)
	}
}

func TestWebhookWriter_GivesUpAfterRetries(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(503)
	}))
	defer srv.Close()

	wh := NewWebhookWriter(WebhookConfig{
		URL:        srv.URL,
		BatchSize:  1 << 20,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	}, nil)
	wh.Write(testRecord("10.0.0.1"))
	wh.Close()

	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Errorf("expected 2 attempts, got %d", n)
	}
}

func TestWebhookWriter_CustomHeaders(t *testing.T) {
	var gotAuth string
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(200)
	}))
	defer srv.Close()

	wh := NewWebhookWriter(WebhookConfig{
		URL:       srv.URL,
		BatchSize: 64,
		Headers:   map[string]string{"Authorization": "Bearer secret-token"},
	}, nil)
	wh.Write(testRecord("10.0.0.1"))
	wh.Close()

	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization header: want 'Bearer secret-token', got %q", gotAuth)
	}
}

func TestWebhookWriter_Close(t *testing.T) {
	var received int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	wh := NewWebhookWriter(WebhookConfig{URL: srv.URL, BatchSize: 1 << 20}, nil)
	wh.Write(testRecord("10.0.0.1"))
	wh.Close()

	if n := atomic.LoadInt32(&received); n == 0 {
		t.Fatal("expected pending batch to be sent on Close, got 0")
	}
}

func TestWebhookWriter_DoubleClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	wh := NewWebhookWriter(WebhookConfig{URL: srv.URL, BatchSize: 64}, nil)
	wh.Write(testRecord("10.0.0.1"))

	wh.Close()
	wh.Close()
}

func TestWebhookWriter_ConcurrentWriteClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	wh := NewWebhookWriter(WebhookConfig{URL: srv.URL, BatchSize: 64}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			wh.Write(testRecord(fmt.Sprintf("10.0.%d.%d", i/250, i%250+1)))
		}
	}()

	time.Sleep(5 * time.Millisecond)
	wh.Close()
	wg.Wait()
}
