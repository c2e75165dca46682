package output

import (
	"io"
	"os"
	"sync"

	"go.uber.org/multierr"

	"mcsweep/internal/model"
)

// ResultWriter is anything that accepts records.
type ResultWriter interface {
	Write(rec *model.StatusRecord) error
}

// ClosingWriter serializes writes to a Formatter and closes the underlying
// resource (typically a file) on Close.
type ClosingWriter struct {
	fmt    Formatter
	closer io.Closer
	mu     sync.Mutex
}

func NewClosingWriter(f Formatter, c io.Closer) *ClosingWriter {
	return &ClosingWriter{fmt: f, closer: c}
}

// NewFileWriter appends records to path in the named format.
func NewFileWriter(path, format string) (*ClosingWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	fm, err := NewFormatter(format, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return NewClosingWriter(fm, f), nil
}

func (w *ClosingWriter) Write(rec *model.StatusRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fmt.Write(rec); err != nil {
		return err
	}
	// Records are rare; flushing each keeps the file current for tail -f.
	return w.fmt.Flush()
}

func (w *ClosingWriter) Close() error {
	w.mu.Lock()
	flushErr := w.fmt.Flush()
	w.mu.Unlock()
	return multierr.Append(flushErr, w.closer.Close())
}

// OutputSink fans records out to several writers.
type OutputSink struct {
	writers []ResultWriter
}

func NewOutputSink() *OutputSink {
	return &OutputSink{}
}

func (s *OutputSink) Add(w ResultWriter) {
	s.writers = append(s.writers, w)
}

// Len is the number of attached writers.
func (s *OutputSink) Len() int { return len(s.writers) }

// Write hands rec to every writer, even after one fails.
func (s *OutputSink) Write(rec *model.StatusRecord) error {
	var err error
	for _, w := range s.writers {
		err = multierr.Append(err, w.Write(rec))
	}
	return err
}

// Close closes every writer that implements io.Closer.
func (s *OutputSink) Close() error {
	var err error
	for _, w := range s.writers {
		if c, ok := w.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
