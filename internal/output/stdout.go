package output

import (
	"bufio"
	"io"
	"os"

	"go.uber.org/zap"

	"mcsweep/internal/model"
)

// StdoutWriter streams batched JSONL records to stdout.
type StdoutWriter struct {
	batch *batchWriter
	out   *bufio.Writer
}

// NewStdoutWriter batches records and flushes them to stdout.
func NewStdoutWriter(batchSize int, log *zap.Logger) *StdoutWriter {
	return newStreamWriter(os.Stdout, batchSize, log)
}

func newStreamWriter(dst io.Writer, batchSize int, log *zap.Logger) *StdoutWriter {
	w := &StdoutWriter{
		out: bufio.NewWriterSize(dst, 32768),
	}
	w.batch = newBatchWriter(batchSize, func(data []byte) error {
		if _, err := w.out.Write(data); err != nil {
			return err
		}
		return w.out.Flush()
	}, log)
	return w
}

func (w *StdoutWriter) Write(rec *model.StatusRecord) error {
	return w.batch.write(rec)
}

func (w *StdoutWriter) Close() error {
	batchErr := w.batch.close()
	flushErr := w.out.Flush()
	if batchErr != nil {
		return batchErr
	}
	return flushErr
}
