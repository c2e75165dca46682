package analysis

import (
	"sync"

	"mcsweep/internal/model"
)

// Buffer holds records between analysis and the next store flush.
type Buffer struct {
	mu   sync.Mutex
	recs []model.StatusRecord
}

func (b *Buffer) Append(r model.StatusRecord) {
	b.mu.Lock()
	b.recs = append(b.recs, r)
	b.mu.Unlock()
}

// Take returns the buffered records and leaves the buffer empty.
func (b *Buffer) Take() []model.StatusRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.recs
	b.recs = nil
	return out
}

// Restore puts records back ahead of anything appended since Take.
func (b *Buffer) Restore(recs []model.StatusRecord) {
	if len(recs) == 0 {
		return
	}
	b.mu.Lock()
	b.recs = append(append(make([]model.StatusRecord, 0, len(recs)+len(b.recs)), recs...), b.recs...)
	b.mu.Unlock()
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.recs)
}
