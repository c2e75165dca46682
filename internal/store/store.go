package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"mcsweep/internal/model"
	"mcsweep/internal/utils/fileutil"
)

// ErrCorrupt marks a result file that could not be decoded. Flush moves such
// a file aside and continues as if it were empty; reads leave it in place.
var ErrCorrupt = errors.New("store: corrupt result file")

// Drainer hands buffered records to Flush and takes them back when the
// write fails.
type Drainer interface {
	Take() []model.StatusRecord
	Restore([]model.StatusRecord)
}

// Outcome describes one Flush. Err is informational: the caller decides
// whether to log it, the store never panics or retries on its own.
type Outcome struct {
	Taken      int
	Added      int
	Duplicates int
	Err        error
}

// Store is a JSON array of records keyed by address.
type Store struct {
	path string
	log  *zap.Logger
	now  func() time.Time
	mu   sync.Mutex
}

// New returns a store backed by path.
func New(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		path: path,
		log:  log.Named("store").With(zap.String("path", path)),
		now:  time.Now,
	}
}

// Path returns the result file.
func (s *Store) Path() string { return s.path }

// Load returns the persisted records. A missing or empty file yields none.
// An undecodable file is reported as ErrCorrupt and left where it is; only
// Flush moves it aside.
func (s *Store) Load() ([]model.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []model.StatusRecord
	err := fileutil.WithLock(s.path, func() error {
		var err error
		recs, err = s.load(false)
		return err
	})
	return recs, err
}

// load must be called with the file lock held. With moveAside set, an
// undecodable file is renamed to <path>.corrupt-<unix> before ErrCorrupt is
// returned.
func (s *Store) load(moveAside bool) ([]model.StatusRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var recs []model.StatusRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		if !moveAside {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
		}
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return nil, fmt.Errorf("store: move corrupt %s aside: %w", s.path, rerr)
		}
		s.log.Warn("result file is corrupt, moved aside",
			zap.String("moved_to", aside), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return recs, nil
}

// Count returns the number of persisted records. It never modifies the
// file; a corrupt one counts as zero and is reported as ErrCorrupt.
func (s *Store) Count() (int, error) {
	recs, err := s.Load()
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Flush merges the buffer into the result file. Records whose address is
// already persisted, or repeated within the batch, are dropped. An empty
// buffer leaves the file untouched. If the file cannot be written the taken
// records are restored to buf.
func (s *Store) Flush(buf Drainer) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := buf.Take()
	if len(batch) == 0 {
		return Outcome{}
	}
	out := Outcome{Taken: len(batch)}

	out.Err = fileutil.WithLock(s.path, func() error {
		existing, err := s.load(true)
		if err != nil && !errors.Is(err, ErrCorrupt) {
			return err
		}

		known := make(map[string]struct{}, len(existing)+len(batch))
		for _, r := range existing {
			known[r.Address] = struct{}{}
		}
		merged := existing
		for _, r := range batch {
			if _, dup := known[r.Address]; dup {
				out.Duplicates++
				continue
			}
			known[r.Address] = struct{}{}
			merged = append(merged, r)
			out.Added++
		}
		if out.Added == 0 {
			return nil
		}

		data, err := json.MarshalIndent(merged, "", "  ")
		if err != nil {
			return fmt.Errorf("store: encode: %w", err)
		}
		if err := fileutil.WriteAtomic(s.path, data, 0o644); err != nil {
			return fmt.Errorf("store: write %s: %w", s.path, err)
		}
		return nil
	})

	if out.Err != nil {
		buf.Restore(batch)
		out.Added, out.Duplicates = 0, 0
	}
	return out
}
