package frontier

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"mcsweep/internal/utils/fileutil"
)

// Frontier is the on-disk list of reachable addresses waiting for analysis,
// one address per line. It survives a crash between the two stages.
type Frontier struct {
	path string
	log  *zap.Logger

	// OnAppendError, if set before use, is called after every failed Append.
	OnAppendError func()

	mu           sync.Mutex
	appendErrors atomic.Uint64
}

// New returns a frontier backed by path. The file is created lazily.
func New(path string, log *zap.Logger) *Frontier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Frontier{
		path: path,
		log:  log.Named("frontier").With(zap.String("path", path)),
	}
}

// Path returns the backing file.
func (f *Frontier) Path() string { return f.path }

// Append records address. Failures are logged and counted, never returned.
func (f *Frontier) Append(address string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := fileutil.WithLock(f.path, func() error {
		fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		if _, err := fh.WriteString(address + "\n"); err != nil {
			fh.Close()
			return err
		}
		return fh.Close()
	})
	if err != nil {
		f.appendErrors.Add(1)
		if f.OnAppendError != nil {
			f.OnAppendError()
		}
		f.log.Warn("frontier append failed", zap.String("address", address), zap.Error(err))
	}
}

// AppendErrors is the number of appends that failed.
func (f *Frontier) AppendErrors() uint64 { return f.appendErrors.Load() }

// ReadAll returns the recorded addresses in file order, trimmed, without
// blank lines and without repeats. A missing file reads as empty.
func (f *Frontier) ReadAll() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	err := fileutil.WithLock(f.path, func() error {
		fh, err := os.Open(f.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		defer fh.Close()

		seen := make(map[string]struct{})
		sc := bufio.NewScanner(fh)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			out = append(out, line)
		}
		return sc.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("frontier: read %s: %w", f.path, err)
	}
	return out, nil
}

// Clear truncates the file.
func (f *Frontier) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := fileutil.WithLock(f.path, func() error {
		return os.WriteFile(f.path, nil, 0o644)
	})
	if err != nil {
		return fmt.Errorf("frontier: clear %s: %w", f.path, err)
	}
	return nil
}
