package output

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcsweep/internal/model"
)

type failingWriter struct{ closed bool }

func (f *failingWriter) Write(*model.StatusRecord) error { return errors.New("sink down") }
func (f *failingWriter) Close() error                    { f.closed = true; return errors.New("close failed") }

type countingWriter struct{ n int }

func (c *countingWriter) Write(*model.StatusRecord) error { c.n++; return nil }

func TestOutputSink_WritesEverySink(t *testing.T) {
	bad := &failingWriter{}
	good := &countingWriter{}

	s := NewOutputSink()
	s.Add(bad)
	s.Add(good)
	assert.Equal(t, 2, s.Len())

	err := s.Write(testRecord("1.2.3.4"))
	assert.Error(t, err)
	assert.Equal(t, 1, good.n, "a failing sink must not starve the others")

	assert.Error(t, s.Close())
	assert.True(t, bad.closed)
}

func TestFileWriter_Formats(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord("1.2.3.4")
	rec.FoundAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec.MaxPlayers = 20

	for _, format := range []string{"jsonl", "csv", "text"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, "found."+format)
			w, err := NewFileWriter(path, format)
			require.NoError(t, err)
			require.NoError(t, w.Write(rec))
			require.NoError(t, w.Close())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			switch format {
			case "jsonl":
				assert.Contains(t, string(data), `"address":"1.2.3.4"`)
			case "csv":
				rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
				require.NoError(t, err)
				require.Len(t, rows, 2)
				assert.Equal(t, CSVHeader, rows[0])
				assert.Equal(t, []string{"2026-01-02T03:04:05Z", "1.2.3.4", "25565", "paper", "Paper 1.20.4", "0", "4", "20", "A Minecraft Server"}, rows[1])
			case "text":
				assert.Equal(t, "1.2.3.4:25565 | paper | 4/20 players | Paper 1.20.4 | A Minecraft Server", strings.TrimSpace(string(data)))
			}
		})
	}
}

func TestNewFormatter_Unknown(t *testing.T) {
	_, err := NewFormatter("xml", &bytes.Buffer{})
	assert.Error(t, err)
}
