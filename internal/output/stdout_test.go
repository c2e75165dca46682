package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"mcsweep/internal/model"
)

func TestStdoutWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	sw := newStreamWriter(&buf, 64, nil)
	sw.Write(testRecord("10.0.0.1"))
	if err := sw.Close(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if out == "" {
		t.Fatal("expected JSONL output, got empty")
	}

	var rec model.StatusRecord
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("invalid JSON output: %v\nraw: %s", err, out)
	}
	if rec.Address != "10.0.0.1" || rec.PlatformTag != "paper" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestStdoutWriter_BatchFlush(t *testing.T) {
	var buf bytes.Buffer
	sw := newStreamWriter(&buf, 64, nil)
	for i := 0; i < 5; i++ {
		sw.Write(testRecord("10.0.0." + string(rune('1'+i))))
	}
	sw.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 JSONL lines, got %d", len(lines))
	}
}
