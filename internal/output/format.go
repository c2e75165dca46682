package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mcsweep/internal/model"
)

// Formatter renders records in one output format.
type Formatter interface {
	Write(rec *model.StatusRecord) error
	Flush() error
}

// NewFormatter returns the formatter for name: "jsonl", "csv" or "text".
func NewFormatter(name string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "jsonl", "json":
		return NewJSONFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w), nil
	case "text", "txt":
		return NewTextFormatter(w), nil
	}
	return nil, fmt.Errorf("output: unknown format %q", name)
}

// JSONFormatter writes JSONL.
type JSONFormatter struct {
	enc *json.Encoder
}

func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{enc: json.NewEncoder(w)}
}

func (f *JSONFormatter) Write(rec *model.StatusRecord) error {
	return f.enc.Encode(rec)
}

func (f *JSONFormatter) Flush() error { return nil }

// CSVHeader is the column order written by CSVFormatter.
var CSVHeader = []string{"found_at", "address", "port", "platform", "version", "protocol", "online_players", "max_players", "motd"}

// CSVFormatter writes CSV with a header row.
type CSVFormatter struct {
	writer *csv.Writer
}

func NewCSVFormatter(w io.Writer) *CSVFormatter {
	cw := csv.NewWriter(w)
	cw.Write(CSVHeader)
	return &CSVFormatter{writer: cw}
}

func (f *CSVFormatter) Write(rec *model.StatusRecord) error {
	found := ""
	if !rec.FoundAt.IsZero() {
		found = rec.FoundAt.UTC().Format(time.RFC3339)
	}
	return f.writer.Write([]string{
		found,
		rec.Address,
		strconv.Itoa(int(rec.Port)),
		rec.PlatformTag,
		strings.ToValidUTF8(rec.Version, ""),
		strconv.Itoa(rec.Protocol),
		strconv.Itoa(rec.OnlinePlayers),
		strconv.Itoa(rec.MaxPlayers),
		strings.ToValidUTF8(rec.MOTD, ""),
	})
}

func (f *CSVFormatter) Flush() error {
	f.writer.Flush()
	return f.writer.Error()
}

// TextFormatter writes one human-readable line per server.
type TextFormatter struct {
	w io.Writer
}

func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{w: w}
}

func (f *TextFormatter) Write(rec *model.StatusRecord) error {
	motd := strings.Join(strings.Fields(rec.MOTD), " ")
	if motd != "" {
		motd = " | " + motd
	}
	_, err := fmt.Fprintf(f.w, "%s | %s | %d/%d players | %s%s\n",
		rec.HostPort(), rec.PlatformTag, rec.OnlinePlayers, rec.MaxPlayers, rec.Version, motd)
	return err
}

func (f *TextFormatter) Flush() error { return nil }
