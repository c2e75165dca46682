package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger's level, encoding and destination.
type Options struct {
	Level string // "debug", "info", "warn", "error"
	JSON  bool

	// Out receives encoded entries. Nil means stderr.
	Out io.Writer

	// OnEntry, when set, sees every entry that passes the level filter.
	OnEntry func(zapcore.Entry)
}

// New builds a logger writing to stderr unless Out says otherwise. Stdout is
// left free for JSONL results.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	var ws zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if opts.Out != nil {
		ws = zapcore.Lock(zapcore.AddSync(opts.Out))
	}

	var zopts []zap.Option
	if opts.OnEntry != nil {
		zopts = append(zopts, zap.Hooks(func(e zapcore.Entry) error {
			opts.OnEntry(e)
			return nil
		}))
	}
	return zap.New(zapcore.NewCore(enc, ws, level), zopts...), nil
}
