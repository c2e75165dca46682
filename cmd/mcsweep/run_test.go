package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"mcsweep/internal/logging"
)

func TestHeldWriter_DropsWhileHeld(t *testing.T) {
	var buf bytes.Buffer
	out := &heldWriter{w: &buf}
	out.held.Store(true)

	var seen []string
	log, err := logging.New(logging.Options{
		Level:   "warn",
		Out:     out,
		OnEntry: func(e zapcore.Entry) { seen = append(seen, e.Message) },
	})
	require.NoError(t, err)

	log.Warn("while the screen is held")
	assert.Zero(t, buf.Len())
	assert.Equal(t, []string{"while the screen is held"}, seen)

	out.held.Store(false)
	log.Warn("after release")
	assert.Contains(t, buf.String(), "after release")
	assert.NotContains(t, buf.String(), "while the screen is held")
}
