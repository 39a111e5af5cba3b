package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"prod", "dev", ""} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		assert.NotNil(t, l.SugaredLogger)
	}
}

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("learner_id", "u1").Info("story composed", "attempts", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "story composed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "u1", fields["learner_id"])
	assert.EqualValues(t, 2, fields["attempts"])
}

func TestNopDoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Debug("x")
	l.Warn("y", "k", "v")
	l.Error("z")
	l.Sync()
}
