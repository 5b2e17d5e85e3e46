package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerLevels(t *testing.T) {
	prod, err := NewLogger("production", Options{})
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zap.DebugLevel))
	assert.True(t, prod.Core().Enabled(zap.InfoLevel))

	dev, err := NewLogger("development", Options{})
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zap.DebugLevel))
}

func TestNewLoggerLevelOverride(t *testing.T) {
	prod, err := NewLogger("production", Options{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, prod.Core().Enabled(zap.DebugLevel))

	dev, err := NewLogger("development", Options{Level: "WARN"})
	require.NoError(t, err)
	assert.False(t, dev.Core().Enabled(zap.InfoLevel))
	assert.True(t, dev.Core().Enabled(zap.WarnLevel))

	_, err = NewLogger("development", Options{Level: "loud"})
	require.Error(t, err)
}

func TestUseColor(t *testing.T) {
	on, off := true, false
	tty := func() bool { return true }
	pipe := func() bool { return false }

	assert.True(t, useColor(Options{}, tty))
	assert.False(t, useColor(Options{}, pipe))
	assert.True(t, useColor(Options{Color: &on}, pipe))
	assert.False(t, useColor(Options{Color: &off}, tty))
}

func TestNewSugar(t *testing.T) {
	sugar, err := NewSugar("test", Options{})
	require.NoError(t, err)
	require.NotNil(t, sugar)
	sugar.Debugw("logger ready", "env", "test")
}
