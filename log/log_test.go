package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("trace")
	require.NoError(t, err)
	assert.Equal(t, LevelTrace, lvl)

	lvl, err = ParseLevel("Warning")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestModuleFiltering(t *testing.T) {
	var buf bytes.Buffer
	prev := Root()
	SetDefault(NewLogger(NewTerminalHandlerWithLevel(&buf, LevelTrace, false)))
	defer SetDefault(prev)
	defer DisableModule(VMModule)

	Trace(VMModule, "hidden step")
	assert.Empty(t, buf.String())

	EnableModules(" avm , store")
	defer DisableModule(StoreModule)
	Trace(VMModule, "visible step", "pc", 3)
	assert.Contains(t, buf.String(), "visible step")
	assert.Contains(t, buf.String(), "module=avm")
	assert.Contains(t, buf.String(), "level=TRACE")

	buf.Reset()
	Info(CLIModule, "always shown")
	assert.Contains(t, buf.String(), "always shown")
}

func TestDiscardHandler(t *testing.T) {
	l := NewLogger(DiscardHandler())
	assert.False(t, l.Enabled(context.Background(), LevelCrit))
	l.With("k", "v").Info(VMModule, "dropped")
}

func TestLevelNames(t *testing.T) {
	assert.Equal(t, "trace", LevelString(LevelTrace))
	assert.Equal(t, "unknown", LevelString(slog.Level(3)))
	assert.Equal(t, "INFO ", LevelAlignedString(LevelInfo))
	assert.Equal(t, "ERROR", LevelAlignedString(LevelError))
	assert.Equal(t, "CRIT ", LevelAlignedString(LevelCrit))
}

func TestInitLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := Root()
	defer SetDefault(prev)

	require.Error(t, InitLogger(&buf, "loud", false))
	require.NoError(t, InitLogger(&buf, "info", true))
	Info(StoreModule, "image stored", "name", "sum")
	assert.Contains(t, buf.String(), `"msg":"image stored"`)
	assert.Contains(t, buf.String(), `"module":"store"`)
}

func TestEnableAllModules(t *testing.T) {
	EnableModules("all")
	defer func() {
		for _, m := range KnownModules {
			DisableModule(m)
		}
	}()
	assert.Equal(t, len(KnownModules), len(EnabledModules()))
	assert.True(t, IsModuleEnabled(ProfileModule))
}
