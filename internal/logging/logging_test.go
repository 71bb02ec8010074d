package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupLevel(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	level := Setup(&buf, slog.LevelInfo)

	slog.Debug("hidden")
	slog.Info("shown", "sessionID", "s1")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
	require.Contains(t, buf.String(), "sessionID=s1")
	require.NotContains(t, buf.String(), "\x1b[")

	level.Set(slog.LevelDebug)
	slog.Debug("now visible")
	require.Contains(t, buf.String(), "now visible")
}
