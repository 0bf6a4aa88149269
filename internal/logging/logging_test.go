package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, Options{Level: "warn", Format: "json"})

	l.Info("dropped")
	l.Warn("kept", "symbol", "BTCJPY")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "kept", line["msg"])
	require.Equal(t, "BTCJPY", line["symbol"])
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, log.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, log.WarnLevel, ParseLevel("warning"))
	require.Equal(t, log.ErrorLevel, ParseLevel("error"))
	require.Equal(t, log.InfoLevel, ParseLevel(""))
}
