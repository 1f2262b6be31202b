package cmdutil

import (
	"bytes"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/require"
)

func TestLogLevel(t *testing.T) {
	var ll LogLevel
	require.Equal(t, "info", ll.String())

	require.NoError(t, ll.Set("DEBUG"))
	require.Equal(t, "debug", ll.String())

	require.Error(t, ll.Set("verbose"))
}

func TestLogFormat(t *testing.T) {
	var lf LogFormat
	require.Equal(t, "logfmt", lf.String())

	require.NoError(t, lf.Set("json"))
	require.Equal(t, "json", lf.String())

	require.Error(t, lf.Set("xml"))
}

func TestNewLoggerFiltersAndFormats(t *testing.T) {
	var (
		ll LogLevel
		lf LogFormat
	)
	require.NoError(t, ll.Set("warn"))
	require.NoError(t, lf.Set("json"))

	var buf bytes.Buffer
	l := NewLogger(&buf, ll, lf, "chirp")

	level.Debug(l).Log("msg", "dropped")
	level.Warn(l).Log("msg", "kept")

	out := buf.String()
	require.NotContains(t, out, "dropped")
	require.Contains(t, out, `"kept"`)
	require.Contains(t, out, `"program":"chirp"`)
}
