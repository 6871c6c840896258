package cmdutil

import (
	"bytes"
	"flag"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_Flag(t *testing.T) {
	var ll LogLevel
	require.Equal(t, "warn", ll.String())

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	fs.Var(&ll, "log.level", "")

	require.NoError(t, fs.Parse([]string{"-log.level", "DEBUG"}))
	require.Equal(t, "debug", ll.String())

	require.Error(t, fs.Parse([]string{"-log.level", "verbose"}))
	require.Equal(t, "debug", ll.String(), "failed Set must not change the level")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevel{}, "fdserve")

	level.Info(l).Log("msg", "hidden")
	require.Zero(t, buf.Len(), "info should be filtered at the default level")

	level.Warn(l).Log("msg", "shown")
	out := buf.String()
	require.Contains(t, out, "level=warn")
	require.Contains(t, out, "program=fdserve")
	require.Contains(t, out, "msg=shown")
	require.Contains(t, out, "caller=cmdutil_test.go")
}
