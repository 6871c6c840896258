package cmdutil

import (
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// NewLogger returns a logfmt logger writing to w, filtered by ll. Every line
// carries a timestamp, the caller, and the program name.
func NewLogger(w io.Writer, ll LogLevel, program string) log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = level.NewFilter(l, ll.FilterOption())
	return log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller, "program", program)
}
