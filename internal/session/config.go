package session

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rfratto/fdserve/internal/cmdutil"
)

// LogRequestsEnv enables request logging by default when set to a non-empty
// value.
const LogRequestsEnv = "FDSERVE_LOG_REQUESTS"

// Config is the full configuration of an invocation.
type Config struct {
	LogLevel       cmdutil.LogLevel
	LogRequests    bool
	RequestTimeout time.Duration
	MetricsFile    string

	Args Args
}

func (c *Config) registerFlags(fs *flag.FlagSet) {
	fs.Var(&c.LogLevel, "log.level", "Level to display logs at (error, warn, info, debug)")
	fs.BoolVar(&c.LogRequests, "log.requests", os.Getenv(LogRequestsEnv) != "", "Log every request at debug level. Defaults to true when "+LogRequestsEnv+" is set")
	fs.DurationVar(&c.RequestTimeout, "request.timeout", 0, "Abort requests running longer than this. 0 disables the timeout")
	fs.StringVar(&c.MetricsFile, "metrics.file", "", "Write request metrics in the Prometheus text format to this file when the session ends")
}

// ParseConfig parses flags followed by operands. args must not include the
// program name. All errors are *UsageError.
func ParseConfig(args []string) (Config, error) {
	var c Config

	fs := flag.NewFlagSet("fdserve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c.registerFlags(fs)

	flags, operands := splitArgs(fs, args)
	if err := fs.Parse(flags); errors.Is(err, flag.ErrHelp) {
		return c, &UsageError{ShowUsage: true}
	} else if err != nil {
		return c, &UsageError{Msg: "error parsing flags", Err: err, ShowUsage: true}
	}

	var err error
	c.Args, err = ParseArgs(append(fs.Args(), operands...))
	return c, err
}

// splitArgs separates flags from operands. flag stops at the first non-flag
// argument, but a negative descriptor such as -1 looks like a flag to it, so
// operands start at the first argument that is an integer.
func splitArgs(fs *flag.FlagSet, args []string) (flags, operands []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return args[:i], args[i+1:]
		case arg == "-" || !strings.HasPrefix(arg, "-"):
			return args[:i], args[i:]
		}
		if _, err := strconv.ParseInt(arg, 10, 32); err == nil {
			return args[:i], args[i:]
		}

		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		f := fs.Lookup(name)
		if f == nil {
			// Unknown flags are reported by Parse.
			continue
		}
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			continue
		}
		i++ // Skip the flag's value.
	}
	return args, nil
}

// PrintUsage writes the usage text for program to w.
func PrintUsage(w io.Writer, program string) {
	fmt.Fprintf(w, "Usage: %s [flags] <readfd> <writefd> <exportpath>\n", program)
	fmt.Fprintf(w, "Examples:\n\n")
	fmt.Fprintf(w, "  %s 0 1 /export # serves /export by reading from stdin and writing to stdout\n\n", program)
	fmt.Fprintf(w, "Note that the file descriptors passed must already be opened. Flags must come\n")
	fmt.Fprintf(w, "before the operands; -- ends the flags explicitly.\n\n")
	fmt.Fprintf(w, "Flags:\n")

	fs := flag.NewFlagSet(program, flag.ContinueOnError)
	fs.SetOutput(w)
	new(Config).registerFlags(fs)
	fs.PrintDefaults()
}
