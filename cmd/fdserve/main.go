// Command fdserve serves a directory to a single client over a pair of
// already-open file descriptors.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rfratto/fdserve/internal/cmdutil"
	"github.com/rfratto/fdserve/internal/fine/cache"
	"github.com/rfratto/fdserve/internal/fine/server"
	"github.com/rfratto/fdserve/internal/session"
	uuid "github.com/satori/go.uuid"
)

func main() {
	// Either descriptor may be stdout. A client closing it must surface as a
	// write error, not kill the process.
	signal.Ignore(syscall.SIGPIPE)

	os.Exit(run(os.Args, os.Stderr))
}

// run executes one session and returns the process exit code. Diagnostics
// go to stderr; stdout may be the transport.
func run(args []string, stderr io.Writer) int {
	program := filepath.Base(args[0])

	cfg, err := session.ParseConfig(args[1:])
	if err != nil {
		return session.Outcome{Kind: session.UsageFailure, Err: err}.Report(stderr, program)
	}

	l := cmdutil.NewLogger(stderr, cfg.LogLevel, program)
	l = log.With(l, "session", uuid.NewV4().String())

	var mw []server.Middleware
	if cfg.LogRequests {
		mw = append(mw, server.NewLoggingMiddleware(l))
	}
	if cfg.MetricsFile != "" {
		reg := prometheus.NewRegistry()
		metrics, err := server.NewMetricsMiddleware(reg)
		if err != nil {
			return session.Outcome{Kind: session.ConstructionFailure, Err: err}.Report(stderr, program)
		}
		mw = append(mw, metrics)
		defer writeMetrics(l, cfg.MetricsFile, reg)
	}

	newEngine := func(root string) (session.Engine, error) {
		e, err := server.NewEngine(l, root, make(cache.NodeTable), make(cache.HandleTable), server.Options{
			RequestTimeout: cfg.RequestTimeout,
			Middleware:     mw,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	}

	out := session.Run(context.Background(), l, cfg.Args, newEngine)
	level.Debug(l).Log("msg", "session ended", "outcome", out.Kind)
	return out.Report(stderr, program)
}

func writeMetrics(l log.Logger, path string, g prometheus.Gatherer) {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		level.Warn(l).Log("msg", "failed to write metrics", "path", path, "err", err)
	}
}
