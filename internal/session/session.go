package session

import (
	"context"
	"errors"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Engine handles protocol messages.
type Engine interface {
	// HandleMessage reads one request from r and writes any response to w.
	// End of stream must be reported as io.EOF or io.ErrUnexpectedEOF.
	HandleMessage(ctx context.Context, r io.Reader, w io.Writer) error
}

// EngineFactory creates an Engine serving root.
type EngineFactory func(root string) (Engine, error)

// Serve passes messages to e until the stream ends or e fails.
//
// The end of the stream is a clean exit, even when it arrives partway through
// a message: a client unmounting looks the same as one that went away.
func Serve(ctx context.Context, l log.Logger, e Engine, r io.Reader, w io.Writer) Outcome {
	if l == nil {
		l = log.NewNopLogger()
	}

	var handled uint64
	for {
		err := e.HandleMessage(ctx, r, w)
		switch {
		case err == nil:
			handled++
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			level.Debug(l).Log("msg", "client closed the stream; exiting", "messages", handled, "err", err)
			return Outcome{Kind: Clean}
		default:
			level.Debug(l).Log("msg", "session failed", "messages", handled, "err", err)
			return Outcome{Kind: RuntimeFailure, Err: err}
		}
	}
}

// Run acquires the descriptors in args, builds an engine with newEngine, and
// serves it. The descriptors are released before Run returns.
func Run(ctx context.Context, l log.Logger, args Args, newEngine EngineFactory) Outcome {
	if l == nil {
		l = log.NewNopLogger()
	}

	t := Acquire(args.ReadFD, args.WriteFD)
	defer func() {
		if err := t.Close(); err != nil {
			level.Warn(l).Log("msg", "failed to release transport", "err", err)
		}
	}()

	e, err := newEngine(args.ExportPath)
	if err != nil {
		return Outcome{Kind: ConstructionFailure, Err: err}
	}
	level.Debug(l).Log("msg", "serving", "export", args.ExportPath, "readfd", args.ReadFD, "writefd", args.WriteFD)
	return Serve(ctx, l, e, t.Reader(), t.Writer())
}
