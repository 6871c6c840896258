package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/rfratto/fdserve/internal/fine"
	"github.com/rfratto/fdserve/internal/fine/cache"
	"github.com/rfratto/fdserve/internal/fine/stream"
)

// Options customizes an Engine.
type Options struct {
	// RequestTimeout will force a request to abort after a given amount of time.
	// 0 means to never time out.
	RequestTimeout time.Duration

	// Optional middleware to preprocess requests with.
	Middleware []Middleware
}

// Engine answers FINE requests one message at a time. Engines are not safe
// for concurrent use; the session that owns an Engine calls HandleMessage in
// a loop.
type Engine struct {
	log     log.Logger
	o       Options
	handler Handler

	mw     Middleware
	invoke Invoker

	// The first protocol message should always be an Init. Inits may be sent
	// multiple times while the peers are agreeing on a protocol version to
	// use. Until the handshake completes, no other request is processed.
	didHandshake bool
}

// NewEngine creates an Engine serving the directory at root. nodes and
// handles back the session's node and handle caches and must be empty.
func NewEngine(l log.Logger, root string, nodes cache.NodeTable, handles cache.HandleTable, o Options) (*Engine, error) {
	h, err := Export(l, root, nodes, handles)
	if err != nil {
		return nil, err
	}
	return newEngine(l, h, o), nil
}

func newEngine(l log.Logger, h Handler, o Options) *Engine {
	if l == nil {
		l = log.NewNopLogger()
	}
	return &Engine{
		log:     l,
		o:       o,
		handler: h,
		mw:      chainMiddleware(o.Middleware),
		invoke:  handlerInvoker(h),
	}
}

// HandleMessage reads one request from r and writes its response, if any, to
// w.
//
// Errors from reading r are returned unchanged, so callers can tell io.EOF
// apart from other failures. Failures of individual requests are sent to the
// peer and don't cause an error.
func (e *Engine) HandleMessage(ctx context.Context, r io.Reader, w io.Writer) error {
	hdr, req, err := stream.ReadRequest(r)
	if errors.Is(err, stream.ErrMalformedBody) {
		level.Warn(e.log).Log("msg", "rejecting malformed request", "op", hdr.Op, "id", hdr.RequestID, "err", err)
		if noReply(hdr.Op) {
			return nil
		}
		return e.respond(w, &hdr, fine.ErrorInvalid, nil)
	} else if err != nil {
		return err
	}

	switch hdr.Op {
	case fine.OpInit:
		return e.handshake(ctx, w, &hdr, req.(*fine.InitRequest))

	case fine.OpDestroy:
		level.Debug(e.log).Log("msg", "received shutdown request from peer")
		if err := e.respond(w, &hdr, nil, nil); err != nil {
			return err
		}
		if e.didHandshake {
			if err := e.handler.Close(); err != nil {
				level.Error(e.log).Log("msg", "error when closing handler", "err", err)
			}
		}
		e.didHandshake = false
		return nil

	case fine.OpInterrupt:
		// Requests are handled to completion before the next one is read, so
		// there is never anything to interrupt.
		level.Debug(e.log).Log("msg", "ignoring interrupt request", "id", req.(*fine.InterruptRequest).RequestID)
		return e.respond(w, &hdr, fine.ErrorInvalid, nil)
	}

	if !e.didHandshake {
		level.Warn(e.log).Log("msg", "rejecting message sent before fine handshake completed", "op", hdr.Op, "op_val", uint32(hdr.Op))
		if noReply(hdr.Op) {
			return nil
		}
		return e.respond(w, &hdr, fine.ErrorInvalid, nil)
	}

	if e.o.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.o.RequestTimeout)
		defer cancel()
	}

	resp, err := e.mw.HandleRequest(ctx, &hdr, req, e.invoke)
	if noReply(hdr.Op) {
		return nil
	}
	return e.respond(w, &hdr, err, resp)
}

// handshake processes the handshake sent by the peer. The handshake is
// complete once the peer sends a version we can speak.
func (e *Engine) handshake(ctx context.Context, w io.Writer, hdr *fine.RequestHeader, init *fine.InitRequest) error {
	level.Debug(e.log).Log("msg", "got handshake request", "version", init.LatestVersion)

	if e.didHandshake {
		level.Warn(e.log).Log("msg", "rejecting unexpected post-handshake init message")
		return e.respond(w, hdr, fine.ErrorInvalid, nil)
	}

	maxWrite := stream.MaxWrite
	if init.MaxWrite > 0 && init.MaxWrite < maxWrite {
		maxWrite = init.MaxWrite
	}
	resp := &fine.InitResponse{
		EarliestVersion: fine.MinVersion,
		MaxWrite:        maxWrite,
		MaxMessage:      stream.MaxMessageSize,
	}

	switch {
	case init.LatestVersion.Major > fine.MinVersion.Major:
		// Peer is too new. Tell it which version we support and wait for
		// another Init.
		return e.respond(w, hdr, nil, resp)
	case init.LatestVersion.Major < fine.MinVersion.Major:
		if err := e.respond(w, hdr, fine.ErrorInvalid, nil); err != nil {
			return err
		}
		return fmt.Errorf("peer version %s too old for local version %s", init.LatestVersion, fine.MinVersion)
	case init.LatestVersion.Minor < fine.MinVersion.Minor:
		level.Warn(e.log).Log(
			"msg", "peer version doesn't match local version. things may subtly break",
			"peer", init.LatestVersion, "local", fine.MinVersion,
		)
	}

	if err := e.handler.Init(ctx); err != nil {
		if werr := e.respond(w, hdr, err, nil); werr != nil {
			return werr
		}
		return fmt.Errorf("initializing handler: %w", err)
	}
	e.didHandshake = true
	level.Debug(e.log).Log("msg", "handshake complete", "peer", init.LatestVersion, "max_write", maxWrite)
	return e.respond(w, hdr, nil, resp)
}

func (e *Engine) respond(w io.Writer, req *fine.RequestHeader, err error, resp fine.Response) error {
	hdr := fine.ResponseHeader{
		Op:        req.Op,
		RequestID: req.RequestID,
		Error:     fine.ErrorFor(err),
	}
	if err != nil {
		// Bodies are never sent alongside an error.
		resp = nil
	}
	if werr := stream.WriteResponse(w, &hdr, resp); werr != nil {
		return fmt.Errorf("writing %s response: %w", req.Op, werr)
	}
	return nil
}

// noReply reports whether op never gets a response.
func noReply(op fine.Op) bool {
	return op == fine.OpForget || op == fine.OpBatchForget
}
