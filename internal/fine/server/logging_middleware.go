package server

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/rfratto/fdserve/internal/fine"
)

// NewLoggingMiddleware returns a middleware which logs every request at debug
// level.
func NewLoggingMiddleware(l log.Logger) Middleware {
	if l == nil {
		l = log.NewNopLogger()
	}
	return FuncMiddleware(func(ctx context.Context, hdr *fine.RequestHeader, req fine.Request, invoker Invoker) (fine.Response, error) {
		start := time.Now()
		level.Debug(l).Log("msg", "starting request", "op", hdr.Op, "id", hdr.RequestID, "node", hdr.Node)
		resp, err := invoker(ctx, hdr, req)

		kv := []interface{}{"msg", "finished request", "op", hdr.Op, "id", hdr.RequestID, "duration", time.Since(start)}
		if err != nil {
			kv = append(kv, "code", int32(fine.ErrorFor(err)), "err", err)
		}
		level.Debug(l).Log(kv...)
		return resp, err
	})
}
