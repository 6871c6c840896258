package server

import (
	"context"

	"github.com/rfratto/fdserve/internal/fine"
)

// Middleware hooks into requests.
type Middleware interface {
	// HandleRequest handles an individual request. Implementations call
	// invoker to pass the request further down the chain.
	HandleRequest(ctx context.Context, hdr *fine.RequestHeader, req fine.Request, invoker Invoker) (fine.Response, error)
}

// Invoker is called by Middleware to complete requests.
type Invoker func(ctx context.Context, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error)

// FuncMiddleware is a function that implements Middleware.
type FuncMiddleware func(ctx context.Context, hdr *fine.RequestHeader, req fine.Request, i Invoker) (fine.Response, error)

func (f FuncMiddleware) HandleRequest(ctx context.Context, h *fine.RequestHeader, req fine.Request, i Invoker) (fine.Response, error) {
	return f(ctx, h, req, i)
}

// chainMiddleware runs each Middleware in order, with the final one calling
// the real invoker.
type chainMiddleware []Middleware

func (c chainMiddleware) HandleRequest(ctx context.Context, h *fine.RequestHeader, req fine.Request, invoker Invoker) (fine.Response, error) {
	return c.next(0, invoker)(ctx, h, req)
}

func (c chainMiddleware) next(index int, final Invoker) Invoker {
	if index >= len(c) {
		return final
	}
	return func(ctx context.Context, h *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		return c[index].HandleRequest(ctx, h, req, c.next(index+1, final))
	}
}
