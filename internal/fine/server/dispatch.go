package server

import (
	"context"
	"fmt"

	"github.com/rfratto/fdserve/internal/fine"
)

// dispatchFunc calls the Handler method for one op. The request body has
// already been decoded into the type fine.NewEmptyRequest returns for the op.
type dispatchFunc func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error)

var dispatchTable = map[fine.Op]dispatchFunc{
	fine.OpLookup: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.LookupRequest); ok && r != nil {
			return h.Lookup(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpForget: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.ForgetRequest); ok && r != nil {
			h.Forget(ctx, hdr, r)
			return nil, nil
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpGetattr: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.GetattrRequest); ok && r != nil {
			return h.Getattr(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpSetattr: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.SetattrRequest); ok && r != nil {
			return h.Setattr(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpReadlink: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, _ fine.Request) (fine.Response, error) {
		return h.Readlink(ctx, hdr)
	},
	fine.OpSymlink: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.SymlinkRequest); ok && r != nil {
			return h.Symlink(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpMknod: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.MknodRequest); ok && r != nil {
			return h.Mknod(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpMkdir: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.MkdirRequest); ok && r != nil {
			return h.Mkdir(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpUnlink: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.UnlinkRequest); ok && r != nil {
			return nil, h.Unlink(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpRmdir: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.RmdirRequest); ok && r != nil {
			return nil, h.Rmdir(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpRename: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.RenameRequest); ok && r != nil {
			return nil, h.Rename(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpLink: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.LinkRequest); ok && r != nil {
			return h.Link(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpOpen: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.OpenRequest); ok && r != nil {
			return h.Open(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpRead: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.ReadRequest); ok && r != nil {
			return h.Read(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpWrite: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.WriteRequest); ok && r != nil {
			return h.Write(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpRelease: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.ReleaseRequest); ok && r != nil {
			return nil, h.Release(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpFsync: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.FsyncRequest); ok && r != nil {
			return nil, h.Fsync(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpFlush: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.FlushRequest); ok && r != nil {
			return nil, h.Flush(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpOpendir: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.OpenRequest); ok && r != nil {
			return h.Opendir(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpReaddir: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.ReadRequest); ok && r != nil {
			return h.Readdir(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpReleasedir: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.ReleaseRequest); ok && r != nil {
			return nil, h.Releasedir(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpFsyncDir: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.FsyncRequest); ok && r != nil {
			return nil, h.Fsyncdir(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpAccess: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.AccessRequest); ok && r != nil {
			return nil, h.Access(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpCreate: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.CreateRequest); ok && r != nil {
			return h.Create(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpBatchForget: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.BatchForgetRequest); ok && r != nil {
			return nil, h.BatchForget(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
	fine.OpLseek: func(ctx context.Context, h Handler, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		if r, ok := req.(*fine.LseekRequest); ok && r != nil {
			return h.Lseek(ctx, hdr, r)
		}
		return nil, missingBody(hdr.Op)
	},
}

// handlerInvoker converts h into an Invoker.
func handlerInvoker(h Handler) Invoker {
	return func(ctx context.Context, hdr *fine.RequestHeader, req fine.Request) (fine.Response, error) {
		dispatch, ok := dispatchTable[hdr.Op]
		if !ok {
			return nil, fmt.Errorf("unexpected opcode %s: %w", hdr.Op, fine.ErrorUnimplemented)
		}
		return dispatch(ctx, h, hdr, req)
	}
}

func missingBody(op fine.Op) error {
	return fmt.Errorf("missing request body for %s: %w", op, fine.ErrorInvalid)
}
