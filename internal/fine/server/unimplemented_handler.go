package server

import (
	"context"
	"fmt"

	"github.com/rfratto/fdserve/internal/fine"
)

// UnimplementedHandler implements Handler and fails every request with
// ErrorUnimplemented. Embed it to only implement a subset of Handler.
type UnimplementedHandler struct{}

var _ Handler = UnimplementedHandler{}

func unimplemented(op fine.Op) error {
	return fmt.Errorf("%s: %w", op, fine.ErrorUnimplemented)
}

func (UnimplementedHandler) Init(context.Context) error { return nil }
func (UnimplementedHandler) Close() error               { return nil }

func (UnimplementedHandler) Forget(context.Context, *fine.RequestHeader, *fine.ForgetRequest) {}

func (UnimplementedHandler) Lookup(context.Context, *fine.RequestHeader, *fine.LookupRequest) (*fine.EntryResponse, error) {
	return nil, unimplemented(fine.OpLookup)
}

func (UnimplementedHandler) Getattr(context.Context, *fine.RequestHeader, *fine.GetattrRequest) (*fine.AttrResponse, error) {
	return nil, unimplemented(fine.OpGetattr)
}

func (UnimplementedHandler) Setattr(context.Context, *fine.RequestHeader, *fine.SetattrRequest) (*fine.AttrResponse, error) {
	return nil, unimplemented(fine.OpSetattr)
}

func (UnimplementedHandler) Readlink(context.Context, *fine.RequestHeader) (*fine.ReadlinkResponse, error) {
	return nil, unimplemented(fine.OpReadlink)
}

func (UnimplementedHandler) Symlink(context.Context, *fine.RequestHeader, *fine.SymlinkRequest) (*fine.EntryResponse, error) {
	return nil, unimplemented(fine.OpSymlink)
}

func (UnimplementedHandler) Mknod(context.Context, *fine.RequestHeader, *fine.MknodRequest) (*fine.EntryResponse, error) {
	return nil, unimplemented(fine.OpMknod)
}

func (UnimplementedHandler) Mkdir(context.Context, *fine.RequestHeader, *fine.MkdirRequest) (*fine.EntryResponse, error) {
	return nil, unimplemented(fine.OpMkdir)
}

func (UnimplementedHandler) Unlink(context.Context, *fine.RequestHeader, *fine.UnlinkRequest) error {
	return unimplemented(fine.OpUnlink)
}

func (UnimplementedHandler) Rmdir(context.Context, *fine.RequestHeader, *fine.RmdirRequest) error {
	return unimplemented(fine.OpRmdir)
}

func (UnimplementedHandler) Rename(context.Context, *fine.RequestHeader, *fine.RenameRequest) error {
	return unimplemented(fine.OpRename)
}

func (UnimplementedHandler) Link(context.Context, *fine.RequestHeader, *fine.LinkRequest) (*fine.EntryResponse, error) {
	return nil, unimplemented(fine.OpLink)
}

func (UnimplementedHandler) Open(context.Context, *fine.RequestHeader, *fine.OpenRequest) (*fine.OpenedResponse, error) {
	return nil, unimplemented(fine.OpOpen)
}

func (UnimplementedHandler) Read(context.Context, *fine.RequestHeader, *fine.ReadRequest) (*fine.ReadResponse, error) {
	return nil, unimplemented(fine.OpRead)
}

func (UnimplementedHandler) Write(context.Context, *fine.RequestHeader, *fine.WriteRequest) (*fine.WriteResponse, error) {
	return nil, unimplemented(fine.OpWrite)
}

func (UnimplementedHandler) Release(context.Context, *fine.RequestHeader, *fine.ReleaseRequest) error {
	return unimplemented(fine.OpRelease)
}

func (UnimplementedHandler) Fsync(context.Context, *fine.RequestHeader, *fine.FsyncRequest) error {
	return unimplemented(fine.OpFsync)
}

func (UnimplementedHandler) Flush(context.Context, *fine.RequestHeader, *fine.FlushRequest) error {
	return unimplemented(fine.OpFlush)
}

func (UnimplementedHandler) Opendir(context.Context, *fine.RequestHeader, *fine.OpenRequest) (*fine.OpenedResponse, error) {
	return nil, unimplemented(fine.OpOpendir)
}

func (UnimplementedHandler) Readdir(context.Context, *fine.RequestHeader, *fine.ReadRequest) (*fine.ReaddirResponse, error) {
	return nil, unimplemented(fine.OpReaddir)
}

func (UnimplementedHandler) Releasedir(context.Context, *fine.RequestHeader, *fine.ReleaseRequest) error {
	return unimplemented(fine.OpReleasedir)
}

func (UnimplementedHandler) Fsyncdir(context.Context, *fine.RequestHeader, *fine.FsyncRequest) error {
	return unimplemented(fine.OpFsyncDir)
}

func (UnimplementedHandler) Access(context.Context, *fine.RequestHeader, *fine.AccessRequest) error {
	return unimplemented(fine.OpAccess)
}

func (UnimplementedHandler) Create(context.Context, *fine.RequestHeader, *fine.CreateRequest) (*fine.CreateResponse, error) {
	return nil, unimplemented(fine.OpCreate)
}

func (UnimplementedHandler) BatchForget(context.Context, *fine.RequestHeader, *fine.BatchForgetRequest) error {
	return unimplemented(fine.OpBatchForget)
}

func (UnimplementedHandler) Lseek(context.Context, *fine.RequestHeader, *fine.LseekRequest) (*fine.LseekResponse, error) {
	return nil, unimplemented(fine.OpLseek)
}
