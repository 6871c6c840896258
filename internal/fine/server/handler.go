package server

import (
	"context"

	"github.com/rfratto/fdserve/internal/fine"
)

// Handler answers requests on behalf of an Engine. The Engine calls one
// method at a time, in the order requests arrive.
type Handler interface {
	// Init is called once the handshake with the client completes.
	Init(context.Context) error

	// Close is called when the client ends the session with a Destroy.
	Close() error

	Lookup(context.Context, *fine.RequestHeader, *fine.LookupRequest) (*fine.EntryResponse, error)
	Forget(context.Context, *fine.RequestHeader, *fine.ForgetRequest)
	Getattr(context.Context, *fine.RequestHeader, *fine.GetattrRequest) (*fine.AttrResponse, error)
	Setattr(context.Context, *fine.RequestHeader, *fine.SetattrRequest) (*fine.AttrResponse, error)
	Readlink(context.Context, *fine.RequestHeader) (*fine.ReadlinkResponse, error)
	Symlink(context.Context, *fine.RequestHeader, *fine.SymlinkRequest) (*fine.EntryResponse, error)
	Mknod(context.Context, *fine.RequestHeader, *fine.MknodRequest) (*fine.EntryResponse, error)
	Mkdir(context.Context, *fine.RequestHeader, *fine.MkdirRequest) (*fine.EntryResponse, error)
	Unlink(context.Context, *fine.RequestHeader, *fine.UnlinkRequest) error
	Rmdir(context.Context, *fine.RequestHeader, *fine.RmdirRequest) error
	Rename(context.Context, *fine.RequestHeader, *fine.RenameRequest) error
	Link(context.Context, *fine.RequestHeader, *fine.LinkRequest) (*fine.EntryResponse, error)
	Open(context.Context, *fine.RequestHeader, *fine.OpenRequest) (*fine.OpenedResponse, error)
	Read(context.Context, *fine.RequestHeader, *fine.ReadRequest) (*fine.ReadResponse, error)
	Write(context.Context, *fine.RequestHeader, *fine.WriteRequest) (*fine.WriteResponse, error)
	Release(context.Context, *fine.RequestHeader, *fine.ReleaseRequest) error
	Fsync(context.Context, *fine.RequestHeader, *fine.FsyncRequest) error
	Flush(context.Context, *fine.RequestHeader, *fine.FlushRequest) error
	Opendir(context.Context, *fine.RequestHeader, *fine.OpenRequest) (*fine.OpenedResponse, error)
	Readdir(context.Context, *fine.RequestHeader, *fine.ReadRequest) (*fine.ReaddirResponse, error)
	Releasedir(context.Context, *fine.RequestHeader, *fine.ReleaseRequest) error
	Fsyncdir(context.Context, *fine.RequestHeader, *fine.FsyncRequest) error
	Access(context.Context, *fine.RequestHeader, *fine.AccessRequest) error
	Create(context.Context, *fine.RequestHeader, *fine.CreateRequest) (*fine.CreateResponse, error)
	BatchForget(context.Context, *fine.RequestHeader, *fine.BatchForgetRequest) error
	Lseek(context.Context, *fine.RequestHeader, *fine.LseekRequest) (*fine.LseekResponse, error)
}
