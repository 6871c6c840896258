package fine

import (
	"os"
	"time"
)

// Protocol types. Each type here is the body of a request or response for one
// or more operations; NewEmptyRequest and NewEmptyResponse map ops to types.
type (
	LookupRequest struct {
		Name string
	}
	EntryResponse struct {
		Entry Entry
	}

	ForgetRequest struct {
		NumLookups uint64
	}

	GetattrRequest struct {
		Flags  GetAttribFlags
		Handle Handle
	}
	SetattrRequest struct {
		UpdateMask AttribMask  // Mask indicating which fields to use for the update.
		Handle     Handle      // Handle to set attributes for.
		Size       uint64      // File size.
		LastAccess time.Time   // Last time file was accessed.
		LastModify time.Time   // Last time file was modified.
		LastChange time.Time   // Last time file was updated.
		Mode       os.FileMode // File permissions.
		UID        uint32      // Owner UID
		GID        uint32      // Owner GID
	}
	AttrResponse struct {
		TTL    time.Duration // Cache validity of the attributes.
		Attrib Attrib
	}

	ReadlinkResponse struct {
		Contents []byte
	}

	SymlinkRequest struct {
		Name   string // Link to create in the request node.
		Target string // Contents of the link.
	}

	MknodRequest struct {
		Mode     os.FileMode
		DeviceID uint32
		Umask    os.FileMode
		Name     string
	}

	MkdirRequest struct {
		Mode  os.FileMode
		Umask os.FileMode
		Name  string
	}

	UnlinkRequest struct {
		Name string
	}

	RmdirRequest struct {
		Name string
	}

	RenameRequest struct {
		NewDir           Node
		OldName, NewName string
	}

	LinkRequest struct {
		OldNode Node
		NewName string
	}

	OpenRequest struct {
		Flags FileFlags
	}
	OpenedResponse struct {
		Handle      Handle
		OpenedFlags OpenedFlags
	}

	ReadRequest struct {
		Handle Handle
		Offset uint64
		Size   uint32
	}
	ReadResponse struct {
		Data []byte
	}

	WriteRequest struct {
		Handle Handle // Handle to write to
		Offset uint64 // Offset in the handle to write
		Data   []byte // Data to write
	}
	WriteResponse struct {
		Written uint32
	}

	ReleaseRequest struct {
		Handle Handle
		Flags  ReleaseFlags
	}

	FsyncRequest struct {
		Handle Handle
		Flags  SyncFlags
	}

	FlushRequest struct {
		Handle    Handle
		LockOwner LockOwner
	}

	// InitRequest opens the handshake. It must be the first request of a
	// session.
	InitRequest struct {
		LatestVersion Version // Latest version supported by the client.
		MaxWrite      uint32  // Largest write the client intends to send.
	}
	InitResponse struct {
		EarliestVersion Version // Earliest version supported by the server.
		MaxWrite        uint32  // Largest write the server accepts.
		MaxMessage      uint32  // Largest frame the server accepts.
	}

	ReaddirResponse struct {
		Entries []DirEntry
	}

	AccessRequest struct {
		Mask uint32 // R_OK, W_OK, X_OK bits to check.
	}

	CreateRequest struct {
		Flags FileFlags
		Mode  os.FileMode
		Umask os.FileMode
		Name  string
	}
	CreateResponse struct {
		Handle      Handle
		OpenedFlags OpenedFlags
		Entry       Entry
	}

	// InterruptRequest interrupts an ongoing request.
	InterruptRequest struct {
		RequestID uint64
	}

	BatchForgetRequest struct {
		Items []BatchForgetItem
	}

	LseekRequest struct {
		Handle Handle
		Offset int64  // Offset to seek to, relative to whence
		Whence uint32 // io.SeekStart, io.SeekCurrent or io.SeekEnd
	}
	LseekResponse struct {
		Offset uint64
	}
)

func (*LookupRequest) fineRequest()      {}
func (*EntryResponse) fineResponse()     {}
func (*ForgetRequest) fineRequest()      {}
func (*GetattrRequest) fineRequest()     {}
func (*SetattrRequest) fineRequest()     {}
func (*AttrResponse) fineResponse()      {}
func (*ReadlinkResponse) fineResponse()  {}
func (*SymlinkRequest) fineRequest()     {}
func (*MknodRequest) fineRequest()       {}
func (*MkdirRequest) fineRequest()       {}
func (*UnlinkRequest) fineRequest()      {}
func (*RmdirRequest) fineRequest()       {}
func (*RenameRequest) fineRequest()      {}
func (*LinkRequest) fineRequest()        {}
func (*OpenRequest) fineRequest()        {}
func (*OpenedResponse) fineResponse()    {}
func (*ReadRequest) fineRequest()        {}
func (*ReadResponse) fineResponse()      {}
func (*WriteRequest) fineRequest()       {}
func (*WriteResponse) fineResponse()     {}
func (*ReleaseRequest) fineRequest()     {}
func (*FsyncRequest) fineRequest()       {}
func (*FlushRequest) fineRequest()       {}
func (*InitRequest) fineRequest()        {}
func (*InitResponse) fineResponse()      {}
func (*ReaddirResponse) fineResponse()   {}
func (*AccessRequest) fineRequest()      {}
func (*CreateRequest) fineRequest()      {}
func (*CreateResponse) fineResponse()    {}
func (*InterruptRequest) fineRequest()   {}
func (*BatchForgetRequest) fineRequest() {}
func (*LseekRequest) fineRequest()       {}
func (*LseekResponse) fineResponse()     {}
