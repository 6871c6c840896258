package fine

import "strconv"

// Op is an operation code. Every request and response header carries one.
// Values match the FUSE opcodes they were derived from.
type Op uint32

// Supported operations.
const (
	OpLookup      Op = 1
	OpForget      Op = 2
	OpGetattr     Op = 3
	OpSetattr     Op = 4
	OpReadlink    Op = 5
	OpSymlink     Op = 6
	OpMknod       Op = 8
	OpMkdir       Op = 9
	OpUnlink      Op = 10
	OpRmdir       Op = 11
	OpRename      Op = 12
	OpLink        Op = 13
	OpOpen        Op = 14
	OpRead        Op = 15
	OpWrite       Op = 16
	OpRelease     Op = 18
	OpFsync       Op = 20
	OpFlush       Op = 25
	OpInit        Op = 26
	OpOpendir     Op = 27
	OpReaddir     Op = 28
	OpReleasedir  Op = 29
	OpFsyncDir    Op = 30
	OpAccess      Op = 34
	OpCreate      Op = 35
	OpInterrupt   Op = 36
	OpDestroy     Op = 38
	OpBatchForget Op = 42
	OpLseek       Op = 46
)

var opNames = map[Op]string{
	OpLookup:      "LOOKUP",
	OpForget:      "FORGET",
	OpGetattr:     "GETATTR",
	OpSetattr:     "SETATTR",
	OpReadlink:    "READLINK",
	OpSymlink:     "SYMLINK",
	OpMknod:       "MKNOD",
	OpMkdir:       "MKDIR",
	OpUnlink:      "UNLINK",
	OpRmdir:       "RMDIR",
	OpRename:      "RENAME",
	OpLink:        "LINK",
	OpOpen:        "OPEN",
	OpRead:        "READ",
	OpWrite:       "WRITE",
	OpRelease:     "RELEASE",
	OpFsync:       "FSYNC",
	OpFlush:       "FLUSH",
	OpInit:        "INIT",
	OpOpendir:     "OPENDIR",
	OpReaddir:     "READDIR",
	OpReleasedir:  "RELEASEDIR",
	OpFsyncDir:    "FSYNCDIR",
	OpAccess:      "ACCESS",
	OpCreate:      "CREATE",
	OpInterrupt:   "INTERRUPT",
	OpDestroy:     "DESTROY",
	OpBatchForget: "BATCH_FORGET",
	OpLseek:       "LSEEK",
}

// String implements fmt.Stringer.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "OP_" + strconv.FormatUint(uint64(o), 10)
}

// NewEmptyRequest returns a zero request body for op, ready to be decoded
// into. ErrorUnimplemented is returned for ops that carry no request body
// and for unknown ops.
func NewEmptyRequest(op Op) (Request, error) {
	switch op {
	case OpLookup:
		return &LookupRequest{}, nil
	case OpForget:
		return &ForgetRequest{}, nil
	case OpGetattr:
		return &GetattrRequest{}, nil
	case OpSetattr:
		return &SetattrRequest{}, nil
	case OpSymlink:
		return &SymlinkRequest{}, nil
	case OpMknod:
		return &MknodRequest{}, nil
	case OpMkdir:
		return &MkdirRequest{}, nil
	case OpUnlink:
		return &UnlinkRequest{}, nil
	case OpRmdir:
		return &RmdirRequest{}, nil
	case OpRename:
		return &RenameRequest{}, nil
	case OpLink:
		return &LinkRequest{}, nil
	case OpOpen, OpOpendir:
		return &OpenRequest{}, nil
	case OpRead, OpReaddir:
		return &ReadRequest{}, nil
	case OpWrite:
		return &WriteRequest{}, nil
	case OpRelease, OpReleasedir:
		return &ReleaseRequest{}, nil
	case OpFsync, OpFsyncDir:
		return &FsyncRequest{}, nil
	case OpFlush:
		return &FlushRequest{}, nil
	case OpInit:
		return &InitRequest{}, nil
	case OpAccess:
		return &AccessRequest{}, nil
	case OpCreate:
		return &CreateRequest{}, nil
	case OpInterrupt:
		return &InterruptRequest{}, nil
	case OpBatchForget:
		return &BatchForgetRequest{}, nil
	case OpLseek:
		return &LseekRequest{}, nil
	}
	return nil, ErrorUnimplemented
}

// NewEmptyResponse returns a zero response body for op. ErrorUnimplemented is
// returned for ops whose responses carry no body.
func NewEmptyResponse(op Op) (Response, error) {
	switch op {
	case OpLookup, OpSymlink, OpMknod, OpMkdir, OpLink:
		return &EntryResponse{}, nil
	case OpGetattr, OpSetattr:
		return &AttrResponse{}, nil
	case OpReadlink:
		return &ReadlinkResponse{}, nil
	case OpOpen, OpOpendir:
		return &OpenedResponse{}, nil
	case OpRead:
		return &ReadResponse{}, nil
	case OpWrite:
		return &WriteResponse{}, nil
	case OpInit:
		return &InitResponse{}, nil
	case OpReaddir:
		return &ReaddirResponse{}, nil
	case OpCreate:
		return &CreateResponse{}, nil
	case OpLseek:
		return &LseekResponse{}, nil
	}
	return nil, ErrorUnimplemented
}
