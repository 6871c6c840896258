package fine

import (
	"fmt"
	"os"
	"time"
)

var (
	// MinVersion supported by the package. Peers announcing an older major
	// version are refused.
	MinVersion = Version{Major: 7, Minor: 31}

	// RootNode represents the root of the export. It always has node ID 1.
	RootNode Node = Node(1)
)

// Version of the protocol.
type Version struct{ Major, Minor uint32 }

// String implements fmt.Stringer.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ID types. A session hands out node and handle IDs which remain valid until
// the client forgets or releases them.
type (
	// Node is an ID representing a file. 0 is never a valid reference. 1 will
	// always refer to the export root, and is always assumed to exist by both
	// sides of the session.
	Node uint64

	// Handle is an open file or directory. Handle IDs are unique while the
	// handle is open and may be reused once it is released.
	Handle uint64

	// LockOwner is an opaque ID that references an owner of a file lock.
	LockOwner uint64
)

type (
	// RequestHeader is present in every request.
	RequestHeader struct {
		Op        Op     // Op representing the request.
		RequestID uint64 // Response must match this value.
		Node      Node   // Node the request is for.
		UID       uint32 // UID of requesting user.
		GID       uint32 // GID of requesting user.
		PID       uint32 // PID of requesting user.
	}

	// ResponseHeader is present in every response.
	ResponseHeader struct {
		Op        Op     // Must match Op from the request.
		RequestID uint64 // Request this response is for.
		Error     Error
	}

	// Entry is a description of a file.
	Entry struct {
		Node       Node          // Node ID.
		Generation uint64        // Generation of Node. Increases whenever node IDs wrap around to 0.
		EntryTTL   time.Duration // Cache validity of this Node.
		AttribTTL  time.Duration // Cache validity of this Node's attributes.
		Attrib     Attrib        // Attributes for the Node.
	}

	// Attrib are the set of attributes for a Node.
	Attrib struct {
		Inode      uint64      // Real inode number.
		Size       uint64      // Size in bytes.
		Blocks     uint64      // Size in blocks (512-byte units).
		LastAccess time.Time   // Last time file was accessed.
		LastModify time.Time   // Last time contents were modified
		LastChange time.Time   // Last time inode was updated.
		Mode       os.FileMode // File type and permissions.
		HardLinks  uint32      // Number of hard links to the file (usually 1)
		UID        uint32      // Owner UID
		GID        uint32      // Owner GID
		DeviceID   uint32      // Device ID (if special file)
		BlockSize  uint32      // Block size for filesystem I/O
	}

	// DirEntry is a directory entry returned during Readdir.
	DirEntry struct {
		Inode uint64
		Type  EntryType
		Name  string
	}

	BatchForgetItem struct {
		Node       Node
		NumLookups uint64
	}
)

// EntryType specifies the type of a file in a directory.
type EntryType uint32

const (
	EntryUnknown    EntryType = 0x0 // Entry type isn't known
	EntryPipe       EntryType = 0x1 // Entry is a named FIFO pipe
	EntryCharacter  EntryType = 0x2 // Entry is a character device
	EntryDirectory  EntryType = 0x4 // Entry is another directory
	EntryBlock      EntryType = 0x6 // Entry is a block device
	EntryRegular    EntryType = 0x8 // Entry is a regular file
	EntryLink       EntryType = 0xa // Entry is a symbolic link
	EntryUnixSocket EntryType = 0xc // Entry is a UNIX domain socket
)

// EntryTypeOf returns the EntryType for a file mode.
func EntryTypeOf(m os.FileMode) EntryType {
	switch {
	case m&os.ModeSymlink != 0:
		return EntryLink
	case m&os.ModeDir != 0:
		return EntryDirectory
	case m&os.ModeNamedPipe != 0:
		return EntryPipe
	case m&os.ModeSocket != 0:
		return EntryUnixSocket
	case m&os.ModeCharDevice != 0:
		return EntryCharacter
	case m&os.ModeDevice != 0:
		return EntryBlock
	case m&os.ModeType == 0:
		return EntryRegular
	}
	return EntryUnknown
}

// Flag types. Every flag type here is a bitmask of options.
type (
	// GetAttribFlags is a bitmask of flags for GetattrRequest.
	GetAttribFlags uint32
	// AttribMask marks which fields of a SetattrRequest are set.
	AttribMask uint32
	// FileFlags are used when opening or creating a node.
	FileFlags uint32
	// OpenedFlags are returned for an opened file.
	OpenedFlags uint32
	// ReleaseFlags customize a handle release.
	ReleaseFlags uint32
	// SyncFlags controls a file sync.
	SyncFlags uint32
)

const (
	// GetAttribFlagHandle requests attributes for a handle instead of the node.
	GetAttribFlagHandle GetAttribFlags = (1 << 0)

	AttribMaskMode          AttribMask = 1 << 0  // The Mode field can be used
	AttribMaskUID           AttribMask = 1 << 1  // The UID field can be used
	AttribMaskGID           AttribMask = 1 << 2  // The GID field can be used
	AttribMaskSize          AttribMask = 1 << 3  // The Size field can be used
	AttribMaskLastAccess    AttribMask = 1 << 4  // The LastAccess field can be used
	AttribMaskLastModify    AttribMask = 1 << 5  // The LastModify field can be used
	AttribMaskFileHandle    AttribMask = 1 << 6  // The Handle field can be used
	AttribMaskLastAccessNow AttribMask = 1 << 7  // Update LastAccess to the current time
	AttribMaskLastModifyNow AttribMask = 1 << 8  // Update LastModify to the current time
	AttribMaskLastChange    AttribMask = 1 << 10 // The LastChange field can be used

	OpenReadOnly   FileFlags = 0x0 // Open the file for reading.
	OpenWriteOnly  FileFlags = 0x1 // Open the file for writing.
	OpenReadWrite  FileFlags = 0x2 // Open the file for reading and writing.
	OpenAccessMode FileFlags = 0x3 // Mask for the access mode bits.

	OpenCreate    FileFlags = 0x40    // Create the file if it doesn't exist.
	OpenExclusive FileFlags = 0x80    // Fail if the file already exists.
	OpenTruncate  FileFlags = 0x200   // Truncate file contents before opening for writing
	OpenAppend    FileFlags = 0x400   // Open with the file seeked to the end.
	OpenDirectory FileFlags = 0x10000 // Open the file as a directory.

	OpenedDirectIO    OpenedFlags = 1 << 0 // Page cache should be bypassed
	OpenedKeepCache   OpenedFlags = 1 << 1 // Existing page cache should be kept intact
	OpenedNonSeekable OpenedFlags = 1 << 2 // File does not support seeking

	ReleaseFlush ReleaseFlags = 1 << 0 // Flush the file after releasing

	SyncDataOnly SyncFlags = 1 << 0 // Only sync data, not file metadata
)

// OSFlags converts the wire FileFlags into flags for os.OpenFile. Wire values
// are Linux values; the host constants may differ.
func (f FileFlags) OSFlags() int {
	var out int
	switch f & OpenAccessMode {
	case OpenWriteOnly:
		out = os.O_WRONLY
	case OpenReadWrite:
		out = os.O_RDWR
	default:
		out = os.O_RDONLY
	}
	if f&OpenCreate != 0 {
		out |= os.O_CREATE
	}
	if f&OpenExclusive != 0 {
		out |= os.O_EXCL
	}
	if f&OpenTruncate != 0 {
		out |= os.O_TRUNC
	}
	if f&OpenAppend != 0 {
		out |= os.O_APPEND
	}
	return out
}
