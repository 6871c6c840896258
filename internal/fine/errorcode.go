package fine

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strconv"
	"syscall"
)

// Error is a FINE error code. Codes are POSIX error numbers, using their Linux
// values, inverted to be negative (i.e., -ENOENT). A zero Error is success.
type Error int32

// Error codes understood by peers. Values are the Linux errno numbers
// regardless of the host platform.
const (
	ErrorNotPermitted  = Error(-0x01) // EPERM
	ErrorNotExist      = Error(-0x02) // ENOENT
	ErrorInterrupted   = Error(-0x04) // EINTR
	ErrorIO            = Error(-0x05) // EIO
	ErrorBadHandle     = Error(-0x09) // EBADF
	ErrorUnavailable   = Error(-0x0b) // EAGAIN
	ErrorNoMemory      = Error(-0x0c) // ENOMEM
	ErrorUnauthorized  = Error(-0x0d) // EACCES
	ErrorExists        = Error(-0x11) // EEXIST
	ErrorBadCrossLink  = Error(-0x12) // EXDEV
	ErrorNotDirectory  = Error(-0x14) // ENOTDIR
	ErrorIsDirectory   = Error(-0x15) // EISDIR
	ErrorInvalid       = Error(-0x16) // EINVAL
	ErrorNoSpace       = Error(-0x1c) // ENOSPC
	ErrorReadOnly      = Error(-0x1e) // EROFS
	ErrorNameTooLong   = Error(-0x24) // ENAMETOOLONG
	ErrorUnimplemented = Error(-0x26) // ENOSYS
	ErrorNotEmpty      = Error(-0x27) // ENOTEMPTY
	ErrorLoop          = Error(-0x28) // ELOOP
	ErrorAborted       = Error(-0x67) // ECONNABORTED
	ErrorStale         = Error(-0x74) // ESTALE
)

var errorDescriptions = map[Error]string{
	ErrorNotPermitted:  "operation not permitted",
	ErrorNotExist:      "no such file or directory",
	ErrorInterrupted:   "interrupted system call",
	ErrorIO:            "input/output error",
	ErrorBadHandle:     "bad file descriptor",
	ErrorUnavailable:   "resource temporarily unavailable",
	ErrorNoMemory:      "cannot allocate memory",
	ErrorUnauthorized:  "permission denied",
	ErrorExists:        "file exists",
	ErrorBadCrossLink:  "invalid cross-device link",
	ErrorNotDirectory:  "not a directory",
	ErrorIsDirectory:   "is a directory",
	ErrorInvalid:       "invalid argument",
	ErrorNoSpace:       "no space left on device",
	ErrorReadOnly:      "read-only file system",
	ErrorNameTooLong:   "file name too long",
	ErrorUnimplemented: "function not implemented",
	ErrorNotEmpty:      "directory not empty",
	ErrorLoop:          "too many levels of symbolic links",
	ErrorAborted:       "software caused connection abort",
	ErrorStale:         "stale file handle",
}

// hostErrnos maps host errno values onto protocol codes. The syscall
// constants differ between platforms; the protocol codes do not.
var hostErrnos = map[syscall.Errno]Error{
	syscall.EPERM:        ErrorNotPermitted,
	syscall.ENOENT:       ErrorNotExist,
	syscall.EINTR:        ErrorInterrupted,
	syscall.EIO:          ErrorIO,
	syscall.EBADF:        ErrorBadHandle,
	syscall.EAGAIN:       ErrorUnavailable,
	syscall.ENOMEM:       ErrorNoMemory,
	syscall.EACCES:       ErrorUnauthorized,
	syscall.EEXIST:       ErrorExists,
	syscall.EXDEV:        ErrorBadCrossLink,
	syscall.ENOTDIR:      ErrorNotDirectory,
	syscall.EISDIR:       ErrorIsDirectory,
	syscall.EINVAL:       ErrorInvalid,
	syscall.ENOSPC:       ErrorNoSpace,
	syscall.EROFS:        ErrorReadOnly,
	syscall.ENAMETOOLONG: ErrorNameTooLong,
	syscall.ENOSYS:       ErrorUnimplemented,
	syscall.ENOTEMPTY:    ErrorNotEmpty,
	syscall.ELOOP:        ErrorLoop,
	syscall.ECONNABORTED: ErrorAborted,
	syscall.ESTALE:       ErrorStale,
}

// Error prints the description of the error.
func (e Error) Error() string {
	desc := errorDescriptions[e]
	if desc != "" {
		return desc
	}
	return "FINE errno " + strconv.Itoa(int(e))
}

// ErrorFor converts err into the code sent back to a peer. nil and io.EOF
// are success.
func ErrorFor(err error) Error {
	if err == nil {
		return 0
	}

	var (
		fe    Error
		errno syscall.Errno
	)
	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorAborted
	case errors.Is(err, context.Canceled):
		return ErrorInterrupted
	case errors.Is(err, io.EOF):
		return 0
	case errors.As(err, &errno):
		if code, ok := hostErrnos[errno]; ok {
			return code
		}
		return ErrorIO
	case errors.Is(err, fs.ErrNotExist):
		return ErrorNotExist
	case errors.Is(err, fs.ErrPermission):
		return ErrorNotPermitted
	case errors.Is(err, fs.ErrExist):
		return ErrorExists
	case errors.Is(err, fs.ErrInvalid):
		return ErrorInvalid
	}
	return ErrorIO
}
