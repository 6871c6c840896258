// Package session drives a single client session: it validates invocation
// arguments, owns the transport descriptors, and runs the request loop until
// the client goes away.
package session

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mitchellh/go-homedir"
)

// Args are the positional operands of an invocation.
type Args struct {
	ReadFD     int    // Descriptor requests are read from.
	WriteFD    int    // Descriptor responses are written to.
	ExportPath string // Directory to serve.
}

// UsageError is returned when an invocation is malformed. Usage errors are
// always detected before any descriptor or engine is acquired.
type UsageError struct {
	Msg       string // May be empty when only the usage text is relevant.
	Err       error
	ShowUsage bool // Print the full usage text after Msg.
}

func (e *UsageError) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return "invalid usage"
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *UsageError) Unwrap() error { return e.Err }

// ParseArgs validates operands, which must not include the program name.
// Operands past the third are ignored.
func ParseArgs(operands []string) (Args, error) {
	if len(operands) < 3 {
		return Args{}, &UsageError{ShowUsage: true}
	}

	readFD, err := parseFD("read file descriptor", operands[0])
	if err != nil {
		return Args{}, err
	}
	writeFD, err := parseFD("write file descriptor", operands[1])
	if err != nil {
		return Args{}, err
	}

	path := operands[2]
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Args{}, &UsageError{Msg: fmt.Sprintf("path to export %s cannot be used", path), Err: err}
	}
	fi, err := os.Stat(expanded)
	if err != nil {
		return Args{}, &UsageError{Msg: fmt.Sprintf("path to export %s cannot be used", path), Err: err}
	} else if !fi.IsDir() {
		return Args{}, &UsageError{Msg: fmt.Sprintf("path to export %s must be a directory", path)}
	}

	return Args{
		ReadFD:     readFD,
		WriteFD:    writeFD,
		ExportPath: expanded,
	}, nil
}

func parseFD(name, operand string) (int, error) {
	fd, err := strconv.ParseInt(operand, 10, 32)
	if err != nil {
		return 0, &UsageError{Msg: fmt.Sprintf("invalid %s %q", name, operand), Err: err}
	}
	return int(fd), nil
}
