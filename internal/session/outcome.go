package session

import (
	"errors"
	"fmt"
	"io"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitServerError = 8
	ExitUsage       = 64
)

// Kind classifies how a session ended.
type Kind int

const (
	Clean               Kind = iota // Client disconnected.
	UsageFailure                    // Invocation was malformed.
	ConstructionFailure             // Engine couldn't be created.
	RuntimeFailure                  // Session failed while serving.
)

func (k Kind) String() string {
	switch k {
	case Clean:
		return "clean"
	case UsageFailure:
		return "usage failure"
	case ConstructionFailure:
		return "construction failure"
	case RuntimeFailure:
		return "runtime failure"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Outcome is the terminal state of a session.
type Outcome struct {
	Kind Kind
	Err  error
}

// ExitCode returns the process exit code for o.
func (o Outcome) ExitCode() int {
	switch o.Kind {
	case Clean:
		return ExitOK
	case UsageFailure:
		return ExitUsage
	}
	return ExitServerError
}

// Report writes a diagnostic for o to w and returns the exit code. Clean
// outcomes write nothing.
func (o Outcome) Report(w io.Writer, program string) int {
	switch o.Kind {
	case Clean:
	case UsageFailure:
		var ue *UsageError
		if errors.As(o.Err, &ue) {
			if ue.Msg != "" || ue.Err != nil {
				fmt.Fprintln(w, ue.Error())
			}
			if ue.ShowUsage {
				PrintUsage(w, program)
			}
		} else if o.Err != nil {
			fmt.Fprintln(w, o.Err)
		}
	case ConstructionFailure:
		fmt.Fprintf(w, "Fatal error starting server: %v\n", o.Err)
	default:
		fmt.Fprintf(w, "Fatal error handling request from client: %v\n", o.Err)
	}
	return o.ExitCode()
}
