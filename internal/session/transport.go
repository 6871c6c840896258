package session

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"
)

// Transport owns the pair of descriptors a session talks over.
type Transport struct {
	r, w   *os.File
	closed atomic.Bool
}

// Acquire takes ownership of readFD and writeFD. The descriptors aren't
// validated; unusable descriptors fail on first use. Passing the same
// descriptor twice is allowed and it is wrapped only once.
func Acquire(readFD, writeFD int) *Transport {
	t := &Transport{r: os.NewFile(uintptr(readFD), fmt.Sprintf("fd%d", readFD))}
	if writeFD == readFD {
		t.w = t.r
	} else {
		t.w = os.NewFile(uintptr(writeFD), fmt.Sprintf("fd%d", writeFD))
	}
	return t
}

// Reader returns the read half of the transport.
func (t *Transport) Reader() io.Reader { return t.r }

// Writer returns the write half of the transport.
func (t *Transport) Writer() io.Writer { return t.w }

// Close releases both descriptors. Only the first call has any effect.
func (t *Transport) Close() error {
	if !t.closed.CAS(false, true) {
		return nil
	}

	var errs error
	if err := t.r.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing read descriptor: %w", err))
	}
	if t.w != t.r {
		if err := t.w.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing write descriptor: %w", err))
		}
	}
	return errs
}
