// Package stream frames FINE messages over a pair of byte streams.
//
// Every message is a frame: a 4-byte little-endian size counting the bytes
// that follow, a msgpack-encoded header, and an optional msgpack-encoded
// body. Requests and responses use the same framing.
package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rfratto/fdserve/internal/fine"
	"github.com/vmihailenco/msgpack/v5"
)

const sizePrefix = 4

// MaxWrite is the largest read or write payload a server will move in one
// message.
const MaxWrite uint32 = 128 * 1024

// MaxMessageSize is the largest frame accepted, not counting the size
// prefix.
const MaxMessageSize uint32 = MaxWrite + 64*1024

var (
	// ErrMessageTooLarge is returned for frames larger than MaxMessageSize.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrEmptyMessage is returned for zero-length frames.
	ErrEmptyMessage = errors.New("empty message")
	// ErrMalformedBody is returned when a frame's header decoded but its body
	// did not. The accompanying header is valid and can be answered.
	ErrMalformedBody = errors.New("malformed message body")
	// ErrMalformedHeader is returned when a frame's header could not be
	// decoded. The stream cannot be trusted afterwards.
	ErrMalformedHeader = errors.New("malformed message header")
)

// ReadRequest reads the next request frame from r.
//
// io.EOF is returned when r ends cleanly before a frame starts, and
// io.ErrUnexpectedEOF when it ends partway through one. Errors wrapping
// ErrMalformedBody come with a valid header.
func ReadRequest(r io.Reader) (h fine.RequestHeader, req fine.Request, err error) {
	dec, body, err := readFrame(r)
	if err != nil {
		return h, nil, err
	}
	if err := dec.Decode(&h); err != nil {
		return h, nil, fmt.Errorf("%w: request: %v", ErrMalformedHeader, err)
	}

	req, err = fine.NewEmptyRequest(h.Op)
	if errors.Is(err, fine.ErrorUnimplemented) {
		// No body type for h.Op. Anything left in the frame is ignored.
		return h, nil, nil
	}
	if body.Len() == 0 {
		return h, nil, fmt.Errorf("%w: missing body for %s", ErrMalformedBody, h.Op)
	}
	if err := dec.Decode(req); err != nil {
		return h, nil, fmt.Errorf("%w: %s: %v", ErrMalformedBody, h.Op, err)
	}
	return h, req, nil
}

// ReadResponse reads the next response frame from r. It follows the same
// end-of-stream conventions as ReadRequest.
func ReadResponse(r io.Reader) (h fine.ResponseHeader, resp fine.Response, err error) {
	dec, body, err := readFrame(r)
	if err != nil {
		return h, nil, err
	}
	if err := dec.Decode(&h); err != nil {
		return h, nil, fmt.Errorf("%w: response: %v", ErrMalformedHeader, err)
	}
	if body.Len() == 0 {
		// Errors and body-less ops.
		return h, nil, nil
	}

	resp, err = fine.NewEmptyResponse(h.Op)
	if errors.Is(err, fine.ErrorUnimplemented) {
		return h, nil, nil
	}
	if err := dec.Decode(resp); err != nil {
		return h, nil, fmt.Errorf("%w: %s: %v", ErrMalformedBody, h.Op, err)
	}
	return h, resp, nil
}

// WriteRequest writes h and req to w as a single frame. req may be nil.
func WriteRequest(w io.Writer, h *fine.RequestHeader, req fine.Request) error {
	var body interface{}
	if req != nil {
		body = req
	}
	return writeFrame(w, h, body)
}

// WriteResponse writes h and resp to w as a single frame. resp may be nil.
func WriteResponse(w io.Writer, h *fine.ResponseHeader, resp fine.Response) error {
	var body interface{}
	if resp != nil {
		body = resp
	}
	return writeFrame(w, h, body)
}

func readFrame(r io.Reader) (*msgpack.Decoder, *bytes.Reader, error) {
	var prefix [sizePrefix]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, nil, err
	}

	size := binary.LittleEndian.Uint32(prefix[:])
	switch {
	case size == 0:
		return nil, nil, ErrEmptyMessage
	case size > MaxMessageSize:
		return nil, nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrMessageTooLarge, size, MaxMessageSize)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, err
	}

	body := bytes.NewReader(buf)
	return msgpack.NewDecoder(body), body, nil
}

func writeFrame(w io.Writer, header, body interface{}) error {
	var buf bytes.Buffer
	buf.Write(make([]byte, sizePrefix))

	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	if body != nil {
		if err := enc.Encode(body); err != nil {
			return fmt.Errorf("encoding body: %w", err)
		}
	}

	frame := buf.Bytes()
	size := len(frame) - sizePrefix
	if size > int(MaxMessageSize) {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrMessageTooLarge, size, MaxMessageSize)
	}
	binary.LittleEndian.PutUint32(frame, uint32(size))

	_, err := w.Write(frame)
	return err
}
