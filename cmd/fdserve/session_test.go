//go:build unix

package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/rfratto/fdserve/internal/fine"
	"github.com/rfratto/fdserve/internal/fine/stream"
	"github.com/stretchr/testify/require"
)

func TestRun_Session(t *testing.T) {
	var in, out [2]int
	require.NoError(t, syscall.Pipe(in[:]))
	require.NoError(t, syscall.Pipe(out[:]))

	// The test owns the client ends; run owns the server ends.
	client := os.NewFile(uintptr(in[1]), "client-write")
	responses := os.NewFile(uintptr(out[0]), "client-read")
	defer responses.Close()

	export := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(export, "hello.txt"), []byte("hello"), 0644))

	requests := []struct {
		hdr fine.RequestHeader
		req fine.Request
	}{
		{fine.RequestHeader{Op: fine.OpInit, RequestID: 1}, &fine.InitRequest{LatestVersion: fine.MinVersion}},
		{fine.RequestHeader{Op: fine.OpLookup, RequestID: 2, Node: fine.RootNode}, &fine.LookupRequest{Name: "hello.txt"}},
		{fine.RequestHeader{Op: fine.OpLookup, RequestID: 3, Node: fine.RootNode}, &fine.LookupRequest{Name: "missing"}},
	}
	for _, r := range requests {
		require.NoError(t, stream.WriteRequest(client, &r.hdr, r.req))
	}
	// Unmount: the client closes its end.
	require.NoError(t, client.Close())

	metricsFile := filepath.Join(t.TempDir(), "fdserve.prom")
	args := []string{
		"fdserve",
		"-metrics.file", metricsFile,
		strconv.Itoa(in[0]), strconv.Itoa(out[1]), export,
	}

	var stderr bytes.Buffer
	require.Equal(t, 0, run(args, &stderr))
	require.Empty(t, stderr.String(), "a clean session prints nothing")

	hdr, resp, err := stream.ReadResponse(responses)
	require.NoError(t, err)
	require.Equal(t, fine.OpInit, hdr.Op)
	require.IsType(t, &fine.InitResponse{}, resp)

	hdr, resp, err = stream.ReadResponse(responses)
	require.NoError(t, err)
	require.Equal(t, uint64(2), hdr.RequestID)
	require.Equal(t, uint64(5), resp.(*fine.EntryResponse).Entry.Attrib.Size)

	hdr, _, err = stream.ReadResponse(responses)
	require.NoError(t, err)
	require.Equal(t, uint64(3), hdr.RequestID)
	require.Equal(t, fine.ErrorNotExist, hdr.Error)

	// run released its end of the response pipe.
	_, _, err = stream.ReadResponse(responses)
	require.ErrorIs(t, err, io.EOF)

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	require.Contains(t, string(metrics), `fdserve_requests_total{op="LOOKUP",result="success"} 1`)
	require.Contains(t, string(metrics), `fdserve_requests_total{op="LOOKUP",result="not_found"} 1`)
}

func TestRun_BrokenEngine(t *testing.T) {
	var in, out [2]int
	require.NoError(t, syscall.Pipe(in[:]))
	require.NoError(t, syscall.Pipe(out[:]))
	defer syscall.Close(out[0])

	// A frame larger than the engine accepts is a protocol failure, not an
	// unmount.
	client := os.NewFile(uintptr(in[1]), "client-write")
	_, err := client.Write([]byte{0xff, 0xff, 0xff, 0x7f})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	var stderr bytes.Buffer
	code := run([]string{"fdserve", strconv.Itoa(in[0]), strconv.Itoa(out[1]), t.TempDir()}, &stderr)
	require.Equal(t, 8, code)
	require.Contains(t, stderr.String(), "Fatal error handling request from client")
}

func TestCommand_ClosedStdout(t *testing.T) {
	stdinR, stdinW, err := os.Pipe()
	require.NoError(t, err)
	defer stdinR.Close()
	defer stdinW.Close()

	stdoutR, stdoutW, err := os.Pipe()
	require.NoError(t, err)
	defer stdoutW.Close()
	// The client goes away before reading any response.
	require.NoError(t, stdoutR.Close())

	hdr := fine.RequestHeader{Op: fine.OpInit, RequestID: 1}
	require.NoError(t, stream.WriteRequest(stdinW, &hdr, &fine.InitRequest{LatestVersion: fine.MinVersion}))

	var stderr bytes.Buffer
	cmd := exec.Command(os.Args[0], "0", "1", t.TempDir())
	cmd.Env = append(os.Environ(), runMainEnv+"=1")
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = &stderr

	err = cmd.Run()

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "expected a non-zero exit, got %v", err)
	require.Equal(t, 8, exitErr.ExitCode(), "stderr: %s", stderr.String())
	require.Contains(t, stderr.String(), "Fatal error handling request from client")
}

func TestRun_NegativeReadDescriptor(t *testing.T) {
	var out [2]int
	require.NoError(t, syscall.Pipe(out[:]))
	defer syscall.Close(out[0])

	var stderr bytes.Buffer
	code := run([]string{"fdserve", "-1", strconv.Itoa(out[1]), t.TempDir()}, &stderr)
	require.Equal(t, 8, code, "stderr: %s", stderr.String())
	require.Contains(t, stderr.String(), "Fatal error handling request from client")
	require.NotContains(t, stderr.String(), "error parsing flags")
}
