package server

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rfratto/fdserve/internal/fine"
	"github.com/rfratto/fdserve/internal/fine/cache"
	"github.com/stretchr/testify/require"
)

func newTestExport(t *testing.T) (*exportHandler, string) {
	t.Helper()

	dir := t.TempDir()
	h, err := Export(nil, dir, make(cache.NodeTable), make(cache.HandleTable))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h.(*exportHandler), dir
}

func rootHeader() *fine.RequestHeader {
	return &fine.RequestHeader{Node: fine.RootNode}
}

func TestExport_InvalidRoot(t *testing.T) {
	dir := t.TempDir()

	_, err := Export(nil, filepath.Join(dir, "missing"), make(cache.NodeTable), make(cache.HandleTable))
	require.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = Export(nil, file, make(cache.NodeTable), make(cache.HandleTable))
	require.ErrorIs(t, err, fine.ErrorNotDirectory)

	nodes := make(cache.NodeTable)
	_, err = cache.New(nil, &exportNode{}, nodes, make(cache.HandleTable))
	require.NoError(t, err)
	_, err = Export(nil, dir, nodes, make(cache.HandleTable))
	require.Error(t, err, "a populated node table must be rejected")
}

func TestExport_LookupAndGetattr(t *testing.T) {
	h, dir := newTestExport(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0644))

	resp, err := h.Lookup(ctx, rootHeader(), &fine.LookupRequest{Name: "hello.txt"})
	require.NoError(t, err)
	require.NotEqual(t, fine.RootNode, resp.Entry.Node)
	require.Equal(t, uint64(5), resp.Entry.Attrib.Size)
	require.True(t, resp.Entry.Attrib.Mode.IsRegular())

	attr, err := h.Getattr(ctx, &fine.RequestHeader{Node: resp.Entry.Node}, &fine.GetattrRequest{})
	require.NoError(t, err)
	require.Equal(t, uint64(5), attr.Attrib.Size)

	_, err = h.Lookup(ctx, rootHeader(), &fine.LookupRequest{Name: "nope"})
	require.Equal(t, fine.ErrorNotExist, fine.ErrorFor(err))
}

func TestExport_RejectsBadNames(t *testing.T) {
	h, _ := newTestExport(t)
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "a/b", "../escape"} {
		_, err := h.Lookup(ctx, rootHeader(), &fine.LookupRequest{Name: name})
		require.ErrorIs(t, err, fine.ErrorInvalid, "name %q", name)

		_, err = h.Mkdir(ctx, rootHeader(), &fine.MkdirRequest{Name: name, Mode: 0755})
		require.ErrorIs(t, err, fine.ErrorInvalid, "name %q", name)
	}
}

func TestExport_CreateWriteRead(t *testing.T) {
	h, dir := newTestExport(t)
	ctx := context.Background()

	created, err := h.Create(ctx, rootHeader(), &fine.CreateRequest{
		Name:  "file",
		Flags: fine.OpenReadWrite,
		Mode:  0644,
	})
	require.NoError(t, err)

	written, err := h.Write(ctx, rootHeader(), &fine.WriteRequest{Handle: created.Handle, Data: []byte("hello, world")})
	require.NoError(t, err)
	require.Equal(t, uint32(12), written.Written)

	read, err := h.Read(ctx, rootHeader(), &fine.ReadRequest{Handle: created.Handle, Offset: 7, Size: 100})
	require.NoError(t, err)
	require.Equal(t, "world", string(read.Data))

	off, err := h.Lseek(ctx, rootHeader(), &fine.LseekRequest{Handle: created.Handle, Offset: -5, Whence: io.SeekEnd})
	require.NoError(t, err)
	require.Equal(t, uint64(7), off.Offset)

	require.NoError(t, h.Flush(ctx, rootHeader(), &fine.FlushRequest{Handle: created.Handle}))
	require.NoError(t, h.Fsync(ctx, rootHeader(), &fine.FsyncRequest{Handle: created.Handle}))
	require.NoError(t, h.Release(ctx, rootHeader(), &fine.ReleaseRequest{Handle: created.Handle}))

	_, err = h.Read(ctx, rootHeader(), &fine.ReadRequest{Handle: created.Handle, Size: 1})
	require.ErrorIs(t, err, fine.ErrorBadHandle)

	contents, err := os.ReadFile(filepath.Join(dir, "file"))
	require.NoError(t, err)
	require.Equal(t, "hello, world", string(contents))

	// Creating an existing file exclusively fails.
	_, err = h.Create(ctx, rootHeader(), &fine.CreateRequest{
		Name:  "file",
		Flags: fine.OpenReadWrite | fine.OpenExclusive,
		Mode:  0644,
	})
	require.Equal(t, fine.ErrorExists, fine.ErrorFor(err))
}

func TestExport_OpenDoesNotCreate(t *testing.T) {
	h, dir := newTestExport(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte("data"), 0644))

	entry, err := h.Lookup(ctx, rootHeader(), &fine.LookupRequest{Name: "file"})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "file")))

	_, err = h.Open(ctx, &fine.RequestHeader{Node: entry.Entry.Node}, &fine.OpenRequest{Flags: fine.OpenReadWrite | fine.OpenCreate})
	require.Equal(t, fine.ErrorNotExist, fine.ErrorFor(err))
}

func TestExport_Directories(t *testing.T) {
	h, dir := newTestExport(t)
	ctx := context.Background()

	sub, err := h.Mkdir(ctx, rootHeader(), &fine.MkdirRequest{Name: "sub", Mode: 0755})
	require.NoError(t, err)
	require.True(t, sub.Entry.Attrib.Mode.IsDir())

	subHdr := &fine.RequestHeader{Node: sub.Entry.Node}
	for _, name := range []string{"a", "b", "c"} {
		created, err := h.Create(ctx, subHdr, &fine.CreateRequest{Name: name, Flags: fine.OpenWriteOnly, Mode: 0644})
		require.NoError(t, err)
		require.NoError(t, h.Release(ctx, subHdr, &fine.ReleaseRequest{Handle: created.Handle}))
	}
	require.FileExists(t, filepath.Join(dir, "sub", "b"))

	opened, err := h.Opendir(ctx, subHdr, &fine.OpenRequest{})
	require.NoError(t, err)

	ents, err := h.Readdir(ctx, subHdr, &fine.ReadRequest{Handle: opened.Handle})
	require.NoError(t, err)
	require.Len(t, ents.Entries, 3)
	require.Equal(t, "a", ents.Entries[0].Name)
	require.Equal(t, fine.EntryRegular, ents.Entries[0].Type)

	// Later pages start at the entry index.
	ents, err = h.Readdir(ctx, subHdr, &fine.ReadRequest{Handle: opened.Handle, Offset: 2})
	require.NoError(t, err)
	require.Len(t, ents.Entries, 1)
	require.Equal(t, "c", ents.Entries[0].Name)

	ents, err = h.Readdir(ctx, subHdr, &fine.ReadRequest{Handle: opened.Handle, Offset: 3})
	require.NoError(t, err)
	require.Empty(t, ents.Entries)
	require.NoError(t, h.Releasedir(ctx, subHdr, &fine.ReleaseRequest{Handle: opened.Handle}))

	// Type checks on removal.
	require.ErrorIs(t, h.Unlink(ctx, rootHeader(), &fine.UnlinkRequest{Name: "sub"}), fine.ErrorIsDirectory)
	require.ErrorIs(t, h.Rmdir(ctx, subHdr, &fine.RmdirRequest{Name: "a"}), fine.ErrorNotDirectory)
	require.Equal(t, fine.ErrorNotEmpty, fine.ErrorFor(h.Rmdir(ctx, rootHeader(), &fine.RmdirRequest{Name: "sub"})))

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, h.Unlink(ctx, subHdr, &fine.UnlinkRequest{Name: name}))
	}
	require.NoError(t, h.Rmdir(ctx, rootHeader(), &fine.RmdirRequest{Name: "sub"}))
	require.NoDirExists(t, filepath.Join(dir, "sub"))
}

func TestExport_Rename(t *testing.T) {
	h, dir := newTestExport(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old"), []byte("data"), 0644))

	sub, err := h.Mkdir(ctx, rootHeader(), &fine.MkdirRequest{Name: "sub", Mode: 0755})
	require.NoError(t, err)
	entry, err := h.Lookup(ctx, rootHeader(), &fine.LookupRequest{Name: "old"})
	require.NoError(t, err)

	err = h.Rename(ctx, rootHeader(), &fine.RenameRequest{NewDir: sub.Entry.Node, OldName: "old", NewName: "new"})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "sub", "new"))

	// The cached node follows the file.
	path, err := h.nodePath(entry.Entry.Node)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sub", "new"), path)
}

func TestExport_Links(t *testing.T) {
	h, dir := newTestExport(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target"), []byte("data"), 0644))

	link, err := h.Symlink(ctx, rootHeader(), &fine.SymlinkRequest{Name: "link", Target: "target"})
	require.NoError(t, err)
	require.Equal(t, fine.EntryLink, fine.EntryTypeOf(link.Entry.Attrib.Mode))

	contents, err := h.Readlink(ctx, &fine.RequestHeader{Node: link.Entry.Node})
	require.NoError(t, err)
	require.Equal(t, "target", string(contents.Contents))

	target, err := h.Lookup(ctx, rootHeader(), &fine.LookupRequest{Name: "target"})
	require.NoError(t, err)
	_, err = h.Link(ctx, rootHeader(), &fine.LinkRequest{OldNode: target.Entry.Node, NewName: "hard"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "hard"))
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
}

func TestExport_Setattr(t *testing.T) {
	h, dir := newTestExport(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte("hello, world"), 0644))

	entry, err := h.Lookup(ctx, rootHeader(), &fine.LookupRequest{Name: "file"})
	require.NoError(t, err)

	attr, err := h.Setattr(ctx, &fine.RequestHeader{Node: entry.Entry.Node}, &fine.SetattrRequest{
		UpdateMask: fine.AttribMaskSize | fine.AttribMaskMode,
		Size:       5,
		Mode:       0600,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(5), attr.Attrib.Size)
	require.Equal(t, os.FileMode(0600), attr.Attrib.Mode.Perm())

	fi, err := os.Stat(filepath.Join(dir, "file"))
	require.NoError(t, err)
	require.Equal(t, int64(5), fi.Size())
}

func TestExport_Forget(t *testing.T) {
	h, dir := newTestExport(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), nil, 0644))

	entry, err := h.Lookup(ctx, rootHeader(), &fine.LookupRequest{Name: "file"})
	require.NoError(t, err)
	_, err = h.Lookup(ctx, rootHeader(), &fine.LookupRequest{Name: "file"})
	require.NoError(t, err)

	h.Forget(ctx, &fine.RequestHeader{Node: entry.Entry.Node}, &fine.ForgetRequest{NumLookups: 1})
	_, err = h.Getattr(ctx, &fine.RequestHeader{Node: entry.Entry.Node}, &fine.GetattrRequest{})
	require.NoError(t, err, "node should survive until every lookup is forgotten")

	require.NoError(t, h.BatchForget(ctx, rootHeader(), &fine.BatchForgetRequest{
		Items: []fine.BatchForgetItem{{Node: entry.Entry.Node, NumLookups: 1}},
	}))
	_, err = h.Getattr(ctx, &fine.RequestHeader{Node: entry.Entry.Node}, &fine.GetattrRequest{})
	require.ErrorIs(t, err, fine.ErrorStale)

	// The root can't be forgotten.
	h.Forget(ctx, rootHeader(), &fine.ForgetRequest{NumLookups: 100})
	_, err = h.Getattr(ctx, rootHeader(), &fine.GetattrRequest{})
	require.NoError(t, err)
}

func TestExport_Mknod(t *testing.T) {
	h, _ := newTestExport(t)

	_, err := h.Mknod(context.Background(), rootHeader(), &fine.MknodRequest{Name: "dev"})
	require.ErrorIs(t, err, fine.ErrorUnimplemented)
}

func TestNewEngine_Export(t *testing.T) {
	_, err := NewEngine(nil, filepath.Join(t.TempDir(), "missing"), make(cache.NodeTable), make(cache.HandleTable), Options{})
	require.Error(t, err)

	e, err := NewEngine(nil, t.TempDir(), make(cache.NodeTable), make(cache.HandleTable), Options{})
	require.NoError(t, err)
	handshake(t, e, fine.MinVersion, 0)

	resp := exchange(t, e, &fine.RequestHeader{Op: fine.OpGetattr, RequestID: 2, Node: fine.RootNode}, &fine.GetattrRequest{})
	require.Zero(t, resp.hdr.Error)
	require.True(t, resp.body.(*fine.AttrResponse).Attrib.Mode.IsDir())
}

func TestExport_CloseReleasesCache(t *testing.T) {
	h, _ := newTestExport(t)
	ctx := context.Background()

	created, err := h.Create(ctx, rootHeader(), &fine.CreateRequest{Name: "file", Flags: fine.OpenWriteOnly, Mode: 0644})
	require.NoError(t, err)

	nodes, handles := h.cache.Len()
	require.Equal(t, 2, nodes)
	require.Equal(t, 1, handles)

	require.NoError(t, h.Close())

	nodes, handles = h.cache.Len()
	require.Equal(t, 1, nodes, "only the root should remain")
	require.Zero(t, handles)

	_, err = h.Write(ctx, rootHeader(), &fine.WriteRequest{Handle: created.Handle, Data: []byte("x")})
	require.ErrorIs(t, err, fine.ErrorBadHandle)
}
