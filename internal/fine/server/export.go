package server

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/rfratto/fdserve/internal/fine"
	"github.com/rfratto/fdserve/internal/fine/cache"
	"github.com/rfratto/fdserve/internal/fine/stream"
)

const (
	exportTTL = time.Minute

	// maxReaddirEntries caps the entries returned by one Readdir.
	maxReaddirEntries = 512
)

// Export creates a new Handler which serves the directory tree at root from
// the host filesystem. nodes and handles back the handler's cache and must
// be empty.
//
// Note that this isn't a chroot, and it's possible to read files in higher
// directories via symbolic links.
func Export(l log.Logger, root string, nodes cache.NodeTable, handles cache.HandleTable) (Handler, error) {
	if l == nil {
		l = log.NewNopLogger()
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving export root: %w", err)
	}
	f, err := os.Open(root)
	if err != nil {
		return nil, fmt.Errorf("opening export root: %w", err)
	}
	fi, err := f.Stat()
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("opening export root: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("export root %s: %w", root, fine.ErrorNotDirectory)
	}

	c, err := cache.New(l, &exportNode{inode: uint64(fine.RootNode)}, nodes, handles)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return &exportHandler{log: l, root: root, cache: c}, nil
}

type exportHandler struct {
	// Mknod needs device numbers the export can't create portably.
	UnimplementedHandler

	log   log.Logger
	root  string
	cache *cache.Cache
}

var _ Handler = (*exportHandler)(nil)

func (h *exportHandler) Init(ctx context.Context) error {
	level.Debug(h.log).Log("msg", "serving export", "root", h.root)
	return nil
}

// Close releases every open handle and every node other than the root.
func (h *exportHandler) Close() error {
	nodes, handles := h.cache.Len()
	level.Debug(h.log).Log("msg", "releasing export cache", "nodes", nodes, "handles", handles)
	return h.cache.Close()
}

// nodePath returns the host path of a cached node.
func (h *exportHandler) nodePath(id fine.Node) (string, error) {
	path, err := h.cache.NodePath(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(h.root, path), nil
}

// childPath returns the host path of name within the directory node parent.
func (h *exportHandler) childPath(parent fine.Node, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	dir, err := h.nodePath(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// validateName rejects names that would escape or alias their directory.
func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid name %q: %w", name, fine.ErrorInvalid)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("invalid name %q: %w", name, fine.ErrorInvalid)
	}
	return nil
}

func (h *exportHandler) handle(id fine.Handle) (*exportHandle, error) {
	_, hdl, err := h.cache.GetHandle(id)
	if err != nil {
		return nil, err
	}
	eh, ok := hdl.(*exportHandle)
	if !ok {
		return nil, fine.ErrorBadHandle
	}
	return eh, nil
}

func (h *exportHandler) Lookup(ctx context.Context, hdr *fine.RequestHeader, req *fine.LookupRequest) (*fine.EntryResponse, error) {
	return h.createNodeEntry(hdr.Node, req.Name)
}

// createNodeEntry gets the stats of an existing file and caches it, returning
// an entry.
func (h *exportHandler) createNodeEntry(parent fine.Node, name string) (*fine.EntryResponse, error) {
	fullPath, err := h.childPath(parent, name)
	if err != nil {
		return nil, err
	}
	fi, err := os.Lstat(fullPath)
	if err != nil {
		return nil, err
	}

	newNode := newExportNode(parent, name)
	nodeInfo, err := h.cache.AddNode(parent, name, newNode)
	if err != nil {
		return nil, err
	}
	return &fine.EntryResponse{
		Entry: fine.Entry{
			Node:       nodeInfo.ID,
			Generation: nodeInfo.Generation,
			EntryTTL:   exportTTL,
			AttribTTL:  exportTTL,
			Attrib:     attrFromInfo(newNode, fi),
		},
	}, nil
}

func (h *exportHandler) Forget(ctx context.Context, hdr *fine.RequestHeader, req *fine.ForgetRequest) {
	h.forget(hdr.Node, req.NumLookups)
}

func (h *exportHandler) BatchForget(ctx context.Context, hdr *fine.RequestHeader, req *fine.BatchForgetRequest) error {
	for _, item := range req.Items {
		h.forget(item.Node, item.NumLookups)
	}
	return nil
}

func (h *exportHandler) forget(id fine.Node, lookups uint64) {
	if id == fine.RootNode {
		// The root lives as long as the session.
		return
	}
	if err := h.cache.ReleaseNode(id, lookups); err != nil {
		level.Warn(h.log).Log("msg", "failed to forget node", "node", id, "err", err)
	}
}

func (h *exportHandler) Getattr(ctx context.Context, hdr *fine.RequestHeader, req *fine.GetattrRequest) (*fine.AttrResponse, error) {
	_, node, err := h.cache.GetNode(hdr.Node)
	if err != nil {
		return nil, err
	}

	var fi os.FileInfo
	if req.Flags&fine.GetAttribFlagHandle != 0 {
		eh, err := h.handle(req.Handle)
		if err != nil {
			return nil, err
		}
		fi, err = eh.f.Stat()
		if err != nil {
			return nil, err
		}
	} else {
		path, err := h.nodePath(hdr.Node)
		if err != nil {
			return nil, err
		}
		fi, err = os.Lstat(path)
		if err != nil {
			return nil, err
		}
	}

	return &fine.AttrResponse{
		TTL:    exportTTL,
		Attrib: attrFromInfo(node.(*exportNode), fi),
	}, nil
}

func (h *exportHandler) Setattr(ctx context.Context, hdr *fine.RequestHeader, req *fine.SetattrRequest) (*fine.AttrResponse, error) {
	_, node, err := h.cache.GetNode(hdr.Node)
	if err != nil {
		return nil, err
	}
	path, err := h.nodePath(hdr.Node)
	if err != nil {
		return nil, err
	}

	var f *os.File // Open file to update, if any.
	if req.UpdateMask&fine.AttribMaskFileHandle != 0 {
		eh, err := h.handle(req.Handle)
		if err != nil {
			return nil, err
		}
		f = eh.f
	}

	if req.UpdateMask&fine.AttribMaskSize != 0 {
		if f != nil {
			err = f.Truncate(int64(req.Size))
		} else {
			err = os.Truncate(path, int64(req.Size))
		}
		if err != nil {
			return nil, err
		}
	}
	if req.UpdateMask&fine.AttribMaskMode != 0 {
		if f != nil {
			err = f.Chmod(req.Mode)
		} else {
			err = os.Chmod(path, req.Mode)
		}
		if err != nil {
			return nil, err
		}
	}
	if req.UpdateMask&(fine.AttribMaskUID|fine.AttribMaskGID) != 0 {
		uid, gid := -1, -1
		if req.UpdateMask&fine.AttribMaskUID != 0 {
			uid = int(req.UID)
		}
		if req.UpdateMask&fine.AttribMaskGID != 0 {
			gid = int(req.GID)
		}
		if err := os.Lchown(path, uid, gid); err != nil {
			return nil, err
		}
	}
	if err := h.setTimes(path, req); err != nil {
		return nil, err
	}

	fi, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	return &fine.AttrResponse{
		TTL:    exportTTL,
		Attrib: attrFromInfo(node.(*exportNode), fi),
	}, nil
}

// setTimes applies the access and modification times from req. Times that
// aren't being updated keep their current value.
func (h *exportHandler) setTimes(path string, req *fine.SetattrRequest) error {
	const timeMask = fine.AttribMaskLastAccess | fine.AttribMaskLastAccessNow |
		fine.AttribMaskLastModify | fine.AttribMaskLastModifyNow
	if req.UpdateMask&timeMask == 0 {
		return nil
	}

	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	cur := attrFromInfo(&exportNode{}, fi)
	atime, mtime := cur.LastAccess, cur.LastModify

	now := time.Now()
	switch {
	case req.UpdateMask&fine.AttribMaskLastAccessNow != 0:
		atime = now
	case req.UpdateMask&fine.AttribMaskLastAccess != 0:
		atime = req.LastAccess
	}
	switch {
	case req.UpdateMask&fine.AttribMaskLastModifyNow != 0:
		mtime = now
	case req.UpdateMask&fine.AttribMaskLastModify != 0:
		mtime = req.LastModify
	}
	return os.Chtimes(path, atime, mtime)
}

func (h *exportHandler) Readlink(ctx context.Context, hdr *fine.RequestHeader) (*fine.ReadlinkResponse, error) {
	path, err := h.nodePath(hdr.Node)
	if err != nil {
		return nil, err
	}
	res, err := os.Readlink(path)
	if err != nil {
		return nil, err
	}
	return &fine.ReadlinkResponse{Contents: []byte(res)}, nil
}

func (h *exportHandler) Symlink(ctx context.Context, hdr *fine.RequestHeader, req *fine.SymlinkRequest) (*fine.EntryResponse, error) {
	newname, err := h.childPath(hdr.Node, req.Name)
	if err != nil {
		return nil, err
	}
	// The target is stored verbatim and resolved by whoever follows the link.
	if err := os.Symlink(req.Target, newname); err != nil {
		return nil, err
	}
	return h.createNodeEntry(hdr.Node, req.Name)
}

func (h *exportHandler) Mkdir(ctx context.Context, hdr *fine.RequestHeader, req *fine.MkdirRequest) (*fine.EntryResponse, error) {
	newPath, err := h.childPath(hdr.Node, req.Name)
	if err != nil {
		return nil, err
	}
	if err := os.Mkdir(newPath, req.Mode.Perm()&^req.Umask); err != nil {
		return nil, err
	}
	return h.createNodeEntry(hdr.Node, req.Name)
}

func (h *exportHandler) Unlink(ctx context.Context, hdr *fine.RequestHeader, req *fine.UnlinkRequest) error {
	fullPath, err := h.childPath(hdr.Node, req.Name)
	if err != nil {
		return err
	}
	fi, err := os.Lstat(fullPath)
	if err != nil {
		return err
	} else if fi.IsDir() {
		return fine.ErrorIsDirectory
	}
	return os.Remove(fullPath)
}

func (h *exportHandler) Rmdir(ctx context.Context, hdr *fine.RequestHeader, req *fine.RmdirRequest) error {
	fullPath, err := h.childPath(hdr.Node, req.Name)
	if err != nil {
		return err
	}
	fi, err := os.Lstat(fullPath)
	if err != nil {
		return err
	} else if !fi.IsDir() {
		return fine.ErrorNotDirectory
	}
	return os.Remove(fullPath)
}

func (h *exportHandler) Rename(ctx context.Context, hdr *fine.RequestHeader, req *fine.RenameRequest) error {
	oldPath, err := h.childPath(hdr.Node, req.OldName)
	if err != nil {
		return err
	}
	newPath, err := h.childPath(req.NewDir, req.NewName)
	if err != nil {
		return err
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return err
	}

	// Move the entry in the cache, if it exists.
	err = h.cache.RenameNode(hdr.Node, req.OldName, req.NewDir, req.NewName)
	if err != nil && !errors.Is(err, fine.ErrorNotExist) {
		level.Warn(h.log).Log("msg", "failed to move renamed node in cache", "err", err)
	}
	return nil
}

func (h *exportHandler) Link(ctx context.Context, hdr *fine.RequestHeader, req *fine.LinkRequest) (*fine.EntryResponse, error) {
	oldname, err := h.nodePath(req.OldNode)
	if err != nil {
		return nil, err
	}
	newname, err := h.childPath(hdr.Node, req.NewName)
	if err != nil {
		return nil, err
	}
	if err := os.Link(oldname, newname); err != nil {
		return nil, err
	}
	return h.createNodeEntry(hdr.Node, req.NewName)
}

func (h *exportHandler) Open(ctx context.Context, hdr *fine.RequestHeader, req *fine.OpenRequest) (*fine.OpenedResponse, error) {
	path, err := h.nodePath(hdr.Node)
	if err != nil {
		return nil, err
	}
	// Files are only created through Create.
	flags := req.Flags &^ (fine.OpenCreate | fine.OpenExclusive)
	f, err := os.OpenFile(path, flags.OSFlags(), 0)
	if err != nil {
		return nil, err
	}
	return h.addHandle(&exportHandle{f: f, flags: flags})
}

func (h *exportHandler) addHandle(eh *exportHandle) (*fine.OpenedResponse, error) {
	hi, err := h.cache.AddHandle(eh)
	if err != nil {
		_ = eh.Close()
		return nil, err
	}
	return &fine.OpenedResponse{Handle: hi.ID}, nil
}

func (h *exportHandler) Read(ctx context.Context, hdr *fine.RequestHeader, req *fine.ReadRequest) (*fine.ReadResponse, error) {
	eh, err := h.handle(req.Handle)
	if err != nil {
		return nil, err
	}

	size := req.Size
	if size > stream.MaxWrite {
		size = stream.MaxWrite
	}
	buf := make([]byte, size)
	n, err := eh.f.ReadAt(buf, int64(req.Offset))
	if errors.Is(err, io.EOF) {
		// Short reads signal the end of the file; EOF isn't an error here.
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return &fine.ReadResponse{Data: buf[:n]}, nil
}

func (h *exportHandler) Write(ctx context.Context, hdr *fine.RequestHeader, req *fine.WriteRequest) (*fine.WriteResponse, error) {
	eh, err := h.handle(req.Handle)
	if err != nil {
		return nil, err
	}

	var n int
	if eh.flags&fine.OpenAppend != 0 {
		// WriteAt fails for files opened for appending.
		n, err = eh.f.Write(req.Data)
	} else {
		n, err = eh.f.WriteAt(req.Data, int64(req.Offset))
	}
	if err != nil {
		return nil, err
	}
	return &fine.WriteResponse{Written: uint32(n)}, nil
}

func (h *exportHandler) Release(ctx context.Context, hdr *fine.RequestHeader, req *fine.ReleaseRequest) error {
	return h.cache.ReleaseHandle(req.Handle)
}

func (h *exportHandler) Fsync(ctx context.Context, hdr *fine.RequestHeader, req *fine.FsyncRequest) error {
	eh, err := h.handle(req.Handle)
	if err != nil {
		return err
	}
	return eh.f.Sync()
}

func (h *exportHandler) Flush(ctx context.Context, hdr *fine.RequestHeader, req *fine.FlushRequest) error {
	// Writes go straight to the host file, so there is nothing to flush.
	_, err := h.handle(req.Handle)
	return err
}

func (h *exportHandler) Opendir(ctx context.Context, hdr *fine.RequestHeader, req *fine.OpenRequest) (*fine.OpenedResponse, error) {
	path, err := h.nodePath(hdr.Node)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	} else if !fi.IsDir() {
		_ = f.Close()
		return nil, fine.ErrorNotDirectory
	}
	return h.addHandle(&exportHandle{f: f, dir: true})
}

// Readdir returns the entries of an open directory. req.Offset is the index
// of the first entry to return. The listing is read when the offset is 0 and
// reused for later pages.
func (h *exportHandler) Readdir(ctx context.Context, hdr *fine.RequestHeader, req *fine.ReadRequest) (*fine.ReaddirResponse, error) {
	eh, err := h.handle(req.Handle)
	if err != nil {
		return nil, err
	} else if !eh.dir {
		return nil, fine.ErrorNotDirectory
	}

	if req.Offset == 0 || eh.entries == nil {
		ents, err := os.ReadDir(eh.f.Name())
		if err != nil {
			return nil, err
		}
		eh.entries = ents
	}
	if req.Offset >= uint64(len(eh.entries)) {
		return &fine.ReaddirResponse{}, nil
	}

	var (
		page   = eh.entries[req.Offset:]
		budget = int(req.Size)
		out    = make([]fine.DirEntry, 0, len(page))
	)
	for _, ent := range page {
		// Every entry costs at least its name plus fixed-size fields.
		cost := len(ent.Name()) + 16
		if len(out) > 0 && (len(out) >= maxReaddirEntries || (req.Size > 0 && cost > budget)) {
			break
		}
		budget -= cost
		out = append(out, fine.DirEntry{
			Inode: inodeHash(uint64(hdr.Node), ent.Name()),
			Type:  fine.EntryTypeOf(ent.Type()),
			Name:  ent.Name(),
		})
	}
	return &fine.ReaddirResponse{Entries: out}, nil
}

func (h *exportHandler) Releasedir(ctx context.Context, hdr *fine.RequestHeader, req *fine.ReleaseRequest) error {
	return h.cache.ReleaseHandle(req.Handle)
}

func (h *exportHandler) Fsyncdir(ctx context.Context, hdr *fine.RequestHeader, req *fine.FsyncRequest) error {
	return h.Fsync(ctx, hdr, req)
}

func (h *exportHandler) Access(ctx context.Context, hdr *fine.RequestHeader, req *fine.AccessRequest) error {
	path, err := h.nodePath(hdr.Node)
	if err != nil {
		return err
	}
	return access(path, req.Mask)
}

func (h *exportHandler) Create(ctx context.Context, hdr *fine.RequestHeader, req *fine.CreateRequest) (_ *fine.CreateResponse, err error) {
	newpath, err := h.childPath(hdr.Node, req.Name)
	if err != nil {
		return nil, err
	}

	// If anything during the Create fails, undo what was saved.
	flags := req.Flags | fine.OpenCreate
	f, err := os.OpenFile(newpath, flags.OSFlags(), req.Mode.Perm()&^req.Umask)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()

	newEntry, err := h.createNodeEntry(hdr.Node, req.Name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = h.cache.ReleaseNode(newEntry.Entry.Node, 1)
		}
	}()

	hi, err := h.cache.AddHandle(&exportHandle{f: f, flags: flags})
	if err != nil {
		return nil, err
	}
	return &fine.CreateResponse{
		Handle: hi.ID,
		Entry:  newEntry.Entry,
	}, nil
}

func (h *exportHandler) Lseek(ctx context.Context, hdr *fine.RequestHeader, req *fine.LseekRequest) (*fine.LseekResponse, error) {
	eh, err := h.handle(req.Handle)
	if err != nil {
		return nil, err
	}
	switch req.Whence {
	case io.SeekStart, io.SeekCurrent, io.SeekEnd:
	default:
		return nil, fmt.Errorf("unsupported whence %d: %w", req.Whence, fine.ErrorInvalid)
	}

	off, err := eh.f.Seek(req.Offset, int(req.Whence))
	if err != nil {
		return nil, err
	}
	return &fine.LseekResponse{Offset: uint64(off)}, nil
}

type exportNode struct {
	inode uint64
}

func newExportNode(parent fine.Node, name string) *exportNode {
	return &exportNode{
		inode: inodeHash(uint64(parent), name),
	}
}

func (n *exportNode) Close() error { return nil }

// inodeHash returns a fake inode number given the hash of the file name and
// the parent directory's node ID.
func inodeHash(parent uint64, name string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%02b%s", parent, name)

	var inode uint64
	for {
		inode = h.Sum64()
		if inode > uint64(fine.RootNode) {
			break
		}
		// 0 is invalid and 1 is reserved for the root; try something else.
		h.Write([]byte{'!'})
	}
	return inode
}

type exportHandle struct {
	f     *os.File
	flags fine.FileFlags

	dir     bool
	entries []fs.DirEntry // Directory listing for Readdir paging.
}

func (h *exportHandle) Close() error { return h.f.Close() }
