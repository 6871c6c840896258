//go:build !linux

package server

import (
	"io/fs"
	"os"

	"github.com/rfratto/fdserve/internal/fine"
)

func attrFromInfo(n *exportNode, fi fs.FileInfo) fine.Attrib {
	return fine.Attrib{
		Inode:      n.inode,
		Size:       uint64(fi.Size()),
		Blocks:     uint64((fi.Size() + 511) / 512),
		LastAccess: fi.ModTime().UTC(),
		LastModify: fi.ModTime().UTC(),
		LastChange: fi.ModTime().UTC(),
		Mode:       fi.Mode(),
		BlockSize:  512,
		HardLinks:  1,
	}
}

// access only checks that path exists; permission bits aren't evaluated.
func access(path string, mask uint32) error {
	_, err := os.Lstat(path)
	return err
}
