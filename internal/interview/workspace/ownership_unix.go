//go:build unix

package workspace

import (
	"io/fs"
	"path/filepath"

	"golang.org/x/sys/unix"
)

func chownTree(root string, uid, gid int) error {
	return filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return unix.Lchown(path, uid, gid)
	})
}
