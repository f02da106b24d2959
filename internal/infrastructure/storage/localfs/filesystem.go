package localfs

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is the subset of filesystem operations used by directory
// migration. Tests substitute failing implementations.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	MkdirAll(path string, perm fs.FileMode) error
	Rename(oldpath, newpath string) error
	Symlink(oldname, newname string) error
	EvalSymlinks(path string) (string, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
}

// OSFileSystem is the FileSystem backed by the os package.
type OSFileSystem struct{}

func (OSFileSystem) Stat(name string) (fs.FileInfo, error)        { return os.Stat(name) }
func (OSFileSystem) Lstat(name string) (fs.FileInfo, error)       { return os.Lstat(name) }
func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error)   { return os.ReadDir(name) }
func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFileSystem) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (OSFileSystem) Symlink(oldname, newname string) error        { return os.Symlink(oldname, newname) }
func (OSFileSystem) ReadFile(name string) ([]byte, error)         { return os.ReadFile(name) }

func (OSFileSystem) EvalSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

// WriteFile creates name exclusively so an existing file is never replaced.
func (OSFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
