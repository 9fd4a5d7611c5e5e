// Package diskmanager provides the random-access file abstraction table files are stored on.
// It keeps one open handle per table file and handles directory listing and removal.
package diskmanager

import (
	"os"
	"sort"
	"strings"
)

// FileHandle abstracts file operations with random access, syncing, and stat.
type FileHandle interface {
	// ReadAt reads len(b) bytes from the file starting at byte offset off.
	// It returns the number of bytes read and any error encountered.
	ReadAt(b []byte, off int64) (int, error)
	// WriteAt writes len(b) bytes to the file starting at byte offset off.
	// Writing past the end of the file grows it.
	WriteAt(b []byte, off int64) (int, error)
	// Close closes the file handle, rendering it unusable for I/O.
	Close() error
	// Sync commits the current contents of the file to stable storage.
	Sync() error
	// Stat returns the file stat; Size() is the current file length.
	Stat() (os.FileInfo, error)
}

type fileHandle struct {
	file *os.File
}

// NewFileHandle wraps an *os.File into a FileHandle implementation.
func NewFileHandle(file *os.File) FileHandle { return &fileHandle{file: file} }

func (fh *fileHandle) ReadAt(b []byte, off int64) (int, error) { return fh.file.ReadAt(b, off) }

func (fh *fileHandle) WriteAt(b []byte, off int64) (int, error) { return fh.file.WriteAt(b, off) }

func (fh *fileHandle) Close() error { return fh.file.Close() }

func (fh *fileHandle) Sync() error { return fh.file.Sync() }

func (fh *fileHandle) Stat() (os.FileInfo, error) { return fh.file.Stat() }

// DiskManager defines methods for file operations.
type DiskManager interface {
	// Open opens a file with specified path, flags and permissions.
	// If the file is already open, returns the existing handle, except when
	// O_CREATE|O_EXCL is requested, which fails with os.ErrExist.
	Open(path string, flags int, perm os.FileMode) (FileHandle, error)
	// Delete removes the named file and closes its handle if open.
	Delete(path string) error
	// Rename closes any handle on either path and moves oldPath to newPath,
	// replacing it.
	Rename(oldPath, newPath string) error
	// List returns the sorted names of regular files in dir ending with
	// suffix. An empty suffix matches all files.
	List(dir string, suffix string) ([]string, error)
	// Close closes the file handle for the file at path if it exists.
	Close(path string) error
	// CloseAll closes every cached handle and returns the first error.
	CloseAll() error
}

type diskManager struct {
	fileHandles map[string]FileHandle
}

// NewDiskManager creates a new DiskManager instance.
func NewDiskManager() DiskManager {
	return &diskManager{
		fileHandles: make(map[string]FileHandle),
	}
}

// IsExclusiveCreate reports whether flags ask for a file that must not exist yet.
func IsExclusiveCreate(flags int) bool {
	return flags&os.O_CREATE != 0 && flags&os.O_EXCL != 0
}

// Open opens a file with the given flags and permissions.
// It caches the file handle keyed by path.
func (dm *diskManager) Open(path string, flags int, perm os.FileMode) (FileHandle, error) {
	if handle, exists := dm.fileHandles[path]; exists {
		if IsExclusiveCreate(flags) {
			return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrExist}
		}
		return handle, nil
	}
	file, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return nil, err
	}
	handle := NewFileHandle(file)
	dm.fileHandles[path] = handle
	return handle, nil
}

func (dm *diskManager) Delete(path string) error {
	if handle, exists := dm.fileHandles[path]; exists {
		_ = handle.Close()
		delete(dm.fileHandles, path)
	}
	return os.Remove(path)
}

func (dm *diskManager) Rename(oldPath, newPath string) error {
	for _, p := range []string{oldPath, newPath} {
		if err := dm.Close(p); err != nil {
			return err
		}
	}
	return os.Rename(oldPath, newPath)
}

func (dm *diskManager) List(dir string, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if suffix == "" || strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (dm *diskManager) Close(path string) error {
	handle, exists := dm.fileHandles[path]
	if !exists {
		return nil
	}
	err := handle.Close()
	if err != nil {
		return err
	}
	delete(dm.fileHandles, path)
	return nil
}

func (dm *diskManager) CloseAll() error {
	var first error
	for path, handle := range dm.fileHandles {
		if err := handle.Close(); err != nil && first == nil {
			first = err
		}
		delete(dm.fileHandles, path)
	}
	return first
}
