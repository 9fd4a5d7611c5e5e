// Package mockdm provides an in-memory implementation of the disk manager for testing
package mockdm

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MikhailWahib/uldb/internal/diskmanager"
)

// MockFile implements diskmanager.FileHandle over a growable byte slice
type MockFile struct {
	data     []byte
	name     string
	syncs    int
	closed   bool
	writeErr error
}

// NewMockFile returns an empty standalone in-memory file.
func NewMockFile(name string) *MockFile {
	return &MockFile{name: name}
}

// WriteAt writes len(b) bytes to the file starting at byte offset off
func (m *MockFile) WriteAt(b []byte, off int64) (int, error) {
	if m.closed {
		return 0, os.ErrClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	// Extend the slice if needed, zero-filling any gap
	requiredLen := int(off) + len(b)
	if requiredLen > len(m.data) {
		newData := make([]byte, requiredLen)
		copy(newData, m.data)
		m.data = newData
	}
	return copy(m.data[off:], b), nil
}

// ReadAt reads len(b) bytes from the file starting at byte offset off
func (m *MockFile) ReadAt(b []byte, off int64) (int, error) {
	if m.closed {
		return 0, os.ErrClosed
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(b, m.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

// Close closes the mock file
func (m *MockFile) Close() error {
	m.closed = true
	return nil
}

// Sync counts sync calls
func (m *MockFile) Sync() error {
	m.syncs++
	return nil
}

// Syncs returns how many times Sync was called
func (m *MockFile) Syncs() int { return m.syncs }

// Bytes returns a copy of the file contents
func (m *MockFile) Bytes() []byte {
	return append([]byte(nil), m.data...)
}

// Stat returns file information
func (m *MockFile) Stat() (os.FileInfo, error) {
	return &testFileInfo{size: int64(len(m.data)), name: m.name}, nil
}

type testFileInfo struct {
	size int64
	name string
}

func (m *testFileInfo) Name() string       { return filepath.Base(m.name) }
func (m *testFileInfo) Size() int64        { return m.size }
func (m *testFileInfo) Mode() os.FileMode  { return 0644 }
func (m *testFileInfo) ModTime() time.Time { return time.Now() }
func (m *testFileInfo) IsDir() bool        { return false }
func (m *testFileInfo) Sys() any           { return nil }

// MockDiskManager implements diskmanager.DiskManager interface for testing
type MockDiskManager struct {
	files      map[string]*MockFile
	openErrs   map[string]error
	writeErrs  map[string]error
	deleteErrs map[string]error
}

// NewMockDiskManager creates a new MockDiskManager instance
func NewMockDiskManager() *MockDiskManager {
	return &MockDiskManager{
		files:      make(map[string]*MockFile),
		openErrs:   make(map[string]error),
		writeErrs:  make(map[string]error),
		deleteErrs: make(map[string]error),
	}
}

// Open creates or opens a mock file, honoring O_CREATE and O_EXCL
func (dm *MockDiskManager) Open(path string, flags int, _ os.FileMode) (diskmanager.FileHandle, error) {
	if err, ok := dm.openErrs[path]; ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	if file, exists := dm.files[path]; exists {
		if diskmanager.IsExclusiveCreate(flags) {
			return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrExist}
		}
		file.closed = false
		return file, nil
	}
	if flags&os.O_CREATE == 0 {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	file := NewMockFile(path)
	file.writeErr = dm.writeErrs[path]
	dm.files[path] = file
	return file, nil
}

// File returns the mock file stored at path, if any
func (dm *MockDiskManager) File(path string) (*MockFile, bool) {
	f, ok := dm.files[path]
	return f, ok
}

// Delete removes a mock file
func (dm *MockDiskManager) Delete(path string) error {
	if err, ok := dm.deleteErrs[path]; ok {
		return &os.PathError{Op: "remove", Path: path, Err: err}
	}
	if _, exists := dm.files[path]; !exists {
		return &os.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
	}
	delete(dm.files, path)
	return nil
}

// FailOpen makes every later Open of path fail with err
func (dm *MockDiskManager) FailOpen(path string, err error) {
	dm.openErrs[path] = err
}

// FailWrites makes every write to the file later created at path fail with err
func (dm *MockDiskManager) FailWrites(path string, err error) {
	dm.writeErrs[path] = err
}

// FailDelete makes every later Delete of path fail with err
func (dm *MockDiskManager) FailDelete(path string, err error) {
	dm.deleteErrs[path] = err
}

// Rename moves a mock file to newPath, replacing any file there
func (dm *MockDiskManager) Rename(oldPath, newPath string) error {
	file, exists := dm.files[oldPath]
	if !exists {
		return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: os.ErrNotExist}
	}
	delete(dm.files, oldPath)
	file.name = newPath
	dm.files[newPath] = file
	return nil
}

// List returns mock files in dir ending with suffix
func (dm *MockDiskManager) List(dir string, suffix string) ([]string, error) {
	var files []string
	for name := range dm.files {
		if filepath.Dir(name) != filepath.Clean(dir) {
			continue
		}
		if suffix == "" || strings.HasSuffix(name, suffix) {
			files = append(files, filepath.Base(name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Close is a no-op; mock files stay readable until deleted
func (dm *MockDiskManager) Close(_ string) error {
	return nil
}

// CloseAll is a no-op
func (dm *MockDiskManager) CloseAll() error {
	return nil
}
