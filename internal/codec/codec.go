// Package codec implements positioned little-endian integer and
// length-prefixed string I/O over a diskmanager.FileHandle.
//
// A File keeps a cursor like a regular file: the plain Read/Write methods
// operate at the cursor and advance it, the *At variants seek first.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/MikhailWahib/uldb/internal/diskmanager"
	"github.com/MikhailWahib/uldb/internal/record"
)

var (
	// ErrIntOverflow is returned when a value does not fit the requested width.
	ErrIntOverflow = errors.New("integer does not fit in field width")
	// ErrStringTooLong is returned when a string exceeds record.MaxStringLen bytes.
	ErrStringTooLong = errors.New("string exceeds maximum length")
	// ErrInvalidUTF8 is returned when a stored string is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("string is not valid utf-8")
	// ErrBadSize is returned for integer widths other than 1, 2, 4 or 8.
	ErrBadSize = errors.New("unsupported integer width")
)

// File is a cursor over a random access file handle.
type File struct {
	fh  diskmanager.FileHandle
	pos int64
}

// New wraps fh with a cursor at offset 0.
func New(fh diskmanager.FileHandle) *File {
	return &File{fh: fh}
}

// Seek moves the cursor to pos.
func (f *File) Seek(pos int64) {
	f.pos = pos
}

// Pos returns the cursor position.
func (f *File) Pos() int64 {
	return f.pos
}

// Size returns the current length of the file in bytes.
func (f *File) Size() (int64, error) {
	info, err := f.fh.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return info.Size(), nil
}

// Sync flushes the underlying handle.
func (f *File) Sync() error {
	return f.fh.Sync()
}

func (f *File) readFull(b []byte) error {
	n, err := f.fh.ReadAt(b, f.pos)
	if n == len(b) {
		f.pos += int64(n)
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("short read of %d bytes at %d: %w", len(b), f.pos, err)
}

func (f *File) write(b []byte) error {
	n, err := f.fh.WriteAt(b, f.pos)
	if err != nil {
		return fmt.Errorf("failed to write %d bytes at %d: %w", len(b), f.pos, err)
	}
	f.pos += int64(n)
	return nil
}

func checkSize(size int) error {
	switch size {
	case 1, 2, 4, 8:
		return nil
	}
	return fmt.Errorf("%w: %d", ErrBadSize, size)
}

// ReadInt reads a size-byte little-endian signed integer at the cursor.
func (f *File) ReadInt(size int) (int64, error) {
	if err := checkSize(size); err != nil {
		return 0, err
	}
	var buf [8]byte
	if err := f.readFull(buf[:size]); err != nil {
		return 0, err
	}
	return decodeInt(buf[:size]), nil
}

// ReadIntAt seeks to pos and reads a size-byte integer.
func (f *File) ReadIntAt(size int, pos int64) (int64, error) {
	f.Seek(pos)
	return f.ReadInt(size)
}

// WriteInt writes v as a size-byte little-endian signed integer at the cursor.
func (f *File) WriteInt(v int64, size int) error {
	if err := checkSize(size); err != nil {
		return err
	}
	if !Fits(v, size) {
		return fmt.Errorf("%w: %d in %d bytes", ErrIntOverflow, v, size)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return f.write(buf[:size])
}

// WriteIntAt seeks to pos and writes a size-byte integer.
func (f *File) WriteIntAt(v int64, size int, pos int64) error {
	f.Seek(pos)
	return f.WriteInt(v, size)
}

// ReadString reads a length-prefixed UTF-8 string at the cursor.
func (f *File) ReadString() (string, error) {
	n, err := f.ReadInt(record.LengthSize)
	if err != nil {
		return "", err
	}
	buf := make([]byte, uint16(n))
	if err := f.readFull(buf); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("%w at %d", ErrInvalidUTF8, f.pos-int64(len(buf)))
	}
	return string(buf), nil
}

// ReadStringAt seeks to pos and reads a length-prefixed string.
func (f *File) ReadStringAt(pos int64) (string, error) {
	f.Seek(pos)
	return f.ReadString()
}

// WriteString writes s with its length prefix at the cursor.
func (f *File) WriteString(s string) error {
	if len(s) > record.MaxStringLen {
		return fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
	}
	buf := make([]byte, record.LengthSize+len(s))
	binary.LittleEndian.PutUint16(buf, uint16(len(s)))
	copy(buf[record.LengthSize:], s)
	return f.write(buf)
}

// WriteStringAt seeks to pos and writes a length-prefixed string.
func (f *File) WriteStringAt(s string, pos int64) error {
	f.Seek(pos)
	return f.WriteString(s)
}

// WriteZeros writes n zero bytes at the cursor.
func (f *File) WriteZeros(n int64) error {
	if n <= 0 {
		return nil
	}
	return f.write(make([]byte, n))
}

// Shift inserts n zero bytes at pos, moving everything from pos to the end
// of the file forward by n. The cursor is left after the moved bytes.
func (f *File) Shift(pos, n int64) error {
	size, err := f.Size()
	if err != nil {
		return err
	}
	if pos < 0 || pos > size {
		return fmt.Errorf("shift position %d outside file of %d bytes", pos, size)
	}
	if n <= 0 {
		return nil
	}
	buf := make([]byte, n+size-pos)
	f.Seek(pos)
	if err := f.readFull(buf[n:]); err != nil {
		return fmt.Errorf("failed to read tail for shift: %w", err)
	}
	f.Seek(pos)
	if err := f.write(buf); err != nil {
		return fmt.Errorf("failed to write shifted tail: %w", err)
	}
	return nil
}

// IncrementAt adds delta to the size-byte integer stored at pos, unless it
// holds the null sentinel. It reports whether the value was changed.
func (f *File) IncrementAt(pos int64, size int, delta int64) (bool, error) {
	v, err := f.ReadIntAt(size, pos)
	if err != nil {
		return false, err
	}
	if v == record.Null {
		return false, nil
	}
	return true, f.WriteIntAt(v+delta, size, pos)
}

// EncodedLen returns the number of bytes s occupies once length-prefixed.
func EncodedLen(s string) int64 {
	return int64(record.LengthSize + len(s))
}

// Fits reports whether v is representable as a size-byte signed integer.
func Fits(v int64, size int) bool {
	if size >= 8 {
		return true
	}
	limit := int64(1) << (8*size - 1)
	return v >= -limit && v < limit
}

func decodeInt(b []byte) int64 {
	var buf [8]byte
	copy(buf[:], b)
	// sign-extend
	if b[len(b)-1]&0x80 != 0 {
		for i := len(b); i < 8; i++ {
			buf[i] = 0xFF
		}
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}
