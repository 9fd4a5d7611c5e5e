// Package schema reads and writes the schema header at the start of every
// table file:
//
//	[4 bytes magic "ULDB"][4 bytes field count]
//	repeated: [1 byte type tag][2 bytes name length][name]
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MikhailWahib/uldb/internal/codec"
	"github.com/MikhailWahib/uldb/internal/record"
)

// Magic is "ULDB" read as a little-endian 32-bit integer.
const Magic = 0x42444C55

// IDField is the implicit integer column every record starts with.
const IDField = "id"

const (
	headerSize        = 2 * record.WordSize
	minDescriptorSize = record.TypeTagSize + record.LengthSize
)

var (
	// ErrBadMagic is returned when a file does not start with Magic.
	ErrBadMagic = errors.New("not a table file")
	// ErrUnknownType is returned for a type tag that is neither INTEGER nor STRING.
	ErrUnknownType = errors.New("unknown field type")
)

// FieldType is the declared kind of a column.
type FieldType byte

const (
	// Integer columns hold a 4-byte signed value inline.
	Integer FieldType = 1
	// String columns hold a pointer into the string heap.
	String FieldType = 2
)

func (t FieldType) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case String:
		return "STRING"
	}
	return fmt.Sprintf("FieldType(%d)", byte(t))
}

// Valid reports whether t is a known type tag.
func (t FieldType) Valid() bool {
	return t == Integer || t == String
}

// ParseFieldType parses "INTEGER" or "STRING", case-insensitively.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INTEGER":
		return Integer, nil
	case "STRING":
		return String, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Field is one column declaration.
type Field struct {
	Name string
	Type FieldType
}

// Signature is the ordered list of columns of a table.
type Signature []Field

// Index returns the position of the named field, or -1.
func (s Signature) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the field names in order.
func (s Signature) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Write writes the schema header at the start of f and leaves the cursor
// right after it.
func Write(f *codec.File, fields Signature) error {
	if err := f.WriteIntAt(Magic, record.WordSize, 0); err != nil {
		return fmt.Errorf("failed to write magic: %w", err)
	}
	if err := f.WriteInt(int64(len(fields)), record.WordSize); err != nil {
		return fmt.Errorf("failed to write field count: %w", err)
	}
	for _, field := range fields {
		if !field.Type.Valid() {
			return fmt.Errorf("field %q: %w", field.Name, ErrUnknownType)
		}
		if err := f.WriteInt(int64(field.Type), record.TypeTagSize); err != nil {
			return fmt.Errorf("failed to write type of field %q: %w", field.Name, err)
		}
		if err := f.WriteString(field.Name); err != nil {
			return fmt.Errorf("failed to write name of field %q: %w", field.Name, err)
		}
	}
	return nil
}

// Read parses the schema header of f. It returns the fields and the offset
// of the first byte after the schema.
func Read(f *codec.File) (Signature, int64, error) {
	magic, err := f.ReadIntAt(record.WordSize, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != Magic {
		return nil, 0, fmt.Errorf("%w: magic %#x", ErrBadMagic, magic)
	}

	n, err := f.ReadInt(record.WordSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read field count: %w", err)
	}
	size, err := f.Size()
	if err != nil {
		return nil, 0, err
	}
	// Each descriptor takes at least a type tag and a length prefix.
	if n < 0 || n > (size-headerSize)/minDescriptorSize {
		return nil, 0, fmt.Errorf("%w: field count %d in a %d byte file", ErrBadMagic, n, size)
	}

	fields := make(Signature, 0, n)
	for i := int64(0); i < n; i++ {
		tag, err := f.ReadInt(record.TypeTagSize)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read type of field %d: %w", i, err)
		}
		ft := FieldType(tag)
		if !ft.Valid() {
			return nil, 0, fmt.Errorf("field %d: %w: tag %d", i, ErrUnknownType, tag)
		}
		name, err := f.ReadString()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read name of field %d: %w", i, err)
		}
		fields = append(fields, Field{Name: name, Type: ft})
	}

	return fields, f.Pos(), nil
}
