// Package table implements the table file engine: a schema header, a
// growable string heap and a linked list of fixed-size entry records with
// a free list of deleted slots.
//
// # File layout
//
//	schema header        magic, field count, field descriptors
//	string-heap header   first_string, free_string_space, entry_buffer
//	string heap          [first_string, entry_buffer), power-of-two sized
//	entry-list header    last_id, nb_entry, first_entry, last_entry, first_deleted_entry
//	entry records        id, one word per field, last_entry_pointer, next_entry_pointer
//
// All pointers are absolute byte offsets and -1 means null. Growing the
// string heap inserts bytes in the middle of the file, so every pointer
// past the growth point is patched before the operation returns.
//
// A Table is not safe for concurrent use.
package table

import (
	"fmt"
	"log/slog"

	"github.com/MikhailWahib/uldb/internal/codec"
	"github.com/MikhailWahib/uldb/internal/diskmanager"
	"github.com/MikhailWahib/uldb/internal/record"
	"github.com/MikhailWahib/uldb/internal/schema"
)

// DefaultHeapSize is the size of the string heap of a new table.
const DefaultHeapSize = 16

// Table is an open table file.
type Table struct {
	f      *codec.File
	logger *slog.Logger
}

// Stats describes the current state of a table file.
type Stats struct {
	HeapStart       int64
	HeapSize        int64
	FreeStringSpace int64
	EntryBuffer     int64
	LastID          int32
	Rows            int
	Slots           int64
	FirstEntry      int64
	LastEntry       int64
	FirstDeleted    int64
	RecordSize      int64
	FileSize        int64
}

// Create writes an empty table with the given fields to fh, which must be
// empty, and returns it open.
func Create(fh diskmanager.FileHandle, fields schema.Signature, heapSize int64, logger *slog.Logger) (*Table, error) {
	if err := ValidateSignature(fields); err != nil {
		return nil, err
	}
	if heapSize <= 0 || heapSize&(heapSize-1) != 0 {
		return nil, fmt.Errorf("initial heap size %d is not a power of two", heapSize)
	}

	t := newTable(fh, logger)
	if err := schema.Write(t.f, fields); err != nil {
		return nil, err
	}

	first := t.f.Pos() + record.StringHeaderSize
	words := []int64{
		first,            // first_string
		first,            // free_string_space
		first + heapSize, // entry_buffer
	}
	for _, w := range words {
		if err := t.f.WriteInt(w, record.WordSize); err != nil {
			return nil, fmt.Errorf("failed to write string heap header: %w", err)
		}
	}
	if err := t.f.WriteZeros(heapSize); err != nil {
		return nil, fmt.Errorf("failed to allocate string heap: %w", err)
	}

	header := []int64{
		0,           // last_id
		0,           // nb_entry
		record.Null, // first_entry
		record.Null, // last_entry
		record.Null, // first_deleted_entry
	}
	for _, w := range header {
		if err := t.f.WriteInt(w, record.WordSize); err != nil {
			return nil, fmt.Errorf("failed to write entry list header: %w", err)
		}
	}
	return t, nil
}

// Open checks that fh holds a table file and returns it.
func Open(fh diskmanager.FileHandle, logger *slog.Logger) (*Table, error) {
	t := newTable(fh, logger)
	if _, err := t.directory(); err != nil {
		return nil, err
	}
	return t, nil
}

func newTable(fh diskmanager.FileHandle, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{f: codec.New(fh), logger: logger}
}

// Sync flushes the table file.
func (t *Table) Sync() error {
	return t.f.Sync()
}

// Schema returns the ordered fields of the table.
func (t *Table) Schema() (schema.Signature, error) {
	sig, _, err := schema.Read(t.f)
	return sig, err
}

// Size returns the number of live rows.
func (t *Table) Size() (int, error) {
	d, err := t.directory()
	if err != nil {
		return 0, err
	}
	n, err := t.word(d.nbEntryPtr())
	return int(n), err
}

// LastID returns the highest id ever assigned.
func (t *Table) LastID() (int32, error) {
	d, err := t.directory()
	if err != nil {
		return 0, err
	}
	id, err := t.word(d.lastIDPtr())
	return int32(id), err
}

// SetLastID overwrites the highest assigned id, so that the next implicit
// id is id+1.
func (t *Table) SetLastID(id int32) error {
	d, err := t.directory()
	if err != nil {
		return err
	}
	return t.setWord(d.lastIDPtr(), int64(id))
}

// NeedsCompaction reports whether the number of slots on disk divided by
// the number of live rows reached ratio. A ratio of 0 never compacts.
func (t *Table) NeedsCompaction(ratio int) (bool, error) {
	if ratio <= 0 {
		return false, nil
	}
	d, err := t.directory()
	if err != nil {
		return false, err
	}
	live, err := t.word(d.nbEntryPtr())
	if err != nil {
		return false, err
	}
	if live == 0 {
		return false, nil
	}
	return d.slotCount()/live >= int64(ratio), nil
}

// Stats reads the header fields of the table.
func (t *Table) Stats() (Stats, error) {
	d, err := t.directory()
	if err != nil {
		return Stats{}, err
	}
	ptrs := []int64{
		d.freeStringSpacePtr, d.lastIDPtr(), d.nbEntryPtr(),
		d.firstEntryPtr(), d.lastEntryPtr(), d.firstDeletedEntryPtr(),
	}
	vals := make([]int64, len(ptrs))
	for i, p := range ptrs {
		if vals[i], err = t.word(p); err != nil {
			return Stats{}, err
		}
	}
	return Stats{
		HeapStart:       d.heapStart,
		HeapSize:        d.heapEnd - d.heapStart,
		FreeStringSpace: vals[0],
		EntryBuffer:     d.heapEnd,
		LastID:          int32(vals[1]),
		Rows:            int(vals[2]),
		FirstEntry:      vals[3],
		LastEntry:       vals[4],
		FirstDeleted:    vals[5],
		Slots:           d.slotCount(),
		RecordSize:      d.layout.Size(),
		FileSize:        d.fileSize,
	}, nil
}
