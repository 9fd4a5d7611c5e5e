package table

import (
	"fmt"

	"github.com/MikhailWahib/uldb/internal/record"
	"github.com/MikhailWahib/uldb/internal/schema"
)

// directory holds the locations of every header word of a table file.
// The header layout depends on the schema length and entry_buffer moves
// whenever the string heap grows, so it is rebuilt for every operation
// and after every growth.
type directory struct {
	sig    schema.Signature
	layout record.Layout

	// locations of the string-heap header words
	firstStringPtr     int64
	freeStringSpacePtr int64
	entryBufferPtr     int64

	// values read while building the directory
	heapStart int64 // first_string
	heapEnd   int64 // entry_buffer, also the entry-list header base
	fileSize  int64
}

func (d directory) lastIDPtr() int64            { return d.heapEnd }
func (d directory) nbEntryPtr() int64           { return d.heapEnd + record.WordSize }
func (d directory) firstEntryPtr() int64        { return d.heapEnd + 2*record.WordSize }
func (d directory) lastEntryPtr() int64         { return d.heapEnd + 3*record.WordSize }
func (d directory) firstDeletedEntryPtr() int64 { return d.heapEnd + 4*record.WordSize }

// recordsStart is the offset of the first entry record slot.
func (d directory) recordsStart() int64 { return d.heapEnd + record.EntryHeaderSize }

// slotCount is the number of record slots on disk, live or deleted.
func (d directory) slotCount() int64 {
	return (d.fileSize - d.recordsStart()) / d.layout.Size()
}

// directory reads the schema and string-heap header and validates the
// region boundaries they describe.
func (t *Table) directory() (directory, error) {
	sig, p, err := schema.Read(t.f)
	if err != nil {
		return directory{}, err
	}
	d := directory{
		sig:                sig,
		layout:             record.NewLayout(len(sig)),
		firstStringPtr:     p,
		freeStringSpacePtr: p + record.WordSize,
		entryBufferPtr:     p + 2*record.WordSize,
	}

	if d.fileSize, err = t.f.Size(); err != nil {
		return directory{}, err
	}
	if d.heapStart, err = t.word(d.firstStringPtr); err != nil {
		return directory{}, err
	}
	free, err := t.word(d.freeStringSpacePtr)
	if err != nil {
		return directory{}, err
	}
	if d.heapEnd, err = t.word(d.entryBufferPtr); err != nil {
		return directory{}, err
	}

	if d.heapStart != p+record.StringHeaderSize ||
		free < d.heapStart || free > d.heapEnd ||
		d.heapEnd <= d.heapStart || d.recordsStart() > d.fileSize {
		return directory{}, fmt.Errorf("%w: string heap header first=%d free=%d entry_buffer=%d size=%d",
			ErrCorruptPointer, d.heapStart, free, d.heapEnd, d.fileSize)
	}
	return d, nil
}

// checkNode verifies that ptr is null or the start of a record slot.
func (d directory) checkNode(ptr int64) error {
	if ptr == record.Null {
		return nil
	}
	if !d.layout.Aligned(ptr, d.recordsStart()) || ptr+d.layout.Size() > d.fileSize {
		return fmt.Errorf("%w: record pointer %d outside [%d, %d)", ErrCorruptPointer, ptr, d.recordsStart(), d.fileSize)
	}
	return nil
}

// checkString verifies that ptr lies inside the string heap.
func (d directory) checkString(ptr int64) error {
	if ptr < d.heapStart || ptr+record.LengthSize > d.heapEnd {
		return fmt.Errorf("%w: string pointer %d outside heap [%d, %d)", ErrCorruptPointer, ptr, d.heapStart, d.heapEnd)
	}
	return nil
}

// link reads the record pointer stored at pos and validates it.
func (t *Table) link(d directory, pos int64) (int64, error) {
	ptr, err := t.word(pos)
	if err != nil {
		return 0, err
	}
	if err := d.checkNode(ptr); err != nil {
		return 0, err
	}
	return ptr, nil
}

func (t *Table) word(pos int64) (int64, error) {
	return t.f.ReadIntAt(record.WordSize, pos)
}

func (t *Table) setWord(pos, v int64) error {
	return t.f.WriteIntAt(v, record.WordSize, pos)
}
