package table

import (
	"fmt"

	"github.com/MikhailWahib/uldb/internal/codec"
	"github.com/MikhailWahib/uldb/internal/record"
	"github.com/MikhailWahib/uldb/internal/schema"
)

// scanStrings returns the heap space the string fields of row need and the
// strings themselves, in schema order.
func scanStrings(sig schema.Signature, row Row) (int64, []string) {
	var required int64
	var strs []string
	for _, f := range sig {
		if f.Type != schema.String {
			continue
		}
		s := row[f.Name].Str
		required += codec.EncodedLen(s)
		strs = append(strs, s)
	}
	return required, strs
}

// ensureCapacity grows the string heap until required more bytes fit,
// doubling its size as many times as needed. Growth inserts bytes at
// free_string_space, so entry_buffer and every record link are patched by
// the same amount. It returns the shift applied, 0 if the heap was large
// enough.
func (t *Table) ensureCapacity(required int64) (int64, error) {
	d, err := t.directory()
	if err != nil {
		return 0, err
	}
	free, err := t.word(d.freeStringSpacePtr)
	if err != nil {
		return 0, err
	}

	size := d.heapEnd - d.heapStart
	used := free - d.heapStart
	newSize := size
	for used+required > newSize {
		newSize *= 2
	}
	shift := newSize - size
	if shift == 0 {
		return 0, nil
	}

	if err := t.f.Shift(free, shift); err != nil {
		return 0, fmt.Errorf("failed to grow string heap: %w", err)
	}
	if err := t.setWord(d.entryBufferPtr, d.heapEnd+shift); err != nil {
		return 0, fmt.Errorf("failed to move entry buffer: %w", err)
	}
	if err := t.applyShift(shift); err != nil {
		return 0, fmt.Errorf("failed to patch entry pointers after heap growth: %w", err)
	}

	t.logger.Debug("string heap grown", "from", size, "to", newSize, "shift", shift)
	return shift, nil
}

// appendStrings writes strs at free_string_space, advances it and returns
// the offset of each string. The caller must have reserved the space with
// ensureCapacity.
func (t *Table) appendStrings(strs []string) ([]int64, error) {
	if len(strs) == 0 {
		return nil, nil
	}
	d, err := t.directory()
	if err != nil {
		return nil, err
	}
	free, err := t.word(d.freeStringSpacePtr)
	if err != nil {
		return nil, err
	}

	end := free
	for _, s := range strs {
		end += codec.EncodedLen(s)
	}
	if end > d.heapEnd {
		return nil, fmt.Errorf("strings need %d bytes past free offset %d, heap ends at %d", end-free, free, d.heapEnd)
	}

	ptrs := make([]int64, 0, len(strs))
	t.f.Seek(free)
	for _, s := range strs {
		ptrs = append(ptrs, t.f.Pos())
		if err := t.f.WriteString(s); err != nil {
			return nil, fmt.Errorf("failed to append string: %w", err)
		}
	}
	if err := t.setWord(d.freeStringSpacePtr, end); err != nil {
		return nil, err
	}
	return ptrs, nil
}

// readString dereferences a string pointer after checking it.
func (t *Table) readString(d directory, ptr int64) (string, error) {
	if err := d.checkString(ptr); err != nil {
		return "", err
	}
	n, err := t.f.ReadIntAt(record.LengthSize, ptr)
	if err != nil {
		return "", err
	}
	if end := ptr + record.LengthSize + int64(uint16(n)); end > d.heapEnd {
		return "", fmt.Errorf("%w: string at %d of %d bytes runs past heap end %d", ErrCorruptPointer, ptr, uint16(n), d.heapEnd)
	}
	return t.f.ReadStringAt(ptr)
}
