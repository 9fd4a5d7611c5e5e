package record

// Layout is a typed view over an entry record of a table with a given
// number of schema fields:
//
//	[id][field 0]...[field n-1][last_entry_pointer][next_entry_pointer]
//
// every word being WordSize bytes.
type Layout struct {
	Fields int
}

// NewLayout returns the record layout for a schema of n fields.
func NewLayout(n int) Layout {
	return Layout{Fields: n}
}

// Size is the size in bytes of one record.
func (l Layout) Size() int64 {
	return int64(WordSize * (l.Fields + 3))
}

// IDOffset is the offset of the id word inside a record.
func (l Layout) IDOffset() int64 { return 0 }

// WordOffset returns the offset of the word at index i, where index 0 is
// the id and index i>0 is schema field i-1.
func (l Layout) WordOffset(i int) int64 {
	return int64(WordSize * i)
}

// FieldOffset returns the offset of schema field i (0-based).
func (l Layout) FieldOffset(i int) int64 {
	return l.WordOffset(i + 1)
}

// PrevOffset is the offset of the backward link.
func (l Layout) PrevOffset() int64 {
	return l.WordOffset(l.Fields + 1)
}

// NextOffset is the offset of the forward link, shared by the free list.
func (l Layout) NextOffset() int64 {
	return l.WordOffset(l.Fields + 2)
}

// Aligned reports whether ptr falls on a record boundary of a record
// region that begins at base.
func (l Layout) Aligned(ptr, base int64) bool {
	return ptr >= base && (ptr-base)%l.Size() == 0
}
