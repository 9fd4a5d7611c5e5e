// Package record describes the fixed-size layout of entry records and the
// word sizes shared by every region of a table file.
package record

// WordSize is the size in bytes of every integer, pointer and header field
const WordSize = 4

// TypeTagSize is the size in bytes of a schema field type tag
const TypeTagSize = 1

// LengthSize is the size in bytes of a string length prefix
const LengthSize = 2

// MaxStringLen is the longest string payload a length prefix can describe
const MaxStringLen = 1<<(8*LengthSize) - 1

// Null is the sentinel stored in any pointer word that points nowhere
const Null = -1

// EntryHeaderSize is the size of the entry-list header:
// last_id, nb_entry, first_entry, last_entry, first_deleted_entry
const EntryHeaderSize = 5 * WordSize // 20 bytes

// StringHeaderSize is the size of the string-heap header:
// first_string, free_string_space, entry_buffer
const StringHeaderSize = 3 * WordSize // 12 bytes
