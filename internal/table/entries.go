package table

import (
	"fmt"

	"github.com/MikhailWahib/uldb/internal/record"
	"github.com/MikhailWahib/uldb/internal/schema"
)

// allocateSlot picks the slot for a new row and links it at the tail of
// the active list. The head of the free list is reused when there is one,
// otherwise a new slot is appended at the end of the file. It returns the
// slot and its backward link; the forward link of a tail is always null.
func (t *Table) allocateSlot(d directory) (slot, prev int64, err error) {
	last, err := t.link(d, d.lastEntryPtr())
	if err != nil {
		return 0, 0, err
	}
	freeHead, err := t.link(d, d.firstDeletedEntryPtr())
	if err != nil {
		return 0, 0, err
	}

	if freeHead != record.Null {
		slot = freeHead
		fPrev, err := t.link(d, slot+d.layout.PrevOffset())
		if err != nil {
			return 0, 0, err
		}
		fNext, err := t.link(d, slot+d.layout.NextOffset())
		if err != nil {
			return 0, 0, err
		}
		if err := t.relink(d, fPrev, fNext, d.firstDeletedEntryPtr(), record.Null); err != nil {
			return 0, 0, fmt.Errorf("failed to pop free slot %d: %w", slot, err)
		}
	} else {
		slot = d.fileSize
	}

	if last != record.Null {
		err = t.setWord(last+d.layout.NextOffset(), slot)
	} else {
		err = t.setWord(d.firstEntryPtr(), slot)
	}
	if err != nil {
		return 0, 0, err
	}
	if err := t.setWord(d.lastEntryPtr(), slot); err != nil {
		return 0, 0, err
	}
	return slot, last, nil
}

// relink connects prev and next to each other, bypassing the node between
// them. When prev is null headPtr is rewritten instead, and when next is
// null tailPtr is (a tailPtr of record.Null means the list keeps no tail).
func (t *Table) relink(d directory, prev, next, headPtr, tailPtr int64) error {
	var err error
	if prev != record.Null {
		err = t.setWord(prev+d.layout.NextOffset(), next)
	} else {
		err = t.setWord(headPtr, next)
	}
	if err != nil {
		return err
	}
	if next != record.Null {
		return t.setWord(next+d.layout.PrevOffset(), prev)
	}
	if tailPtr != record.Null {
		return t.setWord(tailPtr, prev)
	}
	return nil
}

// assignID bumps nb_entry and returns the id of the new row: the explicit
// id carried by row when present, last_id+1 otherwise. last_id is set to
// the returned id either way.
func (t *Table) assignID(d directory, row Row) (int32, error) {
	var id int64
	if v, ok := row[schema.IDField]; ok {
		id = int64(v.Int)
	} else {
		last, err := t.word(d.lastIDPtr())
		if err != nil {
			return 0, err
		}
		id = last + 1
	}
	if err := t.setWord(d.lastIDPtr(), id); err != nil {
		return 0, fmt.Errorf("failed to update last id: %w", err)
	}

	n, err := t.word(d.nbEntryPtr())
	if err != nil {
		return 0, err
	}
	if err := t.setWord(d.nbEntryPtr(), n+1); err != nil {
		return 0, fmt.Errorf("failed to update entry count: %w", err)
	}
	return int32(id), nil
}

// writeRow writes a whole record at slot. String fields take the next
// pointer from strPtrs, in schema order.
func (t *Table) writeRow(d directory, slot int64, id int32, row Row, strPtrs []int64, prev, next int64) error {
	words := make([]int64, 0, len(d.sig)+3)
	words = append(words, int64(id))
	for _, f := range d.sig {
		if f.Type == schema.Integer {
			words = append(words, int64(row[f.Name].Int))
			continue
		}
		if len(strPtrs) == 0 {
			return fmt.Errorf("no string pointer left for field %q", f.Name)
		}
		words = append(words, strPtrs[0])
		strPtrs = strPtrs[1:]
	}
	words = append(words, prev, next)

	t.f.Seek(slot)
	for _, w := range words {
		if err := t.f.WriteInt(w, record.WordSize); err != nil {
			return fmt.Errorf("failed to write record at %d: %w", slot, err)
		}
	}
	return nil
}

// applyShift adds delta to the list header pointers and to the links of
// every record, active or deleted, after the string heap grew by delta.
// It must run before any record pointer is read again.
func (t *Table) applyShift(delta int64) error {
	d, err := t.directory()
	if err != nil {
		return err
	}
	for _, p := range []int64{d.firstEntryPtr(), d.lastEntryPtr(), d.firstDeletedEntryPtr()} {
		if _, err := t.f.IncrementAt(p, record.WordSize, delta); err != nil {
			return err
		}
	}

	for _, head := range []int64{d.firstEntryPtr(), d.firstDeletedEntryPtr()} {
		node, err := t.link(d, head)
		if err != nil {
			return err
		}
		for steps := int64(0); node != record.Null; steps++ {
			if steps >= d.slotCount() {
				return fmt.Errorf("%w: cycle in list starting at %d", ErrCorruptPointer, head)
			}
			if _, err := t.f.IncrementAt(node+d.layout.PrevOffset(), record.WordSize, delta); err != nil {
				return err
			}
			if _, err := t.f.IncrementAt(node+d.layout.NextOffset(), record.WordSize, delta); err != nil {
				return err
			}
			if node, err = t.link(d, node+d.layout.NextOffset()); err != nil {
				return err
			}
		}
	}
	return nil
}

// unlink detaches node from the active list and decrements nb_entry.
func (t *Table) unlink(d directory, node int64) error {
	prev, err := t.link(d, node+d.layout.PrevOffset())
	if err != nil {
		return err
	}
	next, err := t.link(d, node+d.layout.NextOffset())
	if err != nil {
		return err
	}
	if err := t.relink(d, prev, next, d.firstEntryPtr(), d.lastEntryPtr()); err != nil {
		return fmt.Errorf("failed to unlink record %d: %w", node, err)
	}

	n, err := t.word(d.nbEntryPtr())
	if err != nil {
		return err
	}
	return t.setWord(d.nbEntryPtr(), n-1)
}

// recycle pushes an unlinked node on the head of the free list.
func (t *Table) recycle(d directory, node int64) error {
	head, err := t.link(d, d.firstDeletedEntryPtr())
	if err != nil {
		return err
	}
	if err := t.setWord(d.firstDeletedEntryPtr(), node); err != nil {
		return err
	}
	if err := t.setWord(node+d.layout.PrevOffset(), record.Null); err != nil {
		return err
	}
	if err := t.setWord(node+d.layout.NextOffset(), head); err != nil {
		return err
	}
	if head != record.Null {
		return t.setWord(head+d.layout.PrevOffset(), node)
	}
	return nil
}

// Insert adds row to the table and returns its id. The row must carry
// every schema field; an "id" entry overrides the auto-increment.
func (t *Table) Insert(row Row) (int32, error) {
	d, err := t.directory()
	if err != nil {
		return 0, err
	}
	if err := validateRow(d.sig, row); err != nil {
		return 0, err
	}

	required, strs := scanStrings(d.sig, row)
	shift, err := t.ensureCapacity(required)
	if err != nil {
		return 0, err
	}
	if shift != 0 {
		if d, err = t.directory(); err != nil {
			return 0, err
		}
	}

	id, err := t.assignID(d, row)
	if err != nil {
		return 0, err
	}
	strPtrs, err := t.appendStrings(strs)
	if err != nil {
		return 0, err
	}
	slot, prev, err := t.allocateSlot(d)
	if err != nil {
		return 0, err
	}
	if err := t.writeRow(d, slot, id, row, strPtrs, prev, record.Null); err != nil {
		return 0, err
	}
	return id, nil
}
