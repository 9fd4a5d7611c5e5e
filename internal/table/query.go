package table

import (
	"fmt"

	"github.com/MikhailWahib/uldb/internal/codec"
	"github.com/MikhailWahib/uldb/internal/record"
	"github.com/MikhailWahib/uldb/internal/schema"
)

// readValue reads column c of the record at node.
func (t *Table) readValue(d directory, node int64, c column) (Value, error) {
	w, err := t.word(node + d.layout.WordOffset(c.word))
	if err != nil {
		return Value{}, err
	}
	if c.typ == schema.Integer {
		return Int(int32(w)), nil
	}
	s, err := t.readString(d, w)
	if err != nil {
		return Value{}, fmt.Errorf("field %q of record %d: %w", c.name, node, err)
	}
	return Str(s), nil
}

func (t *Table) readColumns(d directory, node int64, cols []column) ([]Value, error) {
	vals := make([]Value, len(cols))
	for i, c := range cols {
		v, err := t.readValue(d, node, c)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// walk calls fn for every active record in list order until fn returns
// false. The forward link is read after fn returns.
func (t *Table) walk(d directory, fn func(node int64) (bool, error)) error {
	node, err := t.link(d, d.firstEntryPtr())
	if err != nil {
		return err
	}
	for steps := int64(0); node != record.Null; steps++ {
		if steps >= d.slotCount() {
			return fmt.Errorf("%w: cycle in active list", ErrCorruptPointer)
		}
		more, err := fn(node)
		if err != nil || !more {
			return err
		}
		if node, err = t.link(d, node+d.layout.NextOffset()); err != nil {
			return err
		}
	}
	return nil
}

// predicate resolves the condition field and checks the value kind.
func predicate(sig schema.Signature, field string, value Value) (column, error) {
	c, err := resolve(sig, field)
	if err != nil {
		return column{}, err
	}
	if err := c.check(value); err != nil {
		return column{}, err
	}
	return c, nil
}

// scan collects the projection of every record whose field equals value,
// stopping after limit matches when limit > 0.
func (t *Table) scan(field string, value Value, selected []string, limit int) ([]column, [][]Value, error) {
	d, err := t.directory()
	if err != nil {
		return nil, nil, err
	}
	cond, err := predicate(d.sig, field, value)
	if err != nil {
		return nil, nil, err
	}
	cols, err := resolveAll(d.sig, selected)
	if err != nil {
		return nil, nil, err
	}

	var results [][]Value
	err = t.walk(d, func(node int64) (bool, error) {
		v, err := t.readValue(d, node, cond)
		if err != nil {
			return false, err
		}
		if !v.Equal(value) {
			return true, nil
		}
		vals, err := t.readColumns(d, node, cols)
		if err != nil {
			return false, err
		}
		results = append(results, vals)
		return limit <= 0 || len(results) < limit, nil
	})
	return cols, results, err
}

func toRow(cols []column, vals []Value) Row {
	row := make(Row, len(cols))
	for i, c := range cols {
		row[c.name] = vals[i]
	}
	return row
}

// All returns every live row in list order.
func (t *Table) All() ([]Row, error) {
	d, err := t.directory()
	if err != nil {
		return nil, err
	}
	cols, err := resolveAll(d.sig, nil)
	if err != nil {
		return nil, err
	}
	var rows []Row
	err = t.walk(d, func(node int64) (bool, error) {
		vals, err := t.readColumns(d, node, cols)
		if err != nil {
			return false, err
		}
		rows = append(rows, toRow(cols, vals))
		return true, nil
	})
	return rows, err
}

// Find returns the first row whose field equals value.
func (t *Table) Find(field string, value Value) (Row, bool, error) {
	cols, res, err := t.scan(field, value, nil, 1)
	if err != nil || len(res) == 0 {
		return nil, false, err
	}
	return toRow(cols, res[0]), true, nil
}

// FindAll returns every row whose field equals value.
func (t *Table) FindAll(field string, value Value) ([]Row, error) {
	cols, res, err := t.scan(field, value, nil, 0)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, len(res))
	for i, vals := range res {
		rows[i] = toRow(cols, vals)
	}
	return rows, nil
}

// Select returns the selected fields, in the requested order, of the first
// row whose field equals value. No selected fields means all of them.
func (t *Table) Select(selected []string, field string, value Value) ([]Value, bool, error) {
	_, res, err := t.scan(field, value, selected, 1)
	if err != nil || len(res) == 0 {
		return nil, false, err
	}
	return res[0], true, nil
}

// SelectAll returns the selected fields of every row whose field equals value.
func (t *Table) SelectAll(selected []string, field string, value Value) ([][]Value, error) {
	_, res, err := t.scan(field, value, selected, 0)
	return res, err
}

// Update sets target to newValue on every row whose condField equals
// condValue and reports whether any row matched. A string that fits in the
// bytes of the current one is overwritten in place; a longer one is
// appended to the heap and the old bytes are abandoned.
func (t *Table) Update(condField string, condValue Value, target string, newValue Value) (bool, error) {
	d, err := t.directory()
	if err != nil {
		return false, err
	}
	cond, err := predicate(d.sig, condField, condValue)
	if err != nil {
		return false, err
	}
	tc, err := predicate(d.sig, target, newValue)
	if err != nil {
		return false, err
	}

	matched := false
	node, err := t.link(d, d.firstEntryPtr())
	if err != nil {
		return false, err
	}
	for steps := int64(0); node != record.Null; steps++ {
		if steps >= d.slotCount() {
			return matched, fmt.Errorf("%w: cycle in active list", ErrCorruptPointer)
		}
		v, err := t.readValue(d, node, cond)
		if err != nil {
			return matched, err
		}
		if v.Equal(condValue) {
			matched = true
			shift, err := t.updateField(d, node, tc, newValue)
			if err != nil {
				return matched, err
			}
			if shift != 0 {
				node += shift
				if d, err = t.directory(); err != nil {
					return matched, err
				}
			}
		}
		if node, err = t.link(d, node+d.layout.NextOffset()); err != nil {
			return matched, err
		}
	}
	return matched, nil
}

// updateField overwrites column c of the record at node. It returns the
// shift the record moved by if the string heap had to grow.
func (t *Table) updateField(d directory, node int64, c column, v Value) (int64, error) {
	pos := node + d.layout.WordOffset(c.word)
	if c.typ == schema.Integer {
		return 0, t.setWord(pos, int64(v.Int))
	}

	ptr, err := t.word(pos)
	if err != nil {
		return 0, err
	}
	current, err := t.readString(d, ptr)
	if err != nil {
		return 0, err
	}
	if len(v.Str) <= len(current) {
		return 0, t.f.WriteStringAt(v.Str, ptr)
	}

	shift, err := t.ensureCapacity(codec.EncodedLen(v.Str))
	if err != nil {
		return 0, err
	}
	ptrs, err := t.appendStrings([]string{v.Str})
	if err != nil {
		return 0, err
	}
	return shift, t.setWord(pos+shift, ptrs[0])
}

// Delete moves every row whose field equals value to the free list and
// reports whether any row matched. It does not compact.
func (t *Table) Delete(field string, value Value) (bool, error) {
	d, err := t.directory()
	if err != nil {
		return false, err
	}
	cond, err := predicate(d.sig, field, value)
	if err != nil {
		return false, err
	}

	matched := false
	node, err := t.link(d, d.firstEntryPtr())
	if err != nil {
		return false, err
	}
	for steps := int64(0); node != record.Null; steps++ {
		if steps >= d.slotCount() {
			return matched, fmt.Errorf("%w: cycle in active list", ErrCorruptPointer)
		}
		next, err := t.link(d, node+d.layout.NextOffset())
		if err != nil {
			return matched, err
		}
		v, err := t.readValue(d, node, cond)
		if err != nil {
			return matched, err
		}
		if v.Equal(value) {
			if err := t.unlink(d, node); err != nil {
				return matched, err
			}
			if err := t.recycle(d, node); err != nil {
				return matched, err
			}
			matched = true
		}
		node = next
	}
	return matched, nil
}
