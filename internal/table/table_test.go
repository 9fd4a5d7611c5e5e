package table_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MikhailWahib/uldb/internal/diskmanager/mockdm"
	"github.com/MikhailWahib/uldb/internal/schema"
	"github.com/MikhailWahib/uldb/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var courses = schema.Signature{
	{Name: "CODE", Type: schema.Integer},
	{Name: "NAME", Type: schema.String},
	{Name: "CREDITS", Type: schema.Integer},
}

func course(code int32, name string, credits int32) table.Row {
	return table.Row{
		"CODE":    table.Int(code),
		"NAME":    table.Str(name),
		"CREDITS": table.Int(credits),
	}
}

func withID(id int32, r table.Row) table.Row {
	r["id"] = table.Int(id)
	return r
}

func newCourses(t *testing.T) (*table.Table, *mockdm.MockFile) {
	t.Helper()
	mf := mockdm.NewMockFile("courses.table")
	tbl, err := table.Create(mf, courses, table.DefaultHeapSize, nil)
	require.NoError(t, err)
	return tbl, mf
}

func insertAll(t *testing.T, tbl *table.Table, rows ...table.Row) {
	t.Helper()
	for _, r := range rows {
		_, err := tbl.Insert(r)
		require.NoError(t, err)
	}
}

func ids(t *testing.T, tbl *table.Table) []int32 {
	t.Helper()
	rows, err := tbl.All()
	require.NoError(t, err)
	out := make([]int32, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID())
	}
	return out
}

func stats(t *testing.T, tbl *table.Table) table.Stats {
	t.Helper()
	st, err := tbl.Stats()
	require.NoError(t, err)
	return st
}

func TestCreate_Layout(t *testing.T) {
	tbl, mf := newCourses(t)

	// schema 32 + heap header 12 + heap 16 + entry header 20
	assert.Len(t, mf.Bytes(), 80)

	st := stats(t, tbl)
	assert.Equal(t, int64(44), st.HeapStart)
	assert.Equal(t, int64(16), st.HeapSize)
	assert.Equal(t, st.HeapStart, st.FreeStringSpace)
	assert.Equal(t, int64(60), st.EntryBuffer)
	assert.Equal(t, int64(-1), st.FirstEntry)
	assert.Equal(t, int64(-1), st.LastEntry)
	assert.Equal(t, int64(-1), st.FirstDeleted)
	assert.Equal(t, int64(24), st.RecordSize)
	assert.Zero(t, st.Rows)
	assert.Zero(t, st.Slots)

	sig, err := tbl.Schema()
	require.NoError(t, err)
	assert.Equal(t, courses, sig)
}

func TestCreate_InvalidSchema(t *testing.T) {
	cases := map[string]schema.Signature{
		"empty":     {},
		"reserved":  {{Name: "id", Type: schema.Integer}},
		"duplicate": {{Name: "A", Type: schema.Integer}, {Name: "A", Type: schema.String}},
		"no name":   {{Name: "", Type: schema.Integer}},
		"bad type":  {{Name: "A", Type: 3}},
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := table.Create(mockdm.NewMockFile("x.table"), sig, table.DefaultHeapSize, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, table.ErrSchemaViolation))
		})
	}

	_, err := table.Create(mockdm.NewMockFile("x.table"), courses, 24, nil)
	require.Error(t, err, "heap size must be a power of two")
}

func TestOpen(t *testing.T) {
	_, mf := newCourses(t)

	tbl, err := table.Open(mf, nil)
	require.NoError(t, err)
	size, err := tbl.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	junk := mockdm.NewMockFile("junk.table")
	_, err = junk.WriteAt([]byte("not a table file at all"), 0)
	require.NoError(t, err)
	_, err = table.Open(junk, nil)
	assert.True(t, errors.Is(err, schema.ErrBadMagic))
}

func TestRoundTrip(t *testing.T) {
	tbl, _ := newCourses(t)
	in := []table.Row{
		course(101, "Algo", 10),
		course(102, "OS", 5),
		course(103, "Réseaux", 7),
	}
	for i, r := range in {
		id, err := tbl.Insert(r)
		require.NoError(t, err)
		assert.Equal(t, int32(i+1), id)
	}

	rows, err := tbl.All()
	require.NoError(t, err)
	require.Len(t, rows, len(in))
	for i, r := range rows {
		assert.Equal(t, withID(int32(i+1), in[i]), r)
	}

	size, err := tbl.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestScenario_CoursesTable(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl, course(101, "Algo", 10), course(102, "OS", 5))

	row, ok, err := tbl.Find("CREDITS", table.Int(10))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, withID(1, course(101, "Algo", 10)), row)

	deleted, err := tbl.Delete("CREDITS", table.Int(5))
	require.NoError(t, err)
	assert.True(t, deleted)

	rows, err := tbl.All()
	require.NoError(t, err)
	assert.Equal(t, []table.Row{withID(1, course(101, "Algo", 10))}, rows)
}

func TestFind_NoMatchIsNotAnError(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl, course(101, "Algo", 10))

	_, ok, err := tbl.Find("NAME", table.Str("nope"))
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := tbl.FindAll("CODE", table.Int(1))
	require.NoError(t, err)
	assert.Empty(t, rows)

	deleted, err := tbl.Delete("id", table.Int(99))
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestFindAll_And_Select(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl,
		course(101, "Algo", 10),
		course(102, "OS", 5),
		course(103, "Compil", 5),
	)

	rows, err := tbl.FindAll("CREDITS", table.Int(5))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "OS", rows[0]["NAME"].Str)
	assert.Equal(t, "Compil", rows[1]["NAME"].Str)

	vals, ok, err := tbl.Select([]string{"NAME", "id"}, "CODE", table.Int(102))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []table.Value{table.Str("OS"), table.Int(2)}, vals)

	all, err := tbl.SelectAll([]string{"CODE"}, "CREDITS", table.Int(5))
	require.NoError(t, err)
	assert.Equal(t, [][]table.Value{{table.Int(102)}, {table.Int(103)}}, all)

	// No selection means id followed by every field
	vals, ok, err = tbl.Select(nil, "NAME", table.Str("Algo"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []table.Value{table.Int(1), table.Int(101), table.Str("Algo"), table.Int(10)}, vals)
}

func TestSchemaViolations(t *testing.T) {
	tbl, mf := newCourses(t)
	before := mf.Bytes()

	unknown := course(1, "x", 1)
	unknown["X"] = table.Int(0)
	bad := []table.Row{
		{"CODE": table.Int(1), "NAME": table.Str("x")},
		{"CODE": table.Str("1"), "NAME": table.Str("x"), "CREDITS": table.Int(1)},
		unknown,
		withID(1, table.Row{"CODE": table.Int(1), "NAME": table.Str("x"), "CREDITS": table.Str("1")}),
		course(1, strings.Repeat("x", 70000), 1),
	}
	for _, r := range bad {
		_, err := tbl.Insert(r)
		require.Error(t, err)
		assert.True(t, errors.Is(err, table.ErrSchemaViolation), err.Error())
	}
	assert.Equal(t, before, mf.Bytes(), "rejected inserts must not touch the file")

	// Comparing across kinds is a usage error even on an empty table
	_, _, err := tbl.Find("CREDITS", table.Str("10"))
	assert.True(t, errors.Is(err, table.ErrSchemaViolation))

	_, err = tbl.FindAll("MISSING", table.Int(1))
	assert.True(t, errors.Is(err, table.ErrSchemaViolation))

	_, _, err = tbl.Select([]string{"NAME", "MISSING"}, "CODE", table.Int(1))
	assert.True(t, errors.Is(err, table.ErrSchemaViolation))

	_, err = tbl.Update("CODE", table.Int(1), "NAME", table.Int(3))
	assert.True(t, errors.Is(err, table.ErrSchemaViolation))

	_, err = tbl.Delete("id", table.Str("1"))
	assert.True(t, errors.Is(err, table.ErrSchemaViolation))
}

func TestExplicitID(t *testing.T) {
	tbl, _ := newCourses(t)

	id, err := tbl.Insert(withID(10, course(101, "Algo", 10)))
	require.NoError(t, err)
	assert.Equal(t, int32(10), id)

	id, err = tbl.Insert(course(102, "OS", 5))
	require.NoError(t, err)
	assert.Equal(t, int32(11), id)

	assert.Equal(t, []int32{10, 11}, ids(t, tbl))

	require.NoError(t, tbl.SetLastID(40))
	id, err = tbl.Insert(course(103, "DB", 5))
	require.NoError(t, err)
	assert.Equal(t, int32(41), id)
}

func TestHeapGrowth_KeepsExistingStrings(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl, course(101, "Algo", 10), course(102, "OS", 5))
	before := stats(t, tbl)
	assert.Equal(t, int64(16), before.HeapSize)

	long := strings.Repeat("L", 100)
	_, err := tbl.Insert(course(103, long, 3))
	require.NoError(t, err)

	// 10 bytes used + 102 required: 16 -> 32 -> 64 -> 128
	after := stats(t, tbl)
	assert.Equal(t, int64(128), after.HeapSize)
	shift := after.HeapSize - before.HeapSize
	assert.Equal(t, before.EntryBuffer+shift, after.EntryBuffer)
	assert.Equal(t, before.FirstEntry+shift, after.FirstEntry)
	assert.Equal(t, before.HeapStart+112, after.FreeStringSpace)

	rows, err := tbl.All()
	require.NoError(t, err)
	assert.Equal(t, []table.Row{
		withID(1, course(101, "Algo", 10)),
		withID(2, course(102, "OS", 5)),
		withID(3, course(103, long, 3)),
	}, rows)
}

func TestHeapGrowth_PatchesFreeList(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl, course(101, "A", 1), course(102, "B", 2), course(103, "C", 3))

	deleted, err := tbl.Delete("id", table.Int(2))
	require.NoError(t, err)
	require.True(t, deleted)
	freed := stats(t, tbl).FirstDeleted

	// Forces growth while a node sits on the free list
	id, err := tbl.Insert(course(104, strings.Repeat("D", 40), 4))
	require.NoError(t, err)
	assert.Equal(t, int32(4), id)

	st := stats(t, tbl)
	shift := st.HeapSize - 16
	require.Positive(t, shift)
	assert.Equal(t, freed+shift, st.LastEntry, "the shifted free slot is reused")
	assert.Equal(t, int64(-1), st.FirstDeleted)
	assert.Equal(t, int64(3), st.Slots)

	assert.Equal(t, []int32{1, 3, 4}, ids(t, tbl))
}

func TestRecycle_ReusesDeletedSlot(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl, course(101, "A", 1), course(102, "B", 2), course(103, "C", 3))
	start := stats(t, tbl)
	slot2 := start.EntryBuffer + 20 + start.RecordSize

	deleted, err := tbl.Delete("id", table.Int(2))
	require.NoError(t, err)
	require.True(t, deleted)

	st := stats(t, tbl)
	assert.Equal(t, slot2, st.FirstDeleted)
	assert.Equal(t, 2, st.Rows)

	_, err = tbl.Insert(course(104, "D", 4))
	require.NoError(t, err)

	st = stats(t, tbl)
	assert.Equal(t, slot2, st.LastEntry)
	assert.Equal(t, int64(-1), st.FirstDeleted)
	assert.Equal(t, 3, st.Rows)
	assert.Equal(t, int64(3), st.Slots)
	assert.Equal(t, start.FileSize, st.FileSize)

	assert.Equal(t, []int32{1, 3, 4}, ids(t, tbl))
}

func TestRecycle_FreeListOrder(t *testing.T) {
	tbl, _ := newCourses(t)
	// Empty names keep every insert inside the initial heap
	insertAll(t, tbl,
		course(1, "", 1), course(2, "", 2), course(3, "", 3), course(4, "", 4))
	st := stats(t, tbl)
	slot := func(i int64) int64 { return st.EntryBuffer + 20 + i*st.RecordSize }

	_, err := tbl.Delete("CODE", table.Int(1))
	require.NoError(t, err)
	_, err = tbl.Delete("CODE", table.Int(3))
	require.NoError(t, err)

	// Last deleted is reused first
	assert.Equal(t, slot(2), stats(t, tbl).FirstDeleted)

	_, err = tbl.Insert(course(5, "", 5))
	require.NoError(t, err)
	assert.Equal(t, slot(2), stats(t, tbl).LastEntry)
	assert.Equal(t, slot(0), stats(t, tbl).FirstDeleted)

	_, err = tbl.Insert(course(6, "", 6))
	require.NoError(t, err)
	assert.Equal(t, slot(0), stats(t, tbl).LastEntry)
	assert.Equal(t, int64(-1), stats(t, tbl).FirstDeleted)

	_, err = tbl.Insert(course(7, "", 7))
	require.NoError(t, err)
	assert.Equal(t, slot(4), stats(t, tbl).LastEntry)

	assert.Equal(t, []int32{2, 4, 5, 6, 7}, ids(t, tbl))
}

func TestDelete_AllThenInsert(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl, course(1, "a", 5), course(2, "b", 5), course(3, "c", 5))

	deleted, err := tbl.Delete("CREDITS", table.Int(5))
	require.NoError(t, err)
	assert.True(t, deleted)

	st := stats(t, tbl)
	assert.Zero(t, st.Rows)
	assert.Equal(t, int64(-1), st.FirstEntry)
	assert.Equal(t, int64(-1), st.LastEntry)
	assert.Empty(t, ids(t, tbl))

	_, err = tbl.Insert(course(4, "d", 1))
	require.NoError(t, err)
	st = stats(t, tbl)
	assert.Equal(t, st.FirstEntry, st.LastEntry)
	assert.Equal(t, []int32{4}, ids(t, tbl))
}

func TestDelete_HeadAndTail(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl, course(1, "a", 1), course(2, "b", 2), course(3, "c", 3))

	_, err := tbl.Delete("id", table.Int(1))
	require.NoError(t, err)
	_, err = tbl.Delete("id", table.Int(3))
	require.NoError(t, err)

	st := stats(t, tbl)
	assert.Equal(t, st.FirstEntry, st.LastEntry)
	assert.Equal(t, []int32{2}, ids(t, tbl))

	_, err = tbl.Insert(course(4, "d", 4))
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 4}, ids(t, tbl))
}

func TestUpdate_InPlaceAndReallocate(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl, course(101, "Algo", 10), course(102, "OS", 5))
	free := stats(t, tbl).FreeStringSpace

	updated, err := tbl.Update("CODE", table.Int(101), "NAME", table.Str("Alg"))
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, free, stats(t, tbl).FreeStringSpace, "shorter string is written in place")

	row, ok, err := tbl.Find("id", table.Int(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alg", row["NAME"].Str)

	// 10 used + 12 needed overflows the 16-byte heap
	updated, err = tbl.Update("CODE", table.Int(101), "NAME", table.Str("Algorithms"))
	require.NoError(t, err)
	assert.True(t, updated)
	st := stats(t, tbl)
	assert.Equal(t, free+12, st.FreeStringSpace)
	assert.Equal(t, int64(32), st.HeapSize)

	rows, err := tbl.All()
	require.NoError(t, err)
	assert.Equal(t, []table.Row{
		withID(1, course(101, "Algorithms", 10)),
		withID(2, course(102, "OS", 5)),
	}, rows)
}

func TestUpdate_ManyRowsWithGrowth(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl, course(1, "a", 5), course(2, "b", 6), course(3, "c", 5))

	long := strings.Repeat("z", 30)
	updated, err := tbl.Update("CREDITS", table.Int(5), "NAME", table.Str(long))
	require.NoError(t, err)
	assert.True(t, updated)

	rows, err := tbl.All()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, long, rows[0]["NAME"].Str)
	assert.Equal(t, "b", rows[1]["NAME"].Str)
	assert.Equal(t, long, rows[2]["NAME"].Str)
}

func TestUpdate_Integer(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl, course(101, "Algo", 10), course(102, "OS", 5))

	updated, err := tbl.Update("NAME", table.Str("OS"), "CREDITS", table.Int(6))
	require.NoError(t, err)
	assert.True(t, updated)

	vals, ok, err := tbl.Select([]string{"CREDITS"}, "CODE", table.Int(102))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []table.Value{table.Int(6)}, vals)

	updated, err = tbl.Update("NAME", table.Str("none"), "CREDITS", table.Int(1))
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestNeedsCompaction(t *testing.T) {
	tbl, _ := newCourses(t)
	insertAll(t, tbl, course(101, "Algo", 10), course(102, "OS", 5))

	need, err := tbl.NeedsCompaction(2)
	require.NoError(t, err)
	assert.False(t, need)

	_, err = tbl.Delete("CODE", table.Int(102))
	require.NoError(t, err)

	need, err = tbl.NeedsCompaction(2)
	require.NoError(t, err)
	assert.True(t, need)

	need, err = tbl.NeedsCompaction(3)
	require.NoError(t, err)
	assert.False(t, need)

	need, err = tbl.NeedsCompaction(0)
	require.NoError(t, err)
	assert.False(t, need)
}

func TestCorruptPointer(t *testing.T) {
	tbl, mf := newCourses(t)
	insertAll(t, tbl, course(101, "Algo", 10))
	st := stats(t, tbl)

	// first_entry and last_entry pointing in the middle of a record
	bad := []byte{byte(st.FirstEntry + 3), 0, 0, 0}
	_, err := mf.WriteAt(bad, st.EntryBuffer+8)
	require.NoError(t, err)
	_, err = mf.WriteAt(bad, st.EntryBuffer+12)
	require.NoError(t, err)

	_, err = tbl.All()
	assert.True(t, errors.Is(err, table.ErrCorruptPointer))

	_, err = tbl.Insert(course(102, "OS", 5))
	assert.True(t, errors.Is(err, table.ErrCorruptPointer))
}

func TestCorruptPointer_Cycle(t *testing.T) {
	tbl, mf := newCourses(t)
	insertAll(t, tbl, course(101, "Algo", 10), course(102, "OS", 5))
	st := stats(t, tbl)

	// Point the tail's forward link back at the head
	next := st.LastEntry + st.RecordSize - 4
	_, err := mf.WriteAt([]byte{byte(st.FirstEntry), 0, 0, 0}, next)
	require.NoError(t, err)

	_, err = tbl.All()
	assert.True(t, errors.Is(err, table.ErrCorruptPointer))
}

func TestCorruptPointer_StringLength(t *testing.T) {
	tbl, mf := newCourses(t)
	insertAll(t, tbl, course(101, "Algo", 10))
	st := stats(t, tbl)

	// Length prefix of "Algo" now claims the bytes of the entry region
	_, err := mf.WriteAt([]byte{0xFF, 0xFF}, st.HeapStart)
	require.NoError(t, err)

	_, err = tbl.All()
	assert.True(t, errors.Is(err, table.ErrCorruptPointer))

	_, _, err = tbl.Select([]string{"CODE"}, "NAME", table.Str("Algo"))
	assert.True(t, errors.Is(err, table.ErrCorruptPointer))
}
