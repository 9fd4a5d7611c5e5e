package uldb_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/MikhailWahib/uldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *uldb.DB {
	t.Helper()
	db, err := uldb.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDB_Basic(t *testing.T) {
	db := openDB(t)

	require.NoError(t, db.CreateTable("people",
		uldb.Field{Name: "NAME", Type: uldb.String},
		uldb.Field{Name: "AGE", Type: uldb.Integer},
	))

	id, err := db.Insert("people", uldb.Row{"NAME": uldb.Str("Ada"), "AGE": uldb.Int(36)})
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)

	row, found, err := db.ReadOne("people", "id", uldb.Int(id))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Ada", row["NAME"].Str)
	assert.Equal(t, int32(36), row["AGE"].Int)

	_, found, err = db.ReadOne("people", "NAME", uldb.Str("Grace"))
	require.NoError(t, err)
	assert.False(t, found)

	vals, err := db.SelectMany("people", []string{"AGE"}, "NAME", uldb.Str("Ada"))
	require.NoError(t, err)
	assert.Equal(t, [][]uldb.Value{{uldb.Int(36)}}, vals)

	names, err := db.ListTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, names)

	sig, err := db.Schema("people")
	require.NoError(t, err)
	assert.Equal(t, []string{"NAME", "AGE"}, sig.Names())
}

func TestDB_Errors(t *testing.T) {
	db := openDB(t)

	err := db.DeleteTable("nope")
	assert.True(t, errors.Is(err, uldb.ErrNotFound))

	require.NoError(t, db.CreateTable("t", uldb.Field{Name: "A", Type: uldb.Integer}))
	assert.ErrorIs(t, db.CreateTable("t", uldb.Field{Name: "A", Type: uldb.Integer}), uldb.ErrAlreadyExists)
	assert.ErrorIs(t, db.CreateTable("../t", uldb.Field{Name: "A", Type: uldb.Integer}), uldb.ErrInvalidName)

	_, err = db.Insert("t", uldb.Row{"A": uldb.Str("x")})
	assert.ErrorIs(t, err, uldb.ErrSchemaViolation)

	_, err = uldb.Open(t.TempDir(), &uldb.Config{InitialHeapSize: 10})
	assert.Error(t, err)
}

func TestDB_ConcurrentInserts(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.CreateTable("log", uldb.Field{Name: "MSG", Type: uldb.String}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := db.Insert("log", uldb.Row{"MSG": uldb.Str("message")})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	n, err := db.Size("log")
	require.NoError(t, err)
	assert.Equal(t, 200, n)

	st, err := db.Stats("log")
	require.NoError(t, err)
	assert.Equal(t, int32(200), st.LastID)
}
