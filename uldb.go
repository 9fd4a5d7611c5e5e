// Package uldb is a small single-writer table store backed by plain files.
//
// A database is a directory holding one file per table. Each table has a
// fixed ordered schema of INTEGER and STRING fields, rows get an
// auto-incremented id, and rows are looked up with a linear scan on a single
// field equality.
//
// Example usage:
//
//	db, err := uldb.Open("/path/to/database", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	err = db.CreateTable("courses",
//		uldb.Field{Name: "CODE", Type: uldb.Integer},
//		uldb.Field{Name: "NAME", Type: uldb.String},
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	id, err := db.Insert("courses", uldb.Row{"CODE": uldb.Int(1), "NAME": uldb.Str("Maths")})
//	if err != nil {
//		log.Printf("Insert failed: %v", err)
//	}
//
//	row, found, err := db.ReadOne("courses", "id", uldb.Int(id))
//	if err == nil && found {
//		fmt.Println(row["NAME"])
//	}
package uldb

import (
	"github.com/MikhailWahib/uldb/internal/config"
	"github.com/MikhailWahib/uldb/internal/engine"
	"github.com/MikhailWahib/uldb/internal/schema"
	"github.com/MikhailWahib/uldb/internal/table"
)

// Config is an alias for config.Config, re-exported for user convenience.
type Config = config.Config

// DefaultConfig returns a Config struct populated with default values. Re-exported for user convenience.
var DefaultConfig = config.DefaultConfig

// LoadConfig reads a YAML configuration file.
var LoadConfig = config.Load

type (
	// Field is a named, typed column of a table.
	Field = schema.Field
	// FieldType is the type of a field.
	FieldType = schema.FieldType
	// Signature is the ordered list of fields of a table.
	Signature = schema.Signature
	// Value is a field value tagged with its type.
	Value = table.Value
	// Row maps field names, including "id", to values.
	Row = table.Row
	// Stats describes the header of a table file.
	Stats = table.Stats
)

// Field types.
const (
	Integer = schema.Integer
	String  = schema.String
)

// Value constructors.
var (
	Int = table.Int
	Str = table.Str
)

// Errors returned by DB methods. Test with errors.Is.
var (
	ErrSchemaViolation = table.ErrSchemaViolation
	ErrNotFound        = table.ErrNotFound
	ErrAlreadyExists   = table.ErrAlreadyExists
	ErrCorruptPointer  = table.ErrCorruptPointer
	ErrInvalidName     = table.ErrInvalidName
	ErrBadMagic        = schema.ErrBadMagic
)

// DB is an open database directory. Its methods are safe to call from
// multiple goroutines; calls are serialized. Two processes must not open
// the same directory.
type DB struct {
	engine *engine.Engine
}

// Open opens or creates a uldb database at the specified path.
//
// The directory will be created if it doesn't exist. A nil cfg uses
// DefaultConfig.
func Open(path string, cfg *Config) (*DB, error) {
	e, err := engine.NewEngine(path, cfg)
	if err != nil {
		return nil, err
	}
	return &DB{engine: e}, nil
}

// Path returns the database directory.
func (db *DB) Path() string {
	return db.engine.Dir()
}

// CreateTable creates a table with the given ordered fields.
// Returns ErrAlreadyExists if the table exists.
func (db *DB) CreateTable(name string, fields ...Field) error {
	return db.engine.CreateTable(name, fields...)
}

// DeleteTable removes a table. Returns ErrNotFound if it does not exist.
func (db *DB) DeleteTable(name string) error {
	return db.engine.DeleteTable(name)
}

// ListTables returns the sorted table names.
func (db *DB) ListTables() ([]string, error) {
	return db.engine.ListTables()
}

// Schema returns the ordered fields of a table.
func (db *DB) Schema(name string) (Signature, error) {
	return db.engine.Schema(name)
}

// Insert adds a row holding every field of the table and returns its id.
// An "id" entry in row replaces the auto-incremented id.
func (db *DB) Insert(name string, row Row) (int32, error) {
	return db.engine.Insert(name, row)
}

// ReadAll returns every row in insertion order.
func (db *DB) ReadAll(name string) ([]Row, error) {
	return db.engine.ReadAll(name)
}

// ReadOne returns the first row whose field equals value.
func (db *DB) ReadOne(name, field string, value Value) (Row, bool, error) {
	return db.engine.ReadOne(name, field, value)
}

// ReadMany returns every row whose field equals value.
func (db *DB) ReadMany(name, field string, value Value) ([]Row, error) {
	return db.engine.ReadMany(name, field, value)
}

// SelectOne returns the selected fields, in order, of the first row whose
// field equals value. An empty selection means id followed by every field.
func (db *DB) SelectOne(name string, selected []string, field string, value Value) ([]Value, bool, error) {
	return db.engine.SelectOne(name, selected, field, value)
}

// SelectMany is SelectOne for every matching row.
func (db *DB) SelectMany(name string, selected []string, field string, value Value) ([][]Value, error) {
	return db.engine.SelectMany(name, selected, field, value)
}

// Update sets target to newValue on every row whose condField equals
// condValue. It reports whether any row matched.
func (db *DB) Update(name, condField string, condValue Value, target string, newValue Value) (bool, error) {
	return db.engine.Update(name, condField, condValue, target, newValue)
}

// Delete removes every row whose field equals value and reports whether
// any row matched.
func (db *DB) Delete(name, field string, value Value) (bool, error) {
	return db.engine.Delete(name, field, value)
}

// Size returns the number of rows of a table.
func (db *DB) Size(name string) (int, error) {
	return db.engine.Size(name)
}

// Stats returns the header fields of a table file.
func (db *DB) Stats(name string) (Stats, error) {
	return db.engine.Stats(name)
}

// Compact rewrites a table without its deleted slots.
func (db *DB) Compact(name string) error {
	return db.engine.Compact(name)
}

// Close closes all open table files. The DB must not be used afterwards.
func (db *DB) Close() error {
	return db.engine.Close()
}
