package table

import (
	"fmt"
	"strconv"

	"github.com/MikhailWahib/uldb/internal/codec"
	"github.com/MikhailWahib/uldb/internal/record"
	"github.com/MikhailWahib/uldb/internal/schema"
)

// Value is a field value tagged with its kind.
type Value struct {
	Kind schema.FieldType
	Int  int32
	Str  string
}

// Int returns an INTEGER value.
func Int(v int32) Value {
	return Value{Kind: schema.Integer, Int: v}
}

// Str returns a STRING value.
func Str(s string) Value {
	return Value{Kind: schema.String, Str: s}
}

// Equal reports whether v and o have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind == schema.Integer {
		return v.Int == o.Int
	}
	return v.Str == o.Str
}

func (v Value) String() string {
	switch v.Kind {
	case schema.Integer:
		return strconv.FormatInt(int64(v.Int), 10)
	case schema.String:
		return v.Str
	}
	return "<invalid>"
}

// Row maps field names, including "id", to values.
type Row map[string]Value

// ID returns the row id, or 0 when the row has none.
func (r Row) ID() int32 {
	return r[schema.IDField].Int
}

// column is a resolved field: its word index inside a record and its type.
type column struct {
	name string
	word int
	typ  schema.FieldType
}

// resolve maps a field name to its column, "id" being word 0.
func resolve(sig schema.Signature, name string) (column, error) {
	if name == schema.IDField {
		return column{name: name, word: 0, typ: schema.Integer}, nil
	}
	i := sig.Index(name)
	if i < 0 {
		return column{}, fmt.Errorf("%w: unknown field %q", ErrSchemaViolation, name)
	}
	return column{name: name, word: i + 1, typ: sig[i].Type}, nil
}

// resolveAll resolves names in order; no names means id followed by every field.
func resolveAll(sig schema.Signature, names []string) ([]column, error) {
	if len(names) == 0 {
		names = append([]string{schema.IDField}, sig.Names()...)
	}
	cols := make([]column, 0, len(names))
	for _, name := range names {
		c, err := resolve(sig, name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// check verifies that v may be stored in or compared against c.
func (c column) check(v Value) error {
	if v.Kind != c.typ {
		return fmt.Errorf("%w: field %q is %s, got %s", ErrSchemaViolation, c.name, c.typ, v.Kind)
	}
	if v.Kind == schema.String && len(v.Str) > record.MaxStringLen {
		return fmt.Errorf("%w: field %q: %w", ErrSchemaViolation, c.name, codec.ErrStringTooLong)
	}
	return nil
}

// validateRow checks an incoming row against the schema: every field must
// be present with its declared kind, "id" is optional, nothing else is allowed.
func validateRow(sig schema.Signature, row Row) error {
	for name, v := range row {
		c, err := resolve(sig, name)
		if err != nil {
			return err
		}
		if err := c.check(v); err != nil {
			return err
		}
	}
	for _, f := range sig {
		if _, ok := row[f.Name]; !ok {
			return fmt.Errorf("%w: missing field %q", ErrSchemaViolation, f.Name)
		}
	}
	return nil
}

// ValidateSignature checks a schema declaration before a table is created.
func ValidateSignature(sig schema.Signature) error {
	if len(sig) == 0 {
		return fmt.Errorf("%w: a table needs at least one field", ErrSchemaViolation)
	}
	seen := make(map[string]bool, len(sig))
	for _, f := range sig {
		switch {
		case f.Name == "":
			return fmt.Errorf("%w: empty field name", ErrSchemaViolation)
		case f.Name == schema.IDField:
			return fmt.Errorf("%w: %q is reserved", ErrSchemaViolation, schema.IDField)
		case len(f.Name) > record.MaxStringLen:
			return fmt.Errorf("%w: field name too long", ErrSchemaViolation)
		case !f.Type.Valid():
			return fmt.Errorf("%w: field %q has unknown type %d", ErrSchemaViolation, f.Name, byte(f.Type))
		case seen[f.Name]:
			return fmt.Errorf("%w: duplicate field %q", ErrSchemaViolation, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}
