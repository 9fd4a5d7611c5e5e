package table

import "errors"

// Sentinel errors returned by table and database operations.
var (
	// ErrSchemaViolation is returned for a value of the wrong kind, an
	// unknown field name, or an invalid schema declaration.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrNotFound is returned when a table does not exist.
	ErrNotFound = errors.New("table not found")

	// ErrAlreadyExists is returned when creating a table whose file exists.
	ErrAlreadyExists = errors.New("table already exists")

	// ErrCorruptPointer is returned when a stored pointer is neither the
	// null sentinel nor a valid offset for its region. The file must be
	// considered inconsistent.
	ErrCorruptPointer = errors.New("corrupt pointer")

	// ErrInvalidName is returned for table names that cannot map to a file.
	ErrInvalidName = errors.New("invalid table name")
)
