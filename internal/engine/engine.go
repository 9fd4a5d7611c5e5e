// Package engine manages a database directory: one table file per table,
// the table lifecycle and compaction after deletes.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MikhailWahib/uldb/internal/config"
	"github.com/MikhailWahib/uldb/internal/diskmanager"
	"github.com/MikhailWahib/uldb/internal/schema"
	"github.com/MikhailWahib/uldb/internal/table"
)

// Engine owns the table files of one database directory. All methods are
// serialized by a single mutex.
type Engine struct {
	mu      sync.Mutex
	dataDir string
	dm      diskmanager.DiskManager
	cfg     *config.Config
	logger  *slog.Logger
}

// NewEngine opens the database directory dataDir, creating it if needed.
// A nil cfg uses the defaults.
func NewEngine(dataDir string, cfg *config.Config) (*Engine, error) {
	return newEngine(dataDir, cfg, diskmanager.NewDiskManager())
}

func newEngine(dataDir string, cfg *config.Config, dm diskmanager.DiskManager) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	return &Engine{
		dataDir: dataDir,
		dm:      dm,
		cfg:     cfg,
		logger:  cfg.Logger.With("db", dataDir),
	}, nil
}

// Dir returns the database directory.
func (e *Engine) Dir() string {
	return e.dataDir
}

func (e *Engine) tablePath(name string) string {
	return filepath.Join(e.dataDir, name+e.cfg.TableExtension)
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, "./\\\x00") {
		return fmt.Errorf("%w: %q", table.ErrInvalidName, name)
	}
	return nil
}

// open returns the table called name.
func (e *Engine) open(name string) (*table.Table, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	fh, err := e.dm.Open(e.tablePath(name), os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", table.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open table %s: %w", name, err)
	}
	t, err := table.Open(fh, e.logger.With("table", name))
	if err != nil {
		return nil, e.fail(name, "open", err)
	}
	return t, nil
}

// fail adds context to err and logs the failures that leave a table file
// inconsistent.
func (e *Engine) fail(name, op string, err error) error {
	if errors.Is(err, table.ErrCorruptPointer) || errors.Is(err, schema.ErrBadMagic) {
		e.logger.Error("table file is inconsistent", "table", name, "op", op, "err", err)
	}
	return fmt.Errorf("%s %s: %w", op, name, err)
}

// mutate runs fn on the table and syncs the file afterwards when
// SyncWrites is set.
func (e *Engine) mutate(name, op string, fn func(t *table.Table) error) error {
	t, err := e.open(name)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return e.fail(name, op, err)
	}
	if e.cfg.SyncWrites {
		if err := t.Sync(); err != nil {
			return fmt.Errorf("failed to sync table %s: %w", name, err)
		}
	}
	return nil
}

// CreateTable creates an empty table with the given ordered fields.
func (e *Engine) CreateTable(name string, fields ...schema.Field) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validName(name); err != nil {
		return err
	}
	sig := schema.Signature(fields)
	if err := table.ValidateSignature(sig); err != nil {
		return err
	}
	if err := e.create(name, sig); err != nil {
		return err
	}
	e.logger.Info("created table", "table", name, "fields", sig.Names())
	return nil
}

// create writes a new table file. The file must not exist.
func (e *Engine) create(name string, sig schema.Signature) error {
	path := e.tablePath(name)
	fh, err := e.dm.Open(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", table.ErrAlreadyExists, name)
		}
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	if _, err := table.Create(fh, sig, e.cfg.InitialHeapSize, e.logger.With("table", name)); err != nil {
		if rmErr := e.dm.Delete(path); rmErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to remove partial table file: %w", rmErr))
		}
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	if e.cfg.SyncWrites {
		return fh.Sync()
	}
	return nil
}

// DeleteTable removes the table file.
func (e *Engine) DeleteTable(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validName(name); err != nil {
		return err
	}
	if err := e.dm.Delete(e.tablePath(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", table.ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete table %s: %w", name, err)
	}
	e.logger.Info("deleted table", "table", name)
	return nil
}

// ListTables returns the sorted names of the tables in the directory.
func (e *Engine) ListTables() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	files, err := e.dm.List(e.dataDir, e.cfg.TableExtension)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(f, e.cfg.TableExtension))
	}
	return names, nil
}

// Schema returns the ordered fields of a table.
func (e *Engine) Schema(name string) (schema.Signature, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.open(name)
	if err != nil {
		return nil, err
	}
	sig, err := t.Schema()
	if err != nil {
		return nil, e.fail(name, "schema", err)
	}
	return sig, nil
}

// Size returns the number of rows of a table.
func (e *Engine) Size(name string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.open(name)
	if err != nil {
		return 0, err
	}
	n, err := t.Size()
	if err != nil {
		return 0, e.fail(name, "size", err)
	}
	return n, nil
}

// Stats returns the header fields of a table file.
func (e *Engine) Stats(name string) (table.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.open(name)
	if err != nil {
		return table.Stats{}, err
	}
	st, err := t.Stats()
	if err != nil {
		return table.Stats{}, e.fail(name, "stats", err)
	}
	return st, nil
}

// Insert adds a row and returns its id.
func (e *Engine) Insert(name string, row table.Row) (int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var id int32
	err := e.mutate(name, "insert into", func(t *table.Table) error {
		var err error
		id, err = t.Insert(row)
		return err
	})
	return id, err
}

// ReadAll returns every row of a table in insertion order.
func (e *Engine) ReadAll(name string) ([]table.Row, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.open(name)
	if err != nil {
		return nil, err
	}
	rows, err := t.All()
	if err != nil {
		return nil, e.fail(name, "read", err)
	}
	return rows, nil
}

// ReadOne returns the first row whose field equals value.
func (e *Engine) ReadOne(name, field string, value table.Value) (table.Row, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.open(name)
	if err != nil {
		return nil, false, err
	}
	row, ok, err := t.Find(field, value)
	if err != nil {
		return nil, false, e.fail(name, "read", err)
	}
	return row, ok, nil
}

// ReadMany returns every row whose field equals value.
func (e *Engine) ReadMany(name, field string, value table.Value) ([]table.Row, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.open(name)
	if err != nil {
		return nil, err
	}
	rows, err := t.FindAll(field, value)
	if err != nil {
		return nil, e.fail(name, "read", err)
	}
	return rows, nil
}

// SelectOne returns the selected fields of the first row whose field
// equals value.
func (e *Engine) SelectOne(name string, selected []string, field string, value table.Value) ([]table.Value, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.open(name)
	if err != nil {
		return nil, false, err
	}
	vals, ok, err := t.Select(selected, field, value)
	if err != nil {
		return nil, false, e.fail(name, "select from", err)
	}
	return vals, ok, nil
}

// SelectMany returns the selected fields of every row whose field equals value.
func (e *Engine) SelectMany(name string, selected []string, field string, value table.Value) ([][]table.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.open(name)
	if err != nil {
		return nil, err
	}
	res, err := t.SelectAll(selected, field, value)
	if err != nil {
		return nil, e.fail(name, "select from", err)
	}
	return res, nil
}

// Update sets target to newValue on every row whose condField equals
// condValue and reports whether any row matched.
func (e *Engine) Update(name, condField string, condValue table.Value, target string, newValue table.Value) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var matched bool
	err := e.mutate(name, "update", func(t *table.Table) error {
		var err error
		matched, err = t.Update(condField, condValue, target, newValue)
		return err
	})
	return matched, err
}

// Delete removes every row whose field equals value and reports whether
// any row matched. The table is compacted afterwards when it holds too
// many free slots.
func (e *Engine) Delete(name, field string, value table.Value) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		matched bool
		compact bool
		t       *table.Table
	)
	err := e.mutate(name, "delete from", func(tbl *table.Table) error {
		var err error
		if matched, err = tbl.Delete(field, value); err != nil || !matched {
			return err
		}
		t = tbl
		compact, err = tbl.NeedsCompaction(e.cfg.EffectiveRatio())
		return err
	})
	if err != nil || !compact {
		return matched, err
	}
	if err := e.compact(name, t); err != nil {
		return matched, err
	}
	return matched, nil
}

// Compact rewrites a table without its free slots.
func (e *Engine) Compact(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.open(name)
	if err != nil {
		return err
	}
	return e.compact(name, t)
}

// Close closes every open table file.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.dm.CloseAll()
}
