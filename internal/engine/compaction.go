package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/MikhailWahib/uldb/internal/diskmanager"
	"github.com/MikhailWahib/uldb/internal/schema"
	"github.com/MikhailWahib/uldb/internal/table"
)

// compactSuffix is appended to the table file name while its compacted copy
// is being written.
const compactSuffix = ".compact"

// compact rewrites the table holding only its live rows, in list order and
// with their ids. last_id keeps its value so ids never repeat. The copy is
// built next to the table file and renamed over it once complete, so a
// failure leaves the table untouched.
// Must be called with e.mu held.
func (e *Engine) compact(name string, t *table.Table) error {
	before, err := t.Stats()
	if err != nil {
		return e.fail(name, "compact", err)
	}
	sig, err := t.Schema()
	if err != nil {
		return e.fail(name, "compact", err)
	}
	rows, err := t.All()
	if err != nil {
		return e.fail(name, "compact", err)
	}

	path := e.tablePath(name)
	tmp := path + compactSuffix
	if err := e.dm.Delete(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale compaction file for %s: %w", name, err)
	}
	fh, err := e.dm.Open(tmp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create compaction file for %s: %w", name, err)
	}

	after, err := e.rebuild(name, fh, sig, rows, before.LastID)
	if err != nil {
		if rmErr := e.dm.Delete(tmp); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
		return e.fail(name, "compact", err)
	}
	if err := e.dm.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace table %s with its compacted copy: %w", name, err)
	}

	e.logger.Info("compacted table",
		"table", name,
		"rows", after.Rows,
		"slots_before", before.Slots,
		"slots_after", after.Slots,
		"bytes_before", before.FileSize,
		"bytes_after", after.FileSize,
	)
	return nil
}

// rebuild writes a fresh table holding rows to fh and returns its stats.
func (e *Engine) rebuild(name string, fh diskmanager.FileHandle, sig schema.Signature, rows []table.Row, lastID int32) (table.Stats, error) {
	nt, err := table.Create(fh, sig, e.cfg.InitialHeapSize, e.logger.With("table", name))
	if err != nil {
		return table.Stats{}, err
	}
	for _, row := range rows {
		if _, err := nt.Insert(row); err != nil {
			return table.Stats{}, fmt.Errorf("reinsert row %d: %w", row.ID(), err)
		}
	}
	if err := nt.SetLastID(lastID); err != nil {
		return table.Stats{}, err
	}
	if e.cfg.SyncWrites {
		if err := nt.Sync(); err != nil {
			return table.Stats{}, err
		}
	}
	return nt.Stats()
}
