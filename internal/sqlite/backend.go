package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/neurodata/pkg/model"
	"github.com/mesh-intelligence/neurodata/pkg/schema"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// dbFile is the SQLite database in DataDir. It is rebuilt from the JSONL
// files on every Attach.
const dbFile = "neurodata.db"

// Backend is a model.Store backed by JSONL files and SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	registry *schema.Registry
	log      zerolog.Logger

	// dirty is set when on_close sync has writes not yet in the JSONL files.
	dirty bool
	now   func() time.Time
}

var _ model.Store = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Backend) {
		b.log = l
	}
}

// NewBackend creates a backend that types the collections it reads with
// reg. The backend is not attached; call Attach with a Config to
// initialize.
func NewBackend(reg *schema.Registry, opts ...Option) *Backend {
	b := &Backend{
		registry: reg,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach creates DataDir if needed, initializes a fresh SQLite schema, and
// loads the JSONL files into it. Returns ErrAlreadyAttached if already
// attached.
func (b *Backend) Attach(ctx context.Context, config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	// The database is derived state; start from an empty one.
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	for _, ddl := range append(append([]string{}, schemaDDL...), indexDDL...) {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	if err := initJSONLFiles(dataDir); err != nil {
		db.Close()
		return err
	}
	n, err := loadAllJSONL(ctx, db, dataDir, b.log)
	if err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	config.DataDir = dataDir
	b.config = config
	b.db = db
	b.dirty = false
	b.attached = true

	b.log.Debug().
		Str("data_dir", dataDir).
		Str("sync", config.GetSyncStrategy()).
		Int("records", n).
		Msg("store attached")
	return nil
}

// Detach flushes pending writes and closes the database. After Detach all
// operations return ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.dirty {
		if err := persistAllJSONL(context.Background(), b.db, b.config.DataDir); err != nil {
			return fmt.Errorf("flush pending writes: %w", err)
		}
		b.dirty = false
	}
	if err := b.db.Close(); err != nil {
		return err
	}
	b.db = nil
	b.attached = false

	b.log.Debug().Str("data_dir", b.config.DataDir).Msg("store detached")
	return nil
}

// Write stores the collection under its ID, replacing any earlier version.
func (b *Backend) Write(ctx context.Context, c *model.Collection) (model.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	snap := c.Snapshot()
	records, err := snapshotRecords(snap, b.now())
	if err != nil {
		return "", fmt.Errorf("writing collection %s: %w", snap.ID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return "", types.ErrStoreDetached
	}
	if !b.config.AllowExternalReferences {
		if ref, ok := firstExternal(snap); ok {
			return "", fmt.Errorf("%w: collection %s refers to %s in %s",
				types.ErrExternalReferenceUnsupported, snap.ID, ref.Target, ref.Collection)
		}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning write: %w", err)
	}
	defer tx.Rollback()

	if err := deleteCollection(ctx, tx, string(snap.ID)); err != nil {
		return "", err
	}
	for _, mapping := range jsonlTableMapping {
		recs := records[mapping.table]
		if len(recs) == 0 {
			continue
		}
		if _, err := insertRecords(ctx, tx, mapping.table, mapping.columns, recs, nil); err != nil {
			return "", fmt.Errorf("writing collection %s: %w", snap.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing collection %s: %w", snap.ID, err)
	}

	if err := b.syncLocked(ctx); err != nil {
		return "", err
	}

	b.log.Debug().
		Str("collection", string(snap.ID)).
		Int("containers", len(snap.Containers)).
		Msg("collection written")
	return model.Handle(snap.ID), nil
}

// Read loads the collection stored under h as a new, independent
// collection.
func (b *Backend) Read(ctx context.Context, h model.Handle) (*model.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	if !b.attached {
		b.mu.RUnlock()
		return nil, types.ErrStoreDetached
	}
	snap, err := readSnapshot(ctx, b.db, b.registry, string(h))
	b.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	c, err := model.Restore(b.registry, snap)
	if err != nil {
		return nil, fmt.Errorf("reading collection %s: %w", h, err)
	}
	b.log.Debug().
		Str("collection", string(h)).
		Int("containers", len(snap.Containers)).
		Msg("collection read")
	return c, nil
}

// Delete removes the collection stored under h.
func (b *Backend) Delete(ctx context.Context, h model.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	var exists int
	if err := b.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM collections WHERE collection_id = ?", string(h)).Scan(&exists); err != nil {
		return fmt.Errorf("looking up %s: %w", h, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", types.ErrHandleNotFound, h)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()
	if err := deleteCollection(ctx, tx, string(h)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete of %s: %w", h, err)
	}
	return b.syncLocked(ctx)
}

// List returns the handles of every stored collection.
func (b *Backend) List(ctx context.Context) ([]model.Handle, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	rows, err := b.db.QueryContext(ctx, "SELECT collection_id FROM collections ORDER BY collection_id")
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var out []model.Handle
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning collection id: %w", err)
		}
		out = append(out, model.Handle(id))
	}
	return out, rows.Err()
}

// syncLocked persists the JSONL files now or defers them to Detach,
// depending on the sync strategy. The caller must hold b.mu.
func (b *Backend) syncLocked(ctx context.Context) error {
	if b.config.GetSyncStrategy() == types.SyncOnClose {
		b.dirty = true
		return nil
	}
	if err := persistAllJSONL(ctx, b.db, b.config.DataDir); err != nil {
		// The database is ahead of the files; the next Attach reloads
		// from the files, which still hold the previous state.
		return fmt.Errorf("persisting JSONL: %w", err)
	}
	return nil
}

func deleteCollection(ctx context.Context, tx *sql.Tx, id string) error {
	for _, table := range collectionTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE collection_id = ?", id); err != nil {
			return fmt.Errorf("clearing %s for %s: %w", table, id, err)
		}
	}
	return nil
}

// firstExternal returns a reference or region in s that points outside
// the collection.
func firstExternal(s *model.Snapshot) (model.Reference, bool) {
	for _, cs := range s.Containers {
		for _, ref := range cs.References {
			if ref.Collection != s.ID {
				return ref, true
			}
		}
		for _, r := range cs.Regions {
			if r.Collection != s.ID {
				return model.Reference{Collection: r.Collection, Target: r.Table}, true
			}
		}
		if cs.Table == nil {
			continue
		}
		for _, col := range cs.Table.Columns {
			for _, v := range col.Values {
				if ref, ok := v.(model.Reference); ok && ref.Collection != s.ID {
					return ref, true
				}
			}
		}
	}
	return model.Reference{}, false
}
