package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/migrations"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/dmitrijs2005/daybook/internal/filex"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/gofrs/flock"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the newest schema this build understands.
const SchemaVersion = models.SchemaVersion

type Options struct {
	MaxAttempts   int
	ClearAttempts int
	BaseDelay     time.Duration
	LockTimeout   time.Duration
	WatchSchema   bool
	Collections   []models.Collection
	Logger        logging.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:   3,
		ClearAttempts: 2,
		BaseDelay:     50 * time.Millisecond,
		LockTimeout:   10 * time.Second,
		WatchSchema:   true,
		Collections:   models.Collections,
	}
}

// Handle is the process-wide store connection.
type Handle struct {
	path        string
	opts        Options
	log         logging.Logger
	collections map[string]models.Collection
	openDB      func(ctx context.Context, path string) (*sql.DB, error)

	mu      sync.Mutex
	db      *sql.DB
	closed  bool
	stale   atomic.Bool
	watcher *schemaWatcher
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer per process; concurrent callers queue on the pool
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open migrates the database at path and returns a ready handle.
func Open(ctx context.Context, path string, opts Options) (*Handle, error) {
	def := DefaultOptions()
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.ClearAttempts == 0 {
		opts.ClearAttempts = def.ClearAttempts
	}
	if opts.BaseDelay == 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.LockTimeout == 0 {
		opts.LockTimeout = def.LockTimeout
	}
	if opts.Collections == nil {
		opts.Collections = def.Collections
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	h := &Handle{
		path:        path,
		opts:        opts,
		log:         log.With("component", "store"),
		collections: make(map[string]models.Collection, len(opts.Collections)),
		openDB:      openSQLite,
	}
	for _, c := range opts.Collections {
		h.collections[c.Name] = c
	}

	if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	db, err := h.migrate(ctx)
	if err != nil {
		return nil, err
	}
	h.db = db

	if opts.WatchSchema {
		w, err := watchSchema(h.markerPath(), SchemaVersion, h.onSchemaChange, h.log)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: watch schema: %w", common.ErrStorageUnavailable, err)
		}
		h.watcher = w
	}

	h.log.Info(ctx, "store opened", "path", path, "schema", SchemaVersion)
	return h, nil
}

func (h *Handle) markerPath() string { return h.path + ".schema" }

// migrate runs goose under the cross-process lock and returns an open db.
func (h *Handle) migrate(ctx context.Context) (*sql.DB, error) {
	lockCtx, cancel := context.WithTimeout(ctx, h.opts.LockTimeout)
	defer cancel()

	lock := flock.New(h.path + ".lock")
	locked, err := lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil || !locked {
		return nil, fmt.Errorf("%w: migration lock %s: %v", common.ErrStorageUnavailable, lock.Path(), err)
	}
	defer func() { _ = lock.Unlock() }()

	db, err := h.openDB(ctx, h.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrStorageUnavailable, h.path, err)
	}

	version, err := runMigrations(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := registerCollections(ctx, db, h.opts.Collections); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	if err := writeMarker(h.markerPath(), version); err != nil {
		h.log.Warn(ctx, "failed to write schema marker", "error", err)
	}

	return db, nil
}

func runMigrations(ctx context.Context, db *sql.DB) (int64, error) {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("%w: goose: %w", common.ErrStorageUnavailable, err)
	}

	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: read schema version: %w", common.ErrStorageUnavailable, err)
	}
	if current > SchemaVersion {
		return 0, fmt.Errorf("%w: database is at version %d, this build supports %d",
			common.ErrSchemaVersionChanged, current, SchemaVersion)
	}

	if _, err := p.Up(ctx); err != nil {
		return 0, fmt.Errorf("%w: migrate: %w", common.ErrStorageUnavailable, err)
	}
	return p.GetDBVersion(ctx)
}

func readMarker(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

// writeMarker never lowers a version written by a newer build.
func writeMarker(path string, version int64) error {
	if current, err := readMarker(path); err == nil && current >= version {
		return nil
	}
	return filex.WriteFileAtomic(path, []byte(strconv.FormatInt(version, 10)), 0o600)
}

func (h *Handle) onSchemaChange(version int64) {
	if !h.stale.CompareAndSwap(false, true) {
		return
	}
	h.log.Warn(context.Background(), "schema upgraded by another process, closing store",
		"version", version, "supported", SchemaVersion)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db != nil {
		_ = h.db.Close()
		h.db = nil
	}
}

// conn returns the live *sql.DB, reopening it if it was invalidated.
func (h *Handle) conn(ctx context.Context) (*sql.DB, error) {
	if h.stale.Load() {
		return nil, common.ErrSchemaVersionChanged
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("%w: store is closed", common.ErrStorageUnavailable)
	}
	if h.db != nil {
		return h.db, nil
	}

	db, err := h.openDB(ctx, h.path)
	if err != nil {
		return nil, fmt.Errorf("reopen %s: %w", h.path, err)
	}
	h.log.Info(ctx, "store connection reopened")
	h.db = db
	return db, nil
}

// invalidate forgets db if it is still the current connection.
func (h *Handle) invalidate(db *sql.DB) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == db {
		_ = db.Close()
		h.db = nil
	}
}

// do runs op against the current connection with retries.
func (h *Handle) do(ctx context.Context, attempts int, op func(ctx context.Context, db *sql.DB) error) error {
	return withRetry(ctx, attempts, h.opts.BaseDelay, func(ctx context.Context) error {
		db, err := h.conn(ctx)
		if err != nil {
			return err
		}
		err = op(ctx, db)
		if dbx.IsConnClosed(err) {
			h.invalidate(db)
		}
		return err
	})
}

// Close stops the schema watcher and closes the connection.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	w, db := h.watcher, h.db
	h.db = nil
	h.mu.Unlock()

	// the watcher callback takes h.mu, so it is stopped outside the lock
	var errs []error
	if w != nil {
		errs = append(errs, w.Close())
	}
	if db != nil {
		errs = append(errs, db.Close())
	}
	return errors.Join(errs...)
}
