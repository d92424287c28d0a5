// Package store is the local persistence layer: a SQLite database holding
// every collection as JSON records, plus settings and sync bookkeeping.
//
// # Handle
//
// A process opens the database once with Open and passes the *Handle to
// every consumer. The handle owns the *sql.DB: if the driver reports the
// connection closed, the handle drops it and reopens on the next call.
//
// # Retries
//
// Every operation runs through withRetry. Transient driver failures (busy,
// locked, I/O) are retried with exponential backoff; validation, not-found
// and schema errors are returned at once. Clear gets fewer attempts than the
// other operations.
//
// # Schema
//
// Migrations are embedded goose files (internal/client/migrations) and run
// under an exclusive file lock on "<db>.lock", so two processes starting
// together do not race. After migrating, the handle writes the schema
// version into "<db>.schema". With Options.WatchSchema set, an fsnotify
// watcher follows that file; when another process records a newer version
// the connection is closed and all later calls fail with
// common.ErrSchemaVersionChanged.
package store
