// Package cli provides the interactive daybook command-line client.
//
// It wires configuration, the local store, the repositories, the sync engine
// and the export/import service, and runs a REPL over them. Background sync
// runs while the REPL is open; its log output goes to a rotated file so it
// does not interleave with the prompt.
//
// Key features:
//   - Items: list, add, complete, reopen, delete
//   - Spaces, quotes, body weight, settings
//   - Sync now, status, conflict listing and resolution
//   - Export to / import from a bundle file, optionally password protected
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// cmd/daybook exposes sync, status, export and import as one-shot commands.
package cli
