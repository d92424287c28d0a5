package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
)

// recordTable is the SQL side of the records table. It knows nothing about
// retries or connection lifecycle.
type recordTable struct {
	db dbx.DBTX
}

func (t recordTable) all(ctx context.Context, collection string) ([]models.Record, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT payload FROM records WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	result := make([]models.Record, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", collection, err)
		}
		var r models.Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("%w: corrupt payload in %s: %w", common.ErrValidation, collection, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", collection, err)
	}
	return result, nil
}

func (t recordTable) get(ctx context.Context, collection, key string) (models.Record, error) {
	var payload string
	err := t.db.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE collection = ? AND key = ?`, collection, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, key, err)
	}
	var r models.Record
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("%w: corrupt payload in %s/%s: %w", common.ErrValidation, collection, key, err)
	}
	return r, nil
}

func (t recordTable) put(ctx context.Context, collection, key string, r models.Record) error {
	var updatedAt sql.NullString
	if ts, ok := r.UpdatedAt(); ok {
		updatedAt = sql.NullString{String: models.FormatTime(ts), Valid: true}
	}
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO records (collection, key, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, collection, key, string(r.Canonical()), updatedAt)
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, key, err)
	}
	return nil
}

// expect fails with common.ErrStaleWrite unless the stored record equals
// want. A nil want means the key must not exist.
func (t recordTable) expect(ctx context.Context, collection, key string, want models.Record) error {
	got, err := t.get(ctx, collection, key)
	if errors.Is(err, common.ErrNotFound) {
		got, err = nil, nil
	}
	if err != nil {
		return err
	}
	switch {
	case got == nil && want == nil:
		return nil
	case got == nil || want == nil, string(got.Canonical()) != string(want.Canonical()):
		return fmt.Errorf("%s/%s: %w", collection, key, common.ErrStaleWrite)
	}
	return nil
}

func (t recordTable) delete(ctx context.Context, collection, key string) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (t recordTable) clear(ctx context.Context, collection string) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, collection)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", collection, err)
	}
	return nil
}

func (t recordTable) count(ctx context.Context, collection string) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// registerCollections records declared collections. Rows written by a newer
// build are left alone.
func registerCollections(ctx context.Context, db dbx.DBTX, collections []models.Collection) error {
	for _, c := range collections {
		_, err := db.ExecContext(ctx, `
			INSERT INTO collections (name, key_field, timestamped) VALUES (?, ?, ?)
			ON CONFLICT(name) DO NOTHING
		`, c.Name, c.KeyField, c.Timestamped)
		if err != nil {
			return fmt.Errorf("failed to register collection %s: %w", c.Name, err)
		}
	}
	return nil
}

// kvTable serves the settings and sync_meta tables, which share a shape.
// Values are stored as JSON text.
type kvTable struct {
	db    dbx.DBTX
	table string
}

func (t kvTable) get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value string
	err := t.db.QueryRowContext(ctx, `SELECT value FROM `+t.table+` WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s[%s]: %w", t.table, key, err)
	}
	return json.RawMessage(value), true, nil
}

func (t kvTable) set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO `+t.table+` (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("failed to set %s[%s]: %w", t.table, key, err)
	}
	return nil
}

func (t kvTable) delete(ctx context.Context, key string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM `+t.table+` WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s[%s]: %w", t.table, key, err)
	}
	return nil
}

func (t kvTable) clear(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM `+t.table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", t.table, err)
	}
	return nil
}

func (t kvTable) list(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT key, value FROM `+t.table)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	defer rows.Close()

	result := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.table, err)
		}
		result[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", t.table, err)
	}
	return result, nil
}
