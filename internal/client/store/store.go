package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
)

const (
	tableSettings = "settings"
	tableSyncMeta = "sync_meta"
)

func (h *Handle) collection(name string) (models.Collection, error) {
	c, ok := h.collections[name]
	if !ok {
		return models.Collection{}, fmt.Errorf("%w: unknown collection %q", common.ErrValidation, name)
	}
	return c, nil
}

// Collections returns the declared collections in processing order.
func (h *Handle) Collections() []models.Collection {
	out := make([]models.Collection, len(h.opts.Collections))
	copy(out, h.opts.Collections)
	return out
}

func (h *Handle) keyOf(c models.Collection, r models.Record) (string, error) {
	key := r.Key(c.KeyField)
	if key == "" {
		return "", fmt.Errorf("%w: %s record has no %q", common.ErrValidation, c.Name, c.KeyField)
	}
	return key, nil
}

// GetAll returns every record of the collection in insertion order.
func (h *Handle) GetAll(ctx context.Context, collection string) ([]models.Record, error) {
	if _, err := h.collection(collection); err != nil {
		return nil, err
	}
	var out []models.Record
	err := h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		recs, err := recordTable{db: db}.all(ctx, collection)
		out = recs
		return err
	})
	return out, err
}

// Get returns one record or an error matching common.ErrNotFound.
func (h *Handle) Get(ctx context.Context, collection, key string) (models.Record, error) {
	if _, err := h.collection(collection); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", common.ErrValidation)
	}
	var out models.Record
	err := h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		r, err := recordTable{db: db}.get(ctx, collection, key)
		out = r
		return err
	})
	return out, err
}

// Put inserts or replaces the record with the same key.
func (h *Handle) Put(ctx context.Context, collection string, r models.Record) error {
	c, err := h.collection(collection)
	if err != nil {
		return err
	}
	key, err := h.keyOf(c, r)
	if err != nil {
		return err
	}
	return h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		return recordTable{db: db}.put(ctx, collection, key, r)
	})
}

// PutManyIfUnchanged upserts records of several collections in one
// transaction, guarded by base: every written key must still hold
// base[collection][key], or be absent when base has no entry for it. On the
// first mismatch nothing is written and common.ErrStaleWrite is returned.
func (h *Handle) PutManyIfUnchanged(ctx context.Context, data map[string][]models.Record, base map[string]map[string]models.Record) error {
	keys, err := h.validateData(data)
	if err != nil {
		return err
	}
	return h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			t := recordTable{db: tx}
			for name, ks := range keys {
				for _, k := range ks {
					if err := t.expect(ctx, name, k, base[name][k]); err != nil {
						return err
					}
				}
			}
			return h.putAll(ctx, t, data, keys, false)
		})
	})
}

// Delete removes the record; deleting a missing key is not an error.
func (h *Handle) Delete(ctx context.Context, collection, key string) error {
	if _, err := h.collection(collection); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: empty key", common.ErrValidation)
	}
	return h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		return recordTable{db: db}.delete(ctx, collection, key)
	})
}

// Clear removes every record of the collection.
func (h *Handle) Clear(ctx context.Context, collection string) error {
	if _, err := h.collection(collection); err != nil {
		return err
	}
	return h.do(ctx, h.opts.ClearAttempts, func(ctx context.Context, db *sql.DB) error {
		return recordTable{db: db}.clear(ctx, collection)
	})
}

// Count returns the number of records in the collection.
func (h *Handle) Count(ctx context.Context, collection string) (int, error) {
	if _, err := h.collection(collection); err != nil {
		return 0, err
	}
	var n int
	err := h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		c, err := recordTable{db: db}.count(ctx, collection)
		n = c
		return err
	})
	return n, err
}

// ReplaceAll clears each collection named in data and refills it with the
// given records, all in one transaction. Collections not named are left
// untouched.
func (h *Handle) ReplaceAll(ctx context.Context, data map[string][]models.Record) error {
	keys, err := h.validateData(data)
	if err != nil {
		return err
	}
	return h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return h.putAll(ctx, recordTable{db: tx}, data, keys, true)
		})
	})
}

// validateData checks collection names and keys up front so a bad record
// fails the call before the transaction starts.
func (h *Handle) validateData(data map[string][]models.Record) (map[string][]string, error) {
	keys := make(map[string][]string, len(data))
	for name, recs := range data {
		c, err := h.collection(name)
		if err != nil {
			return nil, err
		}
		ks := make([]string, len(recs))
		for i, r := range recs {
			k, err := h.keyOf(c, r)
			if err != nil {
				return nil, err
			}
			ks[i] = k
		}
		keys[name] = ks
	}
	return keys, nil
}

// putAll walks collections in declared order so partial progress is
// deterministic.
func (h *Handle) putAll(ctx context.Context, t recordTable, data map[string][]models.Record, keys map[string][]string, replace bool) error {
	for _, c := range h.opts.Collections {
		recs, ok := data[c.Name]
		if !ok {
			continue
		}
		if replace {
			if err := t.clear(ctx, c.Name); err != nil {
				return err
			}
		}
		for i, r := range recs {
			if err := t.put(ctx, c.Name, keys[c.Name][i], r); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetSettings returns all settings as decoded JSON values.
func (h *Handle) GetSettings(ctx context.Context) (map[string]any, error) {
	var raw map[string]json.RawMessage
	err := h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		m, err := kvTable{db: db, table: tableSettings}.list(ctx)
		raw = m
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, fmt.Errorf("%w: corrupt setting %q: %w", common.ErrValidation, k, err)
		}
		out[k] = val
	}
	return out, nil
}

// PutSetting stores one JSON-encodable value.
func (h *Handle) PutSetting(ctx context.Context, key string, value any) error {
	if key == "" {
		return fmt.Errorf("%w: empty setting key", common.ErrValidation)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: setting %q: %w", common.ErrValidation, key, err)
	}
	return h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		return kvTable{db: db, table: tableSettings}.set(ctx, key, raw)
	})
}

func (h *Handle) DeleteSetting(ctx context.Context, key string) error {
	return h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		return kvTable{db: db, table: tableSettings}.delete(ctx, key)
	})
}

// ReplaceSettings swaps the whole settings table in one transaction.
func (h *Handle) ReplaceSettings(ctx context.Context, settings map[string]any) error {
	raw := make(map[string]json.RawMessage, len(settings))
	for k, v := range settings {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: setting %q: %w", common.ErrValidation, k, err)
		}
		raw[k] = b
	}
	return h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			t := kvTable{db: tx, table: tableSettings}
			if err := t.clear(ctx); err != nil {
				return err
			}
			for k, v := range raw {
				if err := t.set(ctx, k, v); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// GetMeta reads a sync bookkeeping value.
func (h *Handle) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		raw, ok, err := kvTable{db: db, table: tableSyncMeta}.get(ctx, key)
		if err != nil || !ok {
			found = false
			return err
		}
		found = true
		if err := json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("%w: corrupt sync meta %q: %w", common.ErrValidation, key, err)
		}
		return nil
	})
	return value, found, err
}

// SetMeta writes a sync bookkeeping value.
func (h *Handle) SetMeta(ctx context.Context, key, value string) error {
	raw, _ := json.Marshal(value)
	return h.do(ctx, h.opts.MaxAttempts, func(ctx context.Context, db *sql.DB) error {
		return kvTable{db: db, table: tableSyncMeta}.set(ctx, key, raw)
	})
}
