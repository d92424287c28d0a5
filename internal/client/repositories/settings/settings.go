// Package settings exposes the flat key/value settings table. Settings
// travel with backups and exports like records do, so writes notify the
// sync engine.
package settings

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/client/repositories/base"
	"github.com/dmitrijs2005/daybook/internal/common"
)

type Store interface {
	GetSettings(ctx context.Context) (map[string]any, error)
	PutSetting(ctx context.Context, key string, value any) error
	DeleteSetting(ctx context.Context, key string) error
}

type Repository interface {
	All(ctx context.Context) (map[string]any, error)
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

type StoreRepository struct {
	store    Store
	notifier base.ChangeNotifier
}

func New(store Store, notifier base.ChangeNotifier) *StoreRepository {
	return &StoreRepository{store: store, notifier: notifier}
}

func (r *StoreRepository) All(ctx context.Context) (map[string]any, error) {
	return r.store.GetSettings(ctx)
}

func (r *StoreRepository) Get(ctx context.Context, key string) (any, bool, error) {
	all, err := r.store.GetSettings(ctx)
	if err != nil {
		return nil, false, err
	}
	v, ok := all[key]
	return v, ok, nil
}

// String returns the setting as a string, or def when unset or not a string.
func (r *StoreRepository) String(ctx context.Context, key, def string) (string, error) {
	v, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	s, ok := v.(string)
	if !ok {
		return def, nil
	}
	return s, nil
}

func (r *StoreRepository) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return fmt.Errorf("%w: empty setting key", common.ErrValidation)
	}
	if err := r.store.PutSetting(ctx, key, value); err != nil {
		return err
	}
	r.notify()
	return nil
}

func (r *StoreRepository) Delete(ctx context.Context, key string) error {
	if err := r.store.DeleteSetting(ctx, key); err != nil {
		return err
	}
	r.notify()
	return nil
}

func (r *StoreRepository) notify() {
	if r.notifier != nil {
		r.notifier.NotifyLocalChange()
	}
}

var _ Repository = (*StoreRepository)(nil)
