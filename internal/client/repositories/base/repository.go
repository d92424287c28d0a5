// Package base implements the generic record-to-entity repository the
// entity packages build on.
package base

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/google/uuid"
)

// Store is the part of the local store a repository needs.
type Store interface {
	GetAll(ctx context.Context, collection string) ([]models.Record, error)
	Get(ctx context.Context, collection, key string) (models.Record, error)
	Put(ctx context.Context, collection string, r models.Record) error
	Delete(ctx context.Context, collection, key string) error
}

// ChangeNotifier is told about every successful local mutation.
type ChangeNotifier interface {
	NotifyLocalChange()
}

// Entity is implemented by every model a repository stores.
type Entity interface {
	Validate() error
}

// Repository maps one collection onto entity type T.
type Repository[T Entity] struct {
	store    Store
	coll     models.Collection
	notifier ChangeNotifier
	now      func() time.Time
}

func New[T Entity](store Store, collection string, notifier ChangeNotifier) *Repository[T] {
	c, ok := models.LookupCollection(collection)
	if !ok {
		panic(fmt.Sprintf("base: undeclared collection %q", collection))
	}
	return &Repository[T]{store: store, coll: c, notifier: notifier, now: time.Now}
}

// SetClock replaces the time source; tests use it to pin timestamps.
func (r *Repository[T]) SetClock(now func() time.Time) { r.now = now }

func (r *Repository[T]) Collection() models.Collection { return r.coll }

// Now reads the repository clock.
func (r *Repository[T]) Now() time.Time { return r.now() }

func (r *Repository[T]) decode(rec models.Record) (T, error) {
	var v T
	if err := rec.Decode(&v); err != nil {
		return v, fmt.Errorf("%w: %s/%s: %w", common.ErrValidation, r.coll.Name, rec.Key(r.coll.KeyField), err)
	}
	return v, nil
}

func (r *Repository[T]) notify() {
	if r.notifier != nil {
		r.notifier.NotifyLocalChange()
	}
}

// stamp returns now, clamped so updatedAt never moves backwards for a record.
func (r *Repository[T]) stamp(prev models.Record) string {
	now := r.now().UTC()
	if prev != nil {
		if last, ok := prev.UpdatedAt(); ok && now.Before(last) {
			now = last
		}
	}
	return models.FormatTime(now)
}

func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	recs, err := r.store.GetAll(ctx, r.coll.Name)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := r.decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Filter lists the entities for which keep returns true.
func (r *Repository[T]) Filter(ctx context.Context, keep func(T) bool) ([]T, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, v := range all {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, fmt.Errorf("%w: empty %s", common.ErrValidation, r.coll.KeyField)
	}
	rec, err := r.store.Get(ctx, r.coll.Name, id)
	if err != nil {
		return zero, err
	}
	return r.decode(rec)
}

// Create stores a new entity. An empty "id" key is filled with a UUID and
// timestamped collections get createdAt and updatedAt.
func (r *Repository[T]) Create(ctx context.Context, v T) (T, error) {
	var zero T
	rec, err := models.RecordFrom(v)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	if r.coll.KeyField == "id" && rec.Key("id") == "" {
		rec["id"] = uuid.NewString()
	}
	if r.coll.Timestamped {
		ts := r.stamp(nil)
		rec["createdAt"] = ts
		rec["updatedAt"] = ts
	}
	return r.write(ctx, rec)
}

// Save upserts a complete entity, keeping createdAt of an existing record.
func (r *Repository[T]) Save(ctx context.Context, v T) (T, error) {
	var zero T
	rec, err := models.RecordFrom(v)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	key := rec.Key(r.coll.KeyField)
	if key == "" {
		return zero, fmt.Errorf("%w: %s is required", common.ErrValidation, r.coll.KeyField)
	}
	prev, err := r.store.Get(ctx, r.coll.Name, key)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return zero, err
	}
	if r.coll.Timestamped {
		rec["updatedAt"] = r.stamp(prev)
		if created, ok := prev["createdAt"]; ok {
			rec["createdAt"] = created
		} else if _, ok := rec["createdAt"]; !ok {
			rec["createdAt"] = rec["updatedAt"]
		}
	}
	return r.write(ctx, rec)
}

// Update merges patch into the stored record. The key field cannot change.
func (r *Repository[T]) Update(ctx context.Context, id string, patch map[string]any) (T, error) {
	var zero T
	if id == "" {
		return zero, fmt.Errorf("%w: empty %s", common.ErrValidation, r.coll.KeyField)
	}
	if k, ok := patch[r.coll.KeyField]; ok && k != id {
		return zero, fmt.Errorf("%w: %s cannot be changed", common.ErrValidation, r.coll.KeyField)
	}
	prev, err := r.store.Get(ctx, r.coll.Name, id)
	if err != nil {
		return zero, err
	}
	rec := prev.Merge(patch)
	if r.coll.Timestamped {
		rec["updatedAt"] = r.stamp(prev)
		if c, ok := prev["createdAt"]; ok {
			rec["createdAt"] = c
		}
	}
	return r.write(ctx, rec)
}

func (r *Repository[T]) write(ctx context.Context, rec models.Record) (T, error) {
	v, err := r.decode(rec)
	if err != nil {
		return v, err
	}
	if err := v.Validate(); err != nil {
		var zero T
		return zero, err
	}
	if err := r.store.Put(ctx, r.coll.Name, rec); err != nil {
		var zero T
		return zero, err
	}
	r.notify()
	return v, nil
}

// Delete removes the entity. Missing ids are not an error.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty %s", common.ErrValidation, r.coll.KeyField)
	}
	if err := r.store.Delete(ctx, r.coll.Name, id); err != nil {
		return err
	}
	r.notify()
	return nil
}
