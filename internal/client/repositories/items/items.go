package items

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/base"
	"github.com/dmitrijs2005/daybook/internal/common"
)

type EventType string

const (
	EventCreated   EventType = "created"
	EventCompleted EventType = "completed"
	EventReopened  EventType = "reopened"
)

type Event struct {
	Type EventType
	Item models.Item
}

type Hook func(ctx context.Context, ev Event)

type Repository interface {
	List(ctx context.Context) ([]models.Item, error)
	ListBySpace(ctx context.Context, spaceID string) ([]models.Item, error)
	Open(ctx context.Context) ([]models.Item, error)
	Get(ctx context.Context, id string) (models.Item, error)
	Create(ctx context.Context, item models.Item) (models.Item, error)
	Update(ctx context.Context, id string, patch map[string]any) (models.Item, error)
	Complete(ctx context.Context, id string) (models.Item, error)
	Reopen(ctx context.Context, id string) (models.Item, error)
	Delete(ctx context.Context, id string) error
}

type StoreRepository struct {
	*base.Repository[models.Item]
	hooks []Hook
}

func New(store base.Store, notifier base.ChangeNotifier, hooks ...Hook) *StoreRepository {
	return &StoreRepository{
		Repository: base.New[models.Item](store, models.CollectionItems, notifier),
		hooks:      hooks,
	}
}

func (r *StoreRepository) emit(ctx context.Context, t EventType, it models.Item) {
	for _, h := range r.hooks {
		h(ctx, Event{Type: t, Item: it})
	}
}

func (r *StoreRepository) Create(ctx context.Context, item models.Item) (models.Item, error) {
	if item.Type == "" {
		item.Type = models.ItemTypeTask
	}
	created, err := r.Repository.Create(ctx, item)
	if err != nil {
		return created, err
	}
	r.emit(ctx, EventCreated, created)
	return created, nil
}

func (r *StoreRepository) ListBySpace(ctx context.Context, spaceID string) ([]models.Item, error) {
	return r.Filter(ctx, func(it models.Item) bool { return it.SpaceID == spaceID })
}

// Open lists incomplete tasks, earliest due date first; undated tasks last.
func (r *StoreRepository) Open(ctx context.Context) ([]models.Item, error) {
	out, err := r.Filter(ctx, func(it models.Item) bool {
		return it.Type == models.ItemTypeTask && !it.Completed
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DueDate, out[j].DueDate
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.Before(b)
		}
	})
	return out, nil
}

// Complete marks a task done. Completing a done task changes nothing and
// fires no hook.
func (r *StoreRepository) Complete(ctx context.Context, id string) (models.Item, error) {
	it, err := r.Get(ctx, id)
	if err != nil {
		return it, err
	}
	if it.Type != models.ItemTypeTask {
		return it, fmt.Errorf("%w: %s item %s cannot be completed", common.ErrValidation, it.Type, id)
	}
	if it.Completed {
		return it, nil
	}
	done, err := r.Update(ctx, id, map[string]any{
		"completed":   true,
		"completedAt": models.FormatTime(r.Now()),
	})
	if err != nil {
		return done, err
	}
	r.emit(ctx, EventCompleted, done)
	return done, nil
}

func (r *StoreRepository) Reopen(ctx context.Context, id string) (models.Item, error) {
	it, err := r.Get(ctx, id)
	if err != nil {
		return it, err
	}
	if !it.Completed {
		return it, nil
	}
	open, err := r.Update(ctx, id, map[string]any{"completed": false, "completedAt": nil})
	if err != nil {
		return open, err
	}
	r.emit(ctx, EventReopened, open)
	return open, nil
}

var _ Repository = (*StoreRepository)(nil)
