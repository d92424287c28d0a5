// Package quotes stores saved quotes.
package quotes

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/base"
	"github.com/dmitrijs2005/daybook/internal/common"
)

type Repository interface {
	List(ctx context.Context) ([]models.Quote, error)
	Get(ctx context.Context, id string) (models.Quote, error)
	Create(ctx context.Context, q models.Quote) (models.Quote, error)
	Update(ctx context.Context, id string, patch map[string]any) (models.Quote, error)
	Favorites(ctx context.Context) ([]models.Quote, error)
	ToggleFavorite(ctx context.Context, id string) (models.Quote, error)
	Random(ctx context.Context, rnd *rand.Rand) (models.Quote, error)
	Delete(ctx context.Context, id string) error
}

type StoreRepository struct {
	*base.Repository[models.Quote]
}

func New(store base.Store, notifier base.ChangeNotifier) *StoreRepository {
	return &StoreRepository{Repository: base.New[models.Quote](store, models.CollectionQuotes, notifier)}
}

func (r *StoreRepository) Favorites(ctx context.Context) ([]models.Quote, error) {
	return r.Filter(ctx, func(q models.Quote) bool { return q.Favorite })
}

func (r *StoreRepository) ToggleFavorite(ctx context.Context, id string) (models.Quote, error) {
	q, err := r.Get(ctx, id)
	if err != nil {
		return q, err
	}
	return r.Update(ctx, id, map[string]any{"favorite": !q.Favorite})
}

// Random picks a quote, preferring favorites when there are any. A nil rnd
// uses the global source.
func (r *StoreRepository) Random(ctx context.Context, rnd *rand.Rand) (models.Quote, error) {
	pool, err := r.Favorites(ctx)
	if err != nil {
		return models.Quote{}, err
	}
	if len(pool) == 0 {
		if pool, err = r.List(ctx); err != nil {
			return models.Quote{}, err
		}
	}
	if len(pool) == 0 {
		return models.Quote{}, fmt.Errorf("no quotes: %w", common.ErrNotFound)
	}
	if rnd == nil {
		return pool[rand.IntN(len(pool))], nil
	}
	return pool[rnd.IntN(len(pool))], nil
}

var _ Repository = (*StoreRepository)(nil)
