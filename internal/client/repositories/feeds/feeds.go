// Package feeds stores feed subscriptions. Fetching is not done here; the
// fetcher only reports back through MarkFetched.
package feeds

import (
	"context"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/base"
)

type Repository interface {
	List(ctx context.Context) ([]models.Feed, error)
	ListBySpace(ctx context.Context, spaceID string) ([]models.Feed, error)
	Get(ctx context.Context, id string) (models.Feed, error)
	Create(ctx context.Context, f models.Feed) (models.Feed, error)
	Update(ctx context.Context, id string, patch map[string]any) (models.Feed, error)
	MarkFetched(ctx context.Context, id string, at time.Time) (models.Feed, error)
	Stale(ctx context.Context, maxAge time.Duration) ([]models.Feed, error)
	Delete(ctx context.Context, id string) error
}

type StoreRepository struct {
	*base.Repository[models.Feed]
}

func New(store base.Store, notifier base.ChangeNotifier) *StoreRepository {
	return &StoreRepository{Repository: base.New[models.Feed](store, models.CollectionFeeds, notifier)}
}

func (r *StoreRepository) ListBySpace(ctx context.Context, spaceID string) ([]models.Feed, error) {
	return r.Filter(ctx, func(f models.Feed) bool { return f.SpaceID == spaceID })
}

func (r *StoreRepository) MarkFetched(ctx context.Context, id string, at time.Time) (models.Feed, error) {
	return r.Update(ctx, id, map[string]any{"lastFetched": models.FormatTime(at)})
}

// Stale lists feeds never fetched or fetched longer than maxAge ago.
func (r *StoreRepository) Stale(ctx context.Context, maxAge time.Duration) ([]models.Feed, error) {
	cutoff := r.Now().Add(-maxAge)
	return r.Filter(ctx, func(f models.Feed) bool {
		return f.LastFetched.IsZero() || f.LastFetched.Before(cutoff)
	})
}

var _ Repository = (*StoreRepository)(nil)
