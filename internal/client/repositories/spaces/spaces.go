// Package spaces stores the spaces items and feeds are grouped into.
// Deleting a space leaves its items and feeds in place.
package spaces

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/base"
	"github.com/dmitrijs2005/daybook/internal/common"
)

type Repository interface {
	List(ctx context.Context) ([]models.Space, error)
	Get(ctx context.Context, id string) (models.Space, error)
	Create(ctx context.Context, s models.Space) (models.Space, error)
	Update(ctx context.Context, id string, patch map[string]any) (models.Space, error)
	Reorder(ctx context.Context, ids []string) error
	Delete(ctx context.Context, id string) error
}

type StoreRepository struct {
	*base.Repository[models.Space]
}

func New(store base.Store, notifier base.ChangeNotifier) *StoreRepository {
	return &StoreRepository{Repository: base.New[models.Space](store, models.CollectionSpaces, notifier)}
}

// List returns spaces by order, then name.
func (r *StoreRepository) List(ctx context.Context) ([]models.Space, error) {
	all, err := r.Repository.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Order != all[j].Order {
			return all[i].Order < all[j].Order
		}
		return all[i].Name < all[j].Name
	})
	return all, nil
}

// Create appends the space after the existing ones unless Order is set.
func (r *StoreRepository) Create(ctx context.Context, s models.Space) (models.Space, error) {
	if s.Order == 0 {
		all, err := r.Repository.List(ctx)
		if err != nil {
			return s, err
		}
		for _, existing := range all {
			if existing.Order >= s.Order {
				s.Order = existing.Order + 1
			}
		}
	}
	return r.Repository.Create(ctx, s)
}

// Reorder assigns positions 0..n-1 in the order of ids. Every id must
// exist; spaces not named keep their position after the named ones.
func (r *StoreRepository) Reorder(ctx context.Context, ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("%w: space %s listed twice", common.ErrValidation, id)
		}
		seen[id] = true
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}

	all, err := r.List(ctx)
	if err != nil {
		return err
	}
	order := append([]string(nil), ids...)
	for _, s := range all {
		if !seen[s.ID] {
			order = append(order, s.ID)
		}
	}
	for pos, id := range order {
		if _, err := r.Update(ctx, id, map[string]any{"order": pos}); err != nil {
			return err
		}
	}
	return nil
}

var _ Repository = (*StoreRepository)(nil)
