// Package tokens keeps credentials for external services, one per service.
package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/base"
	"github.com/dmitrijs2005/daybook/internal/common"
)

type Repository interface {
	List(ctx context.Context) ([]models.AuthToken, error)
	Get(ctx context.Context, service string) (models.AuthToken, error)
	Put(ctx context.Context, token models.AuthToken) (models.AuthToken, error)
	Valid(ctx context.Context, service string) (models.AuthToken, bool, error)
	Delete(ctx context.Context, service string) error
}

type StoreRepository struct {
	*base.Repository[models.AuthToken]
}

func New(store base.Store, notifier base.ChangeNotifier) *StoreRepository {
	return &StoreRepository{Repository: base.New[models.AuthToken](store, models.CollectionAuthTokens, notifier)}
}

// Put stores the token, replacing any previous one for the same service.
func (r *StoreRepository) Put(ctx context.Context, token models.AuthToken) (models.AuthToken, error) {
	return r.Save(ctx, token)
}

// Valid returns the service token when one exists and has not expired.
func (r *StoreRepository) Valid(ctx context.Context, service string) (models.AuthToken, bool, error) {
	tok, err := r.Get(ctx, service)
	if errors.Is(err, common.ErrNotFound) {
		return models.AuthToken{}, false, nil
	}
	if err != nil {
		return models.AuthToken{}, false, err
	}
	if tok.Expired(r.Now()) {
		return tok, false, nil
	}
	return tok, true, nil
}

// ExpiringWithin lists tokens that expire in the next d and should be
// refreshed.
func (r *StoreRepository) ExpiringWithin(ctx context.Context, d time.Duration) ([]models.AuthToken, error) {
	limit := r.Now().Add(d)
	return r.Filter(ctx, func(t models.AuthToken) bool {
		return !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(limit)
	})
}

var _ Repository = (*StoreRepository)(nil)
