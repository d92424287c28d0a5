// Package workouts stores workout sessions, reusable templates and body
// weight measurements. The three collections share one Repositories value
// because the queries that matter (history, progress) span them.
package workouts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/base"
	"github.com/dmitrijs2005/daybook/internal/common"
)

type Repositories struct {
	Sessions    *base.Repository[models.WorkoutSession]
	Templates   *base.Repository[models.WorkoutTemplate]
	BodyWeights *base.Repository[models.BodyWeight]
}

func New(store base.Store, notifier base.ChangeNotifier) *Repositories {
	return &Repositories{
		Sessions:    base.New[models.WorkoutSession](store, models.CollectionWorkoutSessions, notifier),
		Templates:   base.New[models.WorkoutTemplate](store, models.CollectionWorkoutTemplates, notifier),
		BodyWeights: base.New[models.BodyWeight](store, models.CollectionBodyWeights, notifier),
	}
}

// SetClock pins the clock of all three repositories.
func (r *Repositories) SetClock(now func() time.Time) {
	r.Sessions.SetClock(now)
	r.Templates.SetClock(now)
	r.BodyWeights.SetClock(now)
}

// SessionsBetween lists sessions dated in [from, to), oldest first.
func (r *Repositories) SessionsBetween(ctx context.Context, from, to time.Time) ([]models.WorkoutSession, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: empty range %s..%s", common.ErrValidation, from, to)
	}
	out, err := r.Sessions.Filter(ctx, func(s models.WorkoutSession) bool {
		return !s.Date.Before(from) && s.Date.Before(to)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// StartFromTemplate creates a session on date with the template's
// exercises copied in.
func (r *Repositories) StartFromTemplate(ctx context.Context, templateID string, date time.Time) (models.WorkoutSession, error) {
	tpl, err := r.Templates.Get(ctx, templateID)
	if err != nil {
		return models.WorkoutSession{}, err
	}
	exercises := make([]models.Exercise, len(tpl.Exercises))
	for i, e := range tpl.Exercises {
		exercises[i] = models.Exercise{Name: e.Name, Sets: append([]models.Set(nil), e.Sets...)}
	}
	return r.Sessions.Create(ctx, models.WorkoutSession{
		TemplateID: tpl.ID,
		Date:       date,
		Exercises:  exercises,
	})
}

// LatestBodyWeight returns the most recent measurement by date.
func (r *Repositories) LatestBodyWeight(ctx context.Context) (models.BodyWeight, error) {
	all, err := r.BodyWeights.List(ctx)
	if err != nil {
		return models.BodyWeight{}, err
	}
	if len(all) == 0 {
		return models.BodyWeight{}, fmt.Errorf("no body weight entries: %w", common.ErrNotFound)
	}
	latest := all[0]
	for _, w := range all[1:] {
		if w.Date.After(latest.Date) {
			latest = w
		}
	}
	return latest, nil
}
