// Package items stores tasks, notes, links and events.
//
// Besides plain CRUD the repository tracks task completion. Creating an
// item and completing a task fire the registered hooks after the write has
// committed, which is where outside collaborators (webhooks, summarizers)
// attach. Hooks run synchronously on the caller's goroutine and must not
// block; a hook that needs I/O should hand the event off.
//
//	repo := items.New(storeHandle, engine, func(ctx context.Context, ev items.Event) {
//	    log.Info(ctx, "item event", "type", ev.Type, "id", ev.Item.ID)
//	})
//	it, _ := repo.Create(ctx, models.Item{Title: "Buy milk"})
//	_, _ = repo.Complete(ctx, it.ID)
package items
