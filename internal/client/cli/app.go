package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/backup"
	"github.com/dmitrijs2005/daybook/internal/client/config"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/feeds"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/items"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/quotes"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/settings"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/spaces"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/workouts"
	"github.com/dmitrijs2005/daybook/internal/client/services"
	"github.com/dmitrijs2005/daybook/internal/client/store"
	"github.com/dmitrijs2005/daybook/internal/client/syncer"
	"github.com/dmitrijs2005/daybook/internal/filex"
	"github.com/dmitrijs2005/daybook/internal/logging"
)

type App struct {
	config    *config.Config
	log       logging.Logger
	logCloser io.Closer

	store    *store.Handle
	engine   *syncer.Engine
	transfer services.TransferService

	items    items.Repository
	spaces   spaces.Repository
	feeds    *feeds.StoreRepository
	quotes   quotes.Repository
	tokens   *tokens.StoreRepository
	workouts *workouts.Repositories
	settings *settings.StoreRepository

	reader *bufio.Reader
	out    io.Writer
	now    func() time.Time
}

// NewApp opens the local store, builds the backup transport and wires the
// repositories to the sync engine. Logs go to the rotated file from cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data dir: %w", err)
	}
	log, closer := logging.NewFileLogger(cfg.LogOptions())

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	a.logCloser = closer
	return a, nil
}

func newApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if _, err := filex.EnsureDir(filepath.Dir(cfg.DBPath())); err != nil {
		return nil, fmt.Errorf("failed to prepare database dir: %w", err)
	}

	opts := store.DefaultOptions()
	opts.Logger = log
	h, err := store.Open(ctx, cfg.DBPath(), opts)
	if err != nil {
		log.Error(ctx, "error opening local store", "error", err)
		return nil, err
	}

	transport, err := backup.New(ctx, cfg.Backup)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("failed to set up backup: %w", err)
	}

	engine := syncer.New(h, transport, cfg.SyncerConfig(), log)

	a := &App{
		config:   cfg,
		log:      log,
		store:    h,
		engine:   engine,
		transfer: services.NewTransferService(h, engine, log),
		spaces:   spaces.New(h, engine),
		feeds:    feeds.New(h, engine),
		quotes:   quotes.New(h, engine),
		tokens:   tokens.New(h, engine),
		workouts: workouts.New(h, engine),
		settings: settings.New(h, engine),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		now:      time.Now,
	}
	a.items = items.New(h, engine, a.itemEvent)
	// fetch times and token expiry follow the app clock
	clock := func() time.Time { return a.now() }
	a.feeds.SetClock(clock)
	a.tokens.SetClock(clock)
	return a, nil
}

// itemEvent is the content hook for item lifecycle events.
func (a *App) itemEvent(ctx context.Context, ev items.Event) {
	a.log.Info(ctx, "item event", "type", ev.Type, "id", ev.Item.ID, "itemType", ev.Item.Type)
}

// Start starts background sync.
func (a *App) Start(ctx context.Context) error {
	return a.engine.Start(ctx)
}

// Run starts background sync and blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	unsubscribe := a.engine.Subscribe(a.announce())
	defer unsubscribe()

	fmt.Fprintln(a.out, "Welcome to daybook (type 'help' for commands)")
	runREPL(ctx, a, a.statusLine, bufio.NewScanner(os.Stdin))
	return nil
}

// announce returns a subscriber that tells the user when sync needs
// attention. Repeated states are not announced twice. It may be called
// from the poll, debounce and REPL goroutines.
func (a *App) announce() func(syncer.State) {
	var (
		mu   sync.Mutex
		last syncer.Status
	)
	return func(s syncer.State) {
		mu.Lock()
		defer mu.Unlock()
		if s.Status == last {
			return
		}
		last = s.Status
		switch s.Status {
		case syncer.StatusConflict:
			printlnFn(fmt.Sprintf("sync: %d conflict(s), see 'conflicts'", s.ConflictCount))
		case syncer.StatusError:
			printlnFn("sync failed:", s.LastError)
		}
	}
}

func (a *App) statusLine() string {
	s := a.engine.State()
	if s.Status == syncer.StatusConflict {
		return fmt.Sprintf("%s:%d", s.Status, s.ConflictCount)
	}
	return string(s.Status)
}

// Close flushes a pending push, stops the engine and releases the store
// and the log file.
func (a *App) Close(ctx context.Context) error {
	a.engine.Flush(ctx)
	a.engine.Stop()

	var errs []error
	errs = append(errs, a.store.Close())
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}
