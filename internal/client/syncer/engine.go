// Package syncer keeps the local store and one remote backup blob eventually
// consistent.
//
// An Engine has three triggers: a debounced push after local changes, a
// periodic poll, and manual SyncNow calls. At most one pass runs at a time;
// a trigger that finds a pass in flight is dropped (pushes re-arm their
// timer instead). Errors never escape the engine; they are recorded in
// State and the next trigger tries again.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/backup"
	"github.com/dmitrijs2005/daybook/internal/client/bundle"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/logging"
)

const (
	metaLastSyncTime = "lastSyncTime"
	metaRemote       = "remote"

	// maxRebase bounds how often a pass re-reads local data that changed
	// under it while the merge was being applied.
	maxRebase = 3
)

// LocalStore is the part of the local store the engine reads and writes;
// *store.Handle satisfies it.
type LocalStore interface {
	bundle.Source
	PutManyIfUnchanged(ctx context.Context, data map[string][]models.Record, base map[string]map[string]models.Record) error
	Put(ctx context.Context, collection string, r models.Record) error
	PutSetting(ctx context.Context, key string, value any) error
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}

type Config struct {
	DebounceDelay   time.Duration
	PollInterval    time.Duration
	PollQuietPeriod time.Duration
	ConflictWindow  time.Duration
	// AutoSync enables the debounce timer and the poll loop.
	AutoSync    bool
	SyncOnStart bool
	// Password encrypts the remote bundle when set.
	Password []byte
}

func DefaultConfig() Config {
	return Config{
		DebounceDelay:   3 * time.Second,
		PollInterval:    45 * time.Second,
		PollQuietPeriod: 5 * time.Second,
		ConflictWindow:  60 * time.Minute,
		AutoSync:        true,
		SyncOnStart:     true,
	}
}

// remoteState is what the engine remembers about the blob between runs.
type remoteState struct {
	Handle string `json:"handle"`
	Digest string `json:"digest"`
}

type Engine struct {
	local     LocalStore
	transport backup.Transport
	cfg       Config
	log       logging.Logger
	now       func() time.Time

	inFlight atomic.Bool
	wg       sync.WaitGroup

	mu              sync.Mutex
	ctx             context.Context
	cancel          context.CancelFunc
	started         bool
	stopped         bool
	state           State
	conflicts       []models.Conflict
	resolved        resolved
	lastLocalChange time.Time
	debounce        *time.Timer
	handle          *backup.Handle
	remote          remoteState
	remoteLoaded    bool
	subs            map[int]func(State)
	nextSub         int
}

func New(local LocalStore, transport backup.Transport, cfg Config, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		local:     local,
		transport: transport,
		cfg:       cfg,
		log:       log.With("component", "syncer"),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		state:     State{Status: StatusIdle},
		resolved:  resolved{},
		subs:      map[int]func(State){},
	}
}

// Start loads persisted sync metadata and starts the poll loop. With
// SyncOnStart a first pass runs in the background.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started || e.stopped {
		e.mu.Unlock()
		return errors.New("syncer: already started")
	}
	e.started = true
	e.cancel()
	e.ctx, e.cancel = context.WithCancel(ctx)
	runCtx := e.ctx
	e.mu.Unlock()

	if v, ok, err := e.local.GetMeta(ctx, metaLastSyncTime); err != nil {
		e.log.Warn(ctx, "failed to read last sync time", "error", err)
	} else if ok {
		if t, ok := models.ParseTime(v); ok {
			e.mu.Lock()
			e.state.LastSyncTime = t
			e.mu.Unlock()
		}
	}

	if e.cfg.AutoSync && e.cfg.PollInterval > 0 {
		e.wg.Add(1)
		go e.pollLoop(runCtx)
	}
	if e.cfg.SyncOnStart {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.SyncNow(runCtx)
		}()
	}
	return nil
}

// Stop cancels timers and background passes and waits for them.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
}

// Flush runs a pending debounced push right away.
func (e *Engine) Flush(ctx context.Context) bool {
	e.mu.Lock()
	pending := e.debounce != nil && e.debounce.Stop()
	e.debounce = nil
	e.mu.Unlock()

	if !pending {
		return false
	}
	return e.Push(ctx)
}

// NotifyLocalChange records a local write and restarts the debounce timer.
func (e *Engine) NotifyLocalChange() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastLocalChange = e.now()
	if e.stopped || !e.cfg.AutoSync {
		return
	}
	e.armLocked()
}

func (e *Engine) armLocked() {
	if e.debounce != nil {
		e.debounce.Stop()
	}
	e.debounce = time.AfterFunc(e.cfg.DebounceDelay, e.debounceFired)
}

func (e *Engine) debounceFired() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.debounce = nil
	ctx := e.ctx
	e.wg.Add(1)
	e.mu.Unlock()

	defer e.wg.Done()
	e.Push(ctx)
}

// Push uploads local changes. It is skipped while conflicts are pending and
// re-armed when another pass is in flight.
func (e *Engine) Push(ctx context.Context) bool {
	if e.State().Status == StatusConflict {
		e.log.Debug(ctx, "push skipped, conflicts pending")
		return false
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		e.mu.Lock()
		if !e.stopped {
			e.armLocked()
		}
		e.mu.Unlock()
		return false
	}
	defer e.inFlight.Store(false)

	e.run(ctx, "push")
	return true
}

// SyncNow runs a full pass. It returns false without doing anything when
// a pass is already in flight.
func (e *Engine) SyncNow(ctx context.Context) bool {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.log.Debug(ctx, "sync skipped, pass in flight")
		return false
	}
	defer e.inFlight.Store(false)

	e.run(ctx, "sync")
	return true
}

// Retry clears an error state and syncs.
func (e *Engine) Retry(ctx context.Context) bool {
	e.mu.Lock()
	if e.state.Status == StatusError {
		e.state.Status = StatusIdle
		e.state.LastError = ""
		e.state.Err = nil
	}
	e.mu.Unlock()
	return e.SyncNow(ctx)
}

func (e *Engine) pollLoop(ctx context.Context) {
	defer e.wg.Done()
	t := time.NewTicker(e.cfg.PollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.pollTick(ctx)
		}
	}
}

// pollTick runs a pass unless conflicts are pending or the user changed
// something within the quiet period.
func (e *Engine) pollTick(ctx context.Context) bool {
	e.mu.Lock()
	status := e.state.Status
	last := e.lastLocalChange
	e.mu.Unlock()

	if status == StatusConflict {
		return false
	}
	if !last.IsZero() && e.now().Sub(last) < e.cfg.PollQuietPeriod {
		e.log.Debug(ctx, "poll suppressed, recent local change")
		return false
	}
	return e.SyncNow(ctx)
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Conflicts returns a copy of the pending conflicts.
func (e *Engine) Conflicts() []models.Conflict {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Conflict, len(e.conflicts))
	copy(out, e.conflicts)
	return out
}

// Subscribe registers fn for state changes and calls it once with the
// current state. fn runs synchronously on the goroutine that changed the
// state, after the engine's lock is released, so it may call back into the
// engine.
func (e *Engine) Subscribe(fn func(State)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	st := e.state
	e.mu.Unlock()

	fn(st)
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// setLocked applies mutate to the state and returns a function that
// delivers the result. Call it after unlocking e.mu.
func (e *Engine) setLocked(mutate func(*State)) func() {
	mutate(&e.state)
	st := e.state
	subs := make([]func(State), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	return func() {
		for _, fn := range subs {
			fn(st)
		}
	}
}

func (e *Engine) set(mutate func(*State)) {
	e.mu.Lock()
	publish := e.setLocked(mutate)
	e.mu.Unlock()
	publish()
}

// run wraps one pass with state transitions. The caller holds the
// in-flight guard.
func (e *Engine) run(ctx context.Context, trigger string) {
	started := e.now()
	e.set(func(s *State) {
		s.Status = StatusSyncing
		s.SyncingSince = started
	})

	log := e.log.With("trigger", trigger)
	out, err := e.pass(ctx, started)

	e.mu.Lock()
	var publish func()
	switch {
	case err != nil:
		publish = e.setLocked(func(s *State) {
			s.Status = StatusError
			s.SyncingSince = time.Time{}
			s.LastError = err.Error()
			s.Err = err
		})
	case len(out.conflicts) > 0:
		e.conflicts = out.conflicts
		publish = e.setLocked(func(s *State) {
			s.Status = StatusConflict
			s.SyncingSince = time.Time{}
			s.ConflictCount = len(out.conflicts)
			s.LastError = ""
			s.Err = nil
		})
	default:
		e.conflicts = nil
		e.resolved = resolved{}
		publish = e.setLocked(func(s *State) {
			s.Status = StatusIdle
			s.SyncingSince = time.Time{}
			s.LastSyncTime = out.finished
			s.LastError = ""
			s.Err = nil
			s.ConflictCount = 0
			s.Changes = out.changes
		})
	}
	e.mu.Unlock()
	publish()

	switch {
	case err != nil:
		log.Error(ctx, "sync failed", "error", err)
	case len(out.conflicts) > 0:
		log.Warn(ctx, "sync stopped on conflicts", "conflicts", len(out.conflicts))
	default:
		log.Info(ctx, "sync finished", "mode", out.mode, "changed", len(out.changes), "took", e.now().Sub(started))
		if err := e.local.SetMeta(ctx, metaLastSyncTime, models.FormatTime(out.finished)); err != nil {
			log.Warn(ctx, "failed to persist last sync time", "error", err)
		}
	}
}

type passResult struct {
	mode      string
	conflicts []models.Conflict
	changes   map[string]models.Delta
	finished  time.Time
}

// pass is one reconciliation:
//
//  1. snapshot local data
//  2. find the remote blob; if there is none, upload local as the baseline
//  3. download it; if it is byte-identical to what this device last
//     synced, local is authoritative and is uploaded as is
//  4. otherwise merge; stop on conflicts without touching either side
//  5. apply the merged changes locally, upload the merged bundle
func (e *Engine) pass(ctx context.Context, started time.Time) (passResult, error) {
	local, err := bundle.Snapshot(ctx, e.local, started)
	if err != nil {
		return passResult{}, fmt.Errorf("read local data: %w", err)
	}

	h, err := e.remoteHandle(ctx)
	if err != nil {
		return passResult{}, err
	}
	if h == nil {
		if err := e.upload(ctx, local, nil); err != nil {
			return passResult{}, err
		}
		return passResult{mode: "baseline", finished: e.now()}, nil
	}

	data, err := e.transport.Download(ctx, h)
	if errors.Is(err, common.ErrNotFound) {
		e.log.Warn(ctx, "remote blob disappeared, uploading baseline", "handle", h.ID)
		e.forgetHandle()
		if err := e.upload(ctx, local, nil); err != nil {
			return passResult{}, err
		}
		return passResult{mode: "baseline", finished: e.now()}, nil
	}
	if err != nil {
		e.forgetHandle()
		return passResult{}, err
	}

	if e.knownDigest(h) == digest(data) {
		if err := e.upload(ctx, local, h); err != nil {
			return passResult{}, err
		}
		return passResult{mode: "push", finished: e.now()}, nil
	}

	remote, err := bundle.Decode(data, e.cfg.Password)
	if err != nil {
		return passResult{}, fmt.Errorf("read remote bundle: %w", err)
	}

	res, changes, err := e.mergeAndApply(ctx, local, remote)
	if err != nil {
		return passResult{}, err
	}
	if len(res.Conflicts) > 0 {
		return passResult{conflicts: res.Conflicts}, nil
	}

	if len(BundleDelta(remote, res.Bundle)) == 0 && settingsEqual(remote.Settings, res.Bundle.Settings) {
		e.remember(ctx, h, data)
	} else if err := e.upload(ctx, res.Bundle, h); err != nil {
		return passResult{}, err
	}
	return passResult{mode: "merge", changes: changes, finished: e.now()}, nil
}

// mergeAndApply merges and writes the remote side's contributions into the
// local store. Writes only land if the target records still match the
// snapshot the merge was computed from; otherwise local is read again and
// merged anew, up to maxRebase times.
func (e *Engine) mergeAndApply(ctx context.Context, local, remote *bundle.DataBundle) (MergeResult, map[string]models.Delta, error) {
	for attempt := 1; ; attempt++ {
		e.mu.Lock()
		res := merge(local, remote, e.cfg.ConflictWindow, e.now(), e.resolvedCopyLocked())
		e.mu.Unlock()

		if len(res.Conflicts) > 0 {
			return res, nil, nil
		}

		changes, err := e.applyLocal(ctx, local, res.Bundle)
		if !errors.Is(err, common.ErrStaleWrite) {
			return res, changes, err
		}
		if attempt >= maxRebase {
			return MergeResult{}, nil, fmt.Errorf("local data kept changing during sync: %w", err)
		}
		e.log.Debug(ctx, "local data changed during merge, rebasing", "attempt", attempt)

		local, err = bundle.Snapshot(ctx, e.local, e.now())
		if err != nil {
			return MergeResult{}, nil, fmt.Errorf("read local data: %w", err)
		}
	}
}

func (e *Engine) resolvedCopyLocked() resolved {
	out := make(resolved, len(e.resolved))
	for c, ids := range e.resolved {
		out[c] = make(map[string]bool, len(ids))
		for id := range ids {
			out[c][id] = true
		}
	}
	return out
}

// applyLocal writes merged records that differ from local, guarded by the
// local values they were merged from. The merge never drops a local record,
// so nothing is deleted.
func (e *Engine) applyLocal(ctx context.Context, local, merged *bundle.DataBundle) (map[string]models.Delta, error) {
	declared := map[string]models.Collection{}
	for _, c := range e.local.Collections() {
		declared[c.Name] = c
	}

	changes := map[string]models.Delta{}
	writes := map[string][]models.Record{}
	base := map[string]map[string]models.Record{}
	for name, d := range BundleDelta(local, merged) {
		c, ok := declared[name]
		if !ok {
			continue
		}
		changes[name] = d
		for _, id := range append(d.Added, d.Modified...) {
			writes[name] = append(writes[name], d.Changes[id])
		}
		if len(d.Modified) > 0 {
			base[name] = map[string]models.Record{}
			for _, r := range local.Records(name) {
				base[name][r.Key(c.KeyField)] = r
			}
		}
	}
	if len(writes) > 0 {
		if err := e.local.PutManyIfUnchanged(ctx, writes, base); err != nil {
			return nil, fmt.Errorf("apply merged data: %w", err)
		}
	}

	for k, v := range merged.Settings {
		if _, ok := local.Settings[k]; ok {
			continue
		}
		if err := e.local.PutSetting(ctx, k, v); err != nil {
			return nil, fmt.Errorf("apply merged settings: %w", err)
		}
	}
	return changes, nil
}

func (e *Engine) upload(ctx context.Context, b *bundle.DataBundle, h *backup.Handle) error {
	data, err := bundle.Encode(b, e.cfg.Password)
	if err != nil {
		return err
	}
	nh, err := e.transport.Upload(ctx, data, h)
	if err != nil {
		e.forgetHandle()
		return err
	}
	e.remember(ctx, nh, data)
	return nil
}

// remoteHandle returns the cached handle or looks the blob up.
func (e *Engine) remoteHandle(ctx context.Context) (*backup.Handle, error) {
	e.mu.Lock()
	h := e.handle
	e.mu.Unlock()
	if h != nil {
		return h, nil
	}

	h, err := e.transport.FindExisting(ctx)
	if err != nil {
		return nil, err
	}
	e.loadRemoteState(ctx)

	e.mu.Lock()
	e.handle = h
	e.mu.Unlock()
	return h, nil
}

func (e *Engine) forgetHandle() {
	e.mu.Lock()
	e.handle = nil
	e.mu.Unlock()
}

func (e *Engine) loadRemoteState(ctx context.Context) {
	e.mu.Lock()
	loaded := e.remoteLoaded
	e.mu.Unlock()
	if loaded {
		return
	}

	var rs remoteState
	v, ok, err := e.local.GetMeta(ctx, metaRemote)
	if err != nil {
		e.log.Warn(ctx, "failed to read remote state", "error", err)
		return
	}
	if ok {
		if err := json.Unmarshal([]byte(v), &rs); err != nil {
			e.log.Warn(ctx, "ignoring corrupt remote state", "error", err)
			rs = remoteState{}
		}
	}

	e.mu.Lock()
	e.remote = rs
	e.remoteLoaded = true
	e.mu.Unlock()
}

// knownDigest is the digest of the blob content this device last uploaded
// or merged, or "" when h is a different blob.
func (e *Engine) knownDigest(h *backup.Handle) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.remote.Handle != h.ID {
		return ""
	}
	return e.remote.Digest
}

func (e *Engine) remember(ctx context.Context, h *backup.Handle, data []byte) {
	rs := remoteState{Handle: h.ID, Digest: digest(data)}

	e.mu.Lock()
	e.handle = h
	e.remote = rs
	e.remoteLoaded = true
	e.mu.Unlock()

	b, _ := json.Marshal(rs)
	if err := e.local.SetMeta(ctx, metaRemote, string(b)); err != nil {
		e.log.Warn(ctx, "failed to persist remote state", "error", err)
	}
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func settingsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	return models.Record(a).Equal(models.Record(b))
}

// Resolve settles one conflict by writing the chosen value locally. The
// chosen record's updatedAt moves past both sides so it wins from now on.
// Resolving the last conflict runs a new pass.
func (e *Engine) Resolve(ctx context.Context, collection, id string, res Resolution) error {
	e.mu.Lock()
	var c models.Conflict
	found := false
	for _, cf := range e.conflicts {
		if cf.Collection == collection && cf.RecordID == id {
			c, found = cf, true
			break
		}
	}
	e.mu.Unlock()
	if !found {
		return fmt.Errorf("conflict %s/%s: %w", collection, id, common.ErrNotFound)
	}

	chosen, err := chooseRecord(c, res, e.now())
	if err != nil {
		return err
	}
	if err := e.local.Put(ctx, collection, chosen); err != nil {
		return fmt.Errorf("apply resolution: %w", err)
	}

	e.mu.Lock()
	kept := e.conflicts[:0]
	for _, cf := range e.conflicts {
		if cf.Collection != collection || cf.RecordID != id {
			kept = append(kept, cf)
		}
	}
	e.conflicts = kept
	if e.resolved[collection] == nil {
		e.resolved[collection] = map[string]bool{}
	}
	e.resolved[collection][id] = true
	remaining := len(kept)
	publish := e.setLocked(func(s *State) {
		s.ConflictCount = remaining
		if remaining == 0 && s.Status == StatusConflict {
			s.Status = StatusIdle
		}
	})
	e.mu.Unlock()
	publish()

	e.log.Info(ctx, "conflict resolved", "collection", collection, "id", id, "choice", res.Choice.String(), "remaining", remaining)
	if remaining == 0 {
		e.SyncNow(ctx)
	}
	return nil
}

func chooseRecord(c models.Conflict, res Resolution, now time.Time) (models.Record, error) {
	var chosen models.Record
	switch res.Choice {
	case ResolveLocal:
		chosen = c.Local.Clone()
	case ResolveRemote:
		chosen = c.Remote.Clone()
	case ResolveMerged:
		if res.Value == nil {
			return nil, fmt.Errorf("%w: merged resolution needs a value", common.ErrValidation)
		}
		chosen = res.Value.Clone()
	default:
		return nil, fmt.Errorf("%w: unknown resolution %d", common.ErrValidation, res.Choice)
	}

	keyField := "id"
	if col, ok := models.LookupCollection(c.Collection); ok {
		keyField = col.KeyField
	}
	if k := chosen.Key(keyField); k != c.RecordID {
		return nil, fmt.Errorf("%w: resolved record key %q does not match %q", common.ErrValidation, k, c.RecordID)
	}

	stamp := now.UTC()
	for _, r := range []models.Record{c.Local, c.Remote} {
		if t, ok := r.UpdatedAt(); ok && t.After(stamp) {
			stamp = t
		}
	}
	chosen["updatedAt"] = models.FormatTime(stamp)
	return chosen, nil
}
