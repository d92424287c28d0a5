package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/syncer"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/filex"
)

var errUsage = errors.New("usage")

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// findItem resolves a full id or a unique id prefix.
func (a *App) findItem(ctx context.Context, ref string) (models.Item, error) {
	all, err := a.items.List(ctx)
	if err != nil {
		return models.Item{}, err
	}
	var found []models.Item
	for _, it := range all {
		if it.ID == ref {
			return it, nil
		}
		if strings.HasPrefix(it.ID, ref) {
			found = append(found, it)
		}
	}
	switch len(found) {
	case 0:
		return models.Item{}, fmt.Errorf("item %s: %w", ref, common.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return models.Item{}, fmt.Errorf("id prefix %q is ambiguous (%d items)", ref, len(found))
	}
}

func (a *App) printItem(it models.Item) {
	mark := " "
	if it.Completed {
		mark = "x"
	}
	line := fmt.Sprintf("%s  [%s] %s", shortID(it.ID), mark, it.Title)
	if it.Type != models.ItemTypeTask {
		line += fmt.Sprintf(" (%s)", it.Type)
	}
	if !it.DueDate.IsZero() {
		line += " due " + it.DueDate.Local().Format("2006-01-02")
	}
	fmt.Fprintln(a.out, line)
}

// ListItems prints open items, every item with "all", or the items of the
// space named by the first argument.
func (a *App) ListItems(ctx context.Context, args []string) error {
	var (
		list []models.Item
		err  error
	)
	switch {
	case len(args) == 0:
		list, err = a.items.Open(ctx)
	case args[0] == "all":
		list, err = a.items.List(ctx)
	default:
		var sp models.Space
		if sp, err = a.findSpace(ctx, strings.Join(args, " ")); err == nil {
			list, err = a.items.ListBySpace(ctx, sp.ID)
		}
	}
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No items.")
		return nil
	}
	for _, it := range list {
		a.printItem(it)
	}
	return nil
}

// AddItem creates an item. An optional leading type word selects the item
// type; the rest is the title.
func (a *App) AddItem(ctx context.Context, args []string) error {
	typ := models.ItemTypeTask
	if len(args) > 1 {
		switch t := models.ItemType(args[0]); t {
		case models.ItemTypeTask, models.ItemTypeNote, models.ItemTypeLink, models.ItemTypeEvent:
			typ, args = t, args[1:]
		}
	}
	if len(args) == 0 {
		return usage("add [task|note|link|event] <title>")
	}
	it, err := a.items.Create(ctx, models.Item{Title: strings.Join(args, " "), Type: typ})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s %s\n", it.Type, shortID(it.ID))
	return nil
}

func (a *App) CompleteItem(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("done <id>")
	}
	it, err := a.findItem(ctx, args[0])
	if err != nil {
		return err
	}
	if _, err := a.items.Complete(ctx, it.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Completed %q\n", it.Title)
	return nil
}

func (a *App) ReopenItem(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("reopen <id>")
	}
	it, err := a.findItem(ctx, args[0])
	if err != nil {
		return err
	}
	if _, err := a.items.Reopen(ctx, it.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Reopened %q\n", it.Title)
	return nil
}

func (a *App) RemoveItem(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("rm <id>")
	}
	it, err := a.findItem(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.items.Delete(ctx, it.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %q\n", it.Title)
	return nil
}

func (a *App) findSpace(ctx context.Context, name string) (models.Space, error) {
	all, err := a.spaces.List(ctx)
	if err != nil {
		return models.Space{}, err
	}
	for _, sp := range all {
		if strings.EqualFold(sp.Name, name) || sp.ID == name {
			return sp, nil
		}
	}
	return models.Space{}, fmt.Errorf("space %q: %w", name, common.ErrNotFound)
}

// Spaces lists spaces in display order, or creates one with "add <name>".
func (a *App) Spaces(ctx context.Context, args []string) error {
	if len(args) > 0 {
		if args[0] != "add" || len(args) < 2 {
			return usage("spaces [add <name>]")
		}
		sp, err := a.spaces.Create(ctx, models.Space{Name: strings.Join(args[1:], " ")})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added space %s\n", sp.Name)
		return nil
	}

	all, err := a.spaces.List(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(a.out, "No spaces.")
		return nil
	}
	for _, sp := range all {
		fmt.Fprintf(a.out, "%d. %s\n", sp.Order, sp.Name)
	}
	return nil
}

// Quote prints a random quote, adds one, or toggles a favorite.
func (a *App) Quote(ctx context.Context, args []string) error {
	if len(args) == 0 {
		q, err := a.quotes.Random(ctx, nil)
		if errors.Is(err, common.ErrNotFound) {
			fmt.Fprintln(a.out, "No quotes yet.")
			return nil
		}
		if err != nil {
			return err
		}
		a.printQuote(q)
		return nil
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return usage("quote add <text>")
		}
		q, err := a.quotes.Create(ctx, models.Quote{Text: strings.Join(args[1:], " ")})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added quote %s\n", shortID(q.ID))
		return nil
	case "fav":
		if len(args) != 2 {
			return usage("quote fav <id>")
		}
		q, err := a.quotes.ToggleFavorite(ctx, args[1])
		if err != nil {
			return err
		}
		a.printQuote(q)
		return nil
	default:
		return usage("quote [add <text>|fav <id>]")
	}
}

func (a *App) printQuote(q models.Quote) {
	star := ""
	if q.Favorite {
		star = " *"
	}
	if q.Author != "" {
		fmt.Fprintf(a.out, "%q - %s%s [%s]\n", q.Text, q.Author, star, shortID(q.ID))
		return
	}
	fmt.Fprintf(a.out, "%q%s [%s]\n", q.Text, star, shortID(q.ID))
}

// Weight records today's body weight, or prints the latest one.
func (a *App) Weight(ctx context.Context, args []string) error {
	if len(args) == 0 {
		w, err := a.workouts.LatestBodyWeight(ctx)
		if errors.Is(err, common.ErrNotFound) {
			fmt.Fprintln(a.out, "No weight recorded.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%.1f kg on %s\n", w.WeightKg, w.Date.Format("2006-01-02"))
		return nil
	}

	kg, err := strconv.ParseFloat(args[0], 64)
	if err != nil || len(args) != 1 {
		return usage("weight [<kg>]")
	}
	y, m, d := a.now().Date()
	w, err := a.workouts.BodyWeights.Create(ctx, models.BodyWeight{
		Date:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		WeightKg: kg,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Recorded %.1f kg\n", w.WeightKg)
	return nil
}

// Settings lists settings, or sets one key to a value. Values that parse
// as JSON scalars (numbers, booleans) are stored typed.
func (a *App) Settings(ctx context.Context, args []string) error {
	if len(args) >= 2 {
		return a.settings.Set(ctx, args[0], settingValue(strings.Join(args[1:], " ")))
	}
	if len(args) == 1 {
		return usage("settings [<key> <value>]")
	}

	all, err := a.settings.All(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(a.out, "%s = %v\n", k, all[k])
	}
	return nil
}

func settingValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// findFeed resolves a full feed id or a unique id prefix.
func (a *App) findFeed(ctx context.Context, ref string) (models.Feed, error) {
	all, err := a.feeds.List(ctx)
	if err != nil {
		return models.Feed{}, err
	}
	var found []models.Feed
	for _, f := range all {
		if f.ID == ref {
			return f, nil
		}
		if strings.HasPrefix(f.ID, ref) {
			found = append(found, f)
		}
	}
	switch len(found) {
	case 0:
		return models.Feed{}, fmt.Errorf("feed %s: %w", ref, common.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return models.Feed{}, fmt.Errorf("id prefix %q is ambiguous (%d feeds)", ref, len(found))
	}
}

func (a *App) printFeeds(fs []models.Feed) {
	for _, f := range fs {
		fetched := "never"
		if !f.LastFetched.IsZero() {
			fetched = f.LastFetched.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(a.out, "%s  %s  (fetched: %s)\n", shortID(f.ID), f.URL, fetched)
	}
}

// Feeds lists, adds, removes feeds and records fetches.
func (a *App) Feeds(ctx context.Context, args []string) error {
	const use = "feeds [add <url> [<space>] | fetched <id> | stale [<age>] | rm <id>]"
	if len(args) == 0 {
		all, err := a.feeds.List(ctx)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Fprintln(a.out, "No feeds.")
			return nil
		}
		a.printFeeds(all)
		return nil
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return usage(use)
		}
		f := models.Feed{URL: args[1]}
		if len(args) > 2 {
			sp, err := a.findSpace(ctx, strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			f.SpaceID = sp.ID
		}
		f, err := a.feeds.Create(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added feed %s\n", shortID(f.ID))
		return nil

	case "fetched":
		if len(args) != 2 {
			return usage(use)
		}
		f, err := a.findFeed(ctx, args[1])
		if err != nil {
			return err
		}
		_, err = a.feeds.MarkFetched(ctx, f.ID, a.now())
		return err

	case "stale":
		age := 24 * time.Hour
		if len(args) > 1 {
			d, err := time.ParseDuration(args[1])
			if err != nil || d <= 0 {
				return usage(use)
			}
			age = d
		}
		stale, err := a.feeds.Stale(ctx, age)
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			fmt.Fprintln(a.out, "All feeds are fresh.")
			return nil
		}
		a.printFeeds(stale)
		return nil

	case "rm":
		if len(args) != 2 {
			return usage(use)
		}
		f, err := a.findFeed(ctx, args[1])
		if err != nil {
			return err
		}
		return a.feeds.Delete(ctx, f.ID)
	}
	return usage(use)
}

// Tokens manages stored service credentials.
func (a *App) Tokens(ctx context.Context, args []string) error {
	const use = "tokens [set <service> <token> [<ttl>] | check <service> | rm <service>]"
	if len(args) == 0 {
		all, err := a.tokens.List(ctx)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Fprintln(a.out, "No tokens.")
			return nil
		}
		expiring, err := a.tokens.ExpiringWithin(ctx, 24*time.Hour)
		if err != nil {
			return err
		}
		soon := map[string]bool{}
		for _, t := range expiring {
			soon[t.Service] = true
		}
		now := a.now()
		for _, t := range all {
			state := "valid"
			switch {
			case t.Expired(now):
				state = "expired"
			case soon[t.Service]:
				state = "expires " + t.ExpiresAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(a.out, "%s: %s\n", t.Service, state)
		}
		return nil
	}

	switch args[0] {
	case "set":
		if len(args) < 3 || len(args) > 4 {
			return usage(use)
		}
		tok := models.AuthToken{Service: args[1], AccessToken: args[2]}
		if len(args) == 4 {
			ttl, err := time.ParseDuration(args[3])
			if err != nil || ttl <= 0 {
				return usage(use)
			}
			tok.ExpiresAt = a.now().Add(ttl)
		}
		if _, err := a.tokens.Put(ctx, tok); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Saved token for %s\n", tok.Service)
		return nil

	case "check":
		if len(args) != 2 {
			return usage(use)
		}
		_, ok, err := a.tokens.Valid(ctx, args[1])
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(a.out, "%s: valid\n", args[1])
		} else {
			fmt.Fprintf(a.out, "%s: missing or expired\n", args[1])
		}
		return nil

	case "rm":
		if len(args) != 2 {
			return usage(use)
		}
		return a.tokens.Delete(ctx, args[1])
	}
	return usage(use)
}

// Sync runs a reconciliation pass and reports the outcome.
// A failed previous pass is cleared and retried.
func (a *App) Sync(ctx context.Context) error {
	run := a.engine.SyncNow
	if a.engine.State().Status == syncer.StatusError {
		run = a.engine.Retry
	}
	if !run(ctx) {
		fmt.Fprintln(a.out, "A sync is already running.")
		return nil
	}
	return a.Status(ctx)
}

func (a *App) Status(ctx context.Context) error {
	s := a.engine.State()
	fmt.Fprintf(a.out, "Status: %s\n", s.Status)
	if s.LastSyncTime.IsZero() {
		fmt.Fprintln(a.out, "Last sync: never")
	} else {
		fmt.Fprintf(a.out, "Last sync: %s\n", s.LastSyncTime.Local().Format(time.DateTime))
	}
	if s.ConflictCount > 0 {
		fmt.Fprintf(a.out, "Conflicts: %d\n", s.ConflictCount)
	}
	if s.LastError != "" {
		fmt.Fprintf(a.out, "Last error: %s\n", s.LastError)
	}
	if s.Stalled(a.now(), time.Minute) {
		fmt.Fprintln(a.out, "Sync appears stuck on the backup provider.")
	}
	return nil
}

func (a *App) Conflicts(ctx context.Context) error {
	list := a.engine.Conflicts()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No conflicts.")
		return nil
	}
	for _, c := range list {
		lu, _ := c.Local.UpdatedAt()
		ru, _ := c.Remote.UpdatedAt()
		fmt.Fprintf(a.out, "%s %s  local %s  remote %s\n", c.Collection, c.RecordID,
			lu.Local().Format(time.DateTime), ru.Local().Format(time.DateTime))
	}
	return nil
}

// Resolve settles one conflict by keeping the local or the remote version.
func (a *App) Resolve(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("resolve <collection> <id> local|remote")
	}
	var choice syncer.Choice
	switch args[2] {
	case "local":
		choice = syncer.ResolveLocal
	case "remote":
		choice = syncer.ResolveRemote
	default:
		return usage("resolve <collection> <id> local|remote")
	}
	if err := a.engine.Resolve(ctx, args[0], args[1], syncer.Resolution{Choice: choice}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Kept %s version of %s/%s\n", choice, args[0], args[1])
	return nil
}

// Export writes every collection and setting to a file. With -p the
// bundle is encrypted with a password read from the terminal.
func (a *App) Export(ctx context.Context, args []string) error {
	var (
		path    string
		protect bool
	)
	for _, arg := range args {
		if arg == "-p" {
			protect = true
			continue
		}
		path = arg
	}
	if path == "" {
		return usage("export <file> [-p]")
	}

	var password []byte
	if protect {
		pw, err := a.newPassword()
		if err != nil {
			return err
		}
		password = pw
		defer common.WipeByteArray(password)
	}

	data, err := a.transfer.ExportAll(ctx, password)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported to %s\n", path)
	return nil
}

func (a *App) newPassword() ([]byte, error) {
	pw, err := GetPassword(a.out, "Export password")
	if err != nil {
		return nil, err
	}
	again, err := GetPassword(a.out, "Repeat password")
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(again)
	if len(pw) == 0 || string(pw) != string(again) {
		common.WipeByteArray(pw)
		return nil, fmt.Errorf("%w: passwords are empty or do not match", common.ErrValidation)
	}
	return pw, nil
}

// Import replaces all local data with the contents of a bundle file after
// a confirmation, which -y skips. A password is asked for only when the
// bundle is encrypted.
func (a *App) Import(ctx context.Context, args []string) error {
	var (
		path string
		yes  bool
	)
	for _, arg := range args {
		if arg == "-y" {
			yes = true
			continue
		}
		path = arg
	}
	if path == "" {
		return usage("import <file> [-y]")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !yes {
		ok, err := Confirm(a.reader, "This replaces ALL local data. Continue?", a.out)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.out, "Import cancelled.")
			return nil
		}
	}

	summary, err := a.transfer.ImportAll(ctx, data, nil)
	if errors.Is(err, common.ErrPasswordRequired) {
		pw, perr := GetPassword(a.out, "Bundle password")
		if perr != nil {
			return perr
		}
		defer common.WipeByteArray(pw)
		summary, err = a.transfer.ImportAll(ctx, data, pw)
	}
	if errors.Is(err, common.ErrInvalidPassword) {
		return errors.New("wrong password, nothing was imported")
	}
	if err != nil {
		return err
	}

	total := 0
	for _, n := range summary.Records {
		total += n
	}
	fmt.Fprintf(a.out, "Imported %d records and %d settings\n", total, summary.Settings)
	if len(summary.Skipped) > 0 {
		fmt.Fprintf(a.out, "Skipped unknown collections: %s\n", strings.Join(summary.Skipped, ", "))
	}
	return nil
}
