package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
	fail  map[string]error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return f.fail[name]
}

func (f *fakeExec) ListItems(ctx context.Context, args []string) error {
	return f.record("items", args)
}
func (f *fakeExec) AddItem(ctx context.Context, args []string) error { return f.record("add", args) }
func (f *fakeExec) CompleteItem(ctx context.Context, args []string) error {
	return f.record("done", args)
}
func (f *fakeExec) ReopenItem(ctx context.Context, args []string) error {
	return f.record("reopen", args)
}
func (f *fakeExec) RemoveItem(ctx context.Context, args []string) error { return f.record("rm", args) }
func (f *fakeExec) Spaces(ctx context.Context, args []string) error     { return f.record("spaces", args) }
func (f *fakeExec) Feeds(ctx context.Context, args []string) error      { return f.record("feeds", args) }
func (f *fakeExec) Tokens(ctx context.Context, args []string) error     { return f.record("tokens", args) }
func (f *fakeExec) Quote(ctx context.Context, args []string) error      { return f.record("quote", args) }
func (f *fakeExec) Weight(ctx context.Context, args []string) error     { return f.record("weight", args) }
func (f *fakeExec) Settings(ctx context.Context, args []string) error {
	return f.record("settings", args)
}
func (f *fakeExec) Sync(ctx context.Context) error      { return f.record("sync", nil) }
func (f *fakeExec) Status(ctx context.Context) error    { return f.record("status", nil) }
func (f *fakeExec) Conflicts(ctx context.Context) error { return f.record("conflicts", nil) }
func (f *fakeExec) Resolve(ctx context.Context, args []string) error {
	return f.record("resolve", args)
}
func (f *fakeExec) Export(ctx context.Context, args []string) error { return f.record("export", args) }
func (f *fakeExec) Import(ctx context.Context, args []string) error { return f.record("import", args) }

func capturePrint(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_DispatchesCommandsWithArgs(t *testing.T) {
	out := capturePrint(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"",
		"add note buy milk",
		"l",
		"items all",
		"done ab12",
		"reopen ab12",
		"rm ab12",
		"spaces add Home",
		"feeds add https://example.com/rss",
		"quote",
		"weight 72.5",
		"set theme dark",
		"tokens check github",
		"sync",
		"status",
		"conflicts",
		"resolve items ab12 local",
		"export out.json -p",
		"import out.json",
		"foobar",
		"exit",
		"sync",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "idle" }, bufio.NewScanner(input))

	assert.Equal(t, []string{
		"add note buy milk",
		"items",
		"items all",
		"done ab12",
		"reopen ab12",
		"rm ab12",
		"spaces add Home",
		"feeds add https://example.com/rss",
		"quote",
		"weight 72.5",
		"settings theme dark",
		"tokens check github",
		"sync",
		"status",
		"conflicts",
		"resolve items ab12 local",
		"export out.json -p",
		"import out.json",
	}, exec.calls, "commands after exit must not run")

	assert.Contains(t, *out, helpText)
	assert.Contains(t, *out, "Unknown command: foobar")
	assert.Contains(t, *out, "daybook (idle) > ")
	assert.Equal(t, "Bye!", (*out)[len(*out)-1])
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	out := capturePrint(t)

	exec := &fakeExec{fail: map[string]error{"sync": errors.New("offline")}}
	input := strings.NewReader("sync\nstatus\n")
	runREPL(context.Background(), exec, func() string { return "error" }, bufio.NewScanner(input))

	assert.Equal(t, []string{"sync", "status"}, exec.calls)
	assert.Contains(t, *out, "Error: offline")
}

func TestRunREPL_StopsOnEOF(t *testing.T) {
	capturePrint(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("")))
	assert.Empty(t, exec.calls)
}
