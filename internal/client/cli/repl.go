package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	ListItems(ctx context.Context, args []string) error
	AddItem(ctx context.Context, args []string) error
	CompleteItem(ctx context.Context, args []string) error
	ReopenItem(ctx context.Context, args []string) error
	RemoveItem(ctx context.Context, args []string) error
	Spaces(ctx context.Context, args []string) error
	Feeds(ctx context.Context, args []string) error
	Quote(ctx context.Context, args []string) error
	Weight(ctx context.Context, args []string) error
	Settings(ctx context.Context, args []string) error
	Tokens(ctx context.Context, args []string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Conflicts(ctx context.Context) error
	Resolve(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  items [all|<space>]              list open items (or all, or one space)
  add [task|note|link|event] <title>
  done <id>, reopen <id>, rm <id>  id may be a unique prefix
  spaces [add <name>]
  feeds [add <url> [<space>]|fetched <id>|stale [<age>]|rm <id>]
  quote [add <text>|fav <id>]
  weight [<kg>]
  settings [<key> <value>]
  tokens [set <service> <token> [<ttl>]|check <service>|rm <service>]
  sync, status, conflicts
  resolve <collection> <id> local|remote
  export <file> [-p], import <file> [-y]
  exit | quit`

// runREPL reads a line from scanner, parses the first token as the
// command and dispatches the remaining tokens to a. The prompt shows the
// sync status from statusFn. Handler errors are printed and the loop goes
// on. The loop exits on scanner EOF or on "exit"/"quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("daybook (%s) > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help", "?":
			printlnFn(helpText)

		case "l", "items":
			err = a.ListItems(ctx, args)

		case "add":
			err = a.AddItem(ctx, args)

		case "done":
			err = a.CompleteItem(ctx, args)

		case "reopen":
			err = a.ReopenItem(ctx, args)

		case "rm":
			err = a.RemoveItem(ctx, args)

		case "spaces":
			err = a.Spaces(ctx, args)

		case "feeds":
			err = a.Feeds(ctx, args)

		case "quote":
			err = a.Quote(ctx, args)

		case "weight":
			err = a.Weight(ctx, args)

		case "settings", "set":
			err = a.Settings(ctx, args)

		case "tokens":
			err = a.Tokens(ctx, args)

		case "sync":
			err = a.Sync(ctx)

		case "status":
			err = a.Status(ctx)

		case "conflicts":
			err = a.Conflicts(ctx)

		case "resolve":
			err = a.Resolve(ctx, args)

		case "export":
			err = a.Export(ctx, args)

		case "import":
			err = a.Import(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
