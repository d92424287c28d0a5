// Package flagx holds helpers for parsing a subset of command-line flags
// without tripping over flags owned by other layers (cobra, go test).
package flagx

import (
	"flag"
	"io"
	"strings"
)

// ConfigFlagNames are the flags that point at a config file.
var ConfigFlagNames = []string{"-c", "-config", "--config"}

// FilterArgs keeps only the flags named in allowedFlags together with their
// values. Both "-c file" and "-c=file" forms are recognised; a following
// token that starts with "-" is never consumed as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigPath returns the config file named by -c / -config / --config in
// args, or "" when none is given. The last occurrence wins.
func ConfigPath(args []string) string {
	var path string

	// the flag package accepts "--config" for a flag named "config"
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, ConfigFlagNames))

	return path
}
