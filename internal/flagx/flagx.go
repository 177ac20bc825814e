// Package flagx contains helpers for layered flag parsing, so that separate
// config stages can each parse only the flags they own without tripping over
// flags belonging to another stage.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns a slice of command-line arguments that only contains
// the allowed flags (and their values).
//
// Supported formats:
//  1. Flag and value as separate arguments:  -a http://host
//  2. Flag and value combined with '=':      --server=http://host
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--flag=value" form
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		// "-flag value" form
		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// JSONConfigFlag extracts the value of the -c/-config flag from os.Args,
// returning "" when neither is present. It uses its own FlagSet so the main
// flag parsing stage never sees these flags.
func JSONConfigFlag() string {
	args := FilterArgs(os.Args[1:], []string{"-c", "-config", "--config"})

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	var short, long string
	fs.StringVar(&short, "c", "", "path to JSON config file")
	fs.StringVar(&long, "config", "", "path to JSON config file")
	if err := fs.Parse(args); err != nil {
		return ""
	}
	if long != "" {
		return long
	}
	return short
}
