package config

import (
	"flag"
	"os"
	"time"

	"github.com/formulus/formulus-go/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   base URL of the Synkronus API (default from Config)
//	-d string   data directory for database/attachments/bundle
//	-b int      pull batch size
//	-t int      request timeout in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-b", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the Synkronus API")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.IntVar(&cfg.PullBatchSize, "b", cfg.PullBatchSize, "pull batch size")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
