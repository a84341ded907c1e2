package config

import (
	"flag"
	"os"
	"time"

	"github.com/collabdesk/collabdesk/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   websocket URL of the push backend (default from Config)
//	-u string   user id for outbound messages (default from Config)
//	-d string   path of the local cache database (default from Config)
//	-r int      retry interval between send attempts, in seconds
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-u", "-d", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.EndpointURL, "a", cfg.EndpointURL, "websocket URL of the push backend")
	fs.StringVar(&cfg.UserID, "u", cfg.UserID, "user id for outbound messages")
	fs.StringVar(&cfg.CachePath, "d", cfg.CachePath, "path of the local cache database")
	retryInterval := fs.Int("r", int(cfg.RetryInterval.Seconds()), "retry interval between send attempts (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RetryInterval = time.Duration(*retryInterval) * time.Second
}
