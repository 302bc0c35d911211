package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/authsession/internal/flagx"
)

// parseFlags overlays cfg with command-line flags. Arguments it does not
// know are ignored (see flagx.FilterArgs), so the JSON file flag and
// subcommands can share the command line.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-b", "-s", "-d", "-r", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address of the identity backend")
	fs.StringVar(&cfg.Backend, "b", cfg.Backend, "backend: rest, grpc or memory")
	fs.StringVar(&cfg.TokenStore, "s", cfg.TokenStore, "token store: sqlite, redis or memory")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "SQLite database file")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "Redis address")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "per-request timeout")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
