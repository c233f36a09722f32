// stockwarpctl runs administration tasks against the Stockwarp database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/dense-analysis/stockwarp/internal/config"
	"github.com/dense-analysis/stockwarp/internal/database"
	"github.com/dense-analysis/stockwarp/internal/env"
	"github.com/dense-analysis/stockwarp/internal/logging"
	"github.com/google/subcommands"
)

// connect loads the configuration and connects to Postgres.
func connect(ctx context.Context) (config.Config, *database.Conn, error) {
	cfg, err := config.LoadForTool()

	if err != nil {
		return cfg, nil, fmt.Errorf("configuration error: %w", err)
	}

	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return cfg, nil, fmt.Errorf("logging error: %w", err)
	}

	conn, err := database.Connect(ctx, cfg.Database.URL())

	if err != nil {
		return cfg, nil, fmt.Errorf("connection error: %w", err)
	}

	return cfg, conn, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)

	return subcommands.ExitFailure
}

func main() {
	env.LoadEnvironmentVariables()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commander.Register(&addUserCmd{}, "")
	commander.Register(&migrateCmd{}, "")
	commander.Register(&exportCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
