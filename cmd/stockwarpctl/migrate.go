package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/dense-analysis/stockwarp/internal/migrate"
	"github.com/google/subcommands"
)

type migrateCmd struct {
	directory string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply or reverse database migrations" }
func (*migrateCmd) Usage() string {
	return `stockwarpctl migrate [-dir <directory>] [number]

  Moves the database to the given migration number, or the latest migration
  when no number is given. Numbers lower than the current migration run the
  reverse migrations.
`
}

func (cmd *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.directory, "dir", "migrations", "The directory containing migration files.")
}

func (cmd *migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	selectedMigration := migrate.Latest

	if f.NArg() > 1 {
		f.Usage()

		return subcommands.ExitUsageError
	}

	if f.NArg() == 1 {
		var err error
		selectedMigration, err = strconv.Atoi(f.Arg(0))

		if err != nil || selectedMigration < 0 {
			return fail(fmt.Errorf("invalid migration number: %s", f.Arg(0)))
		}
	}

	_, conn, err := connect(ctx)

	if err != nil {
		return fail(err)
	}

	defer conn.Close()

	executor, err := migrate.NewExecutor(conn, os.DirFS(cmd.directory))

	if err != nil {
		return fail(fmt.Errorf("error loading migrations: %w", err))
	}

	if err := executor.ApplyMigrations(ctx, selectedMigration); err != nil {
		return fail(fmt.Errorf("error applying migration: %w", err))
	}

	return subcommands.ExitSuccess
}
