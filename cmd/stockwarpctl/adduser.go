package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dense-analysis/stockwarp/internal/ledger"
	"github.com/google/subcommands"
)

type addUserCmd struct{}

func (*addUserCmd) Name() string     { return "adduser" }
func (*addUserCmd) Synopsis() string { return "create a user with the starting cash balance" }
func (*addUserCmd) Usage() string {
	return `stockwarpctl adduser <username> <password>
`
}

func (*addUserCmd) SetFlags(*flag.FlagSet) {}

func (*addUserCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()

		return subcommands.ExitUsageError
	}

	cfg, conn, err := connect(ctx)

	if err != nil {
		return fail(err)
	}

	defer conn.Close()

	service := ledger.NewService(ledger.NewPostgresStore(conn), nil, ledger.Options{
		StartingCash: cfg.StartingCash,
		BcryptCost:   cfg.BcryptCost,
	})

	user, err := service.Register(ctx, f.Arg(0), f.Arg(1), f.Arg(1))

	if err != nil {
		return fail(fmt.Errorf("adding user: %w", err))
	}

	fmt.Printf("Created user %s with ID %d\n", user.Username, user.ID)

	return subcommands.ExitSuccess
}
