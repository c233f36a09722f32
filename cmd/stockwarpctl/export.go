package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/dense-analysis/stockwarp/internal/analytics"
	"github.com/dense-analysis/stockwarp/internal/ledger"
	"github.com/google/subcommands"
)

type exportCmd struct {
	since     int64
	batchSize int
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "copy transactions into ClickHouse" }
func (*exportCmd) Usage() string {
	return `stockwarpctl export [-since <id>] [-batch <size>]

  Copies transactions into the ClickHouse stock_transaction_log table. By
  default the export continues after the last transaction already copied.
`
}

func (cmd *exportCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&cmd.since, "since", -1, "Copy transactions with IDs above this one.")
	f.IntVar(&cmd.batchSize, "batch", 1000, "The number of transactions to send at a time.")
}

func (cmd *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if cmd.batchSize < 1 {
		return fail(fmt.Errorf("invalid batch size: %d", cmd.batchSize))
	}

	cfg, conn, err := connect(ctx)

	if err != nil {
		return fail(err)
	}

	defer conn.Close()

	if cfg.ClickHouse.Addr == "" {
		return fail(errors.New("CLICKHOUSE_ADDR is required"))
	}

	chConn, err := analytics.Connect(ctx, cfg.ClickHouse)

	if err != nil {
		return fail(fmt.Errorf("ClickHouse connection error: %w", err))
	}

	defer chConn.Close()

	if err := analytics.CreateTable(ctx, chConn); err != nil {
		return fail(fmt.Errorf("creating table: %w", err))
	}

	since := cmd.since

	if since < 0 {
		if since, err = analytics.LastExportedID(ctx, chConn); err != nil {
			return fail(fmt.Errorf("finding the last exported transaction: %w", err))
		}
	}

	exported, err := analytics.Export(ctx, ledger.NewPostgresStore(conn), chConn, since, cmd.batchSize)

	if err != nil {
		return fail(fmt.Errorf("export failed after %d transactions: %w", exported, err))
	}

	fmt.Printf("Exported %d transactions\n", exported)

	return subcommands.ExitSuccess
}
