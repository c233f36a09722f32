// Package migrate moves the database schema between numbered migrations.
//
// Migrations are files named like `0001_name.sql`, with a matching
// `0001_name_reverse.sql` to undo them. Statements are separated by `;` at the
// end of a line, so SQL functions in migration files won't work.
package migrate

import (
	"context"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/dense-analysis/stockwarp/internal/database"
	"github.com/dense-analysis/stockwarp/internal/logging"
)

// Latest selects the newest migration available.
const Latest = int(^uint(0) >> 1)

// Conn is the part of a database connection migrations need.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) error
	QueryRow(ctx context.Context, sql string, arguments ...any) database.Row
	ExecBatch(ctx context.Context, statements []database.Statement) error
}

type Executor struct {
	conn              Conn
	directory         fs.FS
	migrationFileList []string
}

func NewExecutor(conn Conn, directory fs.FS) (*Executor, error) {
	fileList, err := fs.ReadDir(directory, ".")

	if err != nil {
		return nil, err
	}

	migrationFileList := make([]string, 0, len(fileList))

	for _, file := range fileList {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			migrationFileList = append(migrationFileList, file.Name())
		}
	}

	sort.Strings(migrationFileList)

	return &Executor{conn, directory, migrationFileList}, nil
}

func (executor *Executor) CreateMigrationTable(ctx context.Context) error {
	return executor.conn.Exec(
		ctx,
		"CREATE TABLE IF NOT EXISTS stock_migration (id serial, migration_number integer NOT NULL UNIQUE);",
	)
}

func (executor *Executor) CurrentMigration(ctx context.Context) (int, error) {
	row := executor.conn.QueryRow(
		ctx,
		"SELECT COALESCE(MAX(migration_number), 0) FROM stock_migration;",
	)

	var migrationNumber int32
	err := row.Scan(&migrationNumber)

	return int(migrationNumber), err
}

func (executor *Executor) findFile(migrationNumber int, reverse bool) string {
	for _, filename := range executor.migrationFileList {
		splitList := strings.Split(filename, "_")
		fileMigrationNumber, _ := strconv.Atoi(splitList[0])
		isReverseFile := splitList[len(splitList)-1] == "reverse.sql"

		if migrationNumber == fileMigrationNumber && reverse == isReverseFile {
			return filename
		}
	}

	return ""
}

func splitStatements(contents string) []database.Statement {
	queries := strings.Split(contents, ";\n")
	statements := make([]database.Statement, 0, len(queries)+1)

	for _, query := range queries {
		if query = strings.TrimSpace(query); query != "" {
			statements = append(statements, database.Statement{SQL: query})
		}
	}

	return statements
}

// applyMigration runs one migration file and records it, returning `true`
// when there is no file to run.
func (executor *Executor) applyMigration(ctx context.Context, migrationNumber int, reverse bool) (bool, error) {
	filename := executor.findFile(migrationNumber, reverse)

	if filename == "" {
		return true, nil
	}

	logging.FromContext(ctx).WithField("file", filename).Info("applying migration")

	contents, err := fs.ReadFile(executor.directory, filename)

	if err != nil {
		return false, err
	}

	statements := splitStatements(string(contents))

	if reverse {
		statements = append(statements, database.Statement{
			SQL:       "DELETE FROM stock_migration WHERE migration_number = $1;",
			Arguments: []any{migrationNumber},
		})
	} else {
		statements = append(statements, database.Statement{
			SQL:       "INSERT INTO stock_migration (migration_number) VALUES ($1) ON CONFLICT DO NOTHING;",
			Arguments: []any{migrationNumber},
		})
	}

	return false, executor.conn.ExecBatch(ctx, statements)
}

// ApplyMigrations moves forwards or backwards to the selected migration.
//
// Moving forwards stops early at the first missing migration number.
func (executor *Executor) ApplyMigrations(ctx context.Context, selectedMigrationNumber int) error {
	if err := executor.CreateMigrationTable(ctx); err != nil {
		return err
	}

	startMigrationNumber, err := executor.CurrentMigration(ctx)

	if err != nil {
		return err
	}

	if selectedMigrationNumber < startMigrationNumber {
		for i := startMigrationNumber; i > selectedMigrationNumber; i-- {
			if _, err := executor.applyMigration(ctx, i, true); err != nil {
				return err
			}
		}

		return nil
	}

	for i := startMigrationNumber + 1; i <= selectedMigrationNumber; i++ {
		stop, err := executor.applyMigration(ctx, i, false)

		if err != nil {
			return err
		}

		if stop {
			break
		}
	}

	return nil
}
