package graphload

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aced-idp/metaload/internal/util"
)

// Conn is the subset of pgx.Conn the loaders use. One connection is owned
// exclusively by a single load invocation; there is no pooling.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Connect opens the database connection for a load. With no DATABASE_URL set,
// pgx falls back to the standard libpq environment variables.
func Connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return conn, nil
}

// stageAndMerge loads one batch of rows through a temporary staging table
// shaped like the target, then reconciles it against the target by primary
// key. The staging table, bulk copy, and merge share one transaction, so the
// per-batch commit also drops the staging table.
func stageAndMerge(
	ctx context.Context,
	conn Conn,
	table string,
	columns []string,
	rows [][]any,
	mergeSQL string,
) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch for %s: %w", table, err)
	}
	defer tx.Rollback(ctx)

	staging := "tmp_" + table
	createSQL := fmt.Sprintf(`CREATE TEMPORARY TABLE %q (LIKE %q) ON COMMIT DROP`, staging, table)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("create staging table for %s: %w", table, err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, columns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy batch into %s: %w", staging, err)
	}

	if _, err := tx.Exec(ctx, mergeSQL); err != nil {
		return fmt.Errorf("merge batch into %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch for %s: %w", table, err)
	}
	return nil
}
