package graphload

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeConn captures every statement and bulk copy so tests can assert on the
// stage/merge/commit sequencing without a live database.
type fakeConn struct {
	execs   []execCall
	copies  []copyCall
	rows    []fakeRow // consumed by QueryRow in call order
	commits int
}

type execCall struct {
	sql  string
	args []any
}

type copyCall struct {
	table   string
	columns []string
	rows    [][]any
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		if i >= len(r.values) {
			break
		}
		if p, ok := dest[i].(*string); ok {
			p2, ok2 := r.values[i].(string)
			if !ok2 {
				return errors.New("fakeRow: value is not a string")
			}
			*p = p2
		}
	}
	return nil
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.execs = append(c.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeConn: Query not supported")
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if len(c.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	row := c.rows[0]
	c.rows = c.rows[1:]
	return row
}

func (c *fakeConn) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{conn: c}, nil
}

type fakeTx struct {
	conn      *fakeConn
	committed bool
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	t.conn.commits++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	return nil
}

func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	rows := [][]any{}
	for rowSrc.Next() {
		values, err := rowSrc.Values()
		if err != nil {
			return 0, err
		}
		rows = append(rows, values)
	}
	if err := rowSrc.Err(); err != nil {
		return 0, err
	}
	t.conn.copies = append(t.conn.copies, copyCall{
		table:   tableName[len(tableName)-1],
		columns: columnNames,
		rows:    rows,
	})
	return int64(len(rows)), nil
}

func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (t *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("fakeTx: Prepare not supported")
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.conn.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.conn.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.conn.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Conn() *pgx.Conn { return nil }
