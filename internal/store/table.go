package store

import (
	"context"
	"database/sql"
	"fmt"
)

// TableKind is the closed set of table variants.
type TableKind int

const (
	KindRelational TableKind = iota
	KindVector
)

func (k TableKind) String() string {
	switch k {
	case KindRelational:
		return "relational"
	case KindVector:
		return "vector"
	default:
		return fmt.Sprintf("TableKind(%d)", int(k))
	}
}

// Table is the capability shared by every stored table. Values are always
// bound as statement parameters.
type Table interface {
	Name() string
	Kind() TableKind
	CreateIfAbsent(ctx context.Context) error
	// Insert adds one row and returns its rowid. With no columns the values
	// are matched positionally against the table definition.
	Insert(ctx context.Context, values []any, columns ...string) (int64, error)
	// Select returns the rows matching predicate, or every row when the
	// predicate is empty. No match is an empty result, not an error.
	Select(ctx context.Context, fields []string, predicate string, args ...any) ([]Row, error)
	DeleteTable(ctx context.Context) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// RelationalTable is a plain table described by its column definitions.
type RelationalTable struct {
	name    string
	columns []string
	conn    querier
}

func NewRelationalTable(conn querier, name string, columnDefs ...string) *RelationalTable {
	return &RelationalTable{name: name, columns: columnDefs, conn: conn}
}

// bind returns a copy of the table that runs its statements on q.
func (t *RelationalTable) bind(q querier) *RelationalTable {
	c := *t
	c.conn = q
	return &c
}

func (t *RelationalTable) Name() string { return t.name }
func (t *RelationalTable) Kind() TableKind { return KindRelational }

func (t *RelationalTable) CreateIfAbsent(ctx context.Context) error {
	stmt, err := createStatement(t.name, t.columns)
	if err != nil {
		return err
	}
	if _, err := t.conn.ExecContext(ctx, stmt); err != nil {
		return wrapErr("create table "+t.name, err)
	}
	return nil
}

func (t *RelationalTable) Insert(ctx context.Context, values []any, columns ...string) (int64, error) {
	stmt, err := insertStatement(t.name, columns, len(values))
	if err != nil {
		return 0, err
	}
	return execInsert(ctx, t.conn, t.name, stmt, values...)
}

func (t *RelationalTable) Select(ctx context.Context, fields []string, predicate string, args ...any) ([]Row, error) {
	stmt, err := selectStatement(t.name, fields, predicate)
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, t.conn, t.name, stmt, args...)
}

func (t *RelationalTable) DeleteTable(ctx context.Context) error {
	return dropTable(ctx, t.conn, t.name)
}

func execInsert(ctx context.Context, conn querier, table, stmt string, args ...any) (int64, error) {
	res, err := conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, wrapErr("insert into "+table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapErr("read rowid of "+table, err)
	}
	return id, nil
}

func queryRows(ctx context.Context, conn querier, table, stmt string, args ...any) ([]Row, error) {
	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, wrapErr("select from "+table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrapErr("read columns of "+table, err)
	}

	result := []Row{}
	for rows.Next() {
		values := make(Row, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrapErr("scan row of "+table, err)
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate rows of "+table, err)
	}
	return result, nil
}

func dropTable(ctx context.Context, conn querier, table string) error {
	stmt, err := dropStatement(table)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return wrapErr("drop table "+table, err)
	}
	return nil
}
