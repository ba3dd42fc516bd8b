// Package testutil provides a stub database/sql driver for postgres store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// StubConn is a single shared connection over in-memory tables. It parses
// only the INSERT, DELETE and SELECT shapes the prefs store issues.
type StubConn struct {
	mu        sync.Mutex
	Execs     []string
	Tables    map[string][]map[string]any
	FailPing  bool
	FailExec  bool
	FailQuery bool
}

// NewStubDB registers a uniquely named driver and opens a sql.DB on it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Rows returns a snapshot of a table's rows.
func (c *StubConn) Rows(table string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any(nil), c.Tables[table]...)
}

type stubDriver struct{ conn *StubConn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("ping fail")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "INSERT INTO"):
		table, cols, err := parseInsert(query)
		if err != nil {
			return nil, err
		}
		if len(cols) != len(args) {
			return nil, fmt.Errorf("column/arg mismatch for %s", table)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = args[i].Value
		}
		if strings.Contains(upper, "ON CONFLICT") {
			c.Tables[table] = without(c.Tables[table], cols[0], row[cols[0]])
		}
		c.Tables[table] = append(c.Tables[table], row)
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(upper, "DELETE FROM"):
		table, col, err := parseDelete(query)
		if err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("missing args for delete %s", table)
		}
		before := len(c.Tables[table])
		c.Tables[table] = without(c.Tables[table], col, args[0].Value)
		return driver.RowsAffected(int64(before - len(c.Tables[table]))), nil
	}
	return driver.RowsAffected(0), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailQuery {
		return nil, errors.New("query fail")
	}
	table, cols, where, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	var out [][]driver.Value
	for _, row := range c.Tables[table] {
		if where != "" && (len(args) == 0 || row[where] != args[0].Value) {
			continue
		}
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		out = append(out, vals)
	}
	return &stubRows{cols: cols, rows: out}, nil
}

func without(rows []map[string]any, col string, value any) []map[string]any {
	var kept []map[string]any
	for _, r := range rows {
		if r[col] != value {
			kept = append(kept, r)
		}
	}
	return kept
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func parseInsert(query string) (string, []string, error) {
	idx := strings.Index(strings.ToUpper(query), "INTO ")
	if idx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[idx+len("INTO "):])
	open, end := strings.Index(rest, "("), strings.Index(rest, ")")
	if open == -1 || end <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	return strings.ToLower(strings.TrimSpace(rest[:open])), splitColumns(rest[open+1 : end]), nil
}

func parseDelete(query string) (string, string, error) {
	rest := strings.TrimSpace(query[len("DELETE FROM "):])
	table, col := splitWhere(rest)
	if col == "" {
		return "", "", fmt.Errorf("cannot parse delete: %s", query)
	}
	return table, col, nil
}

func parseSelect(query string) (string, []string, string, error) {
	lower := strings.ToLower(query)
	from := strings.Index(lower, " from ")
	if !strings.HasPrefix(lower, "select ") || from == -1 {
		return "", nil, "", fmt.Errorf("cannot parse select: %s", query)
	}
	table, where := splitWhere(strings.TrimSpace(query[from+len(" from "):]))
	return table, splitColumns(query[len("select "):from]), where, nil
}

// splitWhere returns the table name and the column of a "col = $1" predicate.
func splitWhere(rest string) (string, string) {
	i := strings.Index(strings.ToLower(rest), " where ")
	if i == -1 {
		return strings.ToLower(strings.Fields(rest)[0]), ""
	}
	pred := strings.SplitN(rest[i+len(" where "):], "=", 2)
	return strings.ToLower(strings.TrimSpace(rest[:i])), strings.ToLower(strings.TrimSpace(pred[0]))
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(p)))
	}
	return out
}
