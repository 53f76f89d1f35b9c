// Package schema implements the relational introspection collaborator: it
// extracts table and column metadata, row counts, and bounded samples from a
// SQLite database so the router and chunk indexer can describe the data
// without executing arbitrary SQL. It also executes generated queries and
// formats their results for answers.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

const (
	// sampleValueCap bounds the distinct values captured per column.
	sampleValueCap = 5
	// sampleRowCap bounds the raw rows captured per table.
	sampleRowCap = 3
)

// Column describes a single column of an introspected table.
type Column struct {
	// Name is the column name as declared.
	Name string
	// Type is the declared SQLite type affinity (e.g. "INTEGER", "TEXT").
	Type string
	// Samples holds up to sampleValueCap distinct non-null values, rendered
	// as strings in database order.
	Samples []string
}

// Table describes a single introspected table.
type Table struct {
	// Name is the table name.
	Name string
	// Columns are the table's columns in declaration order.
	Columns []Column
	// RowCount is the number of rows at introspection time.
	RowCount int
	// SampleRows holds up to sampleRowCap rows, values rendered as strings,
	// parallel to Columns.
	SampleRows [][]string
}

// Snapshot is a point-in-time view of the whole schema. It is the input to
// the chunk indexer and to SQL generation.
type Snapshot struct {
	// Tables are all user tables in sqlite_master order.
	Tables []Table
}

// TableNames returns the table names in snapshot order.
func (s *Snapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Introspector reads metadata and samples from a SQLite database.
// It is safe for concurrent use; the underlying *sql.DB pools connections.
type Introspector struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// Open opens (or creates) a SQLite database at the given path.
// Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Introspector, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("schema: open %s: %w", path, err)
	}
	// A single connection keeps :memory: databases coherent across queries.
	db.SetMaxOpenConns(1)
	return &Introspector{db: db}, nil
}

// Close releases the database connection pool.
func (i *Introspector) Close() error {
	if err := i.db.Close(); err != nil {
		return fmt.Errorf("schema: close: %w", err)
	}
	return nil
}

// Tables returns the names of all user tables, excluding SQLite internals.
func (i *Introspector) Tables(ctx context.Context) ([]string, error) {
	const q = `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid`
	rows, err := i.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("schema: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("schema: scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: table rows: %w", err)
	}
	return names, nil
}

// Snapshot introspects every user table: columns with declared types,
// row counts, bounded distinct value samples, and a few raw sample rows.
func (i *Introspector) Snapshot(ctx context.Context) (*Snapshot, error) {
	names, err := i.Tables(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		tbl, err := i.introspectTable(ctx, name)
		if err != nil {
			return nil, err
		}
		snap.Tables = append(snap.Tables, *tbl)
	}
	return snap, nil
}

// introspectTable gathers columns, row count, and samples for one table.
func (i *Introspector) introspectTable(ctx context.Context, name string) (*Table, error) {
	tbl := &Table{Name: name}

	// PRAGMA table_info cannot be parameterised; name comes from
	// sqlite_master and is quoted for safety.
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(name)))
	if err != nil {
		return nil, fmt.Errorf("schema: table_info %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notNull, pk int
			colName, colType string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("schema: scan table_info %s: %w", name, err)
		}
		if colType == "" {
			colType = "TEXT"
		}
		tbl.Columns = append(tbl.Columns, Column{Name: colName, Type: colType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: table_info rows %s: %w", name, err)
	}

	if err := i.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(name))).Scan(&tbl.RowCount); err != nil {
		return nil, fmt.Errorf("schema: row count %s: %w", name, err)
	}

	for ci := range tbl.Columns {
		samples, err := i.sampleColumn(ctx, name, tbl.Columns[ci].Name)
		if err != nil {
			return nil, err
		}
		tbl.Columns[ci].Samples = samples
	}

	sampleRows, err := i.sampleRows(ctx, name, len(tbl.Columns))
	if err != nil {
		return nil, err
	}
	tbl.SampleRows = sampleRows

	return tbl, nil
}

// sampleColumn returns up to sampleValueCap distinct non-null values.
func (i *Introspector) sampleColumn(ctx context.Context, table, column string) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT %d`,
		quoteIdent(column), quoteIdent(table), quoteIdent(column), sampleValueCap)
	rows, err := i.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("schema: sample %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var samples []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("schema: scan sample %s.%s: %w", table, column, err)
		}
		samples = append(samples, renderValue(v))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: sample rows %s.%s: %w", table, column, err)
	}
	return samples, nil
}

// sampleRows returns up to sampleRowCap full rows rendered as strings.
func (i *Introspector) sampleRows(ctx context.Context, table string, width int) ([][]string, error) {
	q := fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, quoteIdent(table), sampleRowCap)
	rows, err := i.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("schema: sample rows %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		vals := make([]any, width)
		ptrs := make([]any, width)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("schema: scan row %s: %w", table, err)
		}
		rendered := make([]string, width)
		for i, v := range vals {
			rendered[i] = renderValue(v)
		}
		out = append(out, rendered)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: rows %s: %w", table, err)
	}
	return out, nil
}

// Execute runs a read query and formats the result as an aligned text table,
// the shape the answer payload carries for SQL-path questions.
func (i *Introspector) Execute(ctx context.Context, query string) (string, error) {
	rows, err := i.db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("schema: execute: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("schema: execute columns: %w", err)
	}

	var b strings.Builder
	header := strings.Join(cols, " | ")
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", len(header)))

	n := 0
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("schema: execute scan: %w", err)
		}
		rendered := make([]string, len(cols))
		for i, v := range vals {
			rendered[i] = renderValue(v)
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(rendered, " | "))
		n++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("schema: execute rows: %w", err)
	}
	if n == 0 {
		return "query returned no rows", nil
	}
	return b.String(), nil
}

// quoteIdent wraps an identifier in double quotes, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// renderValue converts a scanned database value to its display string.
func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case float64:
		// Trim trailing zeros so 699.990000 reads as 699.99.
		s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", t), "0"), ".")
		return s
	default:
		return fmt.Sprintf("%v", t)
	}
}
