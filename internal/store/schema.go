package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ColumnSchema is one (name, declared type) pair in store column order.
type ColumnSchema struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type TableSchema struct {
	Name    string         `json:"name"`
	Columns []ColumnSchema `json:"columns"`
}

// Snapshot is the schema of every table, re-read from the store on each call.
// There is no staleness tracking; callers take a fresh snapshot right before
// they need one.
type Snapshot struct {
	Tables []TableSchema `json:"tables"`
}

// TableCount is the row count of one table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// Schema enumerates every table and its columns.
func (s *Store) Schema(ctx context.Context) (Snapshot, error) {
	if !s.Exists() {
		return Snapshot{}, fmt.Errorf("open store %q: %w", s.path, ErrStoreMissing)
	}

	db, err := s.open(s.driver, s.path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open store %q: %w", s.path, err)
	}
	defer func() { _ = db.Close() }()

	names, err := s.listTables(ctx, db)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{Tables: make([]TableSchema, 0, len(names))}
	for _, name := range names {
		columns, err := s.tableColumns(ctx, db, name)
		if err != nil {
			return Snapshot{}, err
		}
		snapshot.Tables = append(snapshot.Tables, TableSchema{Name: name, Columns: columns})
	}
	return snapshot, nil
}

// TableSchema returns the columns of a single table.
func (s *Store) TableSchema(ctx context.Context, table string) (TableSchema, error) {
	if !s.Exists() {
		return TableSchema{}, fmt.Errorf("open store %q: %w", s.path, ErrStoreMissing)
	}

	db, err := s.open(s.driver, s.path)
	if err != nil {
		return TableSchema{}, fmt.Errorf("open store %q: %w", s.path, err)
	}
	defer func() { _ = db.Close() }()

	columns, err := s.tableColumns(ctx, db, table)
	if err != nil {
		return TableSchema{}, err
	}
	if len(columns) == 0 {
		return TableSchema{}, fmt.Errorf("table %q not found", table)
	}
	return TableSchema{Name: table, Columns: columns}, nil
}

// Stats returns per-table row counts.
func (s *Store) Stats(ctx context.Context) ([]TableCount, error) {
	if !s.Exists() {
		return nil, fmt.Errorf("open store %q: %w", s.path, ErrStoreMissing)
	}

	db, err := s.open(s.driver, s.path)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", s.path, err)
	}
	defer func() { _ = db.Close() }()

	names, err := s.listTables(ctx, db)
	if err != nil {
		return nil, err
	}

	counts := make([]TableCount, 0, len(names))
	for _, name := range names {
		var count int64
		row := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(name))
		if err := row.Scan(&count); err != nil {
			return nil, fmt.Errorf("count rows in %q: %w", name, err)
		}
		counts = append(counts, TableCount{Table: name, Rows: count})
	}
	return counts, nil
}

func (s *Store) listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	var listSQL string
	switch s.driver {
	case DriverDuckDB:
		listSQL = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name`
	default:
		listSQL = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	}

	rows, err := db.QueryContext(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table names: %w", err)
	}
	return names, nil
}

func (s *Store) tableColumns(ctx context.Context, db *sql.DB, table string) ([]ColumnSchema, error) {
	if s.driver == DriverDuckDB {
		rows, err := db.QueryContext(ctx,
			`SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`, table)
		if err != nil {
			return nil, fmt.Errorf("describe table %q: %w", table, err)
		}
		defer func() { _ = rows.Close() }()
		return scanColumns(rows, table)
	}

	// PRAGMA table_info does not accept bind parameters; the identifier is
	// quoted instead.
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("describe table %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]ColumnSchema, 0)
	for rows.Next() {
		var (
			cid          int
			name         string
			declared     string
			notNull      int
			defaultValue sql.NullString
			primaryKey   int
		)
		if err := rows.Scan(&cid, &name, &declared, &notNull, &defaultValue, &primaryKey); err != nil {
			return nil, fmt.Errorf("scan column of %q: %w", table, err)
		}
		columns = append(columns, ColumnSchema{Name: name, Type: declared})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %q: %w", table, err)
	}
	return columns, nil
}

func scanColumns(rows *sql.Rows, table string) ([]ColumnSchema, error) {
	columns := make([]ColumnSchema, 0)
	for rows.Next() {
		var column ColumnSchema
		if err := rows.Scan(&column.Name, &column.Type); err != nil {
			return nil, fmt.Errorf("scan column of %q: %w", table, err)
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %q: %w", table, err)
	}
	return columns, nil
}

// RenderText formats a snapshot for inclusion in a model prompt.
func (s Snapshot) RenderText() string {
	var b strings.Builder
	for _, table := range s.Tables {
		b.WriteString("Table ")
		b.WriteString(table.Name)
		b.WriteString(":\n")
		for _, column := range table.Columns {
			b.WriteString("  - ")
			b.WriteString(column.Name)
			if column.Type != "" {
				b.WriteString(" (")
				b.WriteString(column.Type)
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
