// Package store executes read-only queries against the local market database
// file. Every call opens a private connection and closes it before returning;
// nothing is pooled or cached. The driver is picked from the file extension:
// .duckdb files use DuckDB, everything else is treated as SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"
)

// ErrStoreMissing reports that the database file does not exist yet.
var ErrStoreMissing = errors.New("store file not found")

const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

// Result holds one materialized query result. Rows preserve the store's
// column order; RowCount equals len(Rows).
type Result struct {
	Columns  []string
	Rows     [][]any
	RowCount int
	Duration time.Duration
}

// RowMaps returns the rows as column-name-keyed mappings.
func (r Result) RowMaps() []map[string]any {
	maps := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		entry := make(map[string]any, len(r.Columns))
		for i, column := range r.Columns {
			if i < len(row) {
				entry[column] = row[i]
			}
		}
		maps = append(maps, entry)
	}
	return maps
}

type openFunc func(driver, dsn string) (*sql.DB, error)

type Store struct {
	path   string
	driver string
	open   openFunc
}

func New(path string) *Store {
	return &Store{
		path:   path,
		driver: driverForPath(path),
		open:   sql.Open,
	}
}

// Path returns the store file location.
func (s *Store) Path() string {
	return s.path
}

// Driver returns the selected database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Exists reports whether the store file is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Execute runs one SELECT against the store. When the text carries no LIMIT
// substring, a LIMIT clause with rowLimit is appended after stripping any
// trailing semicolons. The check is a plain case-insensitive substring test,
// so a literal containing the word LIMIT suppresses injection; that known
// imprecision is part of the contract.
func (s *Store) Execute(ctx context.Context, sqlText string, rowLimit int) (Result, error) {
	if strings.TrimSpace(sqlText) == "" {
		return Result{}, fmt.Errorf("sql is required")
	}
	if !s.Exists() {
		return Result{}, fmt.Errorf("open store %q: %w", s.path, ErrStoreMissing)
	}

	start := time.Now()
	sqlText = applyRowLimit(sqlText, rowLimit)

	db, err := s.open(s.driver, s.path)
	if err != nil {
		return Result{}, fmt.Errorf("open store %q: %w", s.path, err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Duration: time.Since(start),
	}, nil
}

func applyRowLimit(sqlText string, rowLimit int) string {
	if rowLimit <= 0 {
		return strings.TrimSpace(sqlText)
	}
	trimmed := strings.TrimSpace(sqlText)
	if strings.Contains(strings.ToUpper(trimmed), "LIMIT") {
		return trimmed
	}
	return fmt.Sprintf("%s LIMIT %d", stripTrailingSemicolons(trimmed), rowLimit)
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func driverForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".duckdb") {
		return DriverDuckDB
	}
	return DriverSQLite
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
