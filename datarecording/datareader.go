package datarecording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
)

// ErrNoTable is returned when a recording file has no table of the
// requested name.
var ErrNoTable = errors.New("no such table")

// Selection narrows down the rows a query returns. The zero value selects
// every row in insertion order.
type Selection struct {
	// Where is an SQL condition with ? placeholders, such as "Time >= ?".
	Where string
	Args  []any

	// OrderBy is an SQL ordering, such as "Time DESC".
	OrderBy string

	// Limit caps the number of rows. Zero means no cap.
	Limit  int
	Offset int
}

func (s Selection) filter() string {
	if s.Where == "" {
		return ""
	}

	return " WHERE " + s.Where
}

func (s Selection) window() string {
	q := ""

	if s.OrderBy != "" {
		q += " ORDER BY " + s.OrderBy
	}

	if s.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", s.Limit)
		if s.Offset > 0 {
			q += fmt.Sprintf(" OFFSET %d", s.Offset)
		}
	}

	return q
}

// TableInfo describes a table of a recording file.
type TableInfo struct {
	Name string
	Rows int
}

// A Reader reads back a file written by a DataRecorder.
type Reader struct {
	db *sql.DB
}

// OpenReader opens an existing recording file, such as
// results/stepsim_<id>.sqlite3.
func OpenReader(filename string) (*Reader, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	return &Reader{db: db}, nil
}

// NewReaderWithDB creates a Reader on an open database.
func NewReaderWithDB(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Tables lists the tables of the file, sorted by name, with their row
// counts.
func (r *Reader) Tables(ctx context.Context) ([]TableInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]TableInfo, 0, len(names))
	for _, name := range names {
		n, err := r.Count(ctx, name, Selection{})
		if err != nil {
			return nil, err
		}

		tables = append(tables, TableInfo{Name: name, Rows: n})
	}

	return tables, nil
}

// HasTable tells if the file has a table of the given name.
func (r *Reader) HasTable(ctx context.Context, table string) (bool, error) {
	var n int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		table).Scan(&n)
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// Count returns the number of rows of table that match the selection,
// ignoring its ordering and limits.
func (r *Reader) Count(
	ctx context.Context,
	table string,
	sel Selection,
) (int, error) {
	if err := r.mustHaveTable(ctx, table); err != nil {
		return 0, err
	}

	var n int

	q := "SELECT COUNT(*) FROM " + quoteName(table) + sel.filter()
	if err := r.db.QueryRowContext(ctx, q, sel.Args...).Scan(&n); err != nil {
		return 0, err
	}

	return n, nil
}

func (r *Reader) mustHaveTable(ctx context.Context, table string) error {
	ok, err := r.HasTable(ctx, table)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTable, table)
	}

	return nil
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Query reads the selected rows of table into entries of type T, which must
// be the struct the table was created from. Columns without a matching
// exported field are skipped; fields without a column are left zero.
func Query[T any](
	ctx context.Context,
	r *Reader,
	table string,
	sel Selection,
) ([]T, error) {
	entryType := reflect.TypeOf((*T)(nil)).Elem()
	if entryType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot read table %s into %s: not a struct",
			table, entryType)
	}

	if err := r.mustHaveTable(ctx, table); err != nil {
		return nil, err
	}

	q := "SELECT * FROM " + quoteName(table) + sel.filter() + sel.window()

	rows, err := r.db.QueryContext(ctx, q, sel.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fields := fieldIndices(entryType)
	entries := make([]T, 0)

	for rows.Next() {
		var entry T

		v := reflect.ValueOf(&entry).Elem()
		targets := make([]any, len(columns))

		for i, column := range columns {
			if idx, ok := fields[column]; ok {
				targets[i] = v.Field(idx).Addr().Interface()
			} else {
				targets[i] = new(any)
			}
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("reading table %s: %w", table, err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func fieldIndices(t reflect.Type) map[string]int {
	fields := make(map[string]int, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() {
			fields[f.Name] = i
		}
	}

	return fields
}

func quoteName(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
