// Package frame implements the in-memory table the scoring components build
// from requests and CSV files.
package frame

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "inclusion-scoring/internal/common/errors"
)

// Frame is an ordered set of named columns over positional rows. A Frame is
// never mutated after construction; every transformation returns a new one.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]interface{}
}

// missing markers follow the pandas read_csv defaults
var missingValues = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "NaN": {}, "nan": {}, "null": {}, "NULL": {}, "None": {},
}

// New zips each row positionally against columns. Rows whose length differs
// from len(columns) are rejected rather than misaligned.
func New(columns []string, rows [][]interface{}) (*Frame, error) {
	index, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, apperrors.NewSchemaMismatchError(i, len(columns), len(row),
				fmt.Sprintf("row %d has %d values, expected %d", i, len(row), len(columns)))
		}
	}
	return &Frame{columns: copyStrings(columns), index: index, rows: rows}, nil
}

// FromRecords builds a frame from rows keyed by column name. Absent keys
// become missing values; keys outside columns are rejected.
func FromRecords(columns []string, records []map[string]interface{}) (*Frame, error) {
	index, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		if rows[i], err = alignRecord(index, i, rec); err != nil {
			return nil, err
		}
	}
	return &Frame{columns: copyStrings(columns), index: index, rows: rows}, nil
}

// FromRows builds a frame from decoded JSON rows. Each row is either a
// positional []interface{} of exactly len(columns) values or a record
// keyed by column name, aligned as in FromRecords.
func FromRows(columns []string, data []interface{}) (*Frame, error) {
	index, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	rows := make([][]interface{}, len(data))
	for i, item := range data {
		switch row := item.(type) {
		case []interface{}:
			if len(row) != len(columns) {
				return nil, apperrors.NewSchemaMismatchError(i, len(columns), len(row),
					fmt.Sprintf("row %d has %d values, expected %d", i, len(row), len(columns)))
			}
			rows[i] = row
		case map[string]interface{}:
			if rows[i], err = alignRecord(index, i, row); err != nil {
				return nil, err
			}
		default:
			return nil, apperrors.NewParseError(fmt.Sprintf("row %d is neither an array nor an object", i), nil)
		}
	}
	return &Frame{columns: copyStrings(columns), index: index, rows: rows}, nil
}

func alignRecord(index map[string]int, row int, rec map[string]interface{}) ([]interface{}, error) {
	aligned := make([]interface{}, len(index))
	for key, val := range rec {
		pos, ok := index[key]
		if !ok {
			return nil, apperrors.NewUnknownColumnError(row, key)
		}
		aligned[pos] = val
	}
	return aligned, nil
}

func buildIndex(columns []string) (map[string]int, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, apperrors.NewSchemaMismatchError(-1, len(columns), len(columns),
				fmt.Sprintf("duplicate column %q", c))
		}
		index[c] = i
	}
	return index, nil
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	return copyStrings(f.columns)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Has reports whether the frame defines column name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) []interface{} {
	out := make([]interface{}, len(f.rows[i]))
	copy(out, f.rows[i])
	return out
}

// Value returns the raw cell at row i, column name.
func (f *Frame) Value(i int, name string) (interface{}, bool) {
	pos, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.rows[i][pos], true
}

// Column returns the raw values of one column.
func (f *Frame) Column(name string) ([]interface{}, error) {
	pos, ok := f.index[name]
	if !ok {
		return nil, apperrors.NewMissingColumnError(name)
	}
	out := make([]interface{}, len(f.rows))
	for i, row := range f.rows {
		out[i] = row[pos]
	}
	return out, nil
}

// Record returns row i as a feature map with inferred scalar types: numeric
// text becomes float64 and missing markers are omitted.
func (f *Frame) Record(i int) map[string]interface{} {
	rec := make(map[string]interface{}, len(f.columns))
	for pos, name := range f.columns {
		if v := Infer(f.rows[i][pos]); v != nil {
			rec[name] = v
		}
	}
	return rec
}

// Drop returns a frame without the named columns. Dropping a column the
// frame does not have is an error.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		if !f.Has(n) {
			return nil, apperrors.NewMissingColumnError(n)
		}
		drop[n] = struct{}{}
	}
	keep := make([]string, 0, len(f.columns))
	for _, c := range f.columns {
		if _, ok := drop[c]; !ok {
			keep = append(keep, c)
		}
	}
	return f.Select(keep...)
}

// Select returns a frame with the named columns in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	positions := make([]int, len(names))
	for i, n := range names {
		pos, ok := f.index[n]
		if !ok {
			return nil, apperrors.NewMissingColumnError(n)
		}
		positions[i] = pos
	}
	rows := make([][]interface{}, len(f.rows))
	for r, src := range f.rows {
		row := make([]interface{}, len(positions))
		for i, pos := range positions {
			row[i] = src[pos]
		}
		rows[r] = row
	}
	return New(names, rows)
}

// WithColumn returns a frame with values appended as column name. An
// existing column of that name is replaced in place.
func (f *Frame) WithColumn(name string, values []interface{}) (*Frame, error) {
	if len(values) != len(f.rows) {
		return nil, apperrors.NewSchemaMismatchError(-1, len(f.rows), len(values),
			fmt.Sprintf("column %q has %d values for %d rows", name, len(values), len(f.rows)))
	}

	columns := f.Columns()
	pos, exists := f.index[name]
	if !exists {
		columns = append(columns, name)
	}
	rows := make([][]interface{}, len(f.rows))
	for r, src := range f.rows {
		row := make([]interface{}, len(columns))
		copy(row, src)
		if exists {
			row[pos] = values[r]
		} else {
			row[len(columns)-1] = values[r]
		}
		rows[r] = row
	}
	return New(columns, rows)
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > len(f.rows) {
		n = len(f.rows)
	}
	return &Frame{columns: f.columns, index: f.index, rows: f.rows[:n]}
}

// Infer converts CSV text into a typed scalar. Non-string values are
// returned unchanged.
func Infer(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if _, missing := missingValues[s]; missing {
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

// FormatCell renders a cell the way it is written to CSV.
func FormatCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
