// Package dataset holds the in-memory table threaded through a pipeline.
// A Dataset is never mutated after construction; every operation returns
// a new one.
package dataset

import (
	"fmt"
	"slices"
	"strings"
)

type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New validates that every row has one value per column.
func New(columns []string, rows [][]Value) (*Dataset, error) {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", c)
		}
		idx[c] = i
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("dataset: row %d has %d values, want %d", i, len(r), len(columns))
		}
	}
	return &Dataset{columns: slices.Clone(columns), index: idx, rows: rows}, nil
}

// MustNew is New for literals in tests and fixtures.
func MustNew(columns []string, rows ...[]Value) *Dataset {
	d, err := New(columns, rows)
	if err != nil {
		panic(err)
	}
	return d
}

func Empty() *Dataset { return &Dataset{index: map[string]int{}} }

func (d *Dataset) Columns() []string { return slices.Clone(d.columns) }
func (d *Dataset) Len() int          { return len(d.rows) }

func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

func (d *Dataset) ColumnIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) []Value { return slices.Clone(d.rows[i]) }

func (d *Dataset) Value(i int, column string) (Value, bool) {
	c, ok := d.index[column]
	if !ok {
		return Null(), false
	}
	return d.rows[i][c], true
}

// Record returns row i keyed by column name.
func (d *Dataset) Record(i int) map[string]any {
	out := make(map[string]any, len(d.columns))
	for c, name := range d.columns {
		out[name] = d.rows[i][c].Any()
	}
	return out
}

// Select projects onto the given columns, which must all exist.
func (d *Dataset) Select(columns []string) (*Dataset, error) {
	pos := make([]int, len(columns))
	for i, c := range columns {
		p, ok := d.index[c]
		if !ok {
			return nil, fmt.Errorf("dataset: unknown column %q", c)
		}
		pos[i] = p
	}
	rows := make([][]Value, len(d.rows))
	for i, r := range d.rows {
		nr := make([]Value, len(pos))
		for j, p := range pos {
			nr[j] = r[p]
		}
		rows[i] = nr
	}
	return New(columns, rows)
}

// Filter keeps the rows for which keep returns true, in order.
func (d *Dataset) Filter(keep func(row []Value) bool) *Dataset {
	rows := make([][]Value, 0, len(d.rows))
	for _, r := range d.rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return &Dataset{columns: d.columns, index: d.index, rows: rows}
}

// Sorted orders rows by the full column tuple, left to right. The sort is
// stable so identical input always yields identical order.
func (d *Dataset) Sorted() *Dataset {
	rows := slices.Clone(d.rows)
	slices.SortStableFunc(rows, compareRows)
	return &Dataset{columns: d.columns, index: d.index, rows: rows}
}

func compareRows(a, b []Value) int {
	for i := range a {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Align returns the rows of d laid out over columns, nulls where d lacks
// a column.
func (d *Dataset) Align(columns []string) [][]Value {
	out := make([][]Value, len(d.rows))
	for i, r := range d.rows {
		nr := make([]Value, len(columns))
		for j, c := range columns {
			if p, ok := d.index[c]; ok {
				nr[j] = r[p]
			}
		}
		out[i] = nr
	}
	return out
}

// Equal reports same columns and same rows in the same order.
func (d *Dataset) Equal(o *Dataset) bool {
	if d == nil || o == nil {
		return d == o
	}
	return slices.Equal(d.columns, o.columns) &&
		slices.EqualFunc(d.rows, o.rows, func(a, b []Value) bool { return slices.Equal(a, b) })
}

// RowKey encodes a row for hashing. Kinds are part of the key so 1 and "1"
// stay distinct.
func RowKey(row []Value) string {
	var sb strings.Builder
	for _, v := range row {
		sb.WriteByte(byte('0' + v.kind))
		sb.WriteString(v.String())
		sb.WriteByte(0x1f)
	}
	return sb.String()
}
