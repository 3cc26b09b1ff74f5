package transform

import (
	"fmt"

	"odwatch/internal/dataset"
)

type DiffResult struct {
	Rows    *dataset.Dataset
	HasDiff bool
}

// Diff returns the rows of a followed by b that occur exactly once in that
// concatenation, compared over the union of both column sets. A row present
// in both inputs is dropped however many times it appears, and so is a row
// duplicated inside one input.
func Diff(a, b *dataset.Dataset) (*DiffResult, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: both inputs must be datasets", ErrNotDataset)
	}

	cols := a.Columns()
	for _, c := range b.Columns() {
		if !a.HasColumn(c) {
			cols = append(cols, c)
		}
	}
	all := append(a.Align(cols), b.Align(cols)...)

	count := make(map[string]int, len(all))
	keys := make([]string, len(all))
	for i, r := range all {
		keys[i] = dataset.RowKey(r)
		count[keys[i]]++
	}
	var rows [][]dataset.Value
	for i, r := range all {
		if count[keys[i]] == 1 {
			rows = append(rows, r)
		}
	}
	out, err := dataset.New(cols, rows)
	if err != nil {
		return nil, err
	}
	return &DiffResult{Rows: out, HasDiff: out.Len() > 0}, nil
}
