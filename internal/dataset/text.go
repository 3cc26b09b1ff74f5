package dataset

import (
	"strconv"
)

// FromText builds a dataset from raw text cells, picking one kind per
// column: bool or number only when every non-null cell of the column parses
// as that kind, string otherwise. String columns keep the raw cell text, so
// "007" stays "007" next to "2A004". Short records are padded with nulls and
// repeated header names are renamed name.1, name.2, ...
func FromText(header []string, records [][]string) (*Dataset, error) {
	cols := UniqueColumns(header)
	rows := make([][]Value, len(records))
	for i := range records {
		rows[i] = make([]Value, len(cols))
	}

	for c := range cols {
		kind := KindNull
		for i, rec := range records {
			if c >= len(rec) {
				continue
			}
			v := Infer(rec[c])
			rows[i][c] = v
			switch {
			case v.IsNull():
			case kind == KindNull:
				kind = v.Kind()
			case kind != v.Kind():
				kind = KindString
			}
		}
		if kind != KindString {
			continue
		}
		for i, rec := range records {
			if c < len(rec) && !rows[i][c].IsNull() {
				rows[i][c] = String(rec[c])
			}
		}
	}
	return New(cols, rows)
}

// UniqueColumns renames repeated names the way pandas does on read: the
// first occurrence is kept and later ones get the lowest free .N suffix.
func UniqueColumns(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		seen[h] = true
	}
	used := map[string]bool{}
	for i, h := range header {
		name := h
		if used[name] {
			for n := 1; ; n++ {
				name = h + "." + strconv.Itoa(n)
				if !used[name] && !seen[name] {
					break
				}
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}
