package transform

import (
	"errors"
	"fmt"

	"odwatch/internal/dataset"
)

// KeepColumns projects ds onto the requested columns that exist, in the
// requested order, and writes the projection as CSV to exportPath.
// Requested columns that do not exist are reported with ErrMissingColumn
// but do not prevent the projection.
func KeepColumns(ds *dataset.Dataset, columns []string, exportPath string) (*dataset.Dataset, error) {
	var present, missing []string
	seen := map[string]bool{}
	for _, c := range columns {
		if seen[c] {
			continue
		}
		seen[c] = true
		if ds.HasColumn(c) {
			present = append(present, c)
		} else {
			missing = append(missing, c)
		}
	}

	out, err := ds.Select(present)
	if err != nil {
		return ds, err
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("%w: %q", ErrMissingColumn, missing))
	}
	if exportPath != "" {
		if err := out.WriteCSVFile(exportPath); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrExport, exportPath, err))
		}
	}
	return out, errors.Join(errs...)
}

// FilterByColumnValues keeps the rows whose value in column is one of values.
func FilterByColumnValues(ds *dataset.Dataset, column string, values []dataset.Value) (*dataset.Dataset, error) {
	return filterMembership(ds, column, values, true)
}

// InvertedFilterByColumnValues keeps the rows whose value in column is not
// one of values.
func InvertedFilterByColumnValues(ds *dataset.Dataset, column string, values []dataset.Value) (*dataset.Dataset, error) {
	return filterMembership(ds, column, values, false)
}

func filterMembership(ds *dataset.Dataset, column string, values []dataset.Value, keepMembers bool) (*dataset.Dataset, error) {
	c, ok := ds.ColumnIndex(column)
	if !ok {
		return ds, fmt.Errorf("%w: %q", ErrMissingColumn, column)
	}
	set := make(map[dataset.Value]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return ds.Filter(func(row []dataset.Value) bool {
		_, member := set[row[c]]
		return member == keepMembers
	}), nil
}
