package source

import (
	"io"

	"odwatch/internal/dataset"
)

func init() { Register("csv", parseCSV) }

func parseCSV(r io.Reader, opts ParseOptions) (*dataset.Dataset, error) {
	sep := opts.Separator
	if sep == 0 {
		sep = ','
	}
	return dataset.ReadCSV(r, sep)
}
