package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"odwatch/internal/dataset"
)

func init() { Register("xlsx", parseXLSX) }

// parseXLSX reads the first sheet; its first row is the header. Blank rows
// are skipped and short rows padded with nulls.
func parseXLSX(r io.Reader, _ ParseOptions) (*dataset.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return dataset.Empty(), nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return dataset.Empty(), nil
	}

	records := make([][]string, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		if len(cells) > len(rows[0]) {
			cells = cells[:len(rows[0])]
		}
		records = append(records, cells)
	}
	return dataset.FromText(rows[0], records)
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
