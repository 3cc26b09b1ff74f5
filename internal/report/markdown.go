package report

import (
	"fmt"
	"strings"

	"odwatch/internal/dataset"
)

// GitHub rejects issue bodies above 65536 characters.
const maxBody = 60000

// Markdown renders ds as a GitHub table, truncated to fit an issue body.
func Markdown(ds *dataset.Dataset) string {
	if ds == nil || ds.Len() == 0 {
		return NoContent
	}
	var sb strings.Builder
	cols := ds.Columns()
	fmt.Fprintf(&sb, "%d rows differ.\n\n", ds.Len())
	writeLine(&sb, cols)
	sep := make([]string, len(cols))
	for i := range sep {
		sep[i] = "---"
	}
	writeLine(&sb, sep)

	cells := make([]string, len(cols))
	for i := 0; i < ds.Len(); i++ {
		for j, v := range ds.Row(i) {
			cells[j] = v.String()
		}
		mark := sb.Len()
		writeLine(&sb, cells)
		if sb.Len() > maxBody {
			body := sb.String()[:mark]
			return body + fmt.Sprintf("\n_%d more rows not shown._\n", ds.Len()-i)
		}
	}
	return sb.String()
}

func writeLine(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, c := range cells {
		c = strings.ReplaceAll(c, "|", `\|`)
		c = strings.ReplaceAll(c, "\n", " ")
		sb.WriteString(" ")
		sb.WriteString(c)
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}
