package source

import (
	"fmt"
	"io"
	"sort"

	"odwatch/internal/dataset"
)

// Parser turns raw file content into a dataset.
type Parser func(r io.Reader, opts ParseOptions) (*dataset.Dataset, error)

type ParseOptions struct {
	// Separator applies to csv only.
	Separator rune
}

var registry = map[string]Parser{}

// Register is called from each format's init().
func Register(format string, p Parser) {
	registry[format] = p
}

// ParserFor returns the parser registered for format ("csv", "xlsx", "json").
func ParserFor(format string) (Parser, error) {
	if p, ok := registry[format]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
}

// Formats lists the registered formats, sorted.
func Formats() []string {
	out := make([]string, 0, len(registry))
	for f := range registry {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
