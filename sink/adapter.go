package sink

import (
	"context"
	"fmt"
	"sort"

	"odwatch/internal/dataset"
)

// Batch is one diff publication: the rows of the last diff of a run.
type Batch struct {
	Project string
	RunID   string
	Rows    *dataset.Dataset
}

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error // driver-specific Config
	Push(context.Context, Batch) error
	Close() error // idempotent
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q (known: %v)", name, Names())
}

func Names() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
