package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"odwatch/sink"
)

type Config struct {
	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// driver prints one JSON object per diff row.
type driver struct {
	mu  sync.Mutex
	out io.Writer
}

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	d.out = c.Writer
	if d.out == nil {
		d.out = os.Stdout
	}
	return nil
}

func (d *driver) Push(_ context.Context, b sink.Batch) error {
	if b.Rows == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	enc := json.NewEncoder(d.out)
	for i := 0; i < b.Rows.Len(); i++ {
		if err := enc.Encode(b.Rows.Record(i)); err != nil {
			return fmt.Errorf("stdout-sink: %w", err)
		}
	}
	return nil
}

func (d *driver) Close() error { return nil }

func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
