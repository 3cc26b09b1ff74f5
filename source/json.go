package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"odwatch/internal/dataset"
)

func init() { Register("json", parseJSON) }

// parseJSON accepts either an array of records or a column oriented object
// ({"col": {"0": v, "1": v}}). Key order of first appearance gives the
// column order, which is why the document is walked token by token.
func parseJSON(r io.Reader, _ ParseOptions) (*dataset.Dataset, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return dataset.Empty(), nil
	}
	if err != nil {
		return nil, err
	}
	switch tok {
	case json.Delim('['):
		return readRecords(dec)
	case json.Delim('{'):
		return readColumns(dec)
	default:
		return nil, fmt.Errorf("unexpected top-level token %v", tok)
	}
}

type orderedKeys struct {
	names []string
	pos   map[string]int
}

func (o *orderedKeys) add(k string) int {
	if o.pos == nil {
		o.pos = map[string]int{}
	}
	if p, ok := o.pos[k]; ok {
		return p
	}
	o.pos[k] = len(o.names)
	o.names = append(o.names, k)
	return o.pos[k]
}

func readRecords(dec *json.Decoder) (*dataset.Dataset, error) {
	var cols orderedKeys
	var recs []map[int]dataset.Value
	for dec.More() {
		rec := map[int]dataset.Value{}
		err := readObject(dec, func(key string, v dataset.Value) {
			rec[cols.add(key)] = v
		})
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	rows := make([][]dataset.Value, len(recs))
	for i, rec := range recs {
		row := make([]dataset.Value, len(cols.names))
		for c, v := range rec {
			row[c] = v
		}
		rows[i] = row
	}
	return dataset.New(cols.names, rows)
}

func readColumns(dec *json.Decoder) (*dataset.Dataset, error) {
	var cols, rowKeys orderedKeys
	cells := map[[2]int]dataset.Value{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected column name, got %v", tok)
		}
		c := cols.add(name)
		err = readObject(dec, func(key string, v dataset.Value) {
			cells[[2]int{rowKeys.add(key), c}] = v
		})
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	rows := make([][]dataset.Value, len(rowKeys.names))
	for i := range rows {
		rows[i] = make([]dataset.Value, len(cols.names))
	}
	for at, v := range cells {
		rows[at[0]][at[1]] = v
	}
	return dataset.New(cols.names, rows)
}

// readObject consumes one {...} and calls fn for every member in order.
func readObject(dec *json.Decoder, fn func(key string, v dataset.Value)) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := scalar(raw)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		fn(key, v)
	}
	_, err = dec.Token()
	return err
}

// scalar decodes a JSON scalar; nested objects and arrays are kept as
// their compact JSON text.
func scalar(raw json.RawMessage) (dataset.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && (raw[0] == '{' || raw[0] == '[') {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return dataset.Null(), err
		}
		return dataset.String(buf.String()), nil
	}
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var x any
	if err := d.Decode(&x); err != nil {
		return dataset.Null(), err
	}
	return dataset.FromAny(x)
}
