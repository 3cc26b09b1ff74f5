package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"odwatch/internal/dataset"
	"odwatch/internal/transform"
	"odwatch/source"
)

// Kind is the closed set of step functions a pipeline file may name.
type Kind string

const (
	KeepColumns                  Kind = "keep_columns"
	FilterByColumnValues         Kind = "filter_by_column_values"
	InvertedFilterByColumnValues Kind = "inverted_filter_by_column_values"
	FilterByGeometry             Kind = "filter_by_geometry"
	DiffDatasets                 Kind = "diff_datasets"
)

// Kinds lists every supported step function.
func Kinds() []Kind {
	return []Kind{KeepColumns, FilterByColumnValues, InvertedFilterByColumnValues, FilterByGeometry, DiffDatasets}
}

/*──────── typed arguments ───────*/

type keepColumnsArgs struct {
	Columns    []string `yaml:"columns" validate:"required,min=1"`
	ExportName string   `yaml:"export_name" validate:"required"`
}

type valueFilterArgs struct {
	Column    string `yaml:"column" validate:"required"`
	ValueList []any  `yaml:"value_list"`
}

type geometryArgs struct {
	LongitudeColumn        string `yaml:"longitude_column" validate:"required"`
	LatitudeColumn         string `yaml:"latitude_column" validate:"required"`
	FilterGeometryFilename string `yaml:"filter_geometry_filename" validate:"required"`
}

type diffArgs struct {
	Dataset1          string `yaml:"dataset1"`
	Dataset2          string `yaml:"dataset2" validate:"required_without=Snapshot,excluded_with=Snapshot"`
	Snapshot          string `yaml:"snapshot"`
	SnapshotSeparator string `yaml:"snapshot_separator" validate:"omitempty,len=1"`
}

var validate = validator.New()

// decodeArgs maps a raw argument object onto a typed record. Unknown keys
// are rejected.
func decodeArgs(raw map[string]any, into any) error {
	b, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if err := validate.Struct(into); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}

// splitRef removes the explicit "dataset" reference from args.
func splitRef(args map[string]any) (string, map[string]any, error) {
	rest := maps.Clone(args)
	raw, ok := rest["dataset"]
	if !ok {
		return "", rest, nil
	}
	delete(rest, "dataset")
	ref, ok := raw.(string)
	if !ok || ref == "" {
		return "", nil, fmt.Errorf("%w: dataset must name a step id, got %v", ErrInvalidArgs, raw)
	}
	return ref, rest, nil
}

/*──────── state ───────*/

// state is the accumulator threaded from step to step. It is replaced, not
// mutated, by every step.
type state struct {
	current *dataset.Dataset
	outputs map[string]*dataset.Dataset
	diff    *transform.DiffResult
}

func (s state) resolve(ref string) (*dataset.Dataset, error) {
	if ref == "" {
		if s.current == nil {
			return nil, fmt.Errorf("%w: previous step produced nothing", ErrMissingDataset)
		}
		return s.current, nil
	}
	ds := s.outputs[ref]
	if ds == nil {
		return nil, fmt.Errorf("%w: step %q produced nothing", ErrMissingDataset, ref)
	}
	return ds, nil
}

func (s state) advance(id string, o outcome) state {
	next := state{current: o.out, outputs: s.outputs, diff: s.diff}
	if id != "" {
		next.outputs = maps.Clone(s.outputs)
		if next.outputs == nil {
			next.outputs = map[string]*dataset.Dataset{}
		}
		next.outputs[id] = o.out
	}
	if o.diffed {
		next.diff = o.diff
	}
	return next
}

/*──────── operations ───────*/

type env struct {
	dataDir string
}

type outcome struct {
	out *dataset.Dataset
	// anomaly is a transform error already absorbed into out.
	anomaly error
	warn    bool

	diffed bool
	diff   *transform.DiffResult
}

type operation interface {
	// refs lists the step ids the operation reads.
	refs() []string
	// apply returns an error only when the run cannot go on.
	apply(e env, st state) (outcome, error)
}

type keepColumnsOp struct {
	input string
	args  keepColumnsArgs
}

func (o keepColumnsOp) refs() []string { return []string{o.input} }

func (o keepColumnsOp) apply(e env, st state) (outcome, error) {
	in, err := st.resolve(o.input)
	if err != nil {
		return outcome{}, err
	}
	out, anomaly := transform.KeepColumns(in, o.args.Columns, filepath.Join(e.dataDir, o.args.ExportName))
	warn := errors.Is(anomaly, transform.ErrMissingColumn) && !errors.Is(anomaly, transform.ErrExport)
	return outcome{out: out, anomaly: anomaly, warn: warn}, nil
}

type valueFilterOp struct {
	input    string
	column   string
	values   []dataset.Value
	inverted bool
}

func (o valueFilterOp) refs() []string { return []string{o.input} }

func (o valueFilterOp) apply(_ env, st state) (outcome, error) {
	in, err := st.resolve(o.input)
	if err != nil {
		return outcome{}, err
	}
	var out *dataset.Dataset
	var anomaly error
	if o.inverted {
		out, anomaly = transform.InvertedFilterByColumnValues(in, o.column, o.values)
	} else {
		out, anomaly = transform.FilterByColumnValues(in, o.column, o.values)
	}
	return outcome{out: out, anomaly: anomaly}, nil
}

type geometryOp struct {
	input string
	args  geometryArgs
}

func (o geometryOp) refs() []string { return []string{o.input} }

func (o geometryOp) apply(_ env, st state) (outcome, error) {
	in, err := st.resolve(o.input)
	if err != nil {
		return outcome{}, err
	}
	out, anomaly := transform.FilterByGeometry(in, o.args.LongitudeColumn, o.args.LatitudeColumn, o.args.FilterGeometryFilename)
	warn := errors.Is(anomaly, transform.ErrEmptyGeometry) || errors.Is(anomaly, transform.ErrEmptyResult)
	return outcome{out: out, anomaly: anomaly, warn: warn}, nil
}

type diffOp struct {
	left, right string
	snapshot    string
	sep         rune
}

func (o diffOp) refs() []string { return []string{o.left, o.right} }

func (o diffOp) apply(e env, st state) (outcome, error) {
	a, err := st.resolve(o.left)
	if err != nil {
		return outcome{}, err
	}

	var b *dataset.Dataset
	var loadErr error
	if o.right != "" {
		if b, err = st.resolve(o.right); err != nil {
			return outcome{}, err
		}
	} else {
		path := o.snapshot
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.dataDir, path)
		}
		if b, loadErr = source.ReadSnapshot(path, o.sep); loadErr != nil {
			loadErr = fmt.Errorf("snapshot: %w", loadErr)
		}
	}

	res, diffErr := transform.Diff(a, b)
	o2 := outcome{diffed: true, diff: res, anomaly: errors.Join(loadErr, diffErr)}
	if res != nil {
		o2.out = res.Rows
	}
	return o2, nil
}

func newDiffOp(ref string, args diffArgs) diffOp {
	left := args.Dataset1
	if left == "" {
		left = ref
	}
	sep := ','
	if args.SnapshotSeparator != "" {
		sep, _ = utf8.DecodeRuneInString(args.SnapshotSeparator)
	}
	return diffOp{left: left, right: args.Dataset2, snapshot: args.Snapshot, sep: sep}
}
