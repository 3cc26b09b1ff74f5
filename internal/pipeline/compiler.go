package pipeline

import (
	"fmt"

	"odwatch/internal/config"
	"odwatch/internal/dataset"
	"odwatch/internal/spec"
	"odwatch/sink"
	kafkasink "odwatch/sink/kafka"
	"odwatch/sink/stdout"
	"odwatch/source"
)

// Compile loads the pipeline file at path and builds a runner for it.
func Compile(path string, opts Options) (*Runner, error) {
	cfg, err := config.LoadPipelineSpec(path)
	if err != nil {
		return nil, err
	}
	return Build(cfg, opts)
}

// Build resolves every step of cfg into a typed operation. Unknown
// functions, bad arguments and references to step ids not defined earlier
// are reported here, before anything is downloaded.
func Build(cfg spec.File, opts Options) (*Runner, error) {
	r := NewRunner(cfg, opts)

	defined := map[string]bool{}
	for g, tr := range cfg.Transformations {
		for i, st := range tr.Steps {
			op, err := compileStep(st)
			if err != nil {
				return nil, fmt.Errorf("group %d step %d (%s): %w", g, i, st.Function, err)
			}
			for _, ref := range op.refs() {
				if ref != "" && !defined[ref] {
					return nil, fmt.Errorf("group %d step %d (%s): %w: no earlier step with id %q", g, i, st.Function, ErrMissingDataset, ref)
				}
			}
			if st.ID != "" {
				if defined[st.ID] {
					return nil, fmt.Errorf("group %d step %d: %w: duplicate step id %q", g, i, ErrInvalidArgs, st.ID)
				}
				defined[st.ID] = true
			}
			r.AddStep(Step{Group: g, Index: i, ID: st.ID, Function: Kind(st.Function), op: op})
		}
	}

	for _, ss := range cfg.Report.Sinks {
		drv, err := sink.NewAdapter(ss.Kind)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		switch ss.Kind {
		case "stdout":
			err = drv.Configure(stdout.Config{})
		case "kafka":
			err = drv.Configure(kafkasink.Config{
				Brokers: ss.Brokers,
				Topic:   ss.Topic,
				Acks:    ss.RequiredAcks,
				Version: ss.Version,
			})
		default:
			err = drv.Configure(ss)
		}
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("sink %s: %w", ss.Kind, err)
		}
		r.AddSink(ss.Kind, drv)
	}
	return r, nil
}

func compileStep(st spec.Step) (operation, error) {
	ref, args, err := splitRef(st.Args)
	if err != nil {
		return nil, err
	}

	switch Kind(st.Function) {
	case KeepColumns:
		var a keepColumnsArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return keepColumnsOp{input: ref, args: a}, nil

	case FilterByColumnValues, InvertedFilterByColumnValues:
		var a valueFilterArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		values := make([]dataset.Value, 0, len(a.ValueList))
		for _, x := range a.ValueList {
			v, err := dataset.FromAny(x)
			if err != nil {
				return nil, fmt.Errorf("%w: value_list: %v", ErrInvalidArgs, err)
			}
			values = append(values, v)
		}
		return valueFilterOp{
			input:    ref,
			column:   a.Column,
			values:   values,
			inverted: Kind(st.Function) == InvertedFilterByColumnValues,
		}, nil

	case FilterByGeometry:
		var a geometryArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return geometryOp{input: ref, args: a}, nil

	case DiffDatasets:
		var a diffArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return newDiffOp(ref, a), nil

	default:
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownTransform, st.Function, Kinds())
	}
}

func sourceRequest(cfg spec.File) source.Request {
	return source.Request{
		URL:       cfg.Source.URL,
		Project:   cfg.ProjectName,
		Format:    cfg.Source.Format,
		Separator: cfg.Source.Separator(),
	}
}
