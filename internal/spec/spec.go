package spec

import "unicode/utf8"

// Step is one call in a transformation group. Args are decoded into a
// typed record once the function is known; see pipeline.Compile.
type Step struct {
	// ID names the step output so a later step can reference it through
	// its "dataset", "dataset1" or "dataset2" argument.
	ID       string         `koanf:"id"`
	Function string         `koanf:"function" validate:"required"`
	Args     map[string]any `koanf:"args"`
}

type Transformation struct {
	Steps []Step `koanf:"steps" validate:"dive"`
}

type Source struct {
	URL string `koanf:"url" validate:"required"`
	// CSVSeparator must be a single character; defaults to ",".
	CSVSeparator string `koanf:"csv_separator" validate:"omitempty,len=1"`
	Format       string `koanf:"format" validate:"omitempty,oneof=csv xlsx json"`
}

// Separator returns the csv field separator, ',' when unset.
func (s Source) Separator() rune {
	if s.CSVSeparator == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(s.CSVSeparator)
	return r
}

type Issue struct {
	Owner     string   `koanf:"owner" validate:"required"`
	Repo      string   `koanf:"repo" validate:"required"`
	Labels    []string `koanf:"labels"`
	Assignees []string `koanf:"assignees"`
}

type SinkSpec struct {
	Kind string `koanf:"kind" validate:"required"`

	// kafka
	Brokers      []string `koanf:"brokers" validate:"required_if=Kind kafka"`
	Topic        string   `koanf:"topic" validate:"required_if=Kind kafka"`
	RequiredAcks int16    `koanf:"required_acks" validate:"oneof=-1 0 1"`
	Version      string   `koanf:"version"`
}

// Report describes what happens with the last diff produced by a run.
type Report struct {
	Issue *Issue     `koanf:"issue" validate:"omitempty"`
	Sinks []SinkSpec `koanf:"sinks" validate:"dive"`
}

type File struct {
	ProjectName     string           `koanf:"project_name"`
	Source          Source           `koanf:"source"`
	Transformations []Transformation `koanf:"transformations" validate:"dive"`
	Report          Report           `koanf:"report"`
}
