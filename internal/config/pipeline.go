package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"odwatch/internal/spec"
)

// EnvPrefix overrides scalar keys of the pipeline file, e.g.
// ODWATCH_PIPELINE__SOURCE__URL for source.url.
const EnvPrefix = "ODWATCH_PIPELINE__"

const (
	DefaultProject = "dataset"
	DefaultFormat  = "csv"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadPipelineSpec reads a JSON or YAML pipeline file (chosen by extension,
// JSON otherwise), merges env overrides, applies defaults and validates it.
func LoadPipelineSpec(path string) (spec.File, error) {
	var cfg spec.File
	k := koanf.New(".")

	var parser koanf.Parser = json.Parser()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		parser = yaml.Parser()
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return cfg, fmt.Errorf("pipeline %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("pipeline %s: env overrides: %w", path, err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("pipeline %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("pipeline %s: %w", path, err)
	}
	return cfg, nil
}

// envKey maps ODWATCH_PIPELINE__SOURCE__URL to source.url.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func applyDefaults(c *spec.File) {
	if c.ProjectName == "" {
		c.ProjectName = DefaultProject
	}
	if c.Source.Format == "" {
		c.Source.Format = DefaultFormat
	}
}

// Validate checks the struct tags of the pipeline file and reports every
// failing field.
func Validate(c spec.File) error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid pipeline: %s", strings.Join(msgs, "; "))
}
