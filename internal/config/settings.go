package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings are the runtime knobs read from ODWATCH_* environment variables.
// Secrets live here rather than in the pipeline file.
type Settings struct {
	DataDir         string        `envconfig:"DATA_DIR" default:"data"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON         bool          `envconfig:"LOG_JSON" default:"false"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"5m"`
	GitHubToken     string        `envconfig:"GITHUB_TOKEN"`
	GitHubAPIURL    string        `envconfig:"GITHUB_API_URL"`
	MetricsAddr     string        `envconfig:"METRICS_ADDR"`
	MetricsTextfile string        `envconfig:"METRICS_TEXTFILE"`
}

func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process("ODWATCH", &s); err != nil {
		return s, fmt.Errorf("settings: %w", err)
	}
	return s, nil
}
