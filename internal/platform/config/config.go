// Package config loads the service's runtime configuration from the
// environment, with an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every environment-sourced setting for both the API
// server and the worker process; each binary uses the subset it needs.
//
// Durations that the external interface documents as bare integers
// (e.g. INTEL_FETCH_TIMEOUT_S=20) are parsed as ints and converted by
// the FetchTimeout, HostThrottle and WorkerSleep accessors below, rather
// than requiring callers to set
// Go duration literals in the environment.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HealthPort  int    `env:"HEALTH_PORT" envDefault:"8080"`
	BearerToken string `env:"BEARER_TOKEN,required"`

	FetchMaxBytes        int64 `env:"INTEL_FETCH_MAX_BYTES" envDefault:"2000000"`
	FetchTimeoutSeconds  int   `env:"INTEL_FETCH_TIMEOUT_S" envDefault:"20"`
	FetchMaxRedirects    int   `env:"INTEL_FETCH_MAX_REDIRECTS" envDefault:"5"`
	HostThrottleMillis   int   `env:"INTEL_HOST_THROTTLE_MS" envDefault:"1200"`
	UserAgent            string `env:"INTEL_USER_AGENT" envDefault:"context_api/1.0"`

	ExtractMaxChars int `env:"INTEL_EXTRACT_MAX_CHARS" envDefault:"120000"`

	SectionPromptChars int `env:"INTEL_SECTION_PROMPT_CHARS" envDefault:"2000"`
	SummaryMaxChars    int `env:"INTEL_SUMMARY_MAX_CHARS" envDefault:"900"`
	SignalsMax         int `env:"INTEL_SIGNALS_MAX" envDefault:"8"`
	SignalMaxChars     int `env:"INTEL_SIGNAL_MAX_CHARS" envDefault:"280"`
	SnippetMaxChars    int `env:"INTEL_SNIPPET_MAX_CHARS" envDefault:"200"`

	OpenAIAPIBase string `env:"OPENAI_API_BASE"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	IntelEnrich   bool   `env:"INTEL_ENRICH" envDefault:"true"`

	WorkerSleepSeconds int  `env:"INTEL_WORKER_SLEEP_SECONDS" envDefault:"5"`
	WorkerOnce         bool `env:"INTEL_WORKER_ONCE" envDefault:"false"`
}

// Load reads an optional .env file, then populates Config from the
// process environment, applying the defaults above for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}

// FetchTimeout returns FetchTimeoutSeconds as a time.Duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// HostThrottle returns HostThrottleMillis as a time.Duration.
func (c *Config) HostThrottle() time.Duration {
	return time.Duration(c.HostThrottleMillis) * time.Millisecond
}

// WorkerSleep returns WorkerSleepSeconds as a time.Duration.
func (c *Config) WorkerSleep() time.Duration {
	return time.Duration(c.WorkerSleepSeconds) * time.Second
}
