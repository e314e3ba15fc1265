// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ahrav/leakhunter/internal/domain/hunting"
)

// envPrefix namespaces every environment variable this service reads,
// e.g. HUNTER_QUERY_LIMIT.
const envPrefix = "HUNTER"

// Config holds every runtime setting for the hunter service. All values come
// from the environment; secrets (connection strings, API keys) never appear
// in the repository.
type Config struct {
	// ServiceName appears in logs and telemetry.
	ServiceName string `mapstructure:"service_name" validate:"required"`

	// HTTPListenAddr is the address the trigger server binds to.
	HTTPListenAddr string `mapstructure:"http_listen_addr" validate:"required"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	// QueryLimit caps how many corpus files one invocation reads.
	QueryLimit int `mapstructure:"query_limit" validate:"gt=0,lte=10000"`

	// QueryTimeout bounds each corpus scan attempt.
	QueryTimeout time.Duration `mapstructure:"query_timeout" validate:"gt=0"`

	// VerifyWorkers bounds concurrent verification calls.
	VerifyWorkers int `mapstructure:"verify_workers" validate:"gt=0,lte=64"`

	// VerifyTimeout bounds each verification call.
	VerifyTimeout time.Duration `mapstructure:"verify_timeout" validate:"gt=0"`

	// VerifyRatePerSec paces verification calls. Zero disables pacing.
	VerifyRatePerSec float64 `mapstructure:"verify_rate_per_sec" validate:"gte=0"`

	// RulesetPath optionally overrides the built-in ruleset with a YAML file.
	RulesetPath string `mapstructure:"ruleset_path"`

	BigQuery  BigQueryConfig  `mapstructure:"bigquery"`
	AzureAI   AzureAIConfig   `mapstructure:"azure_ai"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// BigQueryConfig configures the corpus adapter.
type BigQueryConfig struct {
	// ProjectID is the GCP project that is billed for queries.
	ProjectID string `mapstructure:"project_id" validate:"required"`

	// Dataset is the public GitHub dataset, e.g. "bigquery-public-data.github_repos".
	Dataset string `mapstructure:"dataset" validate:"required"`
}

// AzureAIConfig configures the verifier adapter.
type AzureAIConfig struct {
	// Endpoint is the Azure OpenAI resource endpoint URL.
	Endpoint string `mapstructure:"endpoint" validate:"required,url"`

	// APIKey authenticates against the resource.
	APIKey string `mapstructure:"api_key" validate:"required"`

	// Deployment names the model deployment to call.
	Deployment string `mapstructure:"deployment" validate:"required"`
}

// PostgresConfig configures the result sink.
type PostgresConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"gt=0"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Database string `mapstructure:"database" validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	// Enabled turns OTLP export on. Logs are always structured regardless.
	Enabled bool `mapstructure:"enabled"`

	// ExporterEndpoint is the OTLP gRPC collector address.
	ExporterEndpoint string `mapstructure:"exporter_endpoint"`

	// SampleRate is the trace sampling probability in [0, 1].
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &hunting.ConfigurationError{Setting: "environment", Err: err}
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		setting := "environment"
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			setting = strings.ToLower(verrs[0].Namespace())
		}
		return Config{}, &hunting.ConfigurationError{Setting: setting, Err: err}
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv picks it up; viper only
// reads env vars for keys it knows about.
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "leakhunter")
	v.SetDefault("http_listen_addr", ":8080")
	v.SetDefault("shutdown_timeout", 20*time.Second)
	v.SetDefault("query_limit", 25)
	v.SetDefault("query_timeout", 60*time.Second)
	v.SetDefault("verify_workers", 4)
	v.SetDefault("verify_timeout", 30*time.Second)
	v.SetDefault("verify_rate_per_sec", 2.0)
	v.SetDefault("ruleset_path", "")

	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset", "bigquery-public-data.github_repos")

	v.SetDefault("azure_ai.endpoint", "")
	v.SetDefault("azure_ai.api_key", "")
	v.SetDefault("azure_ai.deployment", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "leakhunter")
	v.SetDefault("postgres.ssl_mode", "disable")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sample_rate", 0.05)
}
