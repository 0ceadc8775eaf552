package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// OutputFormat selects how the final report is rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type Config struct {
	Workers    int `mapstructure:"workers"`
	Iterations int `mapstructure:"iterations"`

	// Endpoint selection. Host/Port bypass descriptor files when set.
	EndpointIndex  *int   `mapstructure:"endpoint"`
	EndpointDir    string `mapstructure:"endpoint_dir"`
	EndpointSuffix string `mapstructure:"endpoint_suffix"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Auth           string `mapstructure:"auth"`

	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	OpTimeout         time.Duration `mapstructure:"op_timeout"`
	JoinTimeout       time.Duration `mapstructure:"join_timeout"`
	SpawnAllowance    time.Duration `mapstructure:"spawn_allowance"`
	CountdownInterval time.Duration `mapstructure:"countdown_interval"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	OpRate            int           `mapstructure:"op_rate"`
	KeyPrefix         string        `mapstructure:"key_prefix"`
	SkipFailedInfo    bool          `mapstructure:"skip_failed_info"`

	Output          OutputFormat  `mapstructure:"output"`
	HTMLOutput      string        `mapstructure:"html_output"`
	Dashboard       bool          `mapstructure:"dashboard"`
	LogErrors       bool          `mapstructure:"log_errors"`
	Quiet           bool          `mapstructure:"quiet"`
	HostStats       bool          `mapstructure:"host_stats"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	Thresholds      []string      `mapstructure:"thresholds"`
	FailOnThreshold bool          `mapstructure:"fail_on_threshold"`
	Tracing         TracingConfig `mapstructure:"tracing"`
	ConfigFile      string        `mapstructure:"-"`
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Enabled reports whether an OTLP endpoint is configured directly or via
// OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// UsesDirectEndpoint reports whether --host was given instead of a descriptor file.
func (c Config) UsesDirectEndpoint() bool {
	return strings.TrimSpace(c.Host) != ""
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks settings that do not depend on the selected endpoint.
// Worker and iteration counts are validated by the benchmark itself.
func (c Config) Validate() error {
	var issues []string

	if c.Workers > 1000 {
		fmt.Fprintf(os.Stderr, "WARNING: High worker count configured (%d connections). Ensure you have authorization to load the target service.\n", c.Workers)
	}

	if c.UsesDirectEndpoint() {
		if c.Port <= 0 || c.Port > 65535 {
			issues = append(issues, "port must be between 1 and 65535 when host is set")
		}
		if c.EndpointIndex != nil {
			issues = append(issues, "endpoint index and host are mutually exclusive")
		}
	}
	if c.EndpointIndex != nil && *c.EndpointIndex < 0 {
		issues = append(issues, "endpoint index must be >= 0")
	}
	if c.DialTimeout < 0 {
		issues = append(issues, "dial-timeout must be >= 0")
	}
	if c.OpTimeout < 0 {
		issues = append(issues, "op-timeout must be >= 0")
	}
	if c.JoinTimeout < 0 {
		issues = append(issues, "join-timeout must be >= 0")
	}
	if c.SpawnAllowance < 0 {
		issues = append(issues, "spawn-allowance must be >= 0")
	}
	if c.CountdownInterval < 0 {
		issues = append(issues, "countdown-interval must be >= 0")
	}
	if c.ConnectRetries < 0 {
		issues = append(issues, "connect-retries must be >= 0")
	}
	if c.OpRate < 0 {
		issues = append(issues, "op-rate must be >= 0")
	}
	if strings.TrimSpace(c.KeyPrefix) == "" {
		issues = append(issues, "key-prefix must not be empty")
	}

	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output must be one of text, json, yaml (got %q)", c.Output))
	}
	if c.Dashboard && c.Output != OutputText {
		issues = append(issues, "dashboard and json/yaml output are mutually exclusive")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing sample-rate must be between 0 and 1")
	}
	if p := strings.ToLower(c.Tracing.Protocol); p != "" && p != "grpc" && p != "http" {
		issues = append(issues, fmt.Sprintf("tracing protocol must be grpc or http (got %q)", c.Tracing.Protocol))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
