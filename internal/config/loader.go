package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns the configuration used before any file or flag is applied.
func Defaults() *Config {
	return &Config{
		EndpointSuffix:    ".redis",
		Port:              6379,
		DialTimeout:       5 * time.Second,
		OpTimeout:         3 * time.Second,
		SpawnAllowance:    2 * time.Millisecond,
		CountdownInterval: 250 * time.Millisecond,
		KeyPrefix:         "kvbench",
		Output:            OutputText,
		Tracing:           TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyPositionalArgs(cfg, flagSet.Args()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	if cfg.Workers == 0 && cfg.Iterations == 0 {
		displayHelp(cmd)
		return nil, fmt.Errorf("workers and iterations are required")
	}
	return cfg, nil
}

// applyPositionalArgs reads "<workers> <iterations>".
func applyPositionalArgs(cfg *Config, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("wrong number of arguments: expected <workers> <iterations>, got %d", len(args))
	}
	targets := []*int{&cfg.Workers, &cfg.Iterations}
	for i, raw := range args {
		val, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("arguments must be integer values: %q", raw)
		}
		*targets[i] = val
	}
	return nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	intSettings := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"workers"}, &cfg.Workers},
		{[]string{"iterations"}, &cfg.Iterations},
		{[]string{"port"}, &cfg.Port},
		{[]string{"op_rate", "oprate", "op-rate"}, &cfg.OpRate},
		{[]string{"connect_retries", "connectretries", "connect-retries"}, &cfg.ConnectRetries},
	}
	for _, s := range intSettings {
		if raw, ok := lookupSetting(settings, s.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", s.keys[0], err)
			}
			*s.dst = val
		}
	}

	stringSettings := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"endpoint_dir", "endpointdir", "endpoint-dir"}, &cfg.EndpointDir},
		{[]string{"endpoint_suffix", "endpointsuffix", "endpoint-suffix"}, &cfg.EndpointSuffix},
		{[]string{"host"}, &cfg.Host},
		{[]string{"auth"}, &cfg.Auth},
		{[]string{"key_prefix", "keyprefix", "key-prefix"}, &cfg.KeyPrefix},
		{[]string{"html_output", "htmloutput", "html-output"}, &cfg.HTMLOutput},
		{[]string{"metrics_addr", "metricsaddr", "metrics-addr"}, &cfg.MetricsAddr},
	}
	for _, s := range stringSettings {
		if raw, ok := lookupSetting(settings, s.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", s.keys[0], err)
			}
			*s.dst = strings.TrimSpace(val)
		}
	}

	durationSettings := []struct {
		keys []string
		dst  *time.Duration
	}{
		{[]string{"dial_timeout", "dialtimeout", "dial-timeout"}, &cfg.DialTimeout},
		{[]string{"op_timeout", "optimeout", "op-timeout"}, &cfg.OpTimeout},
		{[]string{"join_timeout", "jointimeout", "join-timeout"}, &cfg.JoinTimeout},
		{[]string{"spawn_allowance", "spawnallowance", "spawn-allowance"}, &cfg.SpawnAllowance},
		{[]string{"countdown_interval", "countdowninterval", "countdown-interval"}, &cfg.CountdownInterval},
	}
	for _, s := range durationSettings {
		if raw, ok := lookupSetting(settings, s.keys...); ok {
			val, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", s.keys[0], err)
			}
			*s.dst = val
		}
	}

	boolSettings := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"skip_failed_info", "skipfailedinfo", "skip-failed-info"}, &cfg.SkipFailedInfo},
		{[]string{"dashboard"}, &cfg.Dashboard},
		{[]string{"log_errors", "logerrors", "log-errors"}, &cfg.LogErrors},
		{[]string{"quiet"}, &cfg.Quiet},
		{[]string{"host_stats", "hoststats", "host-stats"}, &cfg.HostStats},
		{[]string{"fail_on_threshold", "failonthreshold", "fail-on-threshold"}, &cfg.FailOnThreshold},
	}
	for _, s := range boolSettings {
		if raw, ok := lookupSetting(settings, s.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", s.keys[0], err)
			}
			*s.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		cfg.EndpointIndex = &val
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	result := base
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		if result.Endpoint, err = asString(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		if result.Protocol, err = asString(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "service_name", "servicename", "service-name"); ok {
		if result.ServiceName, err = asString(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate", "sample-rate"); ok {
		if result.SampleRate, err = asFloat64(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		if result.Insecure, err = asBool(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
	}
	return result, nil
}
