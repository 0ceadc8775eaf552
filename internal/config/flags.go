package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kvbench [workers] [iterations]",
		Short:         "Measure connect, read and write latency of a key-value service under concurrent load",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Load shape
	flags.IntP("workers", "w", 0, "Number of concurrent connections (also the first positional argument)")
	flags.IntP("iterations", "i", 0, "Read/increment pairs per connection (also the second positional argument)")
	flags.Int("op-rate", 0, "Per-connection operation pairs per second (0 means unlimited)")
	flags.String("key-prefix", "kvbench", "Prefix of the per-connection counter keys")

	// Endpoint selection
	flags.IntP("endpoint", "e", -1, "Index of the endpoint descriptor file to use (prompts when unset)")
	flags.String("endpoint-dir", "", "Directory holding endpoint descriptor files (default $HOME/.ssh)")
	flags.String("endpoint-suffix", ".redis", "File suffix of endpoint descriptor files")
	flags.String("host", "", "Service host; bypasses descriptor files")
	flags.Int("port", 6379, "Service port, used with --host")
	flags.String("auth", "", "Service credential, used with --host")

	// Timing
	flags.Duration("dial-timeout", 5*time.Second, "Connection establishment timeout")
	flags.Duration("op-timeout", 3*time.Second, "Per-operation read/write timeout")
	flags.Duration("join-timeout", 0, "Max time to wait for all connections to finish (0 waits forever)")
	flags.Duration("spawn-allowance", 2*time.Millisecond, "Start delay added per connection before the synchronized start")
	flags.Duration("countdown-interval", 250*time.Millisecond, "How often to report time remaining before the start")
	flags.Int("connect-retries", 0, "Number of retries for failed connection attempts")
	flags.Bool("skip-failed-info", false, "Do not fetch the service snapshot from connections that failed")

	// Output
	flags.StringP("output", "o", string(OutputText), "Report format: text, json or yaml")
	flags.String("html-output", "", "Also write an HTML report to the given path")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("log-errors", false, "Log each failed connection to stderr")
	flags.BoolP("quiet", "q", false, "Suppress per-connection lines and the countdown")
	flags.Bool("host-stats", false, "Include CPU and memory usage of this host in the report")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9100)")
	flags.StringSlice("threshold", nil, "Latency/failure assertion (repeatable, e.g. 'read:median < 5')")
	flags.Bool("fail-on-threshold", false, "Exit nonzero when a threshold fails")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (default $OTEL_EXPORTER_OTLP_ENDPOINT)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported in spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of spans to sample (0..1)")
	flags.Bool("tracing-insecure", false, "Disable TLS to the OTLP collector")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	intFlags := map[string]*int{
		"workers":         &cfg.Workers,
		"iterations":      &cfg.Iterations,
		"op-rate":         &cfg.OpRate,
		"port":            &cfg.Port,
		"connect-retries": &cfg.ConnectRetries,
	}
	for name, dst := range intFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	stringFlags := map[string]*string{
		"key-prefix":           &cfg.KeyPrefix,
		"endpoint-dir":         &cfg.EndpointDir,
		"endpoint-suffix":      &cfg.EndpointSuffix,
		"host":                 &cfg.Host,
		"auth":                 &cfg.Auth,
		"html-output":          &cfg.HTMLOutput,
		"metrics-addr":         &cfg.MetricsAddr,
		"tracing-endpoint":     &cfg.Tracing.Endpoint,
		"tracing-protocol":     &cfg.Tracing.Protocol,
		"tracing-service-name": &cfg.Tracing.ServiceName,
	}
	for name, dst := range stringFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(val)
	}

	durationFlags := map[string]*time.Duration{
		"dial-timeout":       &cfg.DialTimeout,
		"op-timeout":         &cfg.OpTimeout,
		"join-timeout":       &cfg.JoinTimeout,
		"spawn-allowance":    &cfg.SpawnAllowance,
		"countdown-interval": &cfg.CountdownInterval,
	}
	for name, dst := range durationFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	boolFlags := map[string]*bool{
		"skip-failed-info":  &cfg.SkipFailedInfo,
		"dashboard":         &cfg.Dashboard,
		"log-errors":        &cfg.LogErrors,
		"quiet":             &cfg.Quiet,
		"host-stats":        &cfg.HostStats,
		"fail-on-threshold": &cfg.FailOnThreshold,
		"tracing-insecure":  &cfg.Tracing.Insecure,
	}
	for name, dst := range boolFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	if fs.Changed("endpoint") {
		val, err := fs.GetInt("endpoint")
		if err != nil {
			return err
		}
		cfg.EndpointIndex = &val
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	return nil
}
