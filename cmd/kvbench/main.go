package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/kvbench/internal/bench"
	"github.com/torosent/kvbench/internal/config"
	"github.com/torosent/kvbench/internal/dashboard"
	"github.com/torosent/kvbench/internal/endpoint"
	"github.com/torosent/kvbench/internal/hostinfo"
	"github.com/torosent/kvbench/internal/kv"
	"github.com/torosent/kvbench/internal/metrics"
	"github.com/torosent/kvbench/internal/output"
	"github.com/torosent/kvbench/internal/threshold"
	"github.com/torosent/kvbench/internal/tracing"
)

const (
	baseRetryDelay   = 50 * time.Millisecond
	maxRetryDelay    = 2 * time.Second
	hostSampleWindow = 200 * time.Millisecond
	shutdownTimeout  = 5 * time.Second
)

type stderrFailureLogger struct {
	mu  sync.Mutex
	out io.Writer
}

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// streams are the process's standard streams, swapped out in tests.
type streams struct {
	in       io.Reader
	out, err io.Writer
}

func main() {
	if err := run(os.Args[1:], streams{in: os.Stdin, out: os.Stdout, err: os.Stderr}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, std streams) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := bench.CheckCounts(cfg.Workers, cfg.Iterations); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing, tracing.WithRunAttributes(
		attribute.Int("kvbench.workers", cfg.Workers),
		attribute.Int("kvbench.iterations", cfg.Iterations),
	))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		_ = tp.Shutdown(shutdownCtx)
	}()

	collector := metrics.NewCollector()
	recorders := []metrics.Recorder{collector}
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus()
		recorders = append(recorders, prom)
		if err := prom.Serve(ctx, cfg.MetricsAddr); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	}

	opts := bench.Options{
		Dialer: kv.WithRetry(kv.RedisDialer{
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.OpTimeout,
			WriteTimeout: cfg.OpTimeout,
		}, newRetryPolicy(cfg.ConnectRetries)),
		Source:            newSource(cfg, std),
		SpawnAllowance:    cfg.SpawnAllowance,
		JoinTimeout:       cfg.JoinTimeout,
		CountdownInterval: cfg.CountdownInterval,
		KeyPrefix:         cfg.KeyPrefix,
		OpRate:            cfg.OpRate,
		SkipFailedInfo:    cfg.SkipFailedInfo,
		Recorder:          metrics.Multi(recorders...),
		Tracer:            tp.Tracer(),
	}
	if cfg.LogErrors {
		opts.Logger = &stderrFailureLogger{out: std.err}
	}

	var dash *dashboard.Dashboard
	switch {
	case cfg.Dashboard:
		dash = dashboard.New(collector, dashboard.RunInfo{
			Workers:     cfg.Workers,
			Iterations:  cfg.Iterations,
			OpRate:      cfg.OpRate,
			OpTimeout:   cfg.OpTimeout,
			JoinTimeout: cfg.JoinTimeout,
			ConfigFile:  cfg.ConfigFile,
		}, cancel)
		defer dash.Stop()
		// The endpoint prompt needs the plain terminal, so the dashboard
		// only takes over once a descriptor is chosen.
		opts.Source = &startingSource{Source: opts.Source, start: func(ep endpoint.Descriptor) error {
			dash.SetEndpoint(ep.String())
			return dash.Start()
		}}
		opts.Observer = dash
		opts.Countdown = dash
	case !cfg.Quiet:
		events := std.out
		if cfg.Output != config.OutputText {
			events = std.err
		}
		opts.Observer = output.NewEventPrinter(events)
		opts.Countdown = output.NewCountdown(events)
	}

	collector.Start()
	summary, err := bench.New(opts).Benchmark(ctx, cfg.Workers, cfg.Iterations)
	if dash != nil {
		dash.Stop()
	}
	if err != nil {
		return err
	}

	live := collector.Stats()
	report := output.Report{Summary: summary}
	if summary.Performed {
		report.Live = &live
		report.Thresholds = threshold.NewEvaluator(thresholds).Evaluate(threshold.Input{Summary: summary, Live: &live})
		if cfg.HostStats {
			if usage, err := hostinfo.Sample(context.Background(), hostSampleWindow); err != nil {
				fmt.Fprintf(std.err, "[kvbench] host stats unavailable: %v\n", err)
			} else {
				report.Host = &usage
			}
		}
	}

	if err := writeReport(std.out, cfg.Output, report); err != nil {
		return err
	}
	if cfg.HTMLOutput != "" && summary.Performed {
		if err := writeHTMLReport(cfg.HTMLOutput, report); err != nil {
			return err
		}
	}

	if cfg.FailOnThreshold && !threshold.AllPassed(report.Thresholds) {
		failed := 0
		for _, r := range report.Thresholds {
			if !r.Pass {
				failed++
			}
		}
		return fmt.Errorf("%d of %d thresholds failed", failed, len(report.Thresholds))
	}
	return nil
}

func writeReport(w io.Writer, format config.OutputFormat, report output.Report) error {
	switch format {
	case config.OutputJSON:
		return output.PrintJSONReport(w, report)
	case config.OutputYAML:
		return output.PrintYAMLReport(w, report)
	default:
		output.PrintReport(w, report)
		return nil
	}
}

func writeHTMLReport(path string, report output.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create HTML report: %w", err)
	}
	if err := output.GenerateHTMLReport(f, report); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// newSource picks the endpoint provider: an explicit --host, or a descriptor
// file chosen by index or interactively.
func newSource(cfg *config.Config, std streams) bench.Source {
	if cfg.UsesDirectEndpoint() {
		return endpoint.Static{Descriptor: endpoint.Descriptor{
			Host:       cfg.Host,
			Port:       cfg.Port,
			Credential: cfg.Auth,
			Source:     "command line",
		}}
	}
	return &endpoint.Selector{
		Dir:    cfg.EndpointDir,
		Suffix: cfg.EndpointSuffix,
		Index:  cfg.EndpointIndex,
		In:     std.in,
		Out:    std.err,
	}
}

// startingSource runs start after the inner source yields a descriptor.
type startingSource struct {
	bench.Source
	start func(endpoint.Descriptor) error
}

func (s *startingSource) Select(ctx context.Context) (endpoint.Descriptor, bool, error) {
	ep, ok, err := s.Source.Select(ctx)
	if err != nil || !ok {
		return ep, ok, err
	}
	if err := s.start(ep); err != nil {
		return endpoint.Descriptor{}, false, err
	}
	return ep, true, nil
}

func (l *stderrFailureLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[kvbench] %v\n", err)
}

func newRetryPolicy(retries int) kv.RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	return kv.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: func(err error) bool {
			if err == nil {
				return false
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			return kv.IsConnectivity(err)
		},
		DelayFunc: func(attempt int, err error) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			return backoff + source.jitter(backoff/2)
		},
	}
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}
