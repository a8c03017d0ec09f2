package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexcodex/yamlnav/framework/docstate"
	"github.com/lexcodex/yamlnav/framework/eventloop"
	"github.com/lexcodex/yamlnav/framework/telemetry"
	"github.com/lexcodex/yamlnav/tools/yamlkeys"
)

// Runtime wires the configured logger, telemetry sinks, key classifier and
// worker pool shared by the LSP server and the terminal browser.
type Runtime struct {
	Config     Config
	Logger     *log.Logger
	Telemetry  telemetry.Telemetry
	Metrics    *telemetry.PrometheusTelemetry
	Classifier yamlkeys.Classifier
	Workers    *eventloop.Pool

	closers []io.Closer

	metricsMu     sync.Mutex
	metricsServer *http.Server
}

// New builds a runtime. logOut receives log lines in addition to the
// configured log file; pass io.Discard when the terminal is in use.
func New(ctx context.Context, cfg Config, logOut io.Writer) (*Runtime, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if logOut == nil {
		logOut = os.Stderr
	}
	rt := &Runtime{Config: cfg}
	writer := logOut
	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log: %w", err)
		}
		rt.closers = append(rt.closers, logFile)
		writer = io.MultiWriter(logOut, logFile)
	}
	rt.Logger = log.New(writer, "yamlnav ", log.LstdFlags|log.Lmicroseconds)

	rt.Metrics = telemetry.NewPrometheusTelemetry(nil)
	sinks := []telemetry.Telemetry{rt.Metrics}
	if cfg.TelemetryPath != "" {
		sink, err := telemetry.NewJSONFileTelemetry(cfg.TelemetryPath)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("open telemetry: %w", err)
		}
		rt.closers = append(rt.closers, sink)
		sinks = append(sinks, sink)
	}
	if cfg.LogPath != "" {
		sinks = append(sinks, telemetry.LoggerTelemetry{Logger: rt.Logger})
	}
	rt.Telemetry = telemetry.MultiplexTelemetry{Sinks: sinks}

	classifier, err := cfg.ClassifierImpl()
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Classifier = classifier
	rt.Workers = eventloop.NewPool(ctx, cfg.Workers, rt.Logger)
	return rt, nil
}

// TrackerOptions returns tracker settings derived from the configuration.
func (r *Runtime) TrackerOptions() docstate.Options {
	return docstate.Options{
		QuietPeriod: r.Config.QuietPeriod,
		Telemetry:   r.Telemetry,
		Logger:      r.Logger,
	}
}

// StartMetrics serves /metrics on addr until the returned stop function is
// called or ctx ends.
func (r *Runtime) StartMetrics(ctx context.Context, addr string) (func(context.Context) error, error) {
	r.metricsMu.Lock()
	defer r.metricsMu.Unlock()
	if r.metricsServer != nil {
		return nil, errors.New("metrics server already running")
	}
	if addr == "" {
		addr = r.Config.MetricsAddr
	}
	if addr == "" {
		return nil, errors.New("metrics address required")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.Metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	r.metricsServer = srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.Printf("metrics server stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = r.stopMetrics(context.Background())
	}()
	r.Logger.Printf("metrics listening on %s", ln.Addr())
	return r.stopMetrics, nil
}

func (r *Runtime) stopMetrics(ctx context.Context) error {
	r.metricsMu.Lock()
	srv := r.metricsServer
	r.metricsServer = nil
	r.metricsMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Close stops the workers and releases files opened by New.
func (r *Runtime) Close() error {
	var errs []error
	if r.Workers != nil {
		if err := r.Workers.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.stopMetrics(context.Background()); err != nil {
		errs = append(errs, err)
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
