package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/reactive/internal/config"
	"github.com/vango-dev/reactive/pkg/inspect"
	"github.com/vango-dev/reactive/pkg/metrics"
	"github.com/vango-dev/reactive/pkg/reactive"
	"github.com/vango-dev/reactive/pkg/tracing"
)

type inspectFlags struct {
	host  string
	port  int
	tick  string
	trace bool
}

func inspectCmd() *cobra.Command {
	var flags inspectFlags

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Serve a live runtime inspector",
		Long: `Run a ticking reactive graph and serve its diagnostics.

The inspector exposes:
  /stats    latest runtime stats
  /events   WebSocket stream of runtime events
  /metrics  Prometheus metrics (when enabled in reactive.json)
  /healthz  liveness probe`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, flags)
		},
	}

	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "Port to listen on (default from reactive.json)")
	cmd.Flags().StringVarP(&flags.host, "host", "H", "", "Host to bind to (default from reactive.json)")
	cmd.Flags().StringVar(&flags.tick, "tick", "", "Interval between graph updates (default from reactive.json)")
	cmd.Flags().BoolVar(&flags.trace, "trace", false, "Print spans to stderr")

	return cmd
}

func runInspect(cmd *cobra.Command, flags inspectFlags) error {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if flags.port > 0 {
		cfg.Inspect.Port = flags.port
	}
	if flags.host != "" {
		cfg.Inspect.Host = flags.host
	}
	if flags.tick != "" {
		cfg.Inspect.Tick = flags.tick
	}
	if flags.trace {
		cfg.Tracing.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.Logger(cmd.ErrOrStderr())
	hub := inspect.NewHub(logger, cfg.Inspect.EventBuffer)

	opts := append(cfg.RuntimeOptions(),
		reactive.WithLogger(logger),
		reactive.WithEventSink(hub.Sink()),
	)

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector := metrics.New(
			metrics.WithRegistry(reg),
			metrics.WithNamespace(cfg.Metrics.Namespace),
			metrics.WithSubsystem(cfg.Metrics.Subsystem),
		)
		opts = append(opts, reactive.WithEventSink(collector.Sink()))
		gatherer = reg
	}

	if cfg.Tracing.Enabled {
		tp, err := newTracerProvider(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("tracer shutdown", "error", err)
			}
		}()
		tracer := tracing.New(
			tracing.WithTracerName(cfg.Tracing.TracerName),
			tracing.WithTracerProvider(tp),
		)
		opts = append(opts, reactive.WithEventSink(tracer.Sink()))
	}

	out := cmd.OutOrStdout()
	printBanner(out)
	info(out, "inspect")
	fmt.Fprintln(out)
	success(out, "Inspector on http://%s", cfg.InspectAddress())
	info(out, "Events:  ws://%s/events", cfg.InspectAddress())
	if gatherer == nil {
		warn(out, "Metrics disabled")
	}
	fmt.Fprintln(out)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := inspect.NewServer(inspect.Config{
		Addr:   cfg.InspectAddress(),
		Logger: logger,
	}, hub, gatherer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	g.Go(func() error {
		return driveGraph(gctx, opts, hub, cfg.TickInterval(), logger)
	})
	return g.Wait()
}

// driveGraph owns the runtime: it is created, updated and disposed on this
// goroutine only.
func driveGraph(ctx context.Context, opts []reactive.Option, hub *inspect.Hub, interval time.Duration, logger *slog.Logger) error {
	rt := reactive.NewRuntime(opts...)
	defer rt.Dispose()

	graph := newTickGraph(rt)
	hub.PublishStats(rt.Stats())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := graph.step(); err != nil {
				logger.Error("graph update failed", "error", err)
			}
			hub.PublishStats(rt.Stats())
			logger.Debug("tick", "status", graph.status)

		case <-ctx.Done():
			return nil
		}
	}
}

func newTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}
