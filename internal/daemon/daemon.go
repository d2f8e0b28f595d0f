package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"booking_etl/internal/aggregate"
	"booking_etl/internal/metrics"
	"booking_etl/internal/pipeline"
	"booking_etl/internal/scheduler"
	"booking_etl/internal/source"
	"booking_etl/internal/tasks"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Daemon runs the pipeline over an unbounded bookings stream with a running aggregation
type Daemon struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       Config
	scheduler *scheduler.Scheduler
	server    *http.Server
	done      chan struct{}
	err       error
}

// Config holds daemon configuration
type Config struct {
	Runner           *pipeline.Runner
	Airports         source.Source // loaded completely before streaming starts
	Bookings         source.Source // unbounded, stops on cancellation
	Aggregator       *aggregate.Aggregator
	Metrics          *metrics.Metrics
	Registry         *prometheus.Registry // served on MetricsAddr
	MetricsAddr      string               // empty disables the metrics endpoint
	SnapshotInterval time.Duration
}

// New creates a new daemon instance
func New(cfg Config) (*Daemon, error) {
	if cfg.Runner == nil || cfg.Airports == nil || cfg.Bookings == nil || cfg.Aggregator == nil {
		return nil, fmt.Errorf("runner, sources and aggregator are required")
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	sched := scheduler.New(ctx)
	sched.AddTask(tasks.NewSnapshotTask(cfg.Aggregator, cfg.SnapshotInterval, cfg.Metrics))

	d := &Daemon{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		scheduler: sched,
		done:      make(chan struct{}),
	}

	if cfg.MetricsAddr != "" && cfg.Registry != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
		d.server = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	return d, nil
}

// Start loads the airport reference data, then streams bookings in the background
func (d *Daemon) Start() error {
	slog.Info("Starting daemon")

	lookup, err := d.cfg.Runner.LoadAirports(d.ctx, d.cfg.Airports)
	if err != nil {
		d.cancel()
		close(d.done)
		return err
	}

	if d.server != nil {
		go func() {
			slog.Info("Serving metrics", "addr", d.server.Addr)
			if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	d.scheduler.Start()

	go func() {
		defer close(d.done)
		err := d.cfg.Runner.ProcessBookings(d.ctx, d.cfg.Bookings, lookup, d.cfg.Aggregator)
		if err != nil && d.ctx.Err() == nil {
			slog.Error("Booking stream stopped", "error", err)
			d.err = err
		}
	}()

	slog.Info("Daemon started successfully")
	return nil
}

// Done is closed when the booking stream has stopped
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Stop gracefully stops the daemon and returns the stream error, if any
func (d *Daemon) Stop() error {
	slog.Info("Stopping daemon")
	d.cancel()
	<-d.done

	d.scheduler.Stop()

	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.server.Shutdown(ctx); err != nil {
			slog.Error("Error stopping metrics server", "error", err)
		}
	}

	slog.Info("Daemon stopped")
	return d.err
}
