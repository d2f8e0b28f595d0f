package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	_ "time/tzdata"

	"booking_etl/internal/aggregate"
	"booking_etl/internal/config"
	"booking_etl/internal/daemon"
	"booking_etl/internal/database"
	"booking_etl/internal/events"
	"booking_etl/internal/metrics"
	"booking_etl/internal/models"
	"booking_etl/internal/output"
	"booking_etl/internal/pipeline"
	"booking_etl/internal/report"
	"booking_etl/internal/source"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

func initLogger(cfg *config.Config) {
	var logLevel slog.Level
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	// Logs go to stderr; stdout carries the aggregation table
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
}

// loadConfig applies the CLI overrides on top of file and environment configuration
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		os.Setenv(config.ConfigPathEnv, path)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if c.IsSet("airports") {
		cfg.AirportsPath = c.String("airports")
	}
	if c.IsSet("bookings") {
		cfg.BookingsPath = c.String("bookings")
	}
	if c.IsSet("home-country") {
		cfg.HomeCountry = c.String("home-country")
	}
	if c.IsSet("airline") {
		cfg.OperatingAirline = strings.ToUpper(c.String("airline"))
	}

	initLogger(cfg)
	return cfg, nil
}

// openSinks builds the clean and quarantine destinations for the configured output mode
func openSinks(cfg *config.Config, runID string) (pipeline.Sinks, func(), error) {
	if cfg.Output.Mode == "file" {
		airports, err := output.NewWriter[models.AirportRecord](cfg.Output.Dir, "airports.jsonl")
		if err != nil {
			return pipeline.Sinks{}, nil, err
		}
		airportQuarantine, err := output.NewWriter[models.RejectedRecord](cfg.Output.Dir, "airports_quarantine.jsonl")
		if err != nil {
			return pipeline.Sinks{}, nil, err
		}
		bookings, err := output.NewWriter[models.ValidatedBooking](cfg.Output.Dir, "bookings.jsonl")
		if err != nil {
			return pipeline.Sinks{}, nil, err
		}
		bookingQuarantine, err := output.NewWriter[models.RejectedRecord](cfg.Output.Dir, "bookings_quarantine.jsonl")
		if err != nil {
			return pipeline.Sinks{}, nil, err
		}

		closeAll := func() {
			for _, c := range []interface{ Close() error }{airports, airportQuarantine, bookings, bookingQuarantine} {
				if err := c.Close(); err != nil {
					slog.Error("Error closing output file", "error", err)
				}
			}
		}
		return pipeline.Sinks{
			Airports:          airports,
			AirportQuarantine: airportQuarantine,
			Bookings:          bookings,
			BookingQuarantine: bookingQuarantine,
		}, closeAll, nil
	}

	db, err := database.New(cfg.DBPath)
	if err != nil {
		return pipeline.Sinks{}, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Error("Error closing database", "error", err)
		}
	}
	return pipeline.Sinks{
		Airports:          db.AirportRepository(runID),
		AirportQuarantine: db.QuarantineRepository(models.EntityAirport, runID),
		Bookings:          db.BookingRepository(runID),
		BookingQuarantine: db.QuarantineRepository(models.EntityBooking, runID),
	}, closeDB, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	q, err := aggregate.NewQuery(c.String("start"), c.String("end"), cfg.HomeCountry, cfg.OperatingAirline)
	if err != nil {
		return err
	}

	runID := pipeline.NewRunID()
	sinks, closeSinks, err := openSinks(cfg, runID)
	if err != nil {
		return err
	}
	defer closeSinks()

	m := metrics.New(prometheus.NewRegistry())
	recorder := events.NewRecorder(m)
	runner := pipeline.NewRunner(pipeline.Options{
		Workers:       cfg.Workers,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.BatchTimeout,
	}, sinks, recorder, m)

	ctx, cancel := signalContext()
	defer cancel()

	res, err := runner.Run(ctx, runID,
		source.NewFileSource(cfg.AirportsPath),
		source.NewFileSource(cfg.BookingsPath),
		aggregate.New(q))
	if err != nil {
		return err
	}

	for _, entity := range []models.Entity{models.EntityAirport, models.EntityBooking} {
		res.Summary.Entity(entity).Log(entity)
		if stored, ok := res.Quarantined[entity]; ok {
			slog.Info("Quarantine stored", "entity", entity, "run_id", res.RunID, "reasons", stored)
		}
	}

	return report.WriteTable(c.App.Writer, res.Rows)
}

func reportCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Output.Mode != "sqlite" {
		return fmt.Errorf("report reads stored records and needs output.mode sqlite, got %s", cfg.Output.Mode)
	}

	db, err := database.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	airports := db.AirportRepository("")
	populated, err := airports.IsTablePopulated()
	if err != nil {
		return err
	}
	if !populated {
		return fmt.Errorf("no airports stored in %s, run the pipeline first", cfg.DBPath)
	}

	reporter := report.NewReporter(airports, db.BookingRepository(""), events.NewRecorder(nil))
	rows, err := reporter.Query(c.String("start"), c.String("end"), cfg.HomeCountry, cfg.OperatingAirline)
	if err != nil {
		return err
	}
	return report.WriteTable(c.App.Writer, rows)
}

func streamCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	q, err := aggregate.NewQuery(c.String("start"), c.String("end"), cfg.HomeCountry, cfg.OperatingAirline)
	if err != nil {
		return err
	}

	runID := pipeline.NewRunID()
	sinks, closeSinks, err := openSinks(cfg, runID)
	if err != nil {
		return err
	}
	defer closeSinks()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	bookings := source.NewKafkaSource(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic)
	defer func() {
		if err := bookings.Close(); err != nil {
			slog.Error("Error closing Kafka reader", "error", err)
		}
	}()

	d, err := daemon.New(daemon.Config{
		Runner: pipeline.NewRunner(pipeline.Options{
			Workers:       cfg.Workers,
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.BatchTimeout,
		}, sinks, events.NewRecorder(m), m),
		Airports:         source.NewFileSource(cfg.AirportsPath),
		Bookings:         bookings,
		Aggregator:       aggregate.New(q),
		Metrics:          m,
		Registry:         reg,
		MetricsAddr:      cfg.MetricsAddr,
		SnapshotInterval: cfg.SnapshotInterval,
	})
	if err != nil {
		return err
	}
	if err := d.Start(); err != nil {
		return err
	}

	slog.Info("Streaming bookings", "run_id", runID, "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)

	ctx, cancel := signalContext()
	defer cancel()

	select {
	case <-ctx.Done():
		slog.Info("Received interrupt signal, shutting down...")
	case <-d.Done():
	}
	return d.Stop()
}

func main() {
	inputFlags := []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "path to config file (YAML)"},
		&cli.StringFlag{Name: "airports", Usage: "airports CSV file"},
		&cli.StringFlag{Name: "home-country", Usage: "country whose departures are counted"},
		&cli.StringFlag{Name: "airline", Usage: "operating airline filter, empty for any"},
		&cli.StringFlag{Name: "start", Usage: "first local arrival date (YYYYMMDD)", Required: true},
		&cli.StringFlag{Name: "end", Usage: "last local arrival date (YYYYMMDD)", Required: true},
	}

	app := &cli.App{
		Name:  "booking_etl",
		Usage: "Validate bookings and count passengers per season, weekday and destination country",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "process an airports file and a bookings file and print the aggregation",
				Flags:  append([]cli.Flag{&cli.StringFlag{Name: "bookings", Usage: "bookings JSON lines file"}}, inputFlags...),
				Action: runCommand,
			},
			{
				Name:   "report",
				Usage:  "aggregate the clean records stored by previous runs",
				Flags:  inputFlags,
				Action: reportCommand,
			},
			{
				Name:   "stream",
				Usage:  "consume bookings from Kafka with a running aggregation",
				Flags:  inputFlags,
				Action: streamCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
