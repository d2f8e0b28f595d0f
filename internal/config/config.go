package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"booking_etl/internal/aggregate"

	"github.com/spf13/viper"
)

// ConfigPathEnv names the environment variable holding an explicit config file path
const ConfigPathEnv = "BOOKING_ETL_CONFIG_PATH"

// Config holds all configuration for the pipeline
type Config struct {
	AirportsPath     string
	BookingsPath     string
	DBPath           string
	HomeCountry      string
	OperatingAirline string // empty matches any airline
	Workers          int
	BatchSize        int
	BatchTimeout     time.Duration
	SnapshotInterval time.Duration
	MetricsAddr      string
	Output           OutputConfig
	Kafka            KafkaConfig
	Log              LogConfig
}

// OutputConfig selects where clean and quarantined records are written
type OutputConfig struct {
	Mode string // sqlite or file
	Dir  string // JSON lines directory when Mode is file
}

// KafkaConfig configures the streaming bookings source
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from config file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("airports_path", "data/airports.dat")
	v.SetDefault("bookings_path", "data/bookings.json")
	v.SetDefault("db_path", "booking_etl.db")
	v.SetDefault("home_country", aggregate.DefaultHomeCountry)
	v.SetDefault("operating_airline", aggregate.DefaultOperatingAirline)
	v.SetDefault("workers", 4)
	v.SetDefault("batch_size", 100)
	v.SetDefault("batch_timeout", "1s")
	v.SetDefault("snapshot_interval", "30s")
	v.SetDefault("metrics_addr", ":9102")
	v.SetDefault("output.mode", "sqlite")
	v.SetDefault("output.dir", "output")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "bookings")
	v.SetDefault("kafka.group_id", "booking_etl")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/booking_etl")
	v.AddConfigPath(".")

	if configPath := os.Getenv(ConfigPathEnv); configPath != "" {
		v.SetConfigFile(configPath)
	}

	// A missing config file is fine: defaults and environment still apply
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("BOOKING_ETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// BOOKING_ETL_OPERATING_AIRLINE= disables the airline filter
	v.AllowEmptyEnv(true)

	cfg := &Config{
		AirportsPath:     v.GetString("airports_path"),
		BookingsPath:     v.GetString("bookings_path"),
		DBPath:           v.GetString("db_path"),
		HomeCountry:      v.GetString("home_country"),
		OperatingAirline: strings.ToUpper(v.GetString("operating_airline")),
		Workers:          v.GetInt("workers"),
		BatchSize:        v.GetInt("batch_size"),
		BatchTimeout:     v.GetDuration("batch_timeout"),
		SnapshotInterval: v.GetDuration("snapshot_interval"),
		MetricsAddr:      v.GetString("metrics_addr"),
		Output: OutputConfig{
			Mode: strings.ToLower(v.GetString("output.mode")),
			Dir:  v.GetString("output.dir"),
		},
		Kafka: KafkaConfig{
			Brokers: v.GetStringSlice("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
			GroupID: v.GetString("kafka.group_id"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate validates the configuration values
func validate(cfg *Config) error {
	if cfg.HomeCountry == "" {
		return fmt.Errorf("home_country is required")
	}

	if cfg.OperatingAirline != "" && len(cfg.OperatingAirline) != 2 {
		return fmt.Errorf("operating_airline must be a 2 character code or empty: %s", cfg.OperatingAirline)
	}

	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}

	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be greater than 0")
	}

	if cfg.BatchTimeout <= 0 {
		return fmt.Errorf("batch_timeout must be greater than 0")
	}

	if cfg.SnapshotInterval <= 0 {
		return fmt.Errorf("snapshot_interval must be greater than 0")
	}

	switch cfg.Output.Mode {
	case "sqlite":
		if cfg.DBPath == "" {
			return fmt.Errorf("db_path is required when output.mode is sqlite")
		}
	case "file":
		if cfg.Output.Dir == "" {
			return fmt.Errorf("output.dir is required when output.mode is file")
		}
	default:
		return fmt.Errorf("invalid output mode: %s (must be sqlite or file)", cfg.Output.Mode)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[cfg.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", cfg.Log.Format)
	}

	return nil
}
