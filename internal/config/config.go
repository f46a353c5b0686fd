// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// DatabaseConfig selects the backing store.
type DatabaseConfig struct {
	Driver string // "postgres" or "sqlite"
	DSN    string
	Debug  bool
}

// BootstrapConfig controls optional startup behavior.
type BootstrapConfig struct {
	SeedDemoData bool
}

// TracingConfig configures the OTLP tracer provider.
type TracingConfig struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// OverdueSweepConfig controls the background PENDING->OVERDUE sweep.
type OverdueSweepConfig struct {
	Enabled      bool
	PollInterval time.Duration
	BatchSize    int
}

// BrandConfig styles rendered quote and invoice documents.
type BrandConfig struct {
	CompanyName  string
	LogoURL      string
	FooterNotes  string
	FooterLegal  string
	PrimaryColor string
	FontFamily   string
}

// Config is the full process configuration.
type Config struct {
	Environment  string
	HTTPAddr     string
	LogLevel     string
	Database     DatabaseConfig
	Bootstrap    BootstrapConfig
	Tracing      TracingConfig
	OverdueSweep OverdueSweepConfig
	Brand        BrandConfig
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: getEnv("QUOTEFLOW_ENV", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "postgres"),
			DSN:    getEnv("DATABASE_DSN", ""),
			Debug:  getBool("DB_DEBUG", false),
		},
		Bootstrap: BootstrapConfig{
			SeedDemoData: getBool("SEED_DEMO_DATA", false),
		},
		Tracing: TracingConfig{
			Enabled:          getBool("TRACING_ENABLED", false),
			ExporterEndpoint: getEnv("OTLP_ENDPOINT", ""),
			ExporterProtocol: getEnv("OTLP_PROTOCOL", "grpc"),
			SamplingRatio:    getFloat("TRACING_SAMPLING_RATIO", 0.1),
		},
		OverdueSweep: OverdueSweepConfig{
			Enabled:      getBool("OVERDUE_SWEEP_ENABLED", true),
			PollInterval: getDuration("OVERDUE_SWEEP_INTERVAL", time.Hour),
			BatchSize:    getInt("OVERDUE_SWEEP_BATCH_SIZE", 100),
		},
		Brand: BrandConfig{
			CompanyName:  getEnv("BRAND_COMPANY_NAME", ""),
			LogoURL:      getEnv("BRAND_LOGO_URL", ""),
			FooterNotes:  getEnv("BRAND_FOOTER_NOTES", ""),
			FooterLegal:  getEnv("BRAND_FOOTER_LEGAL", ""),
			PrimaryColor: getEnv("BRAND_PRIMARY_COLOR", ""),
			FontFamily:   getEnv("BRAND_FONT_FAMILY", ""),
		},
	}
	return cfg, nil
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
