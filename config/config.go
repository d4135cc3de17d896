package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the package engine service
type Config struct {
	// Server
	HTTPPort string

	// Database
	DatabaseHost string
	DatabasePort string
	DatabaseUser string
	DatabasePass string
	DatabaseName string

	// ERP connector, e.g. "http://localhost:7000"
	ERPEndpoint string
	// Optional warehouse filter applied to every ERP query
	ERPWarehouse string

	// Consistency detection
	DetectionInterval time.Duration
	DetectionEpsilon  float64
	MediumThreshold   float64
	HighThreshold     float64

	// Create demo packages on first start
	SeedDemoData bool
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_PORT", "6100")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASS", "postgrespassword")
	v.SetDefault("DB_NAME", "wms_package_db")

	v.SetDefault("ERP_ENDPOINT", "http://localhost:7000")
	v.SetDefault("ERP_WAREHOUSE", "")

	v.SetDefault("DETECTION_INTERVAL", "1h")
	v.SetDefault("DETECTION_EPSILON", 0.000001)
	v.SetDefault("DETECTION_MEDIUM_THRESHOLD", 5.0)
	v.SetDefault("DETECTION_HIGH_THRESHOLD", 20.0)

	v.SetDefault("SEED_DEMO_DATA", false)

	return &Config{
		HTTPPort: v.GetString("HTTP_PORT"),

		DatabaseHost: v.GetString("DB_HOST"),
		DatabasePort: v.GetString("DB_PORT"),
		DatabaseUser: v.GetString("DB_USER"),
		DatabasePass: v.GetString("DB_PASS"),
		DatabaseName: v.GetString("DB_NAME"),

		ERPEndpoint:  v.GetString("ERP_ENDPOINT"),
		ERPWarehouse: v.GetString("ERP_WAREHOUSE"),

		DetectionInterval: v.GetDuration("DETECTION_INTERVAL"),
		DetectionEpsilon:  v.GetFloat64("DETECTION_EPSILON"),
		MediumThreshold:   v.GetFloat64("DETECTION_MEDIUM_THRESHOLD"),
		HighThreshold:     v.GetFloat64("DETECTION_HIGH_THRESHOLD"),

		SeedDemoData: v.GetBool("SEED_DEMO_DATA"),
	}
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePass,
		c.DatabaseName,
	)
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}
	if c.DatabaseName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.ERPEndpoint == "" {
		return fmt.Errorf("ERP_ENDPOINT is required")
	}
	if c.DetectionInterval <= 0 {
		return fmt.Errorf("DETECTION_INTERVAL must be positive")
	}
	if c.MediumThreshold > c.HighThreshold {
		return fmt.Errorf("DETECTION_MEDIUM_THRESHOLD must not exceed DETECTION_HIGH_THRESHOLD")
	}
	return nil
}
