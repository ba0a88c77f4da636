package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	InputPath      string
	SheetName      string
	Layout         string
	ReferenceDate  string
	BusinessUnit   string
	Period         string
	ReportPath     string
	ThresholdsPath string

	Workers  int
	LogLevel string

	ExportPostgres   bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	MaxRetries       int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		InputPath:      getEnv("INPUT_PATH", ""),
		SheetName:      getEnv("SHEET_NAME", ""),
		Layout:         getEnv("LAYOUT", "auto"),
		ReferenceDate:  getEnv("REFERENCE_DATE", ""),
		BusinessUnit:   getEnv("BUSINESS_UNIT", ""),
		Period:         getEnv("PERIOD", ""),
		ReportPath:     getEnv("REPORT_PATH", "./output/kpi_report.xlsx"),
		ThresholdsPath: getEnv("THRESHOLDS_PATH", ""),

		Workers:  getEnvInt("WORKERS", 1),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ExportPostgres:   getEnvBool("EXPORT_POSTGRES", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "fleet"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "fleet123"),
		PostgresDB:       getEnv("POSTGRES_DB", "fleet_kpi"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
