// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration.
type Config struct {
	DataDir       string // Base directory for all databases (always absolute)
	LogLevel      string
	LogPretty     bool
	Port          int
	DevMode       bool
	WorkerCount   int    // Bounded per-instrument worker pool size
	PipelinesFile string // Optional YAML pipeline tuning file
	Schedules     ScheduleConfig
	Backup        BackupConfig
}

// ScheduleConfig holds cron expressions (with seconds) for each job.
type ScheduleConfig struct {
	Scoring      string
	Lifecycle    string
	Aggregate    string
	CacheCleanup string
	Backup       string
	HealthCheck  string
	Maintenance  string
}

// BackupConfig holds S3-compatible backup settings.
// Backups are disabled when Bucket is empty.
type BackupConfig struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	RetentionDays   int
}

// Enabled reports whether backups should run.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("SIGNALSCOPE_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("PORT", 8080),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     getEnvAsBool("LOG_PRETTY", false),
		WorkerCount:   getEnvAsInt("WORKER_COUNT", 8),
		PipelinesFile: getEnv("PIPELINES_FILE", ""),
		Schedules: ScheduleConfig{
			// Market data lands after the close; scoring runs first, lifecycle after it
			Scoring:      getEnv("SCORING_SCHEDULE", "0 30 18 * * *"),
			Lifecycle:    getEnv("LIFECYCLE_SCHEDULE", "0 0 19 * * *"),
			Aggregate:    getEnv("AGGREGATE_SCHEDULE", "0 30 19 * * *"),
			CacheCleanup: getEnv("CACHE_CLEANUP_SCHEDULE", "0 0 3 * * *"),
			Backup:       getEnv("BACKUP_SCHEDULE", "0 0 4 * * *"),
			HealthCheck:  getEnv("HEALTH_CHECK_SCHEDULE", "0 0 * * * *"),
			Maintenance:  getEnv("MAINTENANCE_SCHEDULE", "0 0 5 * * SUN"),
		},
		Backup: BackupConfig{
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedules := map[string]string{
		"scoring":       c.Schedules.Scoring,
		"lifecycle":     c.Schedules.Lifecycle,
		"aggregate":     c.Schedules.Aggregate,
		"cache_cleanup": c.Schedules.CacheCleanup,
		"backup":        c.Schedules.Backup,
		"health_check":  c.Schedules.HealthCheck,
		"maintenance":   c.Schedules.Maintenance,
	}
	for name, spec := range schedules {
		if spec == "" {
			return fmt.Errorf("%s schedule is required", name)
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
		}
	}

	if c.Backup.Enabled() {
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			return fmt.Errorf("backup credentials required when BACKUP_S3_BUCKET is set")
		}
		if c.Backup.RetentionDays < 1 {
			return fmt.Errorf("backup retention must be at least 1 day")
		}
	}

	return nil
}

// Helper functions.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
