// Package config provides configuration loaded from environment variables
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"

	"github.com/finploy/matchbatch"
	"github.com/finploy/matchbatch/match"
)

// Config holds everything a match or reconcile run needs.
type Config struct {
	Files     FilesConfig
	Match     MatchConfig
	Reconcile ReconcileConfig
	Database  DatabaseConfig
	FTP       FTPConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Batch     BatchConfig
}

// FilesConfig names input and output tables relative to Dir. Names may be
// file path patterns such as "exports/matches_{date,yyyyMMdd}.xlsx".
type FilesConfig struct {
	Dir                string `validate:"required"`
	Candidates         string `validate:"required"`
	Jobs               string `validate:"required"`
	LocationMaster     string
	Matches            string `validate:"required"`
	Unique             string `validate:"required"`
	Strict             string `validate:"required"`
	Resend             string `validate:"required"`
	Duplicates         string `validate:"required"`
	ChunkPrefix        string `validate:"required"`
	Dialer             string `validate:"required"`
	UnmatchedLocations string `validate:"required"`
	Events             string `validate:"required"`
	EventsEncoding     string
	Roster             string `validate:"required"`
	Lineup             string `validate:"required"`
	Reengagement       string `validate:"required"`
}

type MatchConfig struct {
	// HikeMin and HikeMax bound the accepted hike percentage; both are required.
	HikeMin       *float64 `validate:"required"`
	HikeMax       *float64 `validate:"required"`
	RequireActive bool
	Department    string
	Product       string
	ChunkSize     int `validate:"gte=1"`
	DialerPrefix  string
	DialerSuffix  string
	// ResendKeep picks the surviving row of a resend group, first or last.
	ResendKeep    string `validate:"oneof=first last"`
}

type ReconcileConfig struct {
	SuppressWindowDays int `validate:"gte=0"`
	SuppressedStatuses []string
	EmptyPhonePolicy   string `validate:"oneof=drop append"`
	// RosterBackend selects where the roster of record lives.
	RosterBackend string `validate:"oneof=xlsx sql"`
	RosterTable   string `validate:"required_if=RosterBackend sql"`
	LineupTable   string `validate:"required_if=RosterBackend sql"`
	Timezone      string
}

// DatabaseConfig selects the job repository and SQL roster. An empty Driver
// keeps job executions in memory.
type DatabaseConfig struct {
	Driver       string `validate:"omitempty,oneof=mysql sqlite"`
	Path         string `validate:"required_if=Driver sqlite"`
	Host         string `validate:"required_if=Driver mysql"`
	Port         int    `validate:"gte=0,lte=65535"`
	Name         string `validate:"required_if=Driver mysql"`
	User         string `validate:"required_if=Driver mysql"`
	Password     string
	MaxOpenConns int `validate:"gte=0"`
}

type FTPConfig struct {
	Enabled  bool
	Host     string `validate:"required_if=Enabled true"`
	Port     int    `validate:"gte=0,lte=65535"`
	User     string
	Password string
	Dir      string
	Timeout  time.Duration
}

type RedisConfig struct {
	// URL enables the redis roster lock, e.g. redis://localhost:6379/0.
	URL      string `validate:"omitempty,url"`
	Prefix   string
	// LockTTL is how long a lock outlives a crashed holder; live holders extend it.
	LockTTL  time.Duration
	LockWait time.Duration
}

type LoggingConfig struct {
	Level      string `validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	File       string
	MaxSizeMB  int `validate:"gte=0"`
	MaxBackups int `validate:"gte=0"`
	MaxAgeDays int `validate:"gte=0"`
}

type MetricsConfig struct {
	// TextfilePath is a node-exporter textfile the CLI writes after each run.
	TextfilePath string
}

type BatchConfig struct {
	MaxRunningJobs int `validate:"gte=1"`
}

// Load loads and validates configuration from MATCHBATCH_* environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Files: FilesConfig{
			Dir:                getEnvString("MATCHBATCH_DATA_DIR", "."),
			Candidates:         getEnvString("MATCHBATCH_CANDIDATES_FILE", "candidates.xlsx"),
			Jobs:               getEnvString("MATCHBATCH_JOBS_FILE", "jobs.xlsx"),
			LocationMaster:     getEnvString("MATCHBATCH_LOCATION_MASTER_FILE", ""),
			Matches:            getEnvString("MATCHBATCH_MATCHES_FILE", "exports/matches_{date,yyyyMMdd}.xlsx"),
			Unique:             getEnvString("MATCHBATCH_UNIQUE_FILE", "exports/unique_{date,yyyyMMdd}.xlsx"),
			Strict:             getEnvString("MATCHBATCH_STRICT_FILE", "exports/strict_{date,yyyyMMdd}.xlsx"),
			Resend:             getEnvString("MATCHBATCH_RESEND_FILE", "exports/resend_{date,yyyyMMdd}.xlsx"),
			Duplicates:         getEnvString("MATCHBATCH_DUPLICATES_FILE", "exports/duplicates_{date,yyyyMMdd}.xlsx"),
			ChunkPrefix:        getEnvString("MATCHBATCH_CHUNK_PREFIX", "exports/chunks/unique_{date,yyyyMMdd}"),
			Dialer:             getEnvString("MATCHBATCH_DIALER_FILE", "exports/dialer_{date,yyyyMMdd}.csv"),
			UnmatchedLocations: getEnvString("MATCHBATCH_UNMATCHED_LOCATIONS_FILE", "exports/additional_locations_{date,yyyyMMdd}.xlsx"),
			Events:             getEnvString("MATCHBATCH_EVENTS_FILE", "calls/call_log_{date,yyyyMMdd}.csv"),
			EventsEncoding:     getEnvString("MATCHBATCH_EVENTS_ENCODING", "utf-8"),
			Roster:             getEnvString("MATCHBATCH_ROSTER_FILE", "roster/screening.xlsx"),
			Lineup:             getEnvString("MATCHBATCH_LINEUP_FILE", "roster/lineup.xlsx"),
			Reengagement:       getEnvString("MATCHBATCH_REENGAGEMENT_FILE", "exports/reengage_{date,yyyyMMdd}.xlsx"),
		},
		Match: MatchConfig{
			HikeMin:       getEnvFloatPtr("MATCHBATCH_HIKE_MIN"),
			HikeMax:       getEnvFloatPtr("MATCHBATCH_HIKE_MAX"),
			RequireActive: getEnvBool("MATCHBATCH_REQUIRE_ACTIVE", true),
			Department:    getEnvString("MATCHBATCH_DEPARTMENT", ""),
			Product:       getEnvString("MATCHBATCH_PRODUCT", ""),
			ChunkSize:     getEnvInt("MATCHBATCH_CHUNK_SIZE", 30),
			DialerPrefix:  getEnvString("MATCHBATCH_DIALER_LIST_PREFIX", "10"),
			DialerSuffix:  getEnvString("MATCHBATCH_DIALER_LIST_SUFFIX", "01"),
			ResendKeep:    strings.ToLower(getEnvString("MATCHBATCH_RESEND_KEEP", "last")),
		},
		Reconcile: ReconcileConfig{
			SuppressWindowDays: getEnvInt("MATCHBATCH_SUPPRESS_WINDOW_DAYS", 90),
			SuppressedStatuses: getEnvStringSlice("MATCHBATCH_SUPPRESSED_STATUSES", []string{match.StatusNotInterested, match.StatusDrop}),
			EmptyPhonePolicy:   strings.ToLower(getEnvString("MATCHBATCH_EMPTY_PHONE_POLICY", string(match.EmptyPhoneDrop))),
			RosterBackend:      getEnvString("MATCHBATCH_ROSTER_BACKEND", "xlsx"),
			RosterTable:        getEnvString("MATCHBATCH_ROSTER_TABLE", "candidate_jobs"),
			LineupTable:        getEnvString("MATCHBATCH_LINEUP_TABLE", "lineup"),
			Timezone:           getEnvString("MATCHBATCH_TIMEZONE", "Local"),
		},
		Database: DatabaseConfig{
			Driver:       getEnvString("DB_DRIVER", ""),
			Path:         getEnvString("DB_PATH", ""),
			Host:         getEnvString("DB_HOST", ""),
			Port:         getEnvInt("DB_PORT", 3306),
			Name:         getEnvString("DB_NAME", ""),
			User:         getEnvString("DB_USER", ""),
			Password:     getEnvString("DB_PASSWORD", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		},
		FTP: FTPConfig{
			Enabled:  getEnvBool("FTP_ENABLED", false),
			Host:     getEnvString("FTP_HOST", ""),
			Port:     getEnvInt("FTP_PORT", 21),
			User:     getEnvString("FTP_USER", ""),
			Password: getEnvString("FTP_PASSWORD", ""),
			Dir:      getEnvString("FTP_DIR", ""),
			Timeout:  getEnvDuration("FTP_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:      getEnvString("REDIS_URL", ""),
			Prefix:   getEnvString("REDIS_LOCK_PREFIX", "matchbatch:lock:"),
			LockTTL:  getEnvDuration("REDIS_LOCK_TTL", 10*time.Minute),
			LockWait: getEnvDuration("REDIS_LOCK_WAIT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			File:       getEnvString("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 7),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
		Metrics: MetricsConfig{
			TextfilePath: getEnvString("METRICS_TEXTFILE", ""),
		},
		Batch: BatchConfig{
			MaxRunningJobs: getEnvInt("MATCHBATCH_MAX_RUNNING_JOBS", matchbatch.DefaultJobPoolSize),
		},
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks struct constraints and the hike band.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "invalid configuration", err)
	}
	if _, err := cfg.Match.Band(); err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "invalid configuration", err)
	}
	if _, err := cfg.Reconcile.Location(); err != nil {
		return matchbatch.NewBatchError(matchbatch.ErrCodeConfig, "invalid configuration", err)
	}
	return nil
}

// Band returns the configured hike band.
func (c MatchConfig) Band() (match.HikeBand, error) {
	if c.HikeMin == nil || c.HikeMax == nil {
		return match.HikeBand{}, fmt.Errorf("MATCHBATCH_HIKE_MIN and MATCHBATCH_HIKE_MAX are required")
	}
	return match.NewHikeBand(*c.HikeMin, *c.HikeMax)
}

func (c ReconcileConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Options builds reconcile options; now is the clock used for dates and suppression.
func (c ReconcileConfig) Options(now func() time.Time) match.ReconcileOptions {
	policy, err := match.ParseEmptyPhonePolicy(c.EmptyPhonePolicy)
	if err != nil {
		policy = match.EmptyPhoneDrop
	}
	return match.ReconcileOptions{
		SuppressWindowDays: c.SuppressWindowDays,
		SuppressedStatuses: c.SuppressedStatuses,
		EmptyPhone:         policy,
		Now:                now,
	}
}

// DSN renders the data source name for the configured driver.
func (c DatabaseConfig) DSN() string {
	switch c.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Name
		mc.User = c.User
		mc.Passwd = c.Password
		mc.ParseTime = true
		return mc.FormatDSN()
	case "sqlite":
		return c.Path
	}
	return ""
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloatPtr returns nil when key is unset or not a number.
func getEnvFloatPtr(key string) *float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return &parsed
		}
	}
	return nil
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
