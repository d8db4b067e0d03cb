package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env        string
	ListenAddr string

	DatabaseURL      string
	DatabaseMaxConns int32

	Oracle OracleConfig

	SyncFreshness    time.Duration
	SyncTimeout      time.Duration
	SyncWorkers      int
	SyncPollInterval time.Duration

	FleetRefresh         time.Duration
	HistoryRetentionDays int
	CacheRetentionDays   int
	MaintenanceInterval  time.Duration
	Location             string

	LogLevel  string
	LogFormat string
}

type OracleConfig struct {
	Enabled         bool
	DSN             string
	ConnectAttempts int
	CompanyCode     int
}

// Defaults registers every key so AutomaticEnv can resolve it
// (database.url is read from DATABASE_URL).
func Defaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.location", "America/Sao_Paulo")
	v.SetDefault("http.listen_addr", ":8080")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("oracle.enabled", false)
	v.SetDefault("oracle.dsn", "")
	v.SetDefault("oracle.connect_attempts", 3)
	v.SetDefault("oracle.company_code", 4)
	v.SetDefault("sync.freshness", "24h")
	v.SetDefault("sync.timeout", "10m")
	v.SetDefault("sync.workers", 0)
	v.SetDefault("sync.poll_interval", "500ms")
	v.SetDefault("fleet.refresh", "1h")
	v.SetDefault("history.retention_days", 365)
	v.SetDefault("cache.retention_days", 90)
	v.SetDefault("maintenance.interval", "0s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance bound to the environment and, when file is
// set, to that YAML file. A .env in the working directory is loaded first.
func New(file string) (*viper.Viper, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	Defaults(v)
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", file, err)
			}
		}
	}
	return v, nil
}

// Load reads the configuration from v. A missing database.url is reported as
// an error alongside the otherwise usable config.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:              v.GetString("app.env"),
		Location:         v.GetString("app.location"),
		ListenAddr:       v.GetString("http.listen_addr"),
		DatabaseURL:      v.GetString("database.url"),
		DatabaseMaxConns: v.GetInt32("database.max_conns"),
		Oracle: OracleConfig{
			Enabled:         v.GetBool("oracle.enabled"),
			DSN:             v.GetString("oracle.dsn"),
			ConnectAttempts: v.GetInt("oracle.connect_attempts"),
			CompanyCode:     v.GetInt("oracle.company_code"),
		},
		SyncFreshness:        v.GetDuration("sync.freshness"),
		SyncTimeout:          v.GetDuration("sync.timeout"),
		SyncWorkers:          v.GetInt("sync.workers"),
		SyncPollInterval:     v.GetDuration("sync.poll_interval"),
		FleetRefresh:         v.GetDuration("fleet.refresh"),
		HistoryRetentionDays: v.GetInt("history.retention_days"),
		CacheRetentionDays:   v.GetInt("cache.retention_days"),
		MaintenanceInterval:  v.GetDuration("maintenance.interval"),
		LogLevel:             v.GetString("log.level"),
		LogFormat:            v.GetString("log.format"),
	}
	if cfg.SyncFreshness <= 0 {
		cfg.SyncFreshness = 24 * time.Hour
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 10 * time.Minute
	}
	if cfg.SyncPollInterval <= 0 {
		cfg.SyncPollInterval = 500 * time.Millisecond
	}
	if cfg.FleetRefresh <= 0 {
		cfg.FleetRefresh = time.Hour
	}
	if cfg.Oracle.ConnectAttempts < 1 {
		cfg.Oracle.ConnectAttempts = 1
	}
	if cfg.Oracle.Enabled && cfg.Oracle.DSN == "" {
		return cfg, fmt.Errorf("ORACLE_DSN not set while ORACLE_ENABLED is true")
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for commands that never touch Postgres; callers decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}

// TimeLocation resolves Location, falling back to the local zone.
func (c Config) TimeLocation() *time.Location {
	if loc, err := time.LoadLocation(c.Location); err == nil {
		return loc
	}
	return time.Local
}
