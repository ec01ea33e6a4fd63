// Package config assembles the habitsync configuration from the environment
// and an optional config file.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jrazmi/habitsync/core/kvstore"
	"github.com/jrazmi/habitsync/core/syncjobs"
	"github.com/jrazmi/habitsync/core/tasks"
	"github.com/jrazmi/habitsync/infrastructure/postgresdb"
	"github.com/jrazmi/habitsync/infrastructure/sqlitedb"
	"github.com/jrazmi/habitsync/infrastructure/workers"
	"github.com/jrazmi/habitsync/sdk/environment"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Prefix namespaces every environment variable, e.g. HABITSYNC_STORE_BACKEND.
const Prefix = "HABITSYNC"

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var backends = []string{BackendMemory, BackendFile, BackendSQLite, BackendPostgres}

type Store struct {
	Backend  string             `mapstructure:"backend" env:"STORE_BACKEND" default:"file"`
	DataDir  string             `mapstructure:"data_dir" env:"STORE_DATA_DIR" default:"data"`
	SQLite   sqlitedb.Options   `mapstructure:"sqlite"`
	Postgres postgresdb.Options `mapstructure:"postgres"`
	Keys     kvstore.Keys       `mapstructure:"keys"`
}

type Core struct {
	Tasks tasks.Options `mapstructure:"tasks"`
	// DedupInterval coalesces habit:check-pending bursts.
	DedupInterval time.Duration `mapstructure:"dedup_interval" env:"DEDUP_INTERVAL" default:"2s"`
}

type Jobs struct {
	Pool         workers.Options    `mapstructure:"pool"`
	Intervals    syncjobs.Intervals `mapstructure:"intervals"`
	RolloverCron string             `mapstructure:"rollover_cron" env:"ROLLOVER_CRON" default:"5 0 * * *"`
	MaxFailures  int                `mapstructure:"max_failures" env:"JOB_MAX_FAILURES" default:"10"`
}

// Config is the overall configuration for a habitsync process.
type Config struct {
	Store Store `mapstructure:"store"`
	Core  Core  `mapstructure:"core"`
	Jobs  Jobs  `mapstructure:"jobs"`
}

// Load parses the environment, then overlays the file at path when one is
// given. Keys absent from the file keep their environment values.
func Load(path string) (Config, error) {
	var cfg Config
	if err := environment.ParseEnvTags(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return Config{}, fmt.Errorf("decoding config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(backends, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("store backend %q: want one of %v", c.Store.Backend, backends))
	}
	if c.Store.Backend == BackendPostgres && c.Store.Postgres.DatabaseURL == "" {
		errs = append(errs, errors.New("postgres backend requires a database url"))
	}
	if c.Store.Backend == BackendFile && c.Store.DataDir == "" {
		errs = append(errs, errors.New("file backend requires a data dir"))
	}
	k := c.Store.Keys
	for name, key := range map[string]string{
		"tasks":           k.Tasks,
		"completed_tasks": k.CompletedTasks,
		"templates":       k.Templates,
		"dismissed":       k.Dismissed,
		"last_sync_date":  k.LastSyncDate,
	} {
		if key == "" {
			errs = append(errs, fmt.Errorf("storage key %s is empty", name))
		}
	}
	if c.Core.Tasks.DefaultDuration <= 0 {
		errs = append(errs, errors.New("default duration must be positive"))
	}
	if c.Jobs.RolloverCron != "" {
		if _, err := cron.ParseStandard(c.Jobs.RolloverCron); err != nil {
			errs = append(errs, fmt.Errorf("rollover cron: %w", err))
		}
	}
	return errors.Join(errs...)
}
