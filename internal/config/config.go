// Package config loads the layered application configuration (file + env
// overrides) the same way the teacher does: chu for layered loading,
// loaderenv for the ATBOT_-prefixed environment override, logi for applying
// the resolved log level.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rakunlabs/alan"
	"github.com/rakunlabs/chu"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"
)

var Service = "atbot"

type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	Store Store  `cfg:"store"`
	KV    KV     `cfg:"kv"`
	HTTP  HTTP   `cfg:"http"`

	// Scheduler configures the cron/interval job runner.
	Scheduler Scheduler `cfg:"scheduler"`

	// EncryptionKey is loaded from configuration but not applied anywhere:
	// bot secrets are read from the store and used exactly as stored, and
	// "enc:"-prefixed values are not decrypted.
	EncryptionKey string `cfg:"encryption_key" log:"-"`

	// DataDir holds the data_storage node's per-name JSON files, per
	// external-interfaces persisted-state layout.
	DataDir string `cfg:"data_dir" default:"./data"`

	// Alan, if set, enables multi-instance peer discovery so only one
	// instance runs the scheduler at a time. Nil (the default) means
	// single-instance mode: the scheduler always runs locally.
	Alan *alan.Config `cfg:"alan"`
}

type Store struct {
	Postgres *StorePostgres `cfg:"postgres"`
	SQLite   *StoreSQLite   `cfg:"sqlite"`
}

type StorePostgres struct {
	TablePrefix     *string        `cfg:"table_prefix"`
	Datasource      string         `cfg:"datasource" log:"-"`
	ConnMaxLifetime *time.Duration `cfg:"conn_max_lifetime"`
	MaxIdleConns    *int           `cfg:"max_idle_conns"`
	MaxOpenConns    *int           `cfg:"max_open_conns"`
}

type StoreSQLite struct {
	TablePrefix *string `cfg:"table_prefix"`
	Datasource  string  `cfg:"datasource" default:"./atbot.db"`
}

// KV configures the dedup/debug key-value collaborator. When Redis
// is unset, an in-memory store is used instead (fine for single-instance
// deployments and tests).
type KV struct {
	RedisAddr     string `cfg:"redis_addr"`
	RedisPassword string `cfg:"redis_password" log:"-"`
	RedisDB       int    `cfg:"redis_db"`
}

type HTTP struct {
	Port string `cfg:"port" default:"8080"`
	Host string `cfg:"host"`
}

type Scheduler struct {
	// Timezone is the single configured timezone every cron/interval
	// schedule trigger is evaluated in.
	Timezone string `cfg:"timezone" default:"UTC"`
}

func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, path, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("ATBOT_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}
