// Package app wires the durable backend, the optional Redis services and the
// managers shared by the API server and restoctl.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"restaurant-ops-api/internal/config"
	"restaurant-ops-api/internal/lease"
	"restaurant-ops-api/internal/repository"
	"restaurant-ops-api/internal/service"
	"restaurant-ops-api/internal/store"
)

const redisPingTimeout = 5 * time.Second

// App holds the opened backends and the managers built on them.
type App struct {
	Config  *config.Config
	Log     logrus.FieldLogger
	Backend repository.KVStore
	Redis   *redis.Client // nil when Redis is disabled
	Lease   *lease.Writer // nil when Redis is disabled
	Store   *store.Store
	Backups *service.BackupManager
}

// Open connects the configured backends, takes the writer lease when Redis is
// enabled, and builds the store and backup manager.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	backend, err := repository.Open(repository.Options{
		Type:        cfg.Store.Type,
		Path:        cfg.Store.Path,
		PostgresDSN: cfg.Store.PostgresDSN(),
		MySQLDSN:    cfg.Store.MySQLDSN(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store backend: %w", err)
	}
	a.Backend = backend

	if cfg.Redis.Enabled {
		if err := a.openRedis(ctx); err != nil {
			a.Close(ctx)
			return nil, err
		}
	} else {
		log.Warn("redis disabled: run a single writer per store")
	}

	a.Store, err = store.New(ctx, backend, log, store.Options{
		KeyPrefix:    cfg.Store.KeyPrefix,
		PersistAudit: true,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	side := backend
	if cfg.Backup.SideChannel == "redis" {
		if a.Redis == nil {
			a.Close(ctx)
			return nil, fmt.Errorf("backup side channel redis requires REDIS_ENABLED")
		}
		side = repository.NewRedisKV(a.Redis, "", log)
	}

	a.Backups, err = service.NewBackupManager(ctx, a.Store, side, log, service.BackupConfig{
		KeyPrefix:  cfg.Store.KeyPrefix,
		MaxBackups: cfg.Backup.MaxBackups,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to load backups: %w", err)
	}

	return a, nil
}

func (a *App) openRedis(ctx context.Context) error {
	cfg := a.Config.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.Redis = client
	a.Log.WithField("addr", cfg.Address()).Info("redis client initialized")

	w, err := lease.Acquire(ctx, client, a.Config.Lease.Key, a.Config.Lease.TTL, a.Log)
	if err != nil {
		return err
	}
	a.Lease = w
	return nil
}

// Probes returns the status probes for the opened backends.
func (a *App) Probes() []service.Probe {
	probes := []service.Probe{service.StoreProbe(a.Store)}
	if a.Redis != nil {
		probes = append(probes, service.RedisProbe(a.Redis))
	}
	if url := a.Config.Status.ProbeURL; url != "" {
		probes = append(probes, service.HTTPProbe(url, nil))
	}
	return probes
}

// Close releases the lease and closes every backend. Safe on a partly opened App.
func (a *App) Close(ctx context.Context) {
	if a.Lease != nil {
		if err := a.Lease.Release(ctx); err != nil {
			a.Log.WithError(err).Warn("failed to release writer lease")
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Backend != nil {
		if err := a.Backend.Close(); err != nil {
			a.Log.WithError(err).Warn("failed to close store backend")
		}
	}
}
