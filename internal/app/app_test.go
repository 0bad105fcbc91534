package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-ops-api/internal/config"
	"restaurant-ops-api/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Type:      "sqlite",
			Path:      filepath.Join(t.TempDir(), "restaurant.db"),
			KeyPrefix: "restaurant_",
		},
		Backup: config.BackupConfig{SideChannel: "store", MaxBackups: 10},
	}
}

func TestOpen_SQLiteWithoutRedis(t *testing.T) {
	ctx := context.Background()
	log, hook := test.NewNullLogger()
	cfg := testConfig(t)

	a, err := Open(ctx, cfg, log)
	require.NoError(t, err)

	assert.Nil(t, a.Redis)
	assert.Nil(t, a.Lease)
	assert.Len(t, a.Probes(), 1)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Message == "redis disabled: run a single writer per store" {
			warned = true
		}
	}
	assert.True(t, warned)

	require.NoError(t, a.Store.Set(ctx, model.TableSettings, []model.Record{{"id": "tax"}}))
	meta, err := a.Backups.CreateBackup(ctx, model.BackupManual)
	require.NoError(t, err)
	a.Close(ctx)

	reopened, err := Open(ctx, cfg, log)
	require.NoError(t, err)
	defer reopened.Close(ctx)

	listed := reopened.Backups.ListBackups()
	require.Len(t, listed, 1)
	assert.Equal(t, meta.ID, listed[0].ID)
	assert.Equal(t, 1, reopened.Store.Audit().Len())
}

func TestOpen_RedisSideChannelNeedsRedis(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.Backup.SideChannel = "redis"

	_, err := Open(context.Background(), cfg, log)
	assert.ErrorContains(t, err, "REDIS_ENABLED")
}

func TestOpen_UnknownBackend(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.Store.Type = "cassandra"

	_, err := Open(context.Background(), cfg, log)
	assert.Error(t, err)
}
