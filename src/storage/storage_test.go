package storage

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"market-relay/src/logger"
	"market-relay/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) *models.MConfig {
	t.Helper()
	return &models.MConfig{
		Name: "market-relay",
		Storage: models.MStorageConfig{
			DBType:        "sqlite",
			DBPath:        filepath.Join(t.TempDir(), "nested", "pushes.db"),
			RetentionDays: 30,
		},
	}
}

func quietLogger() *logger.Logger {
	return logger.NewLoggerTo(io.Discard, "ERROR", "PushJournal")
}

func TestSQLiteJournalRecordsAndLists(t *testing.T) {
	j := NewSQLiteJournal(sqliteConfig(t), quietLogger())
	require.NoError(t, j.Initialize())
	defer j.Close()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, gw := range []string{models.GatewayPush, models.GatewayWebhook, models.GatewayPush} {
		require.NoError(t, j.RecordPush(models.MPushRecord{
			ReceivedAt: base.Add(time.Duration(i) * time.Second),
			Gateway:    gw,
			Instrument: "QQQ",
			Bars:       i + 1,
			Bytes:      100 * (i + 1),
			RemoteAddr: "127.0.0.1:5000",
		}))
	}

	recs, err := j.RecentPushes(2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 3, recs[0].Bars)
	assert.Equal(t, 2, recs[1].Bars)
	assert.Equal(t, models.GatewayWebhook, recs[1].Gateway)
	assert.True(t, recs[0].ReceivedAt.Equal(base.Add(2*time.Second)))
	assert.NotZero(t, recs[0].ID)
}

func TestSQLiteJournalCleanupOldData(t *testing.T) {
	cfg := sqliteConfig(t)
	j := NewSQLiteJournal(cfg, quietLogger())
	require.NoError(t, j.Initialize())
	defer j.Close()

	require.NoError(t, j.RecordPush(models.MPushRecord{ReceivedAt: time.Now().AddDate(0, 0, -60), Gateway: models.GatewayPush}))
	require.NoError(t, j.RecordPush(models.MPushRecord{ReceivedAt: time.Now(), Gateway: models.GatewayPush}))

	require.NoError(t, j.CleanupOldData())
	recs, err := j.RecentPushes(10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSQLiteJournalSurvivesReopen(t *testing.T) {
	cfg := sqliteConfig(t)
	j := NewSQLiteJournal(cfg, quietLogger())
	require.NoError(t, j.Initialize())
	require.NoError(t, j.RecordPush(models.MPushRecord{ReceivedAt: time.Now(), Gateway: models.GatewayPush, Instrument: "IWM"}))
	require.NoError(t, j.Close())

	again := NewSQLiteJournal(cfg, quietLogger())
	require.NoError(t, again.Initialize())
	defer again.Close()

	recs, err := again.RecentPushes(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "IWM", recs[0].Instrument)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultRecentPushes, ClampLimit(0))
	assert.Equal(t, DefaultRecentPushes, ClampLimit(-3))
	assert.Equal(t, 7, ClampLimit(7))
	assert.Equal(t, MaxRecentPushes, ClampLimit(10000))
}

func TestNewPushJournalSelectsBackend(t *testing.T) {
	cfg := sqliteConfig(t)

	j, err := NewPushJournal(cfg, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteJournal{}, j)

	cfg.Storage.DBType = "postgres"
	j, err = NewPushJournal(cfg, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &PostgresJournal{}, j)

	cfg.Storage.DBType = "none"
	j, err = NewPushJournal(cfg, quietLogger())
	require.NoError(t, err)
	recs, err := j.RecentPushes(5)
	require.NoError(t, err)
	assert.Empty(t, recs)

	cfg.Storage.DBType = "mysql"
	_, err = NewPushJournal(cfg, quietLogger())
	assert.Error(t, err)
}

func TestSchemaName(t *testing.T) {
	assert.Equal(t, "market_relay", SchemaName("market-relay"))
	assert.Equal(t, "relay_2", SchemaName("Relay 2"))
	assert.Equal(t, "market_relay", SchemaName(""))
}
