package metrics_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/logger"
	"codeberg.org/mutker/ecfanctl/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tick(cpu, current, target int, written bool) *metrics.TickSnapshot {
	return &metrics.TickSnapshot{
		Timestamp:   time.Now(),
		Profile:     "default",
		Temperature: metrics.TempMetrics{CPU: cpu, GPU: 50, GPUProbe: -1},
		FanDuty:     metrics.DutyMetrics{Current: current, Desired: target, Target: target},
		FanRPM:      2100,
		Action:      metrics.ActionMetrics{Written: written, Reason: "ramp_up"},
	}
}

func enabledConfig(t *testing.T) metrics.Config {
	t.Helper()

	return metrics.Config{
		DBPath:       filepath.Join(t.TempDir(), "db", "metrics.db"),
		BatchSize:    2,
		BatchTimeout: 0,
		Enabled:      true,
	}
}

func countRows(t *testing.T, path, query string) int {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(query).Scan(&n))

	return n
}

func TestRecordAndClose(t *testing.T) {
	cfg := enabledConfig(t)

	collector, err := metrics.NewService(cfg, logger.Default())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, collector.Record(ctx, tick(55, 32, 40, true)))
	require.NoError(t, collector.Record(ctx, tick(56, 40, 0, false)))
	require.NoError(t, collector.Record(ctx, tick(57, 40, 0, false)))
	require.NoError(t, collector.Close())

	assert.Equal(t, 3, countRows(t, cfg.DBPath, "SELECT COUNT(*) FROM ticks"), "close flushes the partial batch")
	assert.Equal(t, 1, countRows(t, cfg.DBPath, "SELECT COUNT(DISTINCT run_id) FROM ticks"))
	assert.Equal(t, 1, countRows(t, cfg.DBPath, "SELECT COUNT(*) FROM ticks WHERE written = 1"))
}

func TestCloseTwice(t *testing.T) {
	collector, err := metrics.NewService(enabledConfig(t), logger.Default())
	require.NoError(t, err)

	require.NoError(t, collector.Close())
	require.NoError(t, collector.Close())
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := enabledConfig(t)
	cfg.BatchSize = 1

	first, err := metrics.NewService(cfg, logger.Default())
	require.NoError(t, err)
	require.NoError(t, first.Record(context.Background(), tick(60, 40, 50, true)))
	require.NoError(t, first.Close())

	second, err := metrics.NewService(cfg, logger.Default())
	require.NoError(t, err)
	require.NoError(t, second.Record(context.Background(), tick(61, 50, 0, false)))
	require.NoError(t, second.Close())

	assert.Equal(t, 2, countRows(t, cfg.DBPath, "SELECT COUNT(*) FROM ticks"))
	assert.Equal(t, 2, countRows(t, cfg.DBPath, "SELECT COUNT(DISTINCT run_id) FROM ticks"))
}

func TestSchemaMismatchBacksUp(t *testing.T) {
	cfg := enabledConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755))

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	collector, err := metrics.NewService(cfg, logger.Default())
	require.NoError(t, err)
	require.NoError(t, collector.Close())

	assert.Equal(t, metrics.SchemaVersion,
		countRows(t, cfg.DBPath, "SELECT MAX(version) FROM schema_versions"))

	backups, err := filepath.Glob(filepath.Join(filepath.Dir(cfg.DBPath), "backups", "metrics_v99_*.db"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestRecordValidation(t *testing.T) {
	collector, err := metrics.NewService(enabledConfig(t), logger.Default())
	require.NoError(t, err)
	defer collector.Close()

	err = collector.Record(context.Background(), nil)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidMetrics))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = collector.Record(ctx, tick(50, 40, 0, false))
	assert.True(t, errors.HasCode(err, metrics.ErrOperationTimeout))
}

func TestDisabledIsNoop(t *testing.T) {
	collector, err := metrics.NewService(metrics.DefaultConfig(), logger.Default())
	require.NoError(t, err)

	require.NoError(t, collector.Record(context.Background(), tick(50, 40, 0, false)))
	require.NoError(t, collector.Close())
}

func TestInvalidConfig(t *testing.T) {
	_, err := metrics.NewService(metrics.Config{Enabled: true, BatchSize: 1}, logger.Default())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidDBPath))
}
