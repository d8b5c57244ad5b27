package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/channelsync/backend/internal/infrastructure/config"
)

func newTracingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestRegisterDBTracing_InstallsPlugin(t *testing.T) {
	db := newTracingTestDB(t)

	err := RegisterDBTracing(db, config.TelemetryConfig{Enabled: true}, zaptest.NewLogger(t))

	require.NoError(t, err)
	_, ok := db.Config.Plugins["otelgorm"]
	assert.True(t, ok, "otelgorm plugin should be registered")
}

func TestRegisterDBTracing_DisabledSkipsPlugin(t *testing.T) {
	db := newTracingTestDB(t)

	err := RegisterDBTracing(db, config.TelemetryConfig{Enabled: false}, zaptest.NewLogger(t))

	require.NoError(t, err)
	assert.Empty(t, db.Config.Plugins)
}
