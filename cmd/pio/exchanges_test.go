package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/productif/internal/db"
	"github.com/zulandar/productif/internal/models"
	"github.com/zulandar/productif/internal/telegraph"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestExchangeLog(t *testing.T) *telegraph.ExchangeLog {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(gdb))
	log, err := telegraph.NewExchangeLog(gdb)
	require.NoError(t, err)
	return log
}

func TestPrintExchanges(t *testing.T) {
	log := newTestExchangeLog(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	require.NoError(t, log.Record(ctx, &models.Exchange{
		ContactID: 3, Inbound: "ajoute une tâche\nrapport", Category: "task_management",
		ActionExecuted: "create_task", DurationMS: 412, CreatedAt: at,
	}))

	var buf bytes.Buffer
	require.NoError(t, printExchanges(ctx, log, &buf, 0, 10))
	out := buf.String()
	assert.Contains(t, out, "WHEN")
	assert.Contains(t, out, "03-10 09:30")
	assert.Contains(t, out, "create_task")
	assert.Contains(t, out, "ajoute une tâche rapport")

	buf.Reset()
	require.NoError(t, printExchanges(ctx, log, &buf, 99, 10))
	assert.Equal(t, "No exchanges.\n", buf.String())
}

func TestPrintActionSummary(t *testing.T) {
	log := newTestExchangeLog(t)
	ctx := context.Background()
	now := time.Now()
	for _, action := range []string{"create_task", "create_task", "deepwork_start", ""} {
		require.NoError(t, log.Record(ctx, &models.Exchange{Inbound: "x", ActionExecuted: action, CreatedAt: now}))
	}

	var buf bytes.Buffer
	require.NoError(t, printActionSummary(ctx, log, &buf, now.Add(-time.Hour)))
	out := buf.String()
	assert.Contains(t, out, "create_task")
	assert.Contains(t, out, "(none)")
	assert.Regexp(t, `total\s+4`, out)
	assert.Less(t, strings.Index(out, "create_task"), strings.Index(out, "deepwork_start"), "most frequent first")
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\nb\tc", 10))
	assert.Equal(t, "abcd…", oneLine("abcdefgh", 5))
	assert.Equal(t, "éèà", oneLine("éèà", 3))
}
