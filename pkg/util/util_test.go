package util

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: redact}))

	logger.Info("form submitted", "token", "s3cr3t-token", "link_id", "abc")

	assert.NotContains(t, buf.String(), "s3cr3t-token")
	assert.Contains(t, buf.String(), "[REDACTED]")
	assert.Contains(t, buf.String(), "abc")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("", "development"))
	assert.Equal(t, slog.LevelInfo, parseLevel("", "production"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN", "development"))
}

func TestCron(t *testing.T) {
	require.NoError(t, ValidateCronExpr("0 3 * * *"))
	assert.Error(t, ValidateCronExpr("not a cron"))

	from := time.Date(2026, 1, 1, 4, 0, 0, 0, time.UTC)
	next, err := NextCronTime("0 3 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), next)
}
