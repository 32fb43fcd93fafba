package logger_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rcanpahali/BirdNet/internal/logger"
)

// decodeLines parses each JSON log line written to buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		out = append(out, entry)
	}
	return out
}

func newJSONLogger(t *testing.T, cfg *logger.LoggingConfig) (*logger.CentralLogger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	cfg.Format = "json"
	cl, err := logger.NewCentralLogger(cfg, logger.WithConsoleWriter(buf))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })
	return cl, buf
}

func TestModuleLoggerWritesStructuredFields(t *testing.T) {
	t.Parallel()

	cl, buf := newJSONLogger(t, &logger.LoggingConfig{Level: "info", Timezone: "UTC"})

	cl.Module("api").Info("ingest completed",
		logger.String("filename", "sparrow.wav"),
		logger.Int("status", 200),
		logger.Float64("confidence", 0.87654),
		logger.Duration("elapsed", 1500*time.Millisecond),
		logger.Error(errors.New("boom")))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "ingest completed", entry["msg"])
	assert.Equal(t, "api", entry["module"])
	assert.Equal(t, "sparrow.wav", entry["filename"])
	assert.InDelta(t, 200, entry["status"], 0)
	assert.InDelta(t, 0.877, entry["confidence"], 1e-9)
	assert.Equal(t, "1.5s", entry["elapsed"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLevelsAndModuleOverrides(t *testing.T) {
	t.Parallel()

	cl, buf := newJSONLogger(t, &logger.LoggingConfig{
		Level:        "warn",
		ModuleLevels: map[string]string{"datastore": "trace"},
	})

	api := cl.Module("api")
	api.Info("hidden")
	api.Warn("shown")

	store := cl.Module("datastore")
	store.Trace("sql query")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.Equal(t, "sql query", lines[1]["msg"])
	assert.Equal(t, "TRACE", lines[1]["level"])
}

func TestWithAndSubModule(t *testing.T) {
	t.Parallel()

	cl, buf := newJSONLogger(t, &logger.LoggingConfig{Level: "debug"})

	parent := cl.Module("api").With(logger.String("request_id", "req-1"))
	child := parent.Module("analyze")
	child.Debug("forwarding")

	ctx := logger.WithTraceID(context.Background(), "trace-42")
	parent.WithContext(ctx).Info("done")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "api.analyze", lines[0]["module"])
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "trace-42", lines[1]["trace_id"])
}

func TestFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "proxy.log")
	buf := &bytes.Buffer{}
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		Level: "info",
		File:  logger.FileOutput{Enabled: true, Path: path, Level: "warn"},
	}, logger.WithConsoleWriter(buf))
	require.NoError(t, err)

	log := cl.Module("serve")
	log.Info("console only")
	log.Warn("both")
	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "console only")
	assert.Contains(t, string(data), `"msg":"both"`)
	assert.Contains(t, buf.String(), "console only")
}

func TestInvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone")
}

func TestGormAdapterRouting(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelTrace, nil)
	adapter := logger.NewGormLoggerAdapter(log, 50*time.Millisecond)
	ctx := context.Background()

	sql := func() (string, int64) { return "INSERT INTO analyses ...", 1 }

	adapter.Trace(ctx, time.Now(), sql, nil)
	adapter.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	adapter.Trace(ctx, time.Now(), sql, errors.New("constraint failed"))
	adapter.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "sql query", lines[0]["msg"])
	assert.Equal(t, "slow query", lines[1]["msg"])
	assert.Equal(t, "query error", lines[2]["msg"])
	assert.Equal(t, "sql query", lines[3]["msg"])
}

func TestGormAdapterTruncatesLongSQL(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	adapter := logger.NewGormLoggerAdapter(logger.NewSlogLogger(buf, logger.LogLevelTrace, nil), 0)

	long := "INSERT INTO detections VALUES " + strings.Repeat("(1,'Haussperling','Passer domesticus',0.87,0,3),", 2000)
	short := "SELECT * FROM analyses WHERE id = 1"

	adapter.Trace(context.Background(), time.Now(), func() (string, int64) { return long, 0 }, errors.New("too many SQL variables"))
	adapter.Trace(context.Background(), time.Now(), func() (string, int64) { return short, 1 }, nil)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)

	logged, ok := lines[0]["sql"].(string)
	require.True(t, ok)
	assert.Less(t, len(logged), logger.MaxLoggedSQLLength+64)
	assert.True(t, strings.HasPrefix(long, strings.SplitN(logged, "...", 2)[0]))
	assert.Contains(t, logged, "bytes truncated")
	assert.Equal(t, short, lines[1]["sql"])
}

func TestEchoAdapter(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	adapter := logger.NewEchoLoggerAdapter(logger.NewSlogLogger(buf, logger.LogLevelDebug, nil))

	adapter.Infof("listening on %s", ":8080")
	adapter.Warn("slow client")
	assert.Panics(t, func() { adapter.Panic("unrecoverable") })

	out := buf.String()
	assert.True(t, strings.Contains(out, "listening on :8080"))
	assert.Contains(t, out, "slow client")
	assert.Contains(t, out, "unrecoverable")
}
