package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/autonoma-fleet/autonoma/internal/logging"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/sqlite"
	"github.com/autonoma-fleet/autonoma/pkg/config"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Telemetry.Interval = 0
	return cfg
}

func TestBuild_InMemory(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, testConfig(t), logging.NewNop())
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "deterministic", app.Engine.DesignName())
	require.NotNil(t, app.Registry)

	_, next, err := app.Diagnose(ctx, "EV-1", domain.Sample{domain.SensorBatteryTemperature: 75})
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityCritical, next.Severity)
	assert.NotEmpty(t, next.BookingID)
	assert.Len(t, app.Audit.Records(), 6)

	insights, err := app.Insights.ListInsights(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, insights, 1)

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "autonoma_runs_total")
	assert.Contains(t, names, "autonoma_transitions_total")
}

func TestBuild_RedisAndSQLite(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	dbPath := filepath.Join(t.TempDir(), "autonoma.db")

	cfg := testConfig(t)
	cfg.Store.Type = "redis"
	cfg.Store.Redis.Addr = mr.Addr()
	cfg.Audit.RedisStream = "autonoma:audit"
	cfg.Audit.SQLitePath = dbPath
	cfg.Metrics.Enabled = false

	app, err := Build(ctx, cfg, logging.NewNop())
	require.NoError(t, err)

	_, _, err = app.Diagnose(ctx, "EV-9", domain.Sample{domain.SensorBatteryTemperature: 75})
	require.NoError(t, err)

	assert.True(t, mr.Exists("autonoma:run:EV-9"))
	assert.False(t, mr.Exists("autonoma:lock:EV-9"), "lock released after the turn")
	entries, err := mr.Stream("autonoma:audit")
	require.NoError(t, err)
	assert.Len(t, entries, 6)

	require.NoError(t, app.Close())

	// Durable audit and insights survive the process.
	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	records, err := db.AuditRecords(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, records, 6)
	insights, err := db.ListInsights(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, insights, 1)
}

func TestBuild_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Type = "redis"
	cfg.Store.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Build(ctx, cfg, logging.NewNop())
	assert.ErrorContains(t, err, "unreachable")
}

func TestBuild_ErrorsReleaseAdapters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown llm provider", func(c *config.Config) { c.LLM.Provider = "bogus" }, "unknown llm provider"},
		{"missing policy file", func(c *config.Config) { c.Policy.File = filepath.Join(t.TempDir(), "missing.yaml") }, "missing.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			cfg := testConfig(t)
			cfg.Audit.SQLitePath = filepath.Join(t.TempDir(), "audit.db")
			cfg.Audit.RedisStream = "autonoma:audit"
			cfg.Store.Redis.Addr = mr.Addr()
			tt.mutate(cfg)

			app, err := Build(context.Background(), cfg, logging.NewNop())
			require.ErrorContains(t, err, tt.want)
			assert.Nil(t, app)
		})
	}
}

func TestBuild_PolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transitions:\n  start: [data_analysis]\n  data_analysis: [end]\n"), 0o600))

	cfg := testConfig(t)
	cfg.Policy.File = path
	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close()

	_, next, err := app.Diagnose(context.Background(), "EV-1", domain.Sample{domain.SensorBatteryTemperature: 75})
	require.NoError(t, err)
	assert.Equal(t, []domain.NodeID{domain.NodeDataAnalysis}, next.Path)

	records := app.Audit.Records()
	require.NotEmpty(t, records)
	assert.Equal(t, domain.AuditBlocked, records[len(records)-1].Status)
}

func TestReplay_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.csv")
	csv := "Battery Temperature,Vibration Level\n25,1\n75,1\n30,9\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	cfg := testConfig(t)
	cfg.Telemetry.File = path
	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close()

	src, err := app.TelemetrySource()
	require.NoError(t, err)

	var severities []domain.Severity
	n, err := app.Replay(context.Background(), src, "EV-CSV", 3, func(_ domain.Sample, _, next *domain.State) error {
		severities = append(severities, next.Severity)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []domain.Severity{domain.SeverityLow, domain.SeverityCritical, domain.SeverityCritical}, severities)

	stored, err := app.Sessions.Load(context.Background(), "EV-CSV")
	require.NoError(t, err)
	assert.Len(t, stored.History, 3)
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, HandleExecutionError(nil))
	assert.NoError(t, HandleExecutionError(context.Canceled))
	assert.Error(t, HandleExecutionError(assert.AnError))
}

func TestPrintSystemMessage(t *testing.T) {
	var buf bytes.Buffer
	PrintSystemMessage(&buf, "replayed %d readings", 3)
	assert.Equal(t, ">>> replayed 3 readings\n", buf.String())
}

func TestBuild_FileStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.Type = "file"
	cfg.Store.File.Dir = t.TempDir()
	cfg.Store.File.Key = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	app, err := Build(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	_, first, err := app.Diagnose(ctx, "EV-F", domain.Sample{domain.SensorVibrationLevel: 6})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	restarted, err := Build(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	defer restarted.Close()

	stored, err := restarted.Sessions.Load(ctx, "EV-F")
	require.NoError(t, err)
	assert.Equal(t, first.RunID, stored.RunID)
	assert.Equal(t, domain.SeverityMedium, stored.Severity)
}

func TestBuild_RedactsStoredTranscript(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.RedactPatterns = middleware.DefaultPIIPatterns

	app, err := Build(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close()

	_, _, err = app.Diagnose(ctx, "EV-R", domain.Sample{domain.SensorVibrationLevel: 6})
	require.NoError(t, err)
	prev, err := app.Sessions.Load(ctx, "EV-R")
	require.NoError(t, err)

	_, err = app.Sessions.Turn(ctx, "EV-R", func(ctx context.Context, prev *domain.State) (*domain.State, error) {
		return app.Engine.Chat(ctx, prev, "reach me at driver@example.com")
	})
	require.NoError(t, err)

	stored, err := app.Sessions.Load(ctx, "EV-R")
	require.NoError(t, err)
	require.Greater(t, len(stored.Messages), len(prev.Messages))
	assert.Equal(t, "reach me at ***", stored.Messages[len(prev.Messages)].Content)
}
