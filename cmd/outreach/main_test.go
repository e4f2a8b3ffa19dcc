package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/livinlefevreloca/outreach/internal/config"
	"github.com/livinlefevreloca/outreach/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func useTempDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "outreach.db")
	t.Setenv(config.EnvDatabaseDSN, path)
	return path
}

func TestMigrateCommand(t *testing.T) {
	useTempDB(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema version 3\n", out)

	// idempotent
	out, err = execute(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema version 3\n", out)
}

func TestImportCommand(t *testing.T) {
	useTempDB(t)
	csvPath := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"name,url\n"+
			"Jane,https://www.linkedin.com/in/jane-doe/\n"+
			"John,https://www.linkedin.com/in/john-smith\n"+
			"Jane again,https://linkedin.com/in/jane-doe\n"), 0644))

	out, err := execute(t, "import", csvPath)
	require.NoError(t, err)
	assert.Equal(t, "2 profiles read, 2 new\n", out)

	out, err = execute(t, "import", csvPath)
	require.NoError(t, err)
	assert.Equal(t, "2 profiles read, 0 new\n", out)

	out, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "discovered   2")
	assert.Contains(t, out, "total        2")
	assert.Contains(t, out, "No campaign runs yet")
}

func TestImportCommand_MissingColumn(t *testing.T) {
	useTempDB(t)
	csvPath := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("name,email\nJane,jane@example.com\n"), 0644))

	_, err := execute(t, "import", csvPath)
	require.Error(t, err)
}

func TestInvalidConfigRejected(t *testing.T) {
	useTempDB(t)
	t.Setenv(config.EnvLogLevel, "loud")

	_, err := execute(t, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestPrintStatus_WithRun(t *testing.T) {
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	ended := started.Add(time.Hour)

	cycles := make([]*db.CycleStats, 12)
	for i := range cycles {
		cycles[i] = &db.CycleStats{RunID: "run-1", Cycle: i + 1, PendingCount: 40 - i, BatchSize: 3}
	}

	var buf bytes.Buffer
	printStatus(&buf, statusReport{
		Counts: map[string]int{"pending": 4, "completed": 1},
		Next:   []string{"jane-doe"},
		Run: &db.CampaignRun{
			RunID:               "run-1",
			StartedAt:           started,
			EndedAt:             &ended,
			Status:              db.RunStatusCompleted,
			ConnectionsDisabled: true,
		},
		Cycles: cycles,
	})

	out := buf.String()
	assert.Contains(t, out, "pending      4")
	assert.Contains(t, out, "completed    1")
	assert.Contains(t, out, "discovered   0")
	assert.Contains(t, out, "total        5")
	assert.Contains(t, out, "Next to enrich\n  jane-doe\n")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "2024-03-01T10:00:00Z")
	assert.Contains(t, out, "disabled by limit")
	assert.Contains(t, out, "Cycles (12 total)")
	assert.Contains(t, out, "     12      29     3")
	assert.NotContains(t, out, "      2      38     3", "only the last cycles are listed")
}

func openTempDB(t *testing.T, path string) *db.DB {
	t.Helper()
	database, err := db.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	return database
}

func TestStatusCommand_RunFlag(t *testing.T) {
	path := useTempDB(t)
	database := openTempDB(t, path)
	ctx := context.Background()

	_, err := database.CreateCampaignRun(ctx, "run-a")
	require.NoError(t, err)
	require.NoError(t, database.CreateCycleStats(ctx, &db.CycleStats{
		RunID: "run-a", Cycle: 1, StartedAt: time.Now(), EndedAt: time.Now(), PendingCount: 7, BatchSize: 2,
	}))

	out, err := execute(t, "status", "--run", "run-a")
	require.NoError(t, err)
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "Cycles (1 total)")

	_, err = execute(t, "status", "--run", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "campaign run ghost not found")
}

func TestExportCommand(t *testing.T) {
	path := useTempDB(t)
	database := openTempDB(t, path)
	ctx := context.Background()

	_, err := database.AddProfileURLs(ctx, []string{"jane-doe", "john-smith"})
	require.NoError(t, err)
	require.NoError(t, database.SaveEnrichedProfile(ctx, "jane-doe", json.RawMessage(`{"full_name":"Jane Doe"}`), nil))

	out, err := execute(t, "export")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1, "discovered profiles have nothing to export")
	var rec exportRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "jane-doe", rec.PublicIdentifier)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe/", rec.URL)
	assert.JSONEq(t, `{"full_name":"Jane Doe"}`, string(rec.Profile))

	p, err := database.GetProfile(ctx, "jane-doe")
	require.NoError(t, err)
	assert.True(t, p.CloudSynced)

	out, err = execute(t, "export")
	require.NoError(t, err)
	assert.Empty(t, out, "exported profiles are not written twice")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestExportUnsynced_WriteFailureLeavesProfileUnsynced(t *testing.T) {
	database := openTempDB(t, filepath.Join(t.TempDir(), "export.db"))
	ctx := context.Background()
	require.NoError(t, database.SaveEnrichedProfile(ctx, "jane-doe", json.RawMessage(`{}`), nil))

	n, err := exportUnsynced(ctx, database, failingWriter{}, 0)
	require.Error(t, err)
	assert.Zero(t, n)

	p, err := database.GetProfile(ctx, "jane-doe")
	require.NoError(t, err)
	assert.False(t, p.CloudSynced)
}
