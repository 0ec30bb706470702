package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/csvingest/internal/landing"
	"github.com/vvka-141/csvingest/internal/ui"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

const cliTablesYAML = `
tables:
  orders:
    folder: namespace=sales/table=orders
    primary_key: order_id
`

// isolate points every path setting at a temp dir and writes a tables file.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("METRICS_TEXTFILE", "")
	t.Setenv("POSTGRES_HOST", "127.0.0.1")
	t.Setenv("POSTGRES_PORT", "1")

	cfg := filepath.Join(dir, "tables.yml")
	require.NoError(t, os.WriteFile(cfg, []byte(cliTablesYAML), 0o644))

	origRoot := rootFlags
	rootFlags.configPath = cfg
	rootFlags.logFormat = "text"
	t.Cleanup(func() { rootFlags = origRoot })
	return dir
}

func resetIngestFlags(t *testing.T) {
	t.Helper()
	orig := ingestFlags
	ingestFlags = ingestFlagValues{timeout: time.Minute}
	t.Cleanup(func() { ingestFlags = orig })
}

func resetCleanFlags(t *testing.T) {
	t.Helper()
	orig := cleanFlags
	cleanFlags = cleanFlagValues{}
	t.Cleanup(func() {
		cleanFlags = orig
		cleanCmd.Flags().Lookup("days").Changed = false
	})
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	want := []string{"ingest", "snapshot", "clean", "land-import", "validate", "promote", "landing-clean", "flow", "replay"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, have[name], "missing command %s", name)
	}

	var sub []string
	for _, c := range flowCmd.Commands() {
		sub = append(sub, c.Name())
	}
	assert.ElementsMatch(t, []string{"one", "auto"}, sub)
}

func TestCommands_RejectPositionalArgs(t *testing.T) {
	for _, c := range []struct {
		name string
		err  error
	}{
		{"ingest", ingestCmd.Args(ingestCmd, []string{"orders"})},
		{"clean", cleanCmd.Args(cleanCmd, []string{"x"})},
		{"replay", replayCmd.Args(replayCmd, []string{"x"})},
	} {
		if c.err == nil {
			t.Errorf("%s: expected error for positional args", c.name)
			continue
		}
		if code := csvingest.ExitCodeForError(c.err); code != csvingest.ExitUsageError {
			t.Errorf("%s: expected exit code %d, got %d for: %v", c.name, csvingest.ExitUsageError, code, c.err)
		}
	}
}

func TestIngest_UnknownTableFailsBeforeConnecting(t *testing.T) {
	isolate(t)
	resetIngestFlags(t)
	ingestFlags.tables = []string{"nope"}

	err := runIngest(ingestCmd, nil)
	require.ErrorIs(t, err, csvingest.ErrTableNotConfigured)
	assert.Equal(t, csvingest.ExitConfigError, csvingest.ExitCodeForError(err))
}

func TestIngest_NegativeChunkSize(t *testing.T) {
	isolate(t)
	resetIngestFlags(t)
	ingestFlags.chunkSize = -1

	err := runIngest(ingestCmd, nil)
	require.ErrorIs(t, err, csvingest.ErrInvalidConfig)
}

func TestIngest_MissingTablesFile(t *testing.T) {
	isolate(t)
	resetIngestFlags(t)
	rootFlags.configPath = filepath.Join(t.TempDir(), "missing.yml")

	err := runIngest(ingestCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load tables configuration")
}

func TestFlowOne_UnknownTable(t *testing.T) {
	isolate(t)
	orig := flowFlags
	t.Cleanup(func() { flowFlags = orig })
	flowFlags = flowFlagValues{namespace: "sales", table: "customers", timeout: time.Minute}

	err := runFlowOne(flowOneCmd, nil)
	require.ErrorIs(t, err, csvingest.ErrTableNotConfigured)
}

func TestValidate_ReportsProblems(t *testing.T) {
	dir := isolate(t)
	landingRoot := filepath.Join(dir, "landing")
	batch := landing.BatchDir(landingRoot, "sales", "orders", "20240426", "20240426T101500Z_1a2b3c4d")
	require.NoError(t, os.MkdirAll(batch, 0o755))

	orig := validateFlags
	t.Cleanup(func() { validateFlags = orig })
	validateFlags.landing = landingRoot

	err := runValidate(validateCmd, nil)
	require.ErrorIs(t, err, csvingest.ErrLandingInvalid)
	assert.Equal(t, csvingest.ExitLandingInvalid, csvingest.ExitCodeForError(err))
}

func TestValidate_EmptyLandingPasses(t *testing.T) {
	isolate(t)
	orig := validateFlags
	t.Cleanup(func() { validateFlags = orig })
	validateFlags.landing = ""

	assert.NoError(t, runValidate(validateCmd, nil))
}

func TestPromote_NoBatch(t *testing.T) {
	isolate(t)
	orig := promoteFlags
	t.Cleanup(func() { promoteFlags = orig })
	promoteFlags = promoteFlagValues{namespace: "sales", table: "orders", runDate: "20240426", batchID: landing.LatestBatch}

	err := runPromote(promoteCmd, nil)
	require.ErrorIs(t, err, csvingest.ErrBatchNotFound)
}

func TestClean_DryRunKeepsFiles(t *testing.T) {
	dir := isolate(t)
	resetCleanFlags(t)
	t.Setenv("RETENTION_DAYS", "30")

	old := filepath.Join(dir, "db_ingestion", "namespace=sales", "table=orders", "old.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(old), 0o755))
	require.NoError(t, os.WriteFile(old, []byte("order_id\n1\n"), 0o644))
	stale := time.Now().Add(-90 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	cleanFlags.dryRun = true
	require.NoError(t, runClean(cleanCmd, nil))
	assert.FileExists(t, old)

	cleanFlags.dryRun = false
	require.NoError(t, runClean(cleanCmd, nil))
	assert.NoFileExists(t, old)
}

func TestClean_NegativeDays(t *testing.T) {
	isolate(t)
	resetCleanFlags(t)
	require.NoError(t, cleanCmd.Flags().Set("days", "-1"))

	err := runClean(cleanCmd, nil)
	require.ErrorIs(t, err, csvingest.ErrInvalidConfig)
}

func TestReplayTarget(t *testing.T) {
	orig := replayFlags
	t.Cleanup(func() { replayFlags = orig })

	for _, tc := range []struct {
		namespace, table, want string
	}{
		{"crm", "people", "crm/people"},
		{"crm", "", "crm/*"},
		{"", "people", "*/people"},
		{"", "", "*/*"},
	} {
		replayFlags = replayFlagValues{namespace: tc.namespace, table: tc.table}
		assert.Equal(t, tc.want, replayTarget())
	}
}

func TestReplayApprover(t *testing.T) {
	orig := replayFlags
	t.Cleanup(func() { replayFlags = orig })

	replayFlags = replayFlagValues{}
	_, err := replayApprover(false)
	require.ErrorIs(t, err, csvingest.ErrInvalidConfig)

	a, err := replayApprover(true)
	require.NoError(t, err)
	assert.IsType(t, &ui.InteractiveApprover{}, a)

	replayFlags.force = true
	a, err = replayApprover(false)
	require.NoError(t, err)
	assert.IsType(t, &ui.ForcedApprover{}, a)
}
