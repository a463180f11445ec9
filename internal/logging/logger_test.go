package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, o Options) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	Initialize(zap.New(core), o)
	t.Cleanup(func() { Initialize(nil, Options{}) })
	return logs
}

func TestCategoriesAreNamedLoggers(t *testing.T) {
	logs := observe(t, Options{})

	Build("compiled %s", "demo")
	RunnerDebug("spawned %d", 3)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "build", entries[0].LoggerName)
	assert.Equal(t, "compiled demo", entries[0].Message)
	assert.Equal(t, "runner", entries[1].LoggerName)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, Options{Categories: map[string]bool{"runner": false}})

	Runner("hidden")
	Backend("shown")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
	assert.False(t, IsCategoryEnabled(CategoryRunner))
	assert.True(t, IsCategoryEnabled(CategoryWatch))
}

func TestLevelOptionRaisesThreshold(t *testing.T) {
	logs := observe(t, Options{Level: "warn"})

	BuildDebug("debug")
	Build("info")
	BuildWarn("warn")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "warn", logs.All()[0].Message)
}

func TestWithAddsFields(t *testing.T) {
	logs := observe(t, Options{})

	Get(CategoryStore).With("key", "contract_address").Info("saved")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "contract_address", logs.All()[0].ContextMap()["key"])
}

func TestAuditRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".bargo")

	a, err := OpenAudit(dir)
	require.NoError(t, err)
	require.NotEmpty(t, a.RunID())

	a.Record(AuditEvent{Type: AuditStageStart, Stage: "build"})
	a.Record(AuditEvent{Type: AuditToolError, Command: "nargo execute", ExitCode: 1})
	require.NoError(t, a.Close())

	events, err := ReadAudit(filepath.Join(dir, AuditFileName))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, AuditStageStart, events[0].Type)
	assert.Equal(t, a.RunID(), events[1].RunID)
	assert.Equal(t, 1, events[1].ExitCode)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestNilAuditLogIsNoop(t *testing.T) {
	var a *AuditLog
	a.Record(AuditEvent{Type: AuditStageStart})
	assert.NoError(t, a.Close())
	assert.Empty(t, a.RunID())
}

func TestReadAuditMissingFile(t *testing.T) {
	events, err := ReadAudit(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, events)
}
