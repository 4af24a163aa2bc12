package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/conductor/internal/config"
)

func buildTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Core: config.CoreConfig{HomeDir: dir, DataDir: dir},
		Database: config.DBConfig{
			Path:           filepath.Join(dir, "conductor.db"),
			MaxConnections: 4,
			BusyTimeout:    time.Second,
		},
		Engine: config.EngineConfig{
			HeartbeatWindow:        30 * time.Second,
			MonitorTick:            time.Second,
			LivenessRetries:        1,
			MaxParallelDelegations: 2,
			CheckpointTTL:          time.Hour,
			ContextTTL:             time.Hour,
			Policy:                 config.PolicyConfig{MaxChangedArtifacts: 10},
		},
		LLM: config.LLMConfig{
			DefaultProvider: "mock",
			Providers:       map[string]config.ProviderConfig{"mock": {}},
		},
		Lock: config.LockConfig{
			Backend:           "store",
			HeartbeatInterval: time.Second,
			StaleThreshold:    30 * time.Second,
		},
		Daemon: config.DaemonConfig{
			ListenAddress: "127.0.0.1:0",
			PollInterval:  time.Second,
		},
		Evidence: config.EvidenceConfig{
			WorkspacesRoot: filepath.Join(dir, "workspaces"),
			SearchLimit:    5,
		},
		ExecUnit: config.ExecUnitConfig{
			Slots:         2,
			SubmitTimeout: time.Second,
		},
	}
}

func TestBuild_AssemblesRuntimeFromConfig(t *testing.T) {
	cfg := buildTestConfig(t)

	d, err := Build(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = d.Close(context.Background()) }()

	require.NotNil(t, d.engine)
	require.NotNil(t, d.server)
	assert.False(t, d.engine.Busy())

	rec := httptest.NewRecorder()
	d.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuild_RejectsUnknownLockBackend(t *testing.T) {
	cfg := buildTestConfig(t)
	cfg.Lock.Backend = "zookeeper"

	_, err := Build(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown lock backend")
}

func TestBuild_RejectsUnknownDefaultProvider(t *testing.T) {
	cfg := buildTestConfig(t)
	cfg.LLM.DefaultProvider = "missing"

	_, err := Build(cfg, nil)
	require.Error(t, err)
}
