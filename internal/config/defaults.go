package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/zero-day-ai/conductor/internal/observability"
	"gopkg.in/yaml.v3"
)

// DefaultConfig returns the default configuration rooted at the default home
// directory. All durations are conservative: the heartbeat window tolerates
// slow providers without masking a stalled stream.
func DefaultConfig() *Config {
	homeDir := DefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			HomeDir: homeDir,
			DataDir: filepath.Join(homeDir, "data"),
			Debug:   false,
		},
		Database: DBConfig{
			Path:           filepath.Join(homeDir, "data", "conductor.db"),
			MaxConnections: 10,
			BusyTimeout:    5 * time.Second,
		},
		Engine: EngineConfig{
			HeartbeatWindow:        45 * time.Second,
			MonitorTick:            time.Second,
			LivenessRetries:        2,
			MaxParallelDelegations: 4,
			CheckpointTTL:          7 * 24 * time.Hour,
			ContextTTL:             24 * time.Hour,
			Policy: PolicyConfig{
				ForbiddenPaths:      []string{".git/**", "**/secrets/**", "**/*.pem"},
				MaxChangedArtifacts: 50,
				AutoPush:            false,
				AutoEscalate:        false,
			},
		},
		LLM: LLMConfig{
			DefaultProvider:    "anthropic",
			EscalationProvider: "openai",
			Providers:          map[string]ProviderConfig{},
		},
		Lock: LockConfig{
			Backend:           "store",
			HeartbeatInterval: 5 * time.Second,
			StaleThreshold:    30 * time.Second,
			Etcd: EtcdConfig{
				Namespace: "conductor",
				LeaseTTL:  15 * time.Second,
			},
		},
		Daemon: DaemonConfig{
			ListenAddress: "localhost:8740",
			PollInterval:  60 * time.Second,
		},
		ExecUnit: ExecUnitConfig{
			Slots:         2,
			SubmitTimeout: 10 * time.Minute,
		},
		Evidence: EvidenceConfig{
			WorkspacesRoot: filepath.Join(homeDir, "workspaces"),
			SearchLimit:    5,
		},
		Logging: observability.LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: observability.TracingConfig{
			Enabled:    false,
			SampleRate: 1.0,
		},
	}
}

// WriteDefault writes the default configuration as YAML to path, creating
// parent directories as needed. Existing files are not overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
