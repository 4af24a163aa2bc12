package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/zero-day-ai/conductor/internal/observability"
)

// Config is the root configuration for the Conductor engine.
type Config struct {
	Core     CoreConfig                  `mapstructure:"core" yaml:"core" validate:"required"`
	Database DBConfig                    `mapstructure:"database" yaml:"database" validate:"required"`
	Engine   EngineConfig                `mapstructure:"engine" yaml:"engine"`
	LLM      LLMConfig                   `mapstructure:"llm" yaml:"llm"`
	Lock     LockConfig                  `mapstructure:"lock" yaml:"lock"`
	Daemon   DaemonConfig                `mapstructure:"daemon" yaml:"daemon"`
	Tracker  TrackerConfig               `mapstructure:"tracker" yaml:"tracker"`
	Evidence EvidenceConfig              `mapstructure:"evidence" yaml:"evidence"`
	ExecUnit ExecUnitConfig              `mapstructure:"exec_unit" yaml:"exec_unit"`
	Logging  observability.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing  observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	HomeDir string `mapstructure:"home_dir" yaml:"home_dir"`
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	Debug   bool   `mapstructure:"debug" yaml:"debug"`
}

// DBConfig contains SQLite database configuration.
type DBConfig struct {
	Path           string        `mapstructure:"path" yaml:"path"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections" validate:"min=1,max=100"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout" validate:"min=100ms"`
}

// EngineConfig contains orchestration engine settings: liveness windows,
// policy ceilings, delegation bounds, and checkpoint retention.
type EngineConfig struct {
	// HeartbeatWindow is the maximum gap between streamed output tokens
	// before an in-flight model call is declared dead. Liveness is judged by
	// token arrival, never by total elapsed wall-clock time.
	HeartbeatWindow time.Duration `mapstructure:"heartbeat_window" yaml:"heartbeat_window" validate:"min=1s"`

	// MonitorTick is the liveness monitor polling interval.
	MonitorTick time.Duration `mapstructure:"monitor_tick" yaml:"monitor_tick" validate:"min=100ms"`

	// LivenessRetries is how many times a dead model call is retried before
	// escalation is considered.
	LivenessRetries int `mapstructure:"liveness_retries" yaml:"liveness_retries" validate:"min=0,max=10"`

	// MaxParallelDelegations bounds fan-out within one delegation group.
	MaxParallelDelegations int `mapstructure:"max_parallel_delegations" yaml:"max_parallel_delegations" validate:"min=1,max=32"`

	// CheckpointTTL is how long checkpoints of terminal workflows are kept
	// before pruning.
	CheckpointTTL time.Duration `mapstructure:"checkpoint_ttl" yaml:"checkpoint_ttl" validate:"min=1m"`

	// ContextTTL bounds entries in the hierarchical context store.
	ContextTTL time.Duration `mapstructure:"context_ttl" yaml:"context_ttl" validate:"min=1m"`

	// Policy contains the side-effect policy applied by the evaluator and
	// the approval gate.
	Policy PolicyConfig `mapstructure:"policy" yaml:"policy"`
}

// PolicyConfig controls what the engine may do without human approval and
// what the evaluator blocks outright.
type PolicyConfig struct {
	// ForbiddenPaths are glob patterns; a step touching a matching path is BLOCKED.
	ForbiddenPaths []string `mapstructure:"forbidden_paths" yaml:"forbidden_paths"`

	// MaxChangedArtifacts is the ceiling on artifacts one step may change.
	MaxChangedArtifacts int `mapstructure:"max_changed_artifacts" yaml:"max_changed_artifacts" validate:"min=1"`

	// AutoPush skips the push approval gate when true. Commit approval is
	// always required.
	AutoPush bool `mapstructure:"auto_push" yaml:"auto_push"`

	// AutoEscalate allows escalating to a paid model provider without
	// suspending for approval.
	AutoEscalate bool `mapstructure:"auto_escalate" yaml:"auto_escalate"`
}

// ProviderConfig contains per-provider model gateway settings.
type ProviderConfig struct {
	APIKey       string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	DefaultModel string `mapstructure:"default_model" yaml:"default_model"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// LLMConfig contains model gateway configuration.
type LLMConfig struct {
	// DefaultProvider is the provider used for all calls unless escalated.
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`

	// EscalationProvider is the (typically paid) provider used when the
	// default is unavailable. Escalation without AutoEscalate suspends the
	// workflow for approval when a credential for this provider exists.
	EscalationProvider string `mapstructure:"escalation_provider" yaml:"escalation_provider"`

	// Providers maps provider name to its configuration.
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// LockConfig contains single-flight lock configuration.
type LockConfig struct {
	// Backend selects the distributed lock implementation: "store" uses the
	// checkpoint database, "etcd" uses a lease from an etcd cluster.
	Backend string `mapstructure:"backend" yaml:"backend" validate:"oneof=store etcd"`

	// HeartbeatInterval is how often the holder refreshes the lock record.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval" validate:"min=1s"`

	// StaleThreshold is the age beyond which an unrefreshed lock is
	// force-reclaimed by any replica.
	StaleThreshold time.Duration `mapstructure:"stale_threshold" yaml:"stale_threshold" validate:"min=5s"`

	// Etcd contains the etcd backend settings (required when Backend=etcd).
	Etcd EtcdConfig `mapstructure:"etcd" yaml:"etcd"`
}

// EtcdConfig contains etcd connection settings for the lease-based locker.
type EtcdConfig struct {
	Endpoints []string      `mapstructure:"endpoints" yaml:"endpoints"`
	Namespace string        `mapstructure:"namespace" yaml:"namespace"`
	LeaseTTL  time.Duration `mapstructure:"lease_ttl" yaml:"lease_ttl"`
}

// DaemonConfig contains daemon API server settings.
type DaemonConfig struct {
	// ListenAddress is the HTTP API bind address.
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address"`

	// CallbackURL, when set, receives JSON POST status events for every node
	// transition and terminal event. Empty disables push callbacks; callers
	// then rely on reconciliation polling.
	CallbackURL string `mapstructure:"callback_url" yaml:"callback_url,omitempty"`

	// PollInterval is the suggested reconciliation polling interval reported
	// to callers.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// TrackerConfig contains the external tracker API settings.
type TrackerConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Token   string `mapstructure:"token" yaml:"token,omitempty"`
}

// ExecUnitConfig contains execution-unit launcher settings.
type ExecUnitConfig struct {
	// Slots bounds concurrently running execution units.
	Slots int `mapstructure:"slots" yaml:"slots" validate:"min=1,max=16"`

	// SubmitTimeout bounds waiting for a free slot.
	SubmitTimeout time.Duration `mapstructure:"submit_timeout" yaml:"submit_timeout"`

	// Command is the execution-unit binary plus fixed arguments. Empty
	// disables execution units; execute steps then fail cleanly.
	Command []string `mapstructure:"command" yaml:"command,omitempty"`
}

// EvidenceConfig contains evidence retrieval settings.
type EvidenceConfig struct {
	// WorkspacesRoot holds one subdirectory per tenant. Searches and
	// artifact fetches never leave the tenant's subtree.
	WorkspacesRoot string `mapstructure:"workspaces_root" yaml:"workspaces_root"`

	// SearchLimit caps hits returned per retrieval.
	SearchLimit int `mapstructure:"search_limit" yaml:"search_limit" validate:"min=1,max=50"`
}

// DefaultHomeDir returns the default conductor home directory (~/.conductor).
func DefaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conductor"
	}
	return filepath.Join(home, ".conductor")
}

// DefaultConfigPath returns the default config file path under homeDir.
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}
