package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates a loaded configuration.
type Validator interface {
	Validate(cfg *Config) error
}

// structValidator implements Validator using go-playground/validator tags
// plus cross-field rules the tags cannot express.
type structValidator struct {
	validate *validator.Validate
}

// NewValidator creates a new configuration validator.
func NewValidator() Validator {
	return &structValidator{validate: validator.New()}
}

// Validate checks struct tags and cross-field constraints.
func (v *structValidator) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := v.validate.Struct(cfg); err != nil {
		return err
	}

	// The heartbeat refresher must fire several times before the stale
	// threshold, or healthy holders get reclaimed.
	if cfg.Lock.HeartbeatInterval*2 >= cfg.Lock.StaleThreshold {
		return fmt.Errorf("lock.stale_threshold (%s) must be more than twice lock.heartbeat_interval (%s)",
			cfg.Lock.StaleThreshold, cfg.Lock.HeartbeatInterval)
	}

	if cfg.Lock.Backend == "etcd" && len(cfg.Lock.Etcd.Endpoints) == 0 {
		return fmt.Errorf("lock.backend is etcd but lock.etcd.endpoints is empty")
	}

	if cfg.Engine.MonitorTick > cfg.Engine.HeartbeatWindow {
		return fmt.Errorf("engine.monitor_tick (%s) must not exceed engine.heartbeat_window (%s)",
			cfg.Engine.MonitorTick, cfg.Engine.HeartbeatWindow)
	}

	return nil
}
