package config

import (
	"os"
	"regexp"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/zero-day-ai/conductor/internal/types"
)

// envVarPattern matches ${VAR_NAME} placeholders in string config values.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Loader handles loading configuration from files.
type Loader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperLoader implements Loader using Viper.
type viperLoader struct {
	validator Validator
}

// NewLoader creates a new Loader instance.
func NewLoader(validator Validator) Loader {
	return &viperLoader{validator: validator}
}

// Load loads configuration from the specified file path.
// String values may reference environment variables with ${VAR} syntax;
// unresolved references are left verbatim.
func (l *viperLoader) Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
	}

	// Interpolate env vars on the raw settings tree before decoding so
	// ${VAR} works inside any string field, including nested maps.
	raw := interpolateEnvVars(v.AllSettings())

	cfg := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to build config decoder", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to unmarshal config", err)
	}

	if err := l.validator.Validate(cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED, "configuration validation failed", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration from the specified file path.
// If the file doesn't exist, returns the default configuration.
func (l *viperLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := l.validator.Validate(cfg); err != nil {
			return nil, types.WrapError(types.CONFIG_VALIDATION_FAILED, "default configuration validation failed", err)
		}
		return cfg, nil
	}

	return l.Load(path)
}

// interpolateEnvVars walks the settings tree replacing ${VAR} references in
// string values with the environment variable's value. References to unset
// variables are left verbatim so validation can surface them.
func interpolateEnvVars(value any) any {
	switch v := value.(type) {
	case string:
		return envVarPattern.ReplaceAllStringFunc(v, func(match string) string {
			name := envVarPattern.FindStringSubmatch(match)[1]
			if resolved, ok := os.LookupEnv(name); ok {
				return resolved
			}
			return match
		})
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = interpolateEnvVars(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = interpolateEnvVars(val)
		}
		return out
	default:
		return value
	}
}
