// Package config loads engine configuration from a file, the environment
// and command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/reglet-dev/reglet-compose/domain/entities"
	domainerrors "github.com/reglet-dev/reglet-compose/domain/errors"
)

// EnvPrefix prefixes environment overrides, e.g. REGLET_COMPOSE_LOG_LEVEL.
const EnvPrefix = "REGLET_COMPOSE"

// Config holds the engine settings.
type Config struct {
	Parameters   map[string]any `mapstructure:"parameters"`
	HookCheck    string         `mapstructure:"hook_check" validate:"omitempty,policy"`
	LogLevel     string         `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	LogFormat    string         `mapstructure:"log_format" validate:"omitempty,oneof=text json"`
	LogFile      string         `mapstructure:"log_file"`
	BackupFolder string         `mapstructure:"backup_folder"`
	BackupMode   string         `mapstructure:"backup_mode" validate:"omitempty,oneof=epoch batch"`
	BackupRate   int            `mapstructure:"backup_rate" validate:"gte=0"`
	MaxEpochs    int            `mapstructure:"max_epochs" validate:"gte=0"`
	Progress     bool           `mapstructure:"progress"`
}

// Policy returns the parsed hook check policy.
func (c *Config) Policy() entities.CheckPolicy {
	p, err := entities.ParseCheckPolicy(c.HookCheck)
	if err != nil {
		return entities.DefaultCheckPolicy
	}
	return p
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Parameters: map[string]any{},
		HookCheck:  string(entities.DefaultCheckPolicy),
		LogLevel:   "info",
		BackupMode: "epoch",
	}
}

type loadConfig struct {
	file      string
	flags     *pflag.FlagSet
	envPrefix string
}

// LoadOption configures Load.
type LoadOption func(*loadConfig)

// WithFile reads settings from path. The format follows the extension.
func WithFile(path string) LoadOption {
	return func(c *loadConfig) {
		c.file = path
	}
}

// WithFlags binds the flag set; flag names use dashes where keys use
// underscores (--log-level sets log_level).
func WithFlags(fs *pflag.FlagSet) LoadOption {
	return func(c *loadConfig) {
		c.flags = fs
	}
}

// WithEnvPrefix overrides EnvPrefix.
func WithEnvPrefix(prefix string) LoadOption {
	return func(c *loadConfig) {
		c.envPrefix = prefix
	}
}

var keys = []string{
	"hook_check", "log_level", "log_format", "log_file",
	"backup_folder", "backup_mode", "backup_rate", "max_epochs", "progress",
}

// Load merges defaults, the config file, the environment and changed flags
// (in increasing precedence) and validates the result.
func Load(opts ...LoadOption) (*Config, error) {
	lc := loadConfig{envPrefix: EnvPrefix}
	for _, opt := range opts {
		opt(&lc)
	}

	v := viper.New()
	def := Default()
	v.SetDefault("hook_check", def.HookCheck)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("backup_mode", def.BackupMode)

	if lc.file != "" {
		v.SetConfigFile(lc.file)
		if err := v.ReadInConfig(); err != nil {
			return nil, &domainerrors.ConfigError{Field: "file", Err: fmt.Errorf("read %s: %w", lc.file, err)}
		}
	}

	v.SetEnvPrefix(lc.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, &domainerrors.ConfigError{Field: key, Err: err}
		}
	}

	if lc.flags != nil {
		for _, key := range keys {
			if f := lc.flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, &domainerrors.ConfigError{Field: key, Err: err}
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &domainerrors.ConfigError{Err: fmt.Errorf("decode: %w", err)}
	}
	if cfg.Parameters == nil {
		cfg.Parameters = map[string]any{}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate is a package-level singleton; building a validator is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("policy", func(fl validator.FieldLevel) bool {
		_, err := entities.ParseCheckPolicy(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks struct tags and reports the first offending field as a
// ConfigError.
func Validate(target any) error {
	err := validate.Struct(target)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domainerrors.ConfigError{
			Field: fe.Field(),
			Err:   fmt.Errorf("failed on '%s' with value %v", fe.Tag(), fe.Value()),
		}
	}
	return &domainerrors.ConfigError{Err: err}
}

// Decode converts a loosely typed map (parsed YAML, parameter snapshots)
// into target through JSON and validates it.
func Decode(values map[string]any, target any) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal config map: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal config into struct: %w", err)
	}
	return Validate(target)
}
