// Package config loads and validates the static configuration for the RSM
// server and CCU client processes.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (RSMCCU_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// The source protocol is configured through an INI file with sections like
// [communication], [ethernet_svm0]..[ethernet_svm3], [svm_settings_0]..
// [svm_settings_3] and [ethernet_uvm_target]. This package models the same
// schema as a YAML document through mapstructure tags so the same Config
// struct, defaulting, and validation machinery serves both processes.
// No INI reader is included; the INI layout survives only in the field
// names and section comments below.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete static configuration shared by the RSM server and
// CCU client binaries. Each binary only reads the sections relevant to it.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics controls Prometheus metrics collection.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Communication configures the transport shared by every link/instance.
	Communication CommunicationConfig `mapstructure:"communication" yaml:"communication"`

	// Instances configures each of the (up to four) RSM instances this
	// process hosts, indexed 0..3, corresponding to [ethernet_svm<N>] and
	// [svm_settings_<N>].
	Instances []InstanceConfig `mapstructure:"instances" validate:"required,min=1,max=4,dive" yaml:"instances"`

	// UVMTarget is the host the CCU dials to reach every configured
	// instance; only the port differs per instance.
	UVMTarget UVMTargetConfig `mapstructure:"uvm_target" yaml:"uvm_target"`

	// StatusPublisher configures the CCU's line-delimited status stream.
	StatusPublisher StatusPublisherConfig `mapstructure:"status_publisher" yaml:"status_publisher"`
}

// CommunicationConfig mirrors the [communication] INI section.
type CommunicationConfig struct {
	// InterfaceType selects the transport. Only "ethernet" (TCP) is
	// implemented; the field is kept so the config schema matches the
	// source format even though no other value is accepted.
	InterfaceType string `mapstructure:"interface_type" validate:"required,oneof=ethernet" yaml:"interface_type"`
}

// InstanceConfig mirrors one [ethernet_svm<N>] + [svm_settings_<N>] pair.
type InstanceConfig struct {
	// ID is the instance index, 0..3, matching the <N> suffix.
	ID int `mapstructure:"id" validate:"gte=0,lte=3" yaml:"id"`

	// Port is the TCP port this instance listens on.
	Port uint16 `mapstructure:"port" validate:"required" yaml:"port"`

	// LAK is the logical address key assigned to this instance once
	// initialized (0x08..0x0B in the default addressing scheme).
	LAK uint8 `mapstructure:"lak" yaml:"lak"`

	// SimulateControlFailure forces ControlResults to report a failed
	// self-test (RSK 0x3E instead of 0x3F) regardless of the requested TK.
	SimulateControlFailure bool `mapstructure:"simulate_control_failure" yaml:"simulate_control_failure"`

	// DisconnectAfterMessages closes the connection after this many
	// responses have been emitted (dropped ones included); -1 disables the
	// behavior.
	DisconnectAfterMessages int `mapstructure:"disconnect_after_messages" validate:"gte=-1" yaml:"disconnect_after_messages"`

	// SimulateResponseTimeout silently drops every response instead of
	// sending it, to exercise the CCU's wait_for_specific_response timeout.
	SimulateResponseTimeout bool `mapstructure:"simulate_response_timeout" yaml:"simulate_response_timeout"`

	// SendWarningOnConfirm emits an unsolicited Warning frame immediately
	// after ConfirmInit.
	SendWarningOnConfirm bool `mapstructure:"send_warning_on_confirm" yaml:"send_warning_on_confirm"`

	// WarningTKS is the TKS value carried by the injected Warning frame.
	WarningTKS uint8 `mapstructure:"warning_tks" yaml:"warning_tks"`
}

// UVMTargetConfig mirrors the [ethernet_uvm_target] INI section.
type UVMTargetConfig struct {
	// TargetIP is the IPv4 address the CCU dials for every instance.
	TargetIP string `mapstructure:"target_ip" validate:"required,ip4_addr" yaml:"target_ip"`
}

// StatusPublisherConfig configures the CCU's monitor-facing status stream.
type StatusPublisherConfig struct {
	// Enabled controls whether the status publication listener starts.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port monitors connect to.
	Port uint16 `mapstructure:"port" validate:"omitempty" yaml:"port"`

	// JournalPath, if set, backs the status stream with a badger journal
	// so a reconnecting monitor can replay recent state/event lines.
	JournalPath string `mapstructure:"journal_path" yaml:"journal_path,omitempty"`

	// JournalReplayLines caps how many trailing lines are replayed to a
	// newly connected monitor.
	JournalReplayLines int `mapstructure:"journal_replay_lines" validate:"omitempty,gte=0" yaml:"journal_replay_lines"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use an insecure (non-TLS) connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures Prometheus metrics collection. Neither binary
// serves the collected metrics over HTTP.
type MetricsConfig struct {
	// Enabled controls whether the metrics collectors are created.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is validated but not read by either binary; no metrics endpoint
	// is started.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when no config
// file is found at the requested (or default) location.
func MustLoad(configPath string, program string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please create one or pass --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration for %s: %w", program, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("RSMCCU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns the combined decode hook for time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "rsmccu")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "rsmccu")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
