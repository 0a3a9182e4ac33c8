package config

import "time"

// GetDefaultConfig returns a Config populated entirely with default values,
// suitable for running a single-instance RSM or a DR-mode CCU with no
// config file present.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any unspecified configuration fields.
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values from the config file are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyCommunicationDefaults(&cfg.Communication)
	applyInstanceDefaults(cfg)
	applyUVMTargetDefaults(&cfg.UVMTarget)
	applyStatusPublisherDefaults(&cfg.StatusPublisher)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyCommunicationDefaults(cfg *CommunicationConfig) {
	if cfg.InterfaceType == "" {
		cfg.InterfaceType = "ethernet"
	}
}

// applyInstanceDefaults ensures at least one instance is configured and
// assigns defaulted ports/LAKs to any instance that omits them, following
// the addressing scheme in which instance N gets LAK 0x08+N and listens on
// port 9000+N.
func applyInstanceDefaults(cfg *Config) {
	if len(cfg.Instances) == 0 {
		cfg.Instances = []InstanceConfig{{ID: 0}}
	}

	for i := range cfg.Instances {
		inst := &cfg.Instances[i]
		if inst.Port == 0 {
			inst.Port = uint16(9000 + inst.ID)
		}
		if inst.LAK == 0 {
			inst.LAK = uint8(0x08 + inst.ID)
		}
		if inst.DisconnectAfterMessages == 0 {
			inst.DisconnectAfterMessages = -1
		}
	}
}

func applyUVMTargetDefaults(cfg *UVMTargetConfig) {
	if cfg.TargetIP == "" {
		cfg.TargetIP = "127.0.0.1"
	}
}

func applyStatusPublisherDefaults(cfg *StatusPublisherConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9500
	}
	if cfg.JournalReplayLines == 0 {
		cfg.JournalReplayLines = 100
	}
}
