package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown timeout 10s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_Communication(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Communication.InterfaceType != "ethernet" {
		t.Errorf("Expected default interface_type 'ethernet', got %q", cfg.Communication.InterfaceType)
	}
}

func TestApplyDefaults_InstancesGetAssignedPortsAndLAKs(t *testing.T) {
	cfg := &Config{
		Instances: []InstanceConfig{{ID: 0}, {ID: 1}, {ID: 2}},
	}
	ApplyDefaults(cfg)

	want := []struct {
		port uint16
		lak  uint8
	}{{9000, 0x08}, {9001, 0x09}, {9002, 0x0A}}

	for i, w := range want {
		if cfg.Instances[i].Port != w.port {
			t.Errorf("instance %d: expected port %d, got %d", i, w.port, cfg.Instances[i].Port)
		}
		if cfg.Instances[i].LAK != w.lak {
			t.Errorf("instance %d: expected lak 0x%02x, got 0x%02x", i, w.lak, cfg.Instances[i].LAK)
		}
		if cfg.Instances[i].DisconnectAfterMessages != -1 {
			t.Errorf("instance %d: expected disconnect_after_messages -1, got %d", i, cfg.Instances[i].DisconnectAfterMessages)
		}
	}
}

func TestApplyDefaults_ZeroInstancesGetsOneDefaulted(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if len(cfg.Instances) != 1 {
		t.Fatalf("Expected one default instance, got %d", len(cfg.Instances))
	}
	if cfg.Instances[0].Port != 9000 {
		t.Errorf("Expected default instance port 9000, got %d", cfg.Instances[0].Port)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/rsmccu.log",
		},
		ShutdownTimeout: 60 * time.Second,
		Instances: []InstanceConfig{
			{ID: 0, Port: 12000, LAK: 0x20, DisconnectAfterMessages: 5},
		},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Instances[0].Port != 12000 {
		t.Errorf("Expected explicit port 12000 to be preserved, got %d", cfg.Instances[0].Port)
	}
	if cfg.Instances[0].LAK != 0x20 {
		t.Errorf("Expected explicit lak 0x20 to be preserved, got 0x%02x", cfg.Instances[0].LAK)
	}
	if cfg.Instances[0].DisconnectAfterMessages != 5 {
		t.Errorf("Expected explicit disconnect_after_messages 5 to be preserved, got %d", cfg.Instances[0].DisconnectAfterMessages)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level == "" {
		t.Error("Default config missing logging level")
	}
	if len(cfg.Instances) == 0 {
		t.Error("Default config missing instances")
	}
	if cfg.UVMTarget.TargetIP == "" {
		t.Error("Default config missing uvm_target.target_ip")
	}
}
