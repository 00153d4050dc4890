package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete sample grabber configuration
type Config struct {
	SessionID string         `yaml:"session_id"` // Generated when empty
	Pipeline  PipelineConfig `yaml:"pipeline"`
	Source    SourceConfig   `yaml:"source"`
	Output    OutputConfig   `yaml:"output"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
	HTTP      HTTPConfig     `yaml:"http"`
}

// PipelineConfig contains decode/handoff/writer settings
type PipelineConfig struct {
	WarmupBytes          uint64 `yaml:"warmup_bytes"`           // Raw bytes discarded at start (default: 50000, 0 = none)
	SliceBytes           int    `yaml:"slice_bytes"`            // Writer slice size (default: 50)
	ChannelCapacityBytes int    `yaml:"channel_capacity_bytes"` // 0 = unbounded
}

// SourceConfig contains raw byte source settings
type SourceConfig struct {
	Kind           string        `yaml:"kind"`             // ftdi, file
	Path           string        `yaml:"path"`             // file source input, "-" for stdin
	BlockBytes     int           `yaml:"block_bytes"`      // file source block size
	ReportInterval time.Duration `yaml:"report_interval"`  // progress period (default: 1s)
	VendorID       uint16        `yaml:"vendor_id"`        // default: 0x0403
	ProductID      uint16        `yaml:"product_id"`       // default: 0x8398
	Interface      int           `yaml:"interface"`        // 0 = A
	LatencyMS      int           `yaml:"latency_ms"`       // FTDI latency timer (default: 2)
	OpenAttempts   int           `yaml:"open_attempts"`    // device open attempts (default: 1)
	OpenRetryDelay time.Duration `yaml:"open_retry_delay"` // initial backoff between attempts
}

// OutputConfig contains sink settings
type OutputConfig struct {
	Path         string `yaml:"path"`           // empty = decode and discard
	Format       string `yaml:"format"`         // raw, wav
	SampleRateHz int    `yaml:"sample_rate_hz"` // WAV header only
	BufferBytes  int    `yaml:"buffer_bytes"`   // default: 65536
	Manifest     bool   `yaml:"manifest"`       // write <path>.yaml after capture
}

// MQTTConfig contains progress publishing settings
type MQTTConfig struct {
	Broker string `yaml:"broker"` // host:port, empty = disabled
	Topic  string `yaml:"topic"`
	QoS    byte   `yaml:"qos"`
}

// HTTPConfig contains the stats endpoint settings
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{
		Pipeline: PipelineConfig{WarmupBytes: defaultWarmupBytes},
	}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a YAML configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
