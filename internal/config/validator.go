package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultWarmupBytes    = 50000
	defaultSliceBytes     = 50
	defaultBlockBytes     = 16384
	defaultReportInterval = time.Second
	defaultVendorID       = 0x0403
	defaultProductID      = 0x8398
	defaultLatencyMS      = 2
	defaultOpenRetryDelay = time.Second
	defaultSampleRateHz   = 16368000
	defaultBufferBytes    = 1 << 16
)

// Validate checks the configuration and fills unset fields with defaults
func Validate(cfg *Config) error {
	applyDefaults(cfg)

	// Validate pipeline
	if cfg.Pipeline.SliceBytes < 0 {
		return fmt.Errorf("pipeline.slice_bytes must be > 0")
	}
	if cfg.Pipeline.ChannelCapacityBytes < 0 {
		return fmt.Errorf("pipeline.channel_capacity_bytes must be >= 0 (0 = unbounded)")
	}

	// Validate source
	switch cfg.Source.Kind {
	case "ftdi":
		if cfg.Source.Interface < 0 || cfg.Source.Interface > 3 {
			return fmt.Errorf("source.interface must be 0-3 (A-D), got %d", cfg.Source.Interface)
		}
		if cfg.Source.LatencyMS < 1 || cfg.Source.LatencyMS > 255 {
			return fmt.Errorf("source.latency_ms must be 1-255, got %d", cfg.Source.LatencyMS)
		}
	case "file":
		if cfg.Source.Path == "" {
			return fmt.Errorf("source.path is required for kind 'file'")
		}
	default:
		return fmt.Errorf("source.kind must be 'ftdi' or 'file', got '%s'", cfg.Source.Kind)
	}
	if cfg.Source.OpenAttempts < 1 {
		return fmt.Errorf("source.open_attempts must be >= 1")
	}

	// Validate output
	switch cfg.Output.Format {
	case "raw", "wav":
	default:
		return fmt.Errorf("output.format must be 'raw' or 'wav', got '%s'", cfg.Output.Format)
	}
	if cfg.Output.Manifest && cfg.Output.Path == "" {
		return fmt.Errorf("output.manifest requires output.path")
	}

	// Validate MQTT
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}

	return nil
}

// ApplySessionID fills session-dependent defaults once the session ID is known
func ApplySessionID(cfg *Config, sessionID string) {
	if cfg.SessionID == "" {
		cfg.SessionID = sessionID
	}
	if cfg.MQTT.Broker != "" && cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = fmt.Sprintf("piksi/samples/%s/progress", cfg.SessionID)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Pipeline.SliceBytes == 0 {
		cfg.Pipeline.SliceBytes = defaultSliceBytes
	}

	cfg.Source.Kind = strings.ToLower(strings.TrimSpace(cfg.Source.Kind))
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "ftdi"
	}
	if cfg.Source.BlockBytes <= 0 {
		cfg.Source.BlockBytes = defaultBlockBytes
	}
	if cfg.Source.ReportInterval <= 0 {
		cfg.Source.ReportInterval = defaultReportInterval
	}
	if cfg.Source.VendorID == 0 {
		cfg.Source.VendorID = defaultVendorID
	}
	if cfg.Source.ProductID == 0 {
		cfg.Source.ProductID = defaultProductID
	}
	if cfg.Source.LatencyMS == 0 {
		cfg.Source.LatencyMS = defaultLatencyMS
	}
	if cfg.Source.OpenAttempts == 0 {
		cfg.Source.OpenAttempts = 1
	}
	if cfg.Source.OpenRetryDelay <= 0 {
		cfg.Source.OpenRetryDelay = defaultOpenRetryDelay
	}

	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	if cfg.Output.Format == "" {
		cfg.Output.Format = "raw"
	}
	if cfg.Output.SampleRateHz <= 0 {
		cfg.Output.SampleRateHz = defaultSampleRateHz
	}
	if cfg.Output.BufferBytes <= 0 {
		cfg.Output.BufferBytes = defaultBufferBytes
	}
}
