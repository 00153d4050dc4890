// Package manifest writes the YAML sidecar that describes a finished capture.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pmiettinen/piksi-sample-grabber/internal/warmup"
)

// Suffix is appended to the output path to name the sidecar.
const Suffix = ".yaml"

// Manifest describes one capture session.
type Manifest struct {
	SessionID    string `yaml:"session_id"`
	Output       string `yaml:"output"`
	Format       string `yaml:"format"`
	SampleRateHz int    `yaml:"sample_rate_hz"`
	SampleType   string `yaml:"sample_type"`
	Source       string `yaml:"source"`

	StartedAt time.Time     `yaml:"started_at"`
	EndedAt   time.Time     `yaml:"ended_at"`
	Duration  time.Duration `yaml:"duration"`

	WarmupBytes       uint64 `yaml:"warmup_bytes"`
	BytesObserved     uint64 `yaml:"bytes_observed"`
	RawBytesPersisted uint64 `yaml:"raw_bytes_persisted"`
	SamplesWritten    uint64 `yaml:"samples_written"`
	Overflows         uint64 `yaml:"fifo_overflows"`

	EndReason string        `yaml:"end_reason"`
	Error     string        `yaml:"error,omitempty"`
	Warmup    *warmup.Stats `yaml:"warmup,omitempty"`
}

// PathFor returns the sidecar path for an output file.
func PathFor(output string) string {
	return output + Suffix
}

// Write stores m at path, replacing any previous file atomically.
func Write(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("manifest: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("manifest: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("manifest: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("manifest: rename: %w", err)
	}
	return nil
}

// Read loads a manifest written by Write.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse: %w", err)
	}
	return &m, nil
}
