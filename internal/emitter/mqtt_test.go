package emitter

import (
	"errors"
	"testing"

	"github.com/pmiettinen/piksi-sample-grabber/internal/progress"
)

var _ progress.Publisher = (*MQTTEmitter)(nil)

func TestPublish_NotConnected(t *testing.T) {
	e := NewMQTTEmitter(Config{Broker: "localhost:1883", Topic: "piksi/test", ClientID: "test"})

	err := e.Publish(progress.Report{TotalBytes: 1})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Publish() error = %v, want ErrNotConnected", err)
	}

	stats := e.Stats()
	if stats.Connected {
		t.Error("Connected = true before Connect")
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
}

func TestDisconnect_WithoutConnect(t *testing.T) {
	e := NewMQTTEmitter(Config{})
	e.Disconnect()
	if e.Stats().Connected {
		t.Error("Connected = true after Disconnect")
	}
}
