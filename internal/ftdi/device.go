// Package ftdi streams raw bytes from an FT232H in synchronous FIFO mode
// through libusb.
//
// The device is expected to have been switched to FIFO mode beforehand (its
// EEPROM configuration); this package only selects the channel, sets the
// latency timer, enables the synchronous FIFO bit mode and purges the RX
// buffer before streaming. On Close the bit mode is reset.
package ftdi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/gousb"

	"github.com/pmiettinen/piksi-sample-grabber/internal/retry"
	"github.com/pmiettinen/piksi-sample-grabber/internal/stream"
)

// ErrDeviceNotFound is returned when no device matches the VID/PID.
var ErrDeviceNotFound = errors.New("ftdi: device not found")

// Vendor request constants (FTDI application note AN_108 / libftdi).
const (
	reqTypeOut = 0x40 // vendor | host-to-device | device recipient

	reqReset      = 0x00
	reqSetFlowCtl = 0x02
	reqSetLatency = 0x09
	reqSetBitmode = 0x0B

	resetSIO     = 0
	resetPurgeRX = 1

	bitmodeReset    = 0x00
	bitmodeSyncFIFO = 0x40

	controlTimeout = time.Second
)

// Defaults mirror libftdi's read-stream helper as used by the capture tool.
const (
	DefaultVendorID           = 0x0403
	DefaultProductID          = 0x8398
	DefaultLatencyMS          = 2
	DefaultPacketsPerTransfer = 8
	DefaultTransfers          = 256
)

// Config contains device selection and streaming settings
type Config struct {
	VendorID           uint16
	ProductID          uint16
	Interface          int // 0 = A
	LatencyMS          int
	PacketsPerTransfer int
	Transfers          int           // Concurrent USB transfers in flight
	ReportInterval     time.Duration // Progress period
	Open               retry.Config  // Attempts to find and claim the device
}

func (c *Config) applyDefaults() {
	if c.VendorID == 0 {
		c.VendorID = DefaultVendorID
	}
	if c.ProductID == 0 {
		c.ProductID = DefaultProductID
	}
	if c.LatencyMS <= 0 {
		c.LatencyMS = DefaultLatencyMS
	}
	if c.PacketsPerTransfer <= 0 {
		c.PacketsPerTransfer = DefaultPacketsPerTransfer
	}
	if c.Transfers <= 0 {
		c.Transfers = DefaultTransfers
	}
}

// Device is an opened FTDI channel. It implements stream.Source.
type Device struct {
	conf Config

	usb  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	ep   *gousb.InEndpoint

	index     uint16
	maxPacket int
	meter     *stream.Meter
}

// Open finds the device, claims the interface and configures the latency
// timer. Device lookup is retried according to cfg.Open.
func Open(ctx context.Context, cfg Config) (*Device, error) {
	cfg.applyDefaults()

	d := &Device{
		conf:  cfg,
		usb:   gousb.NewContext(),
		index: interfaceIndex(cfg.Interface),
		meter: stream.NewMeter(cfg.ReportInterval),
	}

	err := retry.Do(ctx, "ftdi open", cfg.Open, func(ctx context.Context) error {
		dev, err := d.usb.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
		if err != nil {
			return fmt.Errorf("ftdi: open %04x:%04x: %w", cfg.VendorID, cfg.ProductID, err)
		}
		if dev == nil {
			return fmt.Errorf("%w: %04x:%04x", ErrDeviceNotFound, cfg.VendorID, cfg.ProductID)
		}
		d.dev = dev
		return nil
	})
	if err != nil {
		d.usb.Close()
		return nil, err
	}

	if err := d.claim(); err != nil {
		d.release()
		return nil, err
	}

	slog.Info("ftdi: device opened",
		"vid", fmt.Sprintf("%04x", cfg.VendorID),
		"pid", fmt.Sprintf("%04x", cfg.ProductID),
		"interface", string(rune('A'+cfg.Interface)),
		"latency_ms", cfg.LatencyMS,
		"max_packet", d.maxPacket,
	)
	return d, nil
}

func (d *Device) claim() error {
	d.dev.ControlTimeout = controlTimeout
	if err := d.dev.SetAutoDetach(true); err != nil {
		return fmt.Errorf("ftdi: enable kernel driver auto-detach: %w", err)
	}

	cfg, err := d.dev.Config(1)
	if err != nil {
		return fmt.Errorf("ftdi: select configuration: %w", err)
	}
	d.cfg = cfg

	intf, err := cfg.Interface(d.conf.Interface, 0)
	if err != nil {
		return fmt.Errorf("ftdi: claim interface %d: %w", d.conf.Interface, err)
	}
	d.intf = intf

	ep, err := intf.InEndpoint(inEndpoint(d.conf.Interface))
	if err != nil {
		return fmt.Errorf("ftdi: open IN endpoint: %w", err)
	}
	d.ep = ep
	d.maxPacket = ep.Desc.MaxPacketSize

	if err := d.control(reqReset, resetSIO); err != nil {
		return fmt.Errorf("ftdi: reset: %w", err)
	}
	if err := d.control(reqSetLatency, uint16(d.conf.LatencyMS)); err != nil {
		return fmt.Errorf("ftdi: set latency timer: %w", err)
	}
	if err := d.control(reqReset, resetPurgeRX); err != nil {
		return fmt.Errorf("ftdi: purge rx buffer: %w", err)
	}
	return nil
}

// Stream implements stream.Source. It enables synchronous FIFO mode and
// delivers every USB transfer, minus FTDI status bytes, to fn.
func (d *Device) Stream(ctx context.Context, fn stream.Func) error {
	if err := d.control(reqSetFlowCtl, 0); err != nil {
		return fmt.Errorf("ftdi: disable flow control: %w", err)
	}
	if err := d.control(reqSetBitmode, bitmodeValue(bitmodeSyncFIFO, 0xFF)); err != nil {
		return fmt.Errorf("ftdi: enable synchronous fifo mode: %w", err)
	}
	if err := d.control(reqReset, resetPurgeRX); err != nil {
		return fmt.Errorf("ftdi: purge rx buffer: %w", err)
	}

	transferSize := d.conf.PacketsPerTransfer * d.maxPacket
	rs, err := d.ep.NewStream(transferSize, d.conf.Transfers)
	if err != nil {
		return fmt.Errorf("ftdi: start read stream: %w", err)
	}
	defer rs.Close()

	slog.Info("ftdi: streaming",
		"transfer_bytes", transferSize,
		"transfers", d.conf.Transfers,
	)

	raw := make([]byte, transferSize)
	payload := make([]byte, 0, transferSize)
	d.meter.Start()

	for {
		n, err := rs.ReadContext(ctx, raw)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ftdi: bulk read: %w", err)
		}

		payload = StripStatus(payload[:0], raw[:n], d.maxPacket)
		progress := d.meter.Add(len(payload))
		if len(payload) == 0 && progress == nil {
			continue
		}
		if fn(payload, progress) == stream.FlowStop {
			return nil
		}
	}
}

// Close resets the bit mode and releases the device.
func (d *Device) Close() error {
	var err error
	if d.dev != nil {
		if cerr := d.control(reqSetBitmode, bitmodeValue(bitmodeReset, 0xFF)); cerr != nil {
			err = fmt.Errorf("ftdi: reset bit mode: %w", cerr)
			slog.Warn("ftdi: could not reset bit mode", "error", cerr)
		}
	}
	d.release()
	slog.Info("ftdi: device closed")
	return err
}

func (d *Device) release() {
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	if d.cfg != nil {
		d.cfg.Close()
		d.cfg = nil
	}
	if d.dev != nil {
		d.dev.Close()
		d.dev = nil
	}
	if d.usb != nil {
		d.usb.Close()
		d.usb = nil
	}
}

func (d *Device) control(request uint8, value uint16) error {
	_, err := d.dev.Control(reqTypeOut, request, value, d.index, nil)
	return err
}

// interfaceIndex is the wIndex FTDI expects for channel i (A=1, B=2, ...).
func interfaceIndex(i int) uint16 {
	return uint16(i + 1)
}

// inEndpoint is the IN endpoint number for channel i (A=0x81, B=0x83, ...).
func inEndpoint(i int) int {
	return 2*i + 1
}

func bitmodeValue(mode, mask uint8) uint16 {
	return uint16(mode)<<8 | uint16(mask)
}
