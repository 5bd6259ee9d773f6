package driver

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/TTeubler/wsn-device-utils/internal/mac"
	"github.com/TTeubler/wsn-device-utils/internal/reference"
)

// Device configuration keys understood by the serial driver.
const (
	KeyBaudRate = "baudrate"
	KeyDataBits = "databits"
	KeyParity   = "parity"
	KeyStopBits = "stopbits"
	KeyMAC      = "mac"
)

// SerialConfig configures the serial driver.
type SerialConfig struct {
	// DefaultBaudRate is used when the device configuration has no baudrate.
	DefaultBaudRate int

	// USBTypes maps "vid:pid" (lowercase hex) to a device type.
	// USB serial ports with an unlisted vid:pid are not reported.
	USBTypes map[string]string

	// ReferenceMACTypes lists device types whose MAC is found by looking up
	// their reference (the adapter's USB serial number) in the reference map.
	ReferenceMACTypes []string
}

// Serial is the driver for sensor nodes behind USB serial adapters.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Serial struct {
	cfg    SerialConfig
	refs   *reference.Map
	logger Logger

	listPorts func() ([]*enumerator.PortDetails, error)
	openPort  func(name string, mode *serial.Mode) (serial.Port, error)
}

var (
	_ Enumerator = (*Serial)(nil)
	_ Connector  = (*Serial)(nil)
	_ MACReader  = (*Serial)(nil)
)

// NewSerial creates a serial driver. refs may be nil.
func NewSerial(cfg SerialConfig, refs *reference.Map) *Serial {
	if cfg.DefaultBaudRate <= 0 {
		cfg.DefaultBaudRate = 115200
	}

	types := make(map[string]string, len(cfg.USBTypes))
	for k, v := range cfg.USBTypes {
		types[strings.ToLower(k)] = v
	}
	cfg.USBTypes = types

	return &Serial{
		cfg:       cfg,
		refs:      refs,
		logger:    noopLogger{},
		listPorts: enumerator.GetDetailedPortsList,
		openPort:  serial.Open,
	}
}

// SetLogger sets the logger for the driver.
func (s *Serial) SetLogger(logger Logger) {
	s.logger = logger
}

// ListDevices reports every USB serial port whose adapter maps to a known device type.
func (s *Serial) ListDevices(ctx context.Context) ([]Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ports, err := s.listPorts()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	handles := make([]Handle, 0, len(ports))
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		typ, ok := s.cfg.USBTypes[usbID(p.VID, p.PID)]
		if !ok {
			s.logger.Debug("ignoring serial port with unknown adapter",
				"port", p.Name,
				"usb_id", usbID(p.VID, p.PID),
			)
			continue
		}
		handles = append(handles, Handle{Type: typ, Port: p.Name})
	}

	return handles, nil
}

// Connect opens the serial port of h using the line settings in cfg.
func (s *Serial) Connect(ctx context.Context, h Handle, cfg map[string]string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	mode, err := s.serialMode(cfg)
	if err != nil {
		return nil, err
	}

	port, err := s.openPort(h.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, h, err)
	}

	s.logger.Debug("serial port opened", "device", h.String(), "baudrate", mode.BaudRate)
	return &serialConn{port: port}, nil
}

// ReadMAC returns the MAC of h.
//
// A "mac" entry in cfg always wins. Otherwise, for reference-assigned types,
// the reference (or the adapter's USB serial number when reference is empty)
// is looked up in the reference map.
func (s *Serial) ReadMAC(ctx context.Context, h Handle, cfg map[string]string, ref string) (mac.Address, bool, error) {
	if err := ctx.Err(); err != nil {
		return mac.Address{}, false, err
	}

	if v, ok := cfg[KeyMAC]; ok {
		addr, err := mac.ParseHex(v)
		if err != nil {
			return mac.Address{}, false, fmt.Errorf("%w: %s: %w", ErrInvalidConfiguration, KeyMAC, err)
		}
		return addr, true, nil
	}

	if !slices.Contains(s.cfg.ReferenceMACTypes, h.Type) {
		return mac.Address{}, false, fmt.Errorf("%w: device type %q", ErrMACUnsupported, h.Type)
	}

	if ref == "" {
		serialNumber, err := s.serialNumber(h.Port)
		if err != nil {
			return mac.Address{}, false, err
		}
		ref = serialNumber
	}
	if ref == "" {
		return mac.Address{}, false, nil
	}

	addr, ok := s.refs.Lookup(ref)
	return addr, ok, nil
}

// serialNumber returns the USB serial number of the adapter behind port.
func (s *Serial) serialNumber(port string) (string, error) {
	ports, err := s.listPorts()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEnumeration, err)
	}
	for _, p := range ports {
		if p.Name == port {
			return p.SerialNumber, nil
		}
	}
	return "", nil
}

func (s *Serial) serialMode(cfg map[string]string) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: s.cfg.DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	if v, ok := cfg[KeyBaudRate]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidConfiguration, KeyBaudRate, v)
		}
		mode.BaudRate = n
	}

	if v, ok := cfg[KeyDataBits]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 5 || n > 8 {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidConfiguration, KeyDataBits, v)
		}
		mode.DataBits = n
	}

	if v, ok := cfg[KeyParity]; ok {
		switch strings.ToLower(v) {
		case "none":
			mode.Parity = serial.NoParity
		case "odd":
			mode.Parity = serial.OddParity
		case "even":
			mode.Parity = serial.EvenParity
		case "mark":
			mode.Parity = serial.MarkParity
		case "space":
			mode.Parity = serial.SpaceParity
		default:
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidConfiguration, KeyParity, v)
		}
	}

	if v, ok := cfg[KeyStopBits]; ok {
		switch v {
		case "1":
			mode.StopBits = serial.OneStopBit
		case "1.5":
			mode.StopBits = serial.OnePointFiveStopBits
		case "2":
			mode.StopBits = serial.TwoStopBits
		default:
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidConfiguration, KeyStopBits, v)
		}
	}

	return mode, nil
}

func usbID(vid, pid string) string {
	return strings.ToLower(vid + ":" + pid)
}

// serialConn adapts a serial.Port to Conn.
type serialConn struct {
	port   serial.Port
	closed atomic.Bool
}

func (c *serialConn) Read(p []byte) (int, error) {
	return c.port.Read(p)
}

func (c *serialConn) Write(p []byte) (int, error) {
	return c.port.Write(p)
}

func (c *serialConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.port.Close()
}

func (c *serialConn) IsConnected() bool {
	return !c.closed.Load()
}
