// Package transport provides the byte-stream connections the session
// engine drives (§6): a serial connection to a real ELM327 adapter, and a
// TCP connection to a WiFi/Bluetooth-SPP bridge or a bench simulator.
package transport

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tarm/serial"
)

// Transport is any bidirectional byte stream the session engine can drive.
type Transport interface {
	io.ReadWriteCloser
}

// Config holds connection configuration, populated from the YAML config's
// transport section (internal/config).
type Config struct {
	Type     string // "serial" or "tcp"; New rejects any other value, including "mock"
	Address  string // COM port/device path, or host:port
	BaudRate int    // only used for serial connections
	Timeout  time.Duration
}

// New constructs a Transport for the given configuration.
func New(cfg Config) (Transport, error) {
	switch cfg.Type {
	case "serial":
		return newSerialTransport(cfg)
	case "tcp":
		return newTCPTransport(cfg)
	default:
		return nil, fmt.Errorf("unsupported transport type: %q", cfg.Type)
	}
}

// serialTransport wraps a tarm/serial port as a Transport.
type serialTransport struct {
	port *serial.Port
}

func newSerialTransport(cfg Config) (Transport, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = 38400
	}
	readTimeout := cfg.Timeout
	if readTimeout == 0 {
		readTimeout = 500 * time.Millisecond
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Address,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", cfg.Address, err)
	}
	return &serialTransport{port: port}, nil
}

func (s *serialTransport) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *serialTransport) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *serialTransport) Close() error                { return s.port.Close() }

// tcpTransport wraps a net.Conn as a Transport, used for WiFi ELM327
// adapters and bench simulators that expose a TCP listener.
type tcpTransport struct {
	conn    net.Conn
	timeout time.Duration
}

func newTCPTransport(cfg Config) (Transport, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	conn, err := net.DialTimeout("tcp", cfg.Address, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", cfg.Address, err)
	}
	return &tcpTransport{conn: conn, timeout: timeout}, nil
}

func (t *tcpTransport) Read(p []byte) (int, error) {
	_ = t.conn.SetReadDeadline(time.Now().Add(t.timeout))
	return t.conn.Read(p)
}

func (t *tcpTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}
