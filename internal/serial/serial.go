package serial

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/bigbag/goslip/internal/logging"
)

// Port wraps a serial port configured for 8N1 raw byte transfer.
// A read that times out returns 0 bytes and a nil error.
type Port struct {
	port     serial.Port
	portName string
	baudRate int
}

// Open opens a serial port with the specified baud rate and read timeout.
func Open(portName string, baudRate int, readTimeout time.Duration) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &Port{
		port:     port,
		portName: portName,
		baudRate: baudRate,
	}, nil
}

// Close closes the serial port.
func (p *Port) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Write writes data to the serial port and waits until it is transmitted.
func (p *Port) Write(data []byte) (int, error) {
	n, err := p.port.Write(data)
	if err != nil {
		return n, err
	}
	return n, p.port.Drain()
}

// Read reads data from the serial port.
func (p *Port) Read(buf []byte) (int, error) {
	return p.port.Read(buf)
}

// Flush discards any buffered input.
func (p *Port) Flush() error {
	return p.port.ResetInputBuffer()
}

// PortName returns the port name.
func (p *Port) PortName() string {
	return p.portName
}

// BaudRate returns the current baud rate.
func (p *Port) BaudRate() int {
	return p.baudRate
}

// Port listing backends, replaced in tests.
var (
	portNames     = serial.GetPortsList
	detailedPorts = enumerator.GetDetailedPortsList
)

// ListPorts returns the names of the available serial ports.
func ListPorts() ([]string, error) {
	ports, err := portNames()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}
	return ports, nil
}

// PortInfo describes a serial port found on the system.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// String formats the port for listings.
func (i PortInfo) String() string {
	if !i.IsUSB {
		return i.Name
	}
	s := fmt.Sprintf("%s [USB %s:%s]", i.Name, i.VID, i.PID)
	if i.Product != "" {
		s += " " + i.Product
	}
	if i.SerialNumber != "" {
		s += " (serial " + i.SerialNumber + ")"
	}
	return s
}

// ListDetailed returns the available serial ports with USB details. When
// USB enumeration is unavailable it falls back to ListPorts and returns
// names only.
func ListDetailed() ([]PortInfo, error) {
	details, err := detailedPorts()
	if err != nil {
		logging.Debug("USB enumeration failed, listing names only: %v", err)
		names, listErr := ListPorts()
		if listErr != nil {
			return nil, fmt.Errorf("failed to enumerate ports: %w", errors.Join(err, listErr))
		}
		infos := make([]PortInfo, 0, len(names))
		for _, name := range names {
			infos = append(infos, PortInfo{Name: name})
		}
		return infos, nil
	}

	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return infos, nil
}
