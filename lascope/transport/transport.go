// Package transport opens the serial link to the acquisition board.
package transport

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// The acquisition board enumerates as an STM32 virtual COM port.
const (
	DeviceVID = "0483" // decimal 1155
	DevicePID = "5740" // decimal 22336
)

// ErrNoDevice is returned by Discover when no matching port is present.
var ErrNoDevice = errors.New("transport: no acquisition device found")

// Open connects to the named port at the given baud rate. The name "auto"
// selects a port via Discover.
func Open(port string, baud int) (io.ReadWriteCloser, error) {
	if port == "auto" {
		name, err := Discover()
		if err != nil {
			return nil, err
		}
		port = name
	}
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", port, err)
	}
	return p, nil
}

// Discover returns the first serial port whose USB identity matches the
// acquisition board, falling back to any USB serial port.
func Discover() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("transport: enumerate ports: %w", err)
	}
	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, DeviceVID) && strings.EqualFold(p.PID, DevicePID) {
			return p.Name, nil
		}
	}
	for _, p := range ports {
		if p.IsUSB {
			return p.Name, nil
		}
	}
	return "", ErrNoDevice
}

// List returns the names of all serial ports on the host.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: list ports: %w", err)
	}
	return ports, nil
}
