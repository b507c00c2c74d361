// Package serial relays line-delimited JSON readings from the vest's
// microcontroller over a serial port.
package serial

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the part of serial.Port the link reads through.
type Port interface {
	io.ReadCloser
}

// Opener opens the device at name.
type Opener interface {
	Open(name string) (Port, error)
}

// DeviceOpener opens real serial devices at 8N1 with a bounded read timeout.
// With the timeout set, Read returns (0, nil) when no bytes arrive in time.
type DeviceOpener struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// Open implements Opener.
func (o DeviceOpener) Open(name string) (Port, error) {
	port, err := OpenDevice(name, o.BaudRate)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(o.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return port, nil
}

// OpenDevice opens name at 8N1 for reading and writing.
func OpenDevice(name string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return port, nil
}

// ListDevices returns the serial ports present on this machine.
func ListDevices() ([]string, error) {
	return serial.GetPortsList()
}
