// Package phy provides link-layer device abstractions: the Device
// interface the interface layer transmits through, an in-memory
// loopback, and a tracing decorator.
package phy

import "slices"

// Device is a link-layer frame transport.
//
// Every operation takes the current monotonic timestamp in milliseconds
// from the caller; devices keep no clock of their own.
type Device interface {
	// Transmit sends a single link-layer frame.
	Transmit(timestamp int64, frame []byte) error
	// Receive returns the next pending frame, if any.
	Receive(timestamp int64) ([]byte, bool)
	// MTU returns the maximum transmission unit, in bytes.
	MTU() int
}

const loopbackMTU = 65535

// Loopback is an in-memory device that queues transmitted frames for
// later receipt, in FIFO order. It is mainly useful in tests.
type Loopback struct {
	queue [][]byte
}

// NewLoopback creates an empty loopback device.
func NewLoopback() *Loopback {
	return &Loopback{}
}

func (m *Loopback) Transmit(_ int64, frame []byte) error {
	m.queue = append(m.queue, slices.Clone(frame))
	return nil
}

func (m *Loopback) Receive(_ int64) ([]byte, bool) {
	if len(m.queue) == 0 {
		return nil, false
	}

	frame := m.queue[0]
	m.queue = m.queue[1:]
	return frame, true
}

func (m *Loopback) MTU() int {
	return loopbackMTU
}
