package phy

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// WriterFunc consumes a rendered frame together with the timestamp at
// which the frame crossed the device.
type WriterFunc func(timestamp int64, rendered string)

// Tracer is a pass-through device that renders every frame traversing
// it and hands the rendering to a writer function, then forwards the
// original buffer untouched to the wrapped device. It keeps no other
// state.
type Tracer struct {
	inner  Device
	writer WriterFunc
}

// NewTracer wraps inner with a tracing decorator.
func NewTracer(inner Device, writer WriterFunc) *Tracer {
	return &Tracer{
		inner:  inner,
		writer: writer,
	}
}

// Inner returns the wrapped device.
func (m *Tracer) Inner() Device {
	return m.inner
}

func (m *Tracer) Transmit(timestamp int64, frame []byte) error {
	if err := m.inner.Transmit(timestamp, frame); err != nil {
		return err
	}

	m.writer(timestamp, "-> "+renderFrame(frame))
	return nil
}

func (m *Tracer) Receive(timestamp int64) ([]byte, bool) {
	frame, ok := m.inner.Receive(timestamp)
	if !ok {
		return nil, false
	}

	m.writer(timestamp, "<- "+renderFrame(frame))
	return frame, true
}

func (m *Tracer) MTU() int {
	return m.inner.MTU()
}

// renderFrame decodes frame as Ethernet for display. Frames that do not
// decode are rendered as a hex summary instead of being dropped.
func renderFrame(frame []byte) string {
	packet := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	if packet.ErrorLayer() != nil {
		return fmt.Sprintf("undecodable frame (%d bytes): %s", len(frame), hex.EncodeToString(frame))
	}
	return strings.TrimRight(packet.String(), "\n")
}
