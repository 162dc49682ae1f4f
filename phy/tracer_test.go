package phy

import (
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"
)

func arpRequestFrame(t *testing.T) []byte {
	t.Helper()

	srcMAC, err := net.ParseMAC("00:00:00:00:00:01")
	require.NoError(t, err)

	eth := layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: net.IPv4(192, 0, 2, 1).To4(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    net.IPv4(192, 0, 2, 2).To4(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, &arp))
	return buf.Bytes()
}

type traceLine struct {
	timestamp int64
	rendered  string
}

func TestTracerTransmit(t *testing.T) {
	frame := arpRequestFrame(t)

	var lines []traceLine
	inner := NewLoopback()
	tracer := NewTracer(inner, func(timestamp int64, rendered string) {
		lines = append(lines, traceLine{timestamp, rendered})
	})

	require.NoError(t, tracer.Transmit(42, frame))

	require.Len(t, lines, 1)
	require.Equal(t, int64(42), lines[0].timestamp)
	require.True(t, len(lines[0].rendered) > 3)
	require.Equal(t, "-> ", lines[0].rendered[:3])
	require.Contains(t, lines[0].rendered, "ARP")

	// The frame reaches the inner device untouched.
	got, ok := inner.Receive(42)
	require.True(t, ok)
	require.Equal(t, frame, got)
}

func TestTracerReceive(t *testing.T) {
	frame := arpRequestFrame(t)

	inner := NewLoopback()
	require.NoError(t, inner.Transmit(0, frame))

	var lines []traceLine
	tracer := NewTracer(inner, func(timestamp int64, rendered string) {
		lines = append(lines, traceLine{timestamp, rendered})
	})

	got, ok := tracer.Receive(7)
	require.True(t, ok)
	require.Equal(t, frame, got)

	require.Len(t, lines, 1)
	require.Equal(t, int64(7), lines[0].timestamp)
	require.Equal(t, "<- ", lines[0].rendered[:3])

	// Nothing pending: the writer stays silent.
	_, ok = tracer.Receive(8)
	require.False(t, ok)
	require.Len(t, lines, 1)
}

func TestTracerUndecodableFrame(t *testing.T) {
	var lines []traceLine
	tracer := NewTracer(NewLoopback(), func(timestamp int64, rendered string) {
		lines = append(lines, traceLine{timestamp, rendered})
	})

	require.NoError(t, tracer.Transmit(0, []byte{0xde, 0xad}))

	require.Len(t, lines, 1)
	require.Contains(t, lines[0].rendered, "undecodable frame (2 bytes)")
	require.Contains(t, lines[0].rendered, "dead")
}

func TestTracerInner(t *testing.T) {
	inner := NewLoopback()
	tracer := NewTracer(inner, func(int64, string) {})

	require.Same(t, inner, tracer.Inner())
	require.Equal(t, inner.MTU(), tracer.MTU())
}

func TestLoopbackFIFO(t *testing.T) {
	lo := NewLoopback()

	require.NoError(t, lo.Transmit(0, []byte{1}))
	require.NoError(t, lo.Transmit(0, []byte{2}))

	first, ok := lo.Receive(0)
	require.True(t, ok)
	require.Equal(t, []byte{1}, first)
	second, ok := lo.Receive(0)
	require.True(t, ok)
	require.Equal(t, []byte{2}, second)
	_, ok = lo.Receive(0)
	require.False(t, ok)
}
