package wire

import (
	"fmt"
	"net"
)

// EthernetAddr is an EUI-48 link-layer address.
type EthernetAddr [6]byte

// EthernetBroadcast is the all-ones link-layer broadcast address.
var EthernetBroadcast = EthernetAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// EthernetAddrFrom converts a stdlib hardware address into an
// EthernetAddr. Only EUI-48 addresses are supported.
func EthernetAddrFrom(addr net.HardwareAddr) (EthernetAddr, error) {
	if len(addr) != 6 {
		return EthernetAddr{}, fmt.Errorf("unsupported hardware address %q: must be EUI-48", addr)
	}

	var out EthernetAddr
	copy(out[:], addr)
	return out, nil
}

// HardwareAddr converts the address back into its stdlib representation.
func (m EthernetAddr) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(m[:])
}

func (m EthernetAddr) String() string {
	return m.HardwareAddr().String()
}

// IsBroadcast reports whether the address is the all-ones broadcast
// address.
func (m EthernetAddr) IsBroadcast() bool {
	return m == EthernetBroadcast
}

// IsMulticast reports whether the group bit of the address is set.
// The broadcast address is a multicast address.
func (m EthernetAddr) IsMulticast() bool {
	return m[0]&0x01 != 0
}

// IsUnicast reports whether the address identifies a single station.
// The all-zeros address is not a valid station address.
func (m EthernetAddr) IsUnicast() bool {
	return m != (EthernetAddr{}) && !m.IsMulticast()
}
