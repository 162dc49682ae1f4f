// Package wire provides the address types and classification helpers
// shared by the address-resolution layer.
package wire

import (
	"encoding/binary"
	"net/netip"
)

var ipv4Broadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// IsBroadcast reports whether addr is the IPv4 limited-broadcast
// address. IPv6 has no broadcast addresses.
func IsBroadcast(addr netip.Addr) bool {
	return addr.Unmap() == ipv4Broadcast
}

// IsUnicast reports whether addr identifies a single neighbour: a valid
// address that is neither unspecified, multicast nor broadcast.
func IsUnicast(addr netip.Addr) bool {
	return addr.IsValid() && !addr.IsUnspecified() && !addr.IsMulticast() && !IsBroadcast(addr)
}

// LastAddr returns the highest address covered by prefix.
func LastAddr(prefix netip.Prefix) netip.Addr {
	ip := prefix.Addr()
	bits := prefix.Bits()

	if ip.Is4() {
		v4b := ip.As4()
		addrBits := binary.BigEndian.Uint32(v4b[:])
		// A shift by the full width yields 0, so /0 wraps to all-ones.
		wildcardBits := uint32(1)<<(32-bits) - 1

		binary.BigEndian.PutUint32(v4b[:], addrBits|wildcardBits)
		return netip.AddrFrom4(v4b)
	}

	v6b := ip.As16()
	if bits <= 64 {
		hi := binary.BigEndian.Uint64(v6b[:8])
		wildcardBits := uint64(1)<<(64-bits) - 1
		binary.BigEndian.PutUint64(v6b[:8], hi|wildcardBits)
		binary.BigEndian.PutUint64(v6b[8:], ^uint64(0))
	} else {
		lo := binary.BigEndian.Uint64(v6b[8:])
		wildcardBits := uint64(1)<<(128-bits) - 1
		binary.BigEndian.PutUint64(v6b[8:], lo|wildcardBits)
	}
	return netip.AddrFrom16(v6b)
}

// IsDirectedBroadcast reports whether addr is the subnet-directed
// broadcast address of prefix. Point-to-point prefixes (/31, RFC 3021)
// and host routes have no directed broadcast.
func IsDirectedBroadcast(addr netip.Addr, prefix netip.Prefix) bool {
	if !addr.Is4() || !prefix.Addr().Is4() || prefix.Bits() >= 31 {
		return false
	}
	return addr.Unmap() == LastAddr(prefix)
}
