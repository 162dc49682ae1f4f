package discovery

import (
	"github.com/vishvananda/netlink"
)

// NeighbourState is a type wrapper for a kernel neighbour cache entry
// state (NUD_*).
type NeighbourState int

// Resolved reports whether the kernel considers the entry to carry a
// usable link-layer address. INCOMPLETE, FAILED and probing states are
// not trusted: the cache ages entries out on its own schedule anyway.
func (m NeighbourState) Resolved() bool {
	switch int(m) {
	case netlink.NUD_REACHABLE, netlink.NUD_STALE, netlink.NUD_PERMANENT:
		return true
	default:
		return false
	}
}

// String returns string representation of this state.
func (m NeighbourState) String() string {
	switch int(m) {
	case netlink.NUD_NONE:
		return "NONE"
	case netlink.NUD_INCOMPLETE:
		return "INCOMPLETE"
	case netlink.NUD_REACHABLE:
		return "REACHABLE"
	case netlink.NUD_STALE:
		return "STALE"
	case netlink.NUD_DELAY:
		return "DELAY"
	case netlink.NUD_PROBE:
		return "PROBE"
	case netlink.NUD_FAILED:
		return "FAILED"
	case netlink.NUD_NOARP:
		return "NOARP"
	case netlink.NUD_PERMANENT:
		return "PERMANENT"
	default:
		return "UNKNOWN"
	}
}
