// Package neigh implements the neighbour cache of the address-resolution
// layer: the table translating protocol addresses into link-layer
// addresses that is consulted on every outgoing packet.
//
// Heads up! Before working on this package you should read, at least,
// the parts of RFC 1122 that discuss ARP.
package neigh

import (
	"errors"
	"fmt"
	"net/netip"

	"go.uber.org/zap"

	"github.com/softnet-platform/softnet/wire"
)

const (
	// EntryLifetime is the neighbour entry lifetime, in milliseconds.
	EntryLifetime int64 = 60_000
	// SilentTime is the minimum delay between discovery requests, in
	// milliseconds.
	SilentTime int64 = 1_000
)

// ErrInvalidAddress is returned by Fill when either address is not
// unicast. Non-unicast protocol addresses are never cached as keys and
// a non-unicast hardware address can never be a resolution result.
var ErrInvalidAddress = errors.New("address is not unicast")

// Neighbor is a resolved mapping entry: the link-layer address a
// protocol address translates to, and the timestamp past which the
// mapping should be discarded.
type Neighbor struct {
	// HardwareAddr is the link-layer address this entry resolves to.
	HardwareAddr wire.EthernetAddr
	// ExpiresAt is the absolute timestamp, in milliseconds, after which
	// the entry is stale.
	ExpiresAt int64
}

// Answer classifies the outcome of a rate-limited cache lookup.
type Answer int

const (
	// AnswerNotFound means no valid mapping exists and the caller is
	// cleared to issue a discovery request now.
	AnswerNotFound Answer = iota
	// AnswerFound means a valid mapping exists.
	AnswerFound
	// AnswerHushed means no valid mapping exists, but a discovery
	// request was already permitted recently and the caller must not
	// issue another one yet.
	AnswerHushed
)

// String returns string representation of this answer.
func (m Answer) String() string {
	switch m {
	case AnswerNotFound:
		return "NotFound"
	case AnswerFound:
		return "Found"
	case AnswerHushed:
		return "Hushed"
	default:
		return "UNKNOWN"
	}
}

// Option is a function that configures the cache.
type Option func(*options)

// WithLog configures the cache with a logger for fill diagnostics.
func WithLog(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.Log = log
	}
}

type options struct {
	Log *zap.SugaredLogger
}

func newOptions() *options {
	return &options{
		Log: zap.NewNop().Sugar(),
	}
}

// Cache is the resolution table of a single network interface.
//
// Entries expire lazily: a stale entry stays in storage until a later
// Fill overwrites it or capacity pressure evicts it. The cache keeps no
// clock; every operation takes the current monotonic timestamp in
// milliseconds from the caller. There is no internal locking, callers
// must serialize access.
type Cache struct {
	storage     Storage
	hushedUntil int64
	log         *zap.SugaredLogger
}

// New creates a cache over the given storage. The backing storage is
// cleared.
func New(storage Storage, options ...Option) *Cache {
	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	storage.Clear()

	return &Cache{
		storage: storage,
		log:     opts.Log,
	}
}

// Fill inserts or overwrites the entry for protocolAddr, valid for
// EntryLifetime milliseconds from timestamp.
//
// When the key is new and bounded storage is at capacity, the stored
// entry with the smallest ExpiresAt is evicted first. Ties go to the
// first minimum in storage iteration order: slot order for bounded
// storage, unspecified for growable storage (which never evicts anyway).
func (c *Cache) Fill(protocolAddr netip.Addr, hardwareAddr wire.EthernetAddr, timestamp int64) error {
	if !wire.IsUnicast(protocolAddr) {
		return fmt.Errorf("protocol address %s: %w", protocolAddr, ErrInvalidAddress)
	}
	if !hardwareAddr.IsUnicast() {
		return fmt.Errorf("hardware address %s: %w", hardwareAddr, ErrInvalidAddress)
	}

	neighbor := Neighbor{
		HardwareAddr: hardwareAddr,
		ExpiresAt:    timestamp + EntryLifetime,
	}

	prev, replaced, err := c.storage.Insert(protocolAddr, neighbor)
	switch {
	case err == nil && replaced:
		if prev.HardwareAddr != hardwareAddr {
			c.log.Debugf("replaced %s => %s (was %s)", protocolAddr, hardwareAddr, prev.HardwareAddr)
		}
	case err == nil:
		c.log.Debugf("filled %s => %s (was empty)", protocolAddr, hardwareAddr)
	case errors.Is(err, ErrStorageFull):
		// Fixed-size storage is at capacity: make room by dropping the
		// entry closest to expiry.
		victim, ok := c.evictionVictim()
		if !ok {
			panic("eviction attempted against empty neighbour storage")
		}

		old, _ := c.storage.Remove(victim)
		if _, _, err := c.storage.Insert(protocolAddr, neighbor); err != nil {
			panic(fmt.Sprintf("insert after eviction failed: %v", err))
		}

		c.log.Debugf("filled %s => %s (evicted %s => %s)",
			protocolAddr, hardwareAddr, victim, old.HardwareAddr)
	default:
		return fmt.Errorf("failed to store neighbour %s: %w", protocolAddr, err)
	}

	return nil
}

// evictionVictim returns the stored address with the smallest ExpiresAt.
func (c *Cache) evictionVictim() (netip.Addr, bool) {
	var (
		victim    netip.Addr
		earliest  int64
		populated bool
	)
	for addr, neighbor := range c.storage.All() {
		if !populated || neighbor.ExpiresAt < earliest {
			victim = addr
			earliest = neighbor.ExpiresAt
			populated = true
		}
	}
	return victim, populated
}

// LookupPure resolves protocolAddr without touching the hush window.
//
// The protocol-layer broadcast address always resolves to the hardware
// broadcast address, independent of cache contents. Expired entries are
// reported as absent but left in place.
func (c *Cache) LookupPure(protocolAddr netip.Addr, timestamp int64) (wire.EthernetAddr, bool) {
	if wire.IsBroadcast(protocolAddr) {
		return wire.EthernetBroadcast, true
	}

	if neighbor, ok := c.storage.Get(protocolAddr); ok && timestamp < neighbor.ExpiresAt {
		return neighbor.HardwareAddr, true
	}

	return wire.EthernetAddr{}, false
}

// Lookup resolves protocolAddr and applies the discovery rate limit.
//
// An AnswerNotFound authorizes the caller to issue exactly one discovery
// request and opens a hush window of SilentTime milliseconds during
// which every unresolved lookup, for any address, answers AnswerHushed.
// The window is deliberately global rather than per address: it caps
// the total discovery-request rate when many destinations are
// unreachable at once, e.g. at interface bring-up.
func (c *Cache) Lookup(protocolAddr netip.Addr, timestamp int64) (wire.EthernetAddr, Answer) {
	if hardwareAddr, ok := c.LookupPure(protocolAddr, timestamp); ok {
		return hardwareAddr, AnswerFound
	}

	if timestamp < c.hushedUntil {
		return wire.EthernetAddr{}, AnswerHushed
	}

	c.hushedUntil = timestamp + SilentTime
	return wire.EthernetAddr{}, AnswerNotFound
}

// Len returns the number of entries currently stored, stale included.
func (c *Cache) Len() int {
	return c.storage.Len()
}
