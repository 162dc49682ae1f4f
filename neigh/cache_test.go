package neigh

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/softnet-platform/softnet/wire"
)

var (
	haddrA = wire.EthernetAddr{0, 0, 0, 0, 0, 1}
	haddrB = wire.EthernetAddr{0, 0, 0, 0, 0, 2}
	haddrC = wire.EthernetAddr{0, 0, 0, 0, 0, 3}
	haddrD = wire.EthernetAddr{0, 0, 0, 0, 0, 4}

	paddrA = netip.MustParseAddr("1.0.0.1")
	paddrB = netip.MustParseAddr("1.0.0.2")
	paddrC = netip.MustParseAddr("1.0.0.3")
	paddrD = netip.MustParseAddr("1.0.0.4")
)

func newBoundedCache(t *testing.T, capacity int) *Cache {
	t.Helper()

	storage, err := NewBoundedStorage(capacity)
	require.NoError(t, err)
	return New(storage)
}

func TestFillThenLookup(t *testing.T) {
	cache := newBoundedCache(t, 3)

	_, ok := cache.LookupPure(paddrA, 0)
	require.False(t, ok)
	_, ok = cache.LookupPure(paddrB, 0)
	require.False(t, ok)

	require.NoError(t, cache.Fill(paddrA, haddrA, 0))

	addr, ok := cache.LookupPure(paddrA, 0)
	require.True(t, ok)
	require.Equal(t, haddrA, addr)

	// Valid strictly up to the expiry boundary.
	addr, ok = cache.LookupPure(paddrA, EntryLifetime-1)
	require.True(t, ok)
	require.Equal(t, haddrA, addr)
	_, ok = cache.LookupPure(paddrA, EntryLifetime)
	require.False(t, ok)
	_, ok = cache.LookupPure(paddrA, 2*EntryLifetime)
	require.False(t, ok)

	_, ok = cache.LookupPure(paddrB, 0)
	require.False(t, ok)
}

func TestIdempotentRefill(t *testing.T) {
	cache := newBoundedCache(t, 3)

	require.NoError(t, cache.Fill(paddrA, haddrA, 0))
	require.NoError(t, cache.Fill(paddrA, haddrA, 0))

	require.Equal(t, 1, cache.Len())
	addr, ok := cache.LookupPure(paddrA, 0)
	require.True(t, ok)
	require.Equal(t, haddrA, addr)
}

func TestReplace(t *testing.T) {
	cache := newBoundedCache(t, 3)

	require.NoError(t, cache.Fill(paddrA, haddrA, 0))
	addr, ok := cache.LookupPure(paddrA, 0)
	require.True(t, ok)
	require.Equal(t, haddrA, addr)

	require.NoError(t, cache.Fill(paddrA, haddrB, 0))
	addr, ok = cache.LookupPure(paddrA, 0)
	require.True(t, ok)
	require.Equal(t, haddrB, addr)
	require.Equal(t, 1, cache.Len())
}

func TestBroadcastInvariance(t *testing.T) {
	cache := newBoundedCache(t, 3)
	broadcast := netip.MustParseAddr("255.255.255.255")

	addr, ok := cache.LookupPure(broadcast, 0)
	require.True(t, ok)
	require.Equal(t, wire.EthernetBroadcast, addr)

	require.NoError(t, cache.Fill(paddrA, haddrA, 0))

	addr, ok = cache.LookupPure(broadcast, 3*EntryLifetime)
	require.True(t, ok)
	require.Equal(t, wire.EthernetBroadcast, addr)
}

func TestEvict(t *testing.T) {
	cache := newBoundedCache(t, 3)

	require.NoError(t, cache.Fill(paddrA, haddrA, 100))
	require.NoError(t, cache.Fill(paddrB, haddrB, 50))
	require.NoError(t, cache.Fill(paddrC, haddrC, 200))

	addr, ok := cache.LookupPure(paddrB, 1000)
	require.True(t, ok)
	require.Equal(t, haddrB, addr)
	_, ok = cache.LookupPure(paddrD, 1000)
	require.False(t, ok)

	// B expires earliest, so D displaces it.
	require.NoError(t, cache.Fill(paddrD, haddrD, 300))

	_, ok = cache.LookupPure(paddrB, 1000)
	require.False(t, ok)
	addr, ok = cache.LookupPure(paddrD, 1000)
	require.True(t, ok)
	require.Equal(t, haddrD, addr)
	require.Equal(t, 3, cache.Len())
}

func TestEvictTieBreak(t *testing.T) {
	cache := newBoundedCache(t, 3)

	// Equal expiry everywhere: the lowest occupied slot goes first.
	require.NoError(t, cache.Fill(paddrA, haddrA, 0))
	require.NoError(t, cache.Fill(paddrB, haddrB, 0))
	require.NoError(t, cache.Fill(paddrC, haddrC, 0))
	require.NoError(t, cache.Fill(paddrD, haddrD, 0))

	_, ok := cache.LookupPure(paddrA, 0)
	require.False(t, ok)
	for _, want := range []struct {
		paddr netip.Addr
		haddr wire.EthernetAddr
	}{{paddrB, haddrB}, {paddrC, haddrC}, {paddrD, haddrD}} {
		addr, ok := cache.LookupPure(want.paddr, 0)
		require.True(t, ok)
		require.Equal(t, want.haddr, addr)
	}
}

func TestGrowableNeverEvicts(t *testing.T) {
	cache := New(NewMapStorage())

	paddrs := []netip.Addr{paddrA, paddrB, paddrC, paddrD}
	for i, paddr := range paddrs {
		require.NoError(t, cache.Fill(paddr, wire.EthernetAddr{0, 0, 0, 0, 0, byte(i + 1)}, 0))
	}

	require.Equal(t, len(paddrs), cache.Len())
	for i, paddr := range paddrs {
		addr, ok := cache.LookupPure(paddr, 0)
		require.True(t, ok)
		require.Equal(t, wire.EthernetAddr{0, 0, 0, 0, 0, byte(i + 1)}, addr)
	}
}

func TestHush(t *testing.T) {
	cache := newBoundedCache(t, 3)

	_, answer := cache.Lookup(paddrA, 0)
	require.Equal(t, AnswerNotFound, answer)
	_, answer = cache.Lookup(paddrA, 100)
	require.Equal(t, AnswerHushed, answer)
	_, answer = cache.Lookup(paddrA, 2000)
	require.Equal(t, AnswerNotFound, answer)
}

func TestHushIsGlobal(t *testing.T) {
	cache := newBoundedCache(t, 3)

	// A miss for one address silences every other unresolved address
	// within the same window.
	_, answer := cache.Lookup(paddrA, 0)
	require.Equal(t, AnswerNotFound, answer)
	_, answer = cache.Lookup(paddrB, 100)
	require.Equal(t, AnswerHushed, answer)
	_, answer = cache.Lookup(paddrC, SilentTime-1)
	require.Equal(t, AnswerHushed, answer)
	_, answer = cache.Lookup(paddrB, SilentTime)
	require.Equal(t, AnswerNotFound, answer)
}

func TestHushDoesNotAffectHits(t *testing.T) {
	cache := newBoundedCache(t, 3)

	require.NoError(t, cache.Fill(paddrA, haddrA, 0))

	_, answer := cache.Lookup(paddrB, 0)
	require.Equal(t, AnswerNotFound, answer)

	// Resolved addresses answer Found even inside the hush window.
	addr, answer := cache.Lookup(paddrA, 100)
	require.Equal(t, AnswerFound, answer)
	require.Equal(t, haddrA, addr)
}

func TestFillRejectsNonUnicast(t *testing.T) {
	cache := newBoundedCache(t, 3)

	err := cache.Fill(netip.MustParseAddr("255.255.255.255"), haddrA, 0)
	require.ErrorIs(t, err, ErrInvalidAddress)

	err = cache.Fill(netip.MustParseAddr("224.0.0.1"), haddrA, 0)
	require.ErrorIs(t, err, ErrInvalidAddress)

	err = cache.Fill(paddrA, wire.EthernetBroadcast, 0)
	require.ErrorIs(t, err, ErrInvalidAddress)

	err = cache.Fill(paddrA, wire.EthernetAddr{0x01, 0, 0x5e, 0, 0, 1}, 0)
	require.ErrorIs(t, err, ErrInvalidAddress)

	require.Equal(t, 0, cache.Len())
}

func TestNewClearsStorage(t *testing.T) {
	storage := NewMapStorage()
	_, _, err := storage.Insert(paddrA, Neighbor{HardwareAddr: haddrA, ExpiresAt: EntryLifetime})
	require.NoError(t, err)

	cache := New(storage)
	require.Equal(t, 0, cache.Len())
	_, ok := cache.LookupPure(paddrA, 0)
	require.False(t, ok)
}
