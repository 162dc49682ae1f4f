package neigh

import (
	"errors"
	"iter"
	"maps"
	"net/netip"
)

var (
	// ErrZeroCapacity is returned when bounded storage is constructed
	// with no capacity.
	ErrZeroCapacity = errors.New("bounded storage capacity must be positive")
	// ErrStorageFull is returned by Insert when a new key does not fit
	// into bounded storage.
	ErrStorageFull = errors.New("neighbour storage is full")
)

// Storage is a key-unique mapping from protocol addresses to neighbour
// entries.
//
// Implementations are either bounded (fixed capacity allocated once,
// Insert of a new key may fail with ErrStorageFull) or growable (Insert
// never fails). The cache inspects Growable to decide whether the
// eviction path can ever be taken.
type Storage interface {
	// Get returns the entry stored under addr.
	Get(addr netip.Addr) (Neighbor, bool)
	// Insert stores n under addr, replacing any previous entry for the
	// same key. The previous entry is returned when one was replaced.
	Insert(addr netip.Addr, n Neighbor) (prev Neighbor, replaced bool, err error)
	// Remove deletes the entry stored under addr.
	Remove(addr netip.Addr) (Neighbor, bool)
	// Clear removes all entries.
	Clear()
	// Len returns the number of stored entries.
	Len() int
	// Growable reports whether Insert can always make room.
	Growable() bool
	// All iterates over all stored (address, entry) pairs.
	All() iter.Seq2[netip.Addr, Neighbor]
}

type boundedSlot struct {
	addr     netip.Addr
	neighbor Neighbor
	occupied bool
}

// BoundedStorage is fixed-capacity storage backed by a slot array that
// is allocated once at construction and never reallocated. It fits
// interfaces where memory is a hard constraint.
type BoundedStorage struct {
	slots []boundedSlot
	used  int
}

// NewBoundedStorage creates storage holding at most capacity entries.
func NewBoundedStorage(capacity int) (*BoundedStorage, error) {
	if capacity <= 0 {
		return nil, ErrZeroCapacity
	}

	return &BoundedStorage{slots: make([]boundedSlot, capacity)}, nil
}

// Capacity returns the fixed slot count.
func (m *BoundedStorage) Capacity() int {
	return len(m.slots)
}

func (m *BoundedStorage) Get(addr netip.Addr) (Neighbor, bool) {
	for i := range m.slots {
		if m.slots[i].occupied && m.slots[i].addr == addr {
			return m.slots[i].neighbor, true
		}
	}
	return Neighbor{}, false
}

func (m *BoundedStorage) Insert(addr netip.Addr, n Neighbor) (Neighbor, bool, error) {
	free := -1
	for i := range m.slots {
		slot := &m.slots[i]
		if !slot.occupied {
			if free < 0 {
				free = i
			}
			continue
		}
		if slot.addr == addr {
			prev := slot.neighbor
			slot.neighbor = n
			return prev, true, nil
		}
	}

	if free < 0 {
		return Neighbor{}, false, ErrStorageFull
	}

	m.slots[free] = boundedSlot{addr: addr, neighbor: n, occupied: true}
	m.used++
	return Neighbor{}, false, nil
}

func (m *BoundedStorage) Remove(addr netip.Addr) (Neighbor, bool) {
	for i := range m.slots {
		slot := &m.slots[i]
		if slot.occupied && slot.addr == addr {
			prev := slot.neighbor
			*slot = boundedSlot{}
			m.used--
			return prev, true
		}
	}
	return Neighbor{}, false
}

func (m *BoundedStorage) Clear() {
	clear(m.slots)
	m.used = 0
}

func (m *BoundedStorage) Len() int {
	return m.used
}

func (m *BoundedStorage) Growable() bool {
	return false
}

// All yields occupied slots in slot-index order, which keeps eviction
// tie-breaking deterministic for bounded storage.
func (m *BoundedStorage) All() iter.Seq2[netip.Addr, Neighbor] {
	return func(yield func(netip.Addr, Neighbor) bool) {
		for i := range m.slots {
			if m.slots[i].occupied && !yield(m.slots[i].addr, m.slots[i].neighbor) {
				return
			}
		}
	}
}

// MapStorage is growable storage backed by a map. Insert never fails
// and the cache never evicts from it.
type MapStorage struct {
	entries map[netip.Addr]Neighbor
}

// NewMapStorage creates empty growable storage.
func NewMapStorage() *MapStorage {
	return &MapStorage{entries: map[netip.Addr]Neighbor{}}
}

func (m *MapStorage) Get(addr netip.Addr) (Neighbor, bool) {
	n, ok := m.entries[addr]
	return n, ok
}

func (m *MapStorage) Insert(addr netip.Addr, n Neighbor) (Neighbor, bool, error) {
	prev, replaced := m.entries[addr]
	m.entries[addr] = n
	return prev, replaced, nil
}

func (m *MapStorage) Remove(addr netip.Addr) (Neighbor, bool) {
	prev, ok := m.entries[addr]
	if ok {
		delete(m.entries, addr)
	}
	return prev, ok
}

func (m *MapStorage) Clear() {
	clear(m.entries)
}

func (m *MapStorage) Len() int {
	return len(m.entries)
}

func (m *MapStorage) Growable() bool {
	return true
}

func (m *MapStorage) All() iter.Seq2[netip.Addr, Neighbor] {
	return maps.All(m.entries)
}
