// Package discovery keeps a neighbour cache populated from the kernel
// neighbour table, both reactively via a netlink subscription and
// periodically via a full relist.
package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gobwas/glob"
	"github.com/vishvananda/netlink"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/softnet-platform/softnet/neigh"
	"github.com/softnet-platform/softnet/wire"
)

// Option is a function that configures the neighbour monitor.
type Option func(*options)

// WithUpdateInterval configures the monitor with a force-update
// interval.
func WithUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		o.UpdateInterval = interval
	}
}

// WithLinkPatterns restricts discovery to links whose name matches any
// of the given glob patterns. No patterns means all links.
func WithLinkPatterns(patterns ...string) Option {
	return func(o *options) {
		o.LinkPatterns = patterns
	}
}

// WithLog configures the monitor with a logger.
func WithLog(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.Log = log
	}
}

// WithClock overrides the monotonic millisecond clock used to stamp
// cache fills. Mainly useful in tests.
func WithClock(now func() int64) Option {
	return func(o *options) {
		o.Now = now
	}
}

type options struct {
	UpdateInterval time.Duration
	LinkPatterns   []string
	Log            *zap.SugaredLogger
	Now            func() int64
}

func newOptions() *options {
	return &options{
		UpdateInterval: 5 * time.Minute,
		Log:            zap.NewNop().Sugar(),
		Now:            monotonicMillis,
	}
}

var processStart = time.Now()

// monotonicMillis returns milliseconds elapsed since process start on
// the monotonic clock. The cache itself is clock-free; timestamps are
// sampled here, at the event boundary.
func monotonicMillis() int64 {
	return time.Since(processStart).Milliseconds()
}

// Monitor mirrors the kernel neighbour table into a neigh.Cache.
type Monitor struct {
	cache          *neigh.Cache
	updateInterval time.Duration
	links          []glob.Glob
	now            func() int64
	log            *zap.SugaredLogger
}

// NewMonitor creates a new neighbour monitor filling the given cache.
func NewMonitor(cache *neigh.Cache, options ...Option) (*Monitor, error) {
	opts := newOptions()
	for _, o := range options {
		o(opts)
	}

	links := make([]glob.Glob, 0, len(opts.LinkPatterns))
	for _, pattern := range opts.LinkPatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile link pattern %q: %w", pattern, err)
		}
		links = append(links, g)
	}

	return &Monitor{
		cache:          cache,
		updateInterval: opts.UpdateInterval,
		links:          links,
		now:            opts.Now,
		log:            opts.Log,
	}, nil
}

// Run runs the neighbour monitor until the specified context is
// canceled.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Debugf("starting neighbour monitor")
	defer m.log.Debugf("stopped neighbour monitor")

	if err := m.updateNeighbours(); err != nil {
		m.log.Warnw("failed to bootstrap neighbours", zap.Error(err))
	}

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return m.runSubscription(ctx)
	})
	wg.Go(func() error {
		return m.runPeriodicUpdate(ctx)
	})

	return wg.Wait()
}

func (m *Monitor) runSubscription(ctx context.Context) error {
	retry := backoff.ExponentialBackOff{
		InitialInterval:     backoff.DefaultInitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         time.Minute,
	}
	retry.Reset()

	for {
		updates := make(chan netlink.NeighUpdate, 1)
		opts := netlink.NeighSubscribeOptions{}
		if err := netlink.NeighSubscribeWithOptions(updates, ctx.Done(), opts); err != nil {
			delay := retry.NextBackOff()
			m.log.Warnw("failed to subscribe to neighbour updates",
				zap.Error(err),
				zap.Duration("retry_in", delay),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		retry.Reset()

		if err := m.consumeUpdates(ctx, updates); err != nil {
			return err
		}
		m.log.Warnf("neighbour subscription closed, resubscribing")
	}
}

func (m *Monitor) consumeUpdates(ctx context.Context, updates <-chan netlink.NeighUpdate) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			m.processUpdate(update)
		}
	}
}

func (m *Monitor) runPeriodicUpdate(ctx context.Context) error {
	timer := time.NewTicker(m.updateInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if err := m.updateNeighbours(); err != nil {
				m.log.Warnw("failed to update neighbours", zap.Error(err))
			}
		}
	}
}

func (m *Monitor) processUpdate(update netlink.NeighUpdate) {
	m.log.Debugw("processing neighbour update",
		zap.Int("link_index", update.LinkIndex),
		zap.Stringer("state", NeighbourState(update.State)),
		zap.Stringer("neighbour_addr", update.IP),
		zap.Stringer("neighbour_hardware_addr", update.HardwareAddr),
	)

	switch update.Type {
	case unix.RTM_NEWNEIGH:
		if err := m.updateNeighbours(); err != nil {
			m.log.Warnw("failed to update neighbours", zap.Error(err))
		}
	case unix.RTM_DELNEIGH:
		// Deletion events are ignored to avoid flaps: stale entries age
		// out of the cache on their own.
	default:
		m.log.Warnf("received unexpected neighbour update type: %d", update.Type)
	}
}

func (m *Monitor) updateNeighbours() error {
	neighs, err := netlink.NeighList(0, 0)
	if err != nil {
		return fmt.Errorf("failed to list neighbours: %w", err)
	}

	links, err := netlink.LinkList()
	if err != nil {
		return fmt.Errorf("failed to list links: %w", err)
	}

	linkNames := make(map[int]string, len(links))
	for _, link := range links {
		attrs := link.Attrs()
		linkNames[attrs.Index] = attrs.Name
	}

	timestamp := m.now()
	filled := 0
	for _, n := range neighs {
		entry, ok := entryFromNeigh(n, linkNames[n.LinkIndex], m.links)
		if !ok {
			continue
		}

		if err := m.cache.Fill(entry.Addr, entry.HardwareAddr, timestamp); err != nil {
			m.log.Warnw("failed to fill neighbour",
				zap.Stringer("addr", entry.Addr),
				zap.Stringer("hardware_addr", entry.HardwareAddr),
				zap.Error(err),
			)
			continue
		}

		m.log.Debugw("filled neighbour entry",
			zap.Stringer("addr", entry.Addr),
			zap.Stringer("hardware_addr", entry.HardwareAddr),
			zap.String("link", entry.Link),
			zap.Stringer("state", entry.State),
		)
		filled++
	}

	m.log.Infow("updated neighbour cache",
		zap.Int("filled", filled),
		zap.Int("size", m.cache.Len()),
	)
	return nil
}

// Entry is a kernel neighbour normalized for cache insertion.
type Entry struct {
	Addr         netip.Addr
	HardwareAddr wire.EthernetAddr
	Link         string
	State        NeighbourState
}

// entryFromNeigh converts a kernel neighbour into a cache entry.
// Unresolved states, non-EUI-48 addresses, non-unicast addresses and
// filtered-out links are all skipped.
func entryFromNeigh(n netlink.Neigh, linkName string, links []glob.Glob) (Entry, bool) {
	state := NeighbourState(n.State)
	if !state.Resolved() {
		return Entry{}, false
	}

	if len(links) > 0 && !matchAnyLink(links, linkName) {
		return Entry{}, false
	}

	addr, ok := netip.AddrFromSlice(n.IP)
	if !ok {
		return Entry{}, false
	}
	addr = addr.Unmap()

	hardwareAddr, err := wire.EthernetAddrFrom(n.HardwareAddr)
	if err != nil {
		return Entry{}, false
	}

	if !wire.IsUnicast(addr) || !hardwareAddr.IsUnicast() {
		return Entry{}, false
	}

	return Entry{
		Addr:         addr,
		HardwareAddr: hardwareAddr,
		Link:         linkName,
		State:        state,
	}, true
}

func matchAnyLink(links []glob.Glob, name string) bool {
	for _, g := range links {
		if g.Match(name) {
			return true
		}
	}
	return false
}
