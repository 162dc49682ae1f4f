// Package neighd wires the neighbour cache to the kernel neighbour
// table and runs the pair as a long-lived daemon.
package neighd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/softnet-platform/softnet/discovery"
	"github.com/softnet-platform/softnet/neigh"
)

// Daemon owns a neighbour cache and the monitor keeping it populated.
type Daemon struct {
	cfg     *Config
	cache   *neigh.Cache
	monitor *discovery.Monitor
	log     *zap.SugaredLogger
}

// NewDaemon creates a daemon from the given configuration.
func NewDaemon(cfg *Config, log *zap.SugaredLogger) (*Daemon, error) {
	storage, err := cfg.Cache.NewStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to build cache storage: %w", err)
	}

	cache := neigh.New(storage, neigh.WithLog(log))

	monitor, err := discovery.NewMonitor(cache,
		discovery.WithLog(log),
		discovery.WithUpdateInterval(cfg.Discovery.UpdateInterval),
		discovery.WithLinkPatterns(cfg.Discovery.Links...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build neighbour monitor: %w", err)
	}

	return &Daemon{
		cfg:     cfg,
		cache:   cache,
		monitor: monitor,
		log:     log,
	}, nil
}

// Cache returns the resolution table.
func (m *Daemon) Cache() *neigh.Cache {
	return m.cache
}

// Run runs the daemon until the specified context is canceled.
func (m *Daemon) Run(ctx context.Context) error {
	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return m.monitor.Run(ctx)
	})
	// A zero interval disables the periodic table summary.
	if m.cfg.Discovery.DumpInterval > 0 {
		wg.Go(func() error {
			return m.runTableDump(ctx)
		})
	}

	return wg.Wait()
}

func (m *Daemon) runTableDump(ctx context.Context) error {
	timer := time.NewTicker(m.cfg.Discovery.DumpInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			m.log.Infow("neighbour table", zap.Int("size", m.cache.Len()))
		}
	}
}
