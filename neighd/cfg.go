package neighd

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"github.com/softnet-platform/softnet/logging"
	"github.com/softnet-platform/softnet/neigh"
)

// StorageMode selects the cache storage discipline.
type StorageMode string

const (
	// StorageBounded is fixed-capacity storage with eviction.
	StorageBounded StorageMode = "bounded"
	// StorageGrowable is storage that grows on demand and never evicts.
	StorageGrowable StorageMode = "growable"
)

// Config is the daemon configuration.
type Config struct {
	// Logging configuration.
	Logging logging.Config `yaml:"logging"`
	// Cache sizing.
	Cache CacheConfig `yaml:"cache"`
	// Discovery tuning.
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// CacheConfig sizes the neighbour cache.
type CacheConfig struct {
	// Storage is the storage discipline, "bounded" or "growable".
	Storage StorageMode `yaml:"storage"`
	// Capacity is the entry count for bounded storage.
	Capacity int `yaml:"capacity"`
	// MemoryLimit alternatively derives the capacity from a memory
	// budget. Capacity wins when both are set.
	MemoryLimit datasize.ByteSize `yaml:"memory_limit"`
}

// DiscoveryConfig tunes the kernel neighbour monitor.
type DiscoveryConfig struct {
	// UpdateInterval is the period of full neighbour table relists.
	UpdateInterval time.Duration `yaml:"update_interval"`
	// DumpInterval is the period of table summary log lines. Zero
	// disables the summary.
	DumpInterval time.Duration `yaml:"dump_interval"`
	// Links restricts discovery to links whose name matches any of the
	// given glob patterns. Empty means all links.
	Links []string `yaml:"links"`
}

// DefaultConfig returns the configuration used when the file omits a
// setting.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Storage:  StorageBounded,
			Capacity: 512,
		},
		Discovery: DiscoveryConfig{
			UpdateInterval: 5 * time.Minute,
			DumpInterval:   time.Minute,
		},
	}
}

// LoadConfig loads configuration from a YAML file at the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	return cfg, nil
}

// slotFootprint approximates the in-memory size of one bounded cache
// slot. It is only used to derive a capacity from a memory budget.
const slotFootprint = 64

// NewStorage builds cache storage per the configuration. Bounded
// storage without a usable capacity is a fatal configuration error.
func (m *CacheConfig) NewStorage() (neigh.Storage, error) {
	switch m.Storage {
	case StorageGrowable:
		return neigh.NewMapStorage(), nil
	case StorageBounded:
		capacity := m.Capacity
		if capacity == 0 && m.MemoryLimit > 0 {
			capacity = int(m.MemoryLimit.Bytes() / slotFootprint)
		}

		storage, err := neigh.NewBoundedStorage(capacity)
		if err != nil {
			return nil, fmt.Errorf("failed to build bounded storage: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", m.Storage)
	}
}
