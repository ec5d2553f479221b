// Package memory provides in-memory implementations of storage ports.
package memory

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/metercore/metercore/domain/ratelimit"
	"github.com/metercore/metercore/ports"
)

// windowEntry pairs a credential's window with its last-access time so idle
// entries can be swept.
type windowEntry struct {
	state    ratelimit.WindowState
	lastSeen time.Time
}

// windowShard is a single shard of the window store.
type windowShard struct {
	mu      sync.Mutex
	entries map[string]windowEntry
}

// WindowStore is a sharded in-memory implementation of ports.WindowStore.
// Sharding reduces lock contention; a background sweep evicts windows idle
// longer than IdleTTL so the per-credential map cannot grow without bound.
type WindowStore struct {
	shards    []*windowShard
	numShards int
	sweep     *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
	idleTTL   time.Duration
}

// WindowStoreConfig configures the window store.
type WindowStoreConfig struct {
	NumShards     int           // Number of shards (default: 32)
	SweepInterval time.Duration // How often to evict idle windows (default: 5m)
	IdleTTL       time.Duration // Evict windows untouched this long (default: 48h)
}

// NewWindowStore creates a sharded in-memory window store.
func NewWindowStore(cfg WindowStoreConfig) *WindowStore {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 32
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 48 * time.Hour
	}

	s := &WindowStore{
		shards:    make([]*windowShard, cfg.NumShards),
		numShards: cfg.NumShards,
		done:      make(chan struct{}),
		idleTTL:   cfg.IdleTTL,
	}
	for i := range s.shards {
		s.shards[i] = &windowShard{entries: make(map[string]windowEntry)}
	}

	s.sweep = time.NewTicker(cfg.SweepInterval)
	go s.sweepLoop()

	return s
}

func (s *WindowStore) shard(credential string) *windowShard {
	h := fnv.New32a()
	h.Write([]byte(credential))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// Admit runs roll-check-increment for one credential under its shard lock.
// The whole sequence is one critical section: a concurrent caller can never
// observe a half-rolled window.
func (s *WindowStore) Admit(credential string, p ratelimit.Policy, now time.Time) (ratelimit.Decision, error) {
	shard := s.shard(credential)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry := shard.entries[credential]
	decision, newState := ratelimit.Check(entry.state, p, now)
	shard.entries[credential] = windowEntry{state: newState, lastSeen: now}

	return decision, nil
}

// Snapshot returns the current window for a credential, if one exists.
func (s *WindowStore) Snapshot(credential string) (ratelimit.WindowState, bool) {
	shard := s.shard(credential)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[credential]
	return entry.state, ok
}

// Len returns the total number of live windows across all shards.
func (s *WindowStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		total += len(shard.entries)
		shard.mu.Unlock()
	}
	return total
}

func (s *WindowStore) sweepLoop() {
	for {
		select {
		case <-s.sweep.C:
			s.doSweep(time.Now())
		case <-s.done:
			return
		}
	}
}

// doSweep evicts windows untouched for longer than the idle TTL.
func (s *WindowStore) doSweep(now time.Time) {
	cutoff := now.Add(-s.idleTTL)
	for _, shard := range s.shards {
		shard.mu.Lock()
		for credential, entry := range shard.entries {
			if entry.lastSeen.Before(cutoff) {
				delete(shard.entries, credential)
			}
		}
		shard.mu.Unlock()
	}
}

// Sweep runs one eviction pass at the given instant (for testing).
func (s *WindowStore) Sweep(now time.Time) {
	s.doSweep(now)
}

// Close stops the sweep goroutine.
func (s *WindowStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.sweep.Stop()
	})
	return nil
}

// Ensure interface compliance.
var _ ports.WindowStore = (*WindowStore)(nil)
