// Package cache keeps compiled modules in memory, keyed by the checksum of
// their bytecode, and stores the bytecode itself in a key/value database.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/btree"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/sandboxvm/scruntime/internal/runtime"
	"github.com/sandboxvm/scruntime/internal/runtime/metrics"
	"github.com/sandboxvm/scruntime/types"
)

var (
	// ErrNotFound is returned for a checksum the cache never saw.
	ErrNotFound = errors.New("code not found")
	// ErrPinned is returned when removing a pinned module.
	ErrPinned = errors.New("code is pinned")
)

const (
	lockFileName = "exclusive.lock"
	storeName    = "code"
)

// Compiler turns bytecode into a compiled module.
type Compiler func(ctx context.Context, bytecode []byte) (*runtime.ASModule, error)

// Options configures a Cache.
type Options struct {
	// BaseDir persists bytecode under BaseDir when set. The directory is
	// locked for the lifetime of the cache.
	BaseDir string
	// MemoryCacheSize is the number of unpinned modules kept compiled.
	MemoryCacheSize int
	Logger          zerolog.Logger
	Metrics         *metrics.Metrics
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	Hits          uint64
	Misses        uint64
	PinnedModules int
	MemoryModules int
}

type entry struct {
	checksum types.Checksum
	module   *runtime.ASModule
	pinned   bool
	hits     uint32
	// seq orders unpinned entries from least to most recently used.
	seq     uint64
	refs    int
	evicted bool
}

func lessBySeq(a, b *entry) bool { return a.seq < b.seq }

// Cache manages compiled modules.
type Cache struct {
	mu      sync.Mutex
	compile Compiler
	size    int
	logger  zerolog.Logger
	metrics *metrics.Metrics

	store    dbm.DB
	lockfile *os.File

	entries map[types.Checksum]*entry
	recent  *btree.BTreeG[*entry]
	seq     uint64
	hits    uint64
	misses  uint64
}

// New opens a cache. Without a base directory bytecode only lives in memory.
func New(compile Compiler, opts Options) (*Cache, error) {
	c := &Cache{
		compile: compile,
		size:    opts.MemoryCacheSize,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		entries: make(map[types.Checksum]*entry),
		recent:  btree.NewG(2, lessBySeq),
	}
	if opts.BaseDir == "" {
		c.store = dbm.NewMemDB()
		return c, nil
	}

	if err := os.MkdirAll(opts.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create base directory: %w", err)
	}
	lockPath := filepath.Join(opts.BaseDir, lockFileName)
	lf, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", lockFileName, err)
	}
	if _, err := lf.WriteString("lock preventing two VMs from using this directory concurrently\n"); err != nil {
		lf.Close()
		return nil, fmt.Errorf("error writing to %s: %w", lockFileName, err)
	}
	if err := unix.Flock(int(lf.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lf.Close()
		return nil, fmt.Errorf("could not lock %s, is another VM running in the same directory? %w", lockFileName, err)
	}
	store, err := dbm.NewDB(storeName, dbm.GoLevelDBBackend, opts.BaseDir)
	if err != nil {
		lf.Close()
		return nil, fmt.Errorf("could not open code store: %w", err)
	}
	c.store = store
	c.lockfile = lf

	if c.metrics != nil {
		n, err := countKeys(store)
		if err != nil {
			_ = c.Close(context.Background())
			return nil, err
		}
		c.metrics.StoredBytecodes.Set(float64(n))
	}
	return c, nil
}

func countKeys(db dbm.DB) (int, error) {
	it, err := db.Iterator(nil, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	n := 0
	for ; it.Valid(); it.Next() {
		n++
	}
	return n, it.Error()
}

// Save stores bytecode and returns its checksum. Saving the same bytecode
// twice is a no-op.
func (c *Cache) Save(bytecode []byte) (types.Checksum, error) {
	if len(bytecode) == 0 {
		return types.Checksum{}, types.ErrEmptyBytecode
	}
	checksum := types.ChecksumOf(bytecode)

	c.mu.Lock()
	defer c.mu.Unlock()
	exists, err := c.store.Has(checksum.Bytes())
	if err != nil {
		return types.Checksum{}, err
	}
	if exists {
		return checksum, nil
	}
	if err := c.store.SetSync(checksum.Bytes(), bytecode); err != nil {
		return types.Checksum{}, fmt.Errorf("failed to store code: %w", err)
	}
	if c.metrics != nil {
		c.metrics.StoredBytecodes.Inc()
	}
	return checksum, nil
}

// Load returns the bytecode stored under checksum.
func (c *Cache) Load(checksum types.Checksum) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(checksum)
}

func (c *Cache) load(checksum types.Checksum) ([]byte, error) {
	code, err := c.store.Get(checksum.Bytes())
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, checksum)
	}
	return code, nil
}

// Acquire returns the compiled module for checksum, compiling it on a miss.
// The module stays valid until release is called, even if evicted meanwhile.
func (c *Cache) Acquire(ctx context.Context, checksum types.Checksum) (*runtime.ASModule, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.get(ctx, checksum)
	if err != nil {
		return nil, nil, err
	}
	e.refs++
	var once sync.Once
	release := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			e.refs--
			if e.evicted && e.refs == 0 {
				c.closeModule(e)
			}
		})
	}
	return e.module, release, nil
}

func (c *Cache) get(ctx context.Context, checksum types.Checksum) (*entry, error) {
	if e, ok := c.entries[checksum]; ok {
		c.hits++
		e.hits++
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		c.touch(e)
		return e, nil
	}

	code, err := c.load(checksum)
	if err != nil {
		return nil, err
	}
	module, err := c.compile(ctx, code)
	if err != nil {
		return nil, err
	}
	c.misses++
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
	e := &entry{checksum: checksum, module: module}
	c.entries[checksum] = e
	c.touch(e)
	c.evict(e)
	c.updateGauges()
	c.logger.Debug().Str("checksum", checksum.String()).Msg("module compiled")
	return e, nil
}

// touch marks an unpinned entry as the most recently used.
func (c *Cache) touch(e *entry) {
	if e.pinned {
		return
	}
	c.recent.Delete(e)
	c.seq++
	e.seq = c.seq
	c.recent.ReplaceOrInsert(e)
}

// evict drops least recently used entries above the budget. keep, the entry
// being handed out, is never dropped.
func (c *Cache) evict(keep *entry) {
	for c.recent.Len() > c.size {
		e, ok := c.recent.DeleteMin()
		if !ok {
			return
		}
		if e == keep {
			c.recent.ReplaceOrInsert(e)
			return
		}
		c.drop(e)
		if c.metrics != nil {
			c.metrics.CacheEvictions.Inc()
		}
		c.logger.Debug().Str("checksum", e.checksum.String()).Uint32("hits", e.hits).Msg("module evicted")
	}
}

// drop removes e from the index and closes it once no caller holds it.
func (c *Cache) drop(e *entry) {
	delete(c.entries, e.checksum)
	e.evicted = true
	if e.refs == 0 {
		c.closeModule(e)
	}
}

func (c *Cache) closeModule(e *entry) {
	if err := e.module.Compiled.Close(context.Background()); err != nil {
		c.logger.Warn().Err(err).Str("checksum", e.checksum.String()).Msg("failed to close module")
	}
}

// Pin keeps the module for checksum compiled until Unpin, outside the LRU budget.
func (c *Cache) Pin(ctx context.Context, checksum types.Checksum) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.get(ctx, checksum)
	if err != nil {
		return err
	}
	if !e.pinned {
		c.recent.Delete(e)
		e.pinned = true
	}
	c.updateGauges()
	return nil
}

// Unpin returns the module to the LRU budget. Unpinning an unknown or
// unpinned checksum is a no-op.
func (c *Cache) Unpin(checksum types.Checksum) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[checksum]
	if !ok || !e.pinned {
		return
	}
	e.pinned = false
	c.touch(e)
	c.evict(nil)
	c.updateGauges()
}

// Remove deletes the bytecode and compiled module for checksum.
func (c *Cache) Remove(checksum types.Checksum) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[checksum]; ok {
		if e.pinned {
			return ErrPinned
		}
		c.recent.Delete(e)
		c.drop(e)
	}
	exists, err := c.store.Has(checksum.Bytes())
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, checksum)
	}
	if err := c.store.DeleteSync(checksum.Bytes()); err != nil {
		return fmt.Errorf("failed to remove code: %w", err)
	}
	if c.metrics != nil {
		c.metrics.StoredBytecodes.Dec()
	}
	c.updateGauges()
	return nil
}

// Stats returns the current cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		PinnedModules: len(c.entries) - c.recent.Len(),
		MemoryModules: c.recent.Len(),
	}
}

func (c *Cache) updateGauges() {
	if c.metrics == nil {
		return
	}
	c.metrics.CachedModules.Set(float64(len(c.entries)))
	c.metrics.PinnedModules.Set(float64(len(c.entries) - c.recent.Len()))
}

// Close closes the code store and releases the directory lock. Compiled
// modules are released with the engine that compiled them.
func (c *Cache) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.store.Close()
	if c.lockfile != nil {
		c.lockfile.Close()
		c.lockfile = nil
	}
	c.entries = make(map[types.Checksum]*entry)
	c.recent.Clear(false)
	return err
}
