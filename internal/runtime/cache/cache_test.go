package cache

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandboxvm/scruntime/internal/ledger"
	"github.com/sandboxvm/scruntime/internal/runtime"
	"github.com/sandboxvm/scruntime/internal/runtime/metrics"
	"github.com/sandboxvm/scruntime/internal/testcontract"
	"github.com/sandboxvm/scruntime/types"
)

const testLimit = 1_000_000

func newEngine(t *testing.T) *runtime.Engine {
	t.Helper()
	ctx := context.Background()
	engine, err := runtime.NewEngine(ctx, testLimit, types.DefaultGasCosts())
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close(ctx) })
	return engine
}

func newCache(t *testing.T, opts Options) (*Cache, *runtime.Engine) {
	t.Helper()
	engine := newEngine(t)
	c, err := New(engine.Compile, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, engine
}

func save(t *testing.T, c *Cache, bytecode []byte) types.Checksum {
	t.Helper()
	cs, err := c.Save(bytecode)
	require.NoError(t, err)
	return cs
}

func acquire(t *testing.T, c *Cache, cs types.Checksum) {
	t.Helper()
	_, release, err := c.Acquire(context.Background(), cs)
	require.NoError(t, err)
	release()
}

func TestSaveLoad(t *testing.T) {
	c, _ := newCache(t, Options{MemoryCacheSize: 10, Logger: zerolog.Nop()})
	bytecode := testcontract.SetData()

	cs := save(t, c, bytecode)
	assert.Equal(t, types.ChecksumOf(bytecode), cs)
	again := save(t, c, bytecode)
	assert.Equal(t, cs, again)

	loaded, err := c.Load(cs)
	require.NoError(t, err)
	assert.Equal(t, bytecode, loaded)

	_, err = c.Save(nil)
	assert.ErrorIs(t, err, types.ErrEmptyBytecode)

	_, err = c.Load(types.ChecksumOf([]byte("unknown")))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcquireHitsAndMisses(t *testing.T) {
	c, engine := newCache(t, Options{MemoryCacheSize: 10})
	cs := save(t, c, testcontract.SetData())

	m, release, err := c.Acquire(context.Background(), cs)
	require.NoError(t, err)
	defer release()
	assert.True(t, m.HasFunction("main"))
	assert.Same(t, engine, m.Engine())

	acquire(t, c, cs)
	acquire(t, c, cs)
	assert.Equal(t, Stats{Hits: 2, Misses: 1, MemoryModules: 1}, c.Stats())

	_, _, err = c.Acquire(context.Background(), types.ChecksumOf([]byte("unknown")))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcquireDoesNotCacheCompileErrors(t *testing.T) {
	c, _ := newCache(t, Options{MemoryCacheSize: 10})
	cs := save(t, c, testcontract.SIMD())
	_, _, err := c.Acquire(context.Background(), cs)
	var compileErr *types.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, Stats{}, c.Stats())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newCache(t, Options{MemoryCacheSize: 2})
	a := save(t, c, testcontract.SetData())
	b := save(t, c, testcontract.Counter())
	d := save(t, c, testcontract.StartGas())

	acquire(t, c, a)
	acquire(t, c, b)
	acquire(t, c, a) // hit, b is now the oldest
	acquire(t, c, d) // evicts b
	assert.Equal(t, Stats{Hits: 1, Misses: 3, MemoryModules: 2}, c.Stats())

	acquire(t, c, a) // still cached
	acquire(t, c, b) // recompiled
	assert.Equal(t, Stats{Hits: 2, Misses: 4, MemoryModules: 2}, c.Stats())
}

func TestEvictedModuleStaysUsableWhileAcquired(t *testing.T) {
	ctx := context.Background()
	c, engine := newCache(t, Options{MemoryCacheSize: 1})
	a := save(t, c, testcontract.SetData())
	b := save(t, c, testcontract.Counter())

	m, release, err := c.Acquire(ctx, a)
	require.NoError(t, err)
	acquire(t, c, b) // evicts a

	l := ledger.NewMemory(ledger.Config{Caller: "AUcaller"}, zerolog.Nop())
	defer l.Close()
	rm := &runtime.RuntimeModule{Kind: runtime.GuestAssemblyScript, AS: m, Engine: engine}
	_, err = runtime.Run(ctx, rm, "main", nil, testLimit, l)
	require.NoError(t, err)
	release()
	release()

	value, err := l.RawGetData([]byte("foo"))
	require.NoError(t, err)
	assert.Equal(t, []byte("bar"), value)
}

func TestZeroSizeStillServesModules(t *testing.T) {
	c, _ := newCache(t, Options{MemoryCacheSize: 0})
	a := save(t, c, testcontract.SetData())
	b := save(t, c, testcontract.Counter())
	acquire(t, c, a)
	acquire(t, c, b)
	assert.Equal(t, 1, c.Stats().MemoryModules)
}

func TestPinning(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t, Options{MemoryCacheSize: 1})
	a := save(t, c, testcontract.SetData())
	b := save(t, c, testcontract.Counter())
	d := save(t, c, testcontract.StartGas())

	require.NoError(t, c.Pin(ctx, a))
	require.NoError(t, c.Pin(ctx, a))
	acquire(t, c, b)
	acquire(t, c, d)
	acquire(t, c, a)
	assert.Equal(t, Stats{Hits: 2, Misses: 3, PinnedModules: 1, MemoryModules: 1}, c.Stats())

	assert.ErrorIs(t, c.Remove(a), ErrPinned)
	c.Unpin(a)
	c.Unpin(a)
	assert.Equal(t, 0, c.Stats().PinnedModules)

	require.NoError(t, c.Remove(a))
	_, err := c.Load(a)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Remove(a), ErrNotFound)

	assert.ErrorIs(t, c.Pin(ctx, types.ChecksumOf([]byte("unknown"))), ErrNotFound)
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	engine := newEngine(t)
	bytecode := testcontract.Echo()

	c, err := New(engine.Compile, Options{BaseDir: dir, MemoryCacheSize: 1})
	require.NoError(t, err)
	cs := save(t, c, bytecode)
	require.NoError(t, c.Close(context.Background()))

	c, err = New(engine.Compile, Options{BaseDir: dir, MemoryCacheSize: 1})
	require.NoError(t, err)
	defer c.Close(context.Background())
	loaded, err := c.Load(cs)
	require.NoError(t, err)
	assert.Equal(t, bytecode, loaded)
	acquire(t, c, cs)
}

func TestBaseDirIsLocked(t *testing.T) {
	dir := t.TempDir()
	engine := newEngine(t)

	c, err := New(engine.Compile, Options{BaseDir: dir})
	require.NoError(t, err)
	_, err = New(engine.Compile, Options{BaseDir: dir})
	require.ErrorContains(t, err, "could not lock")

	require.NoError(t, c.Close(context.Background()))
	c, err = New(engine.Compile, Options{BaseDir: dir})
	require.NoError(t, err)
	require.NoError(t, c.Close(context.Background()))
}

func TestMetrics(t *testing.T) {
	m, err := metrics.New("test", prometheus.NewRegistry())
	require.NoError(t, err)
	c, _ := newCache(t, Options{MemoryCacheSize: 1, Metrics: m})
	a := save(t, c, testcontract.SetData())
	b := save(t, c, testcontract.Counter())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoredBytecodes))

	require.NoError(t, c.Pin(context.Background(), a))
	acquire(t, c, b)
	acquire(t, c, b)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CachedModules))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PinnedModules))

	c.Unpin(a)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEvictions))
	require.NoError(t, c.Remove(a))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoredBytecodes))
}
