package code

import (
	"context"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/tetratelabs/wazero"

	"github.com/PaimaStudios/starstream/internal/platform/logging"
)

// Cache is the process-wide, content-addressed store of WASM blobs. It
// memoizes two things independently:
//
//   - raw WASM bytes, keyed by Hash, in a bigcache.BigCache so concurrent
//     readers never block each other and entries expire under memory
//     pressure without pinning the whole contract set resident forever;
//   - a parsed wazero.CompiledModule per (engine, Hash), in a sync.Map,
//     because a compiled module is tied to the wazero.Runtime that produced
//     it and cannot be serialized into bigcache's []byte entries.
//
// A CodeCache never hands out a mutable view of either.
type Cache struct {
	logger logging.Logger

	bytesByHash *bigcache.BigCache
	compiled    sync.Map // key: compiledKey -> wazero.CompiledModule

	fixtures *badgerdb.DB // optional; nil disables LoadDebugByName persistence
}

type compiledKey struct {
	engine uintptr
	hash   Hash
}

// Config controls Cache construction.
type Config struct {
	// EntryLifeWindow bounds how long a raw-bytes entry survives without
	// being touched again. Zero disables expiry.
	EntryLifeWindow time.Duration
	// FixturesDir, if non-empty, backs LoadDebugByName with an on-disk
	// badger store so fixtures survive process restarts during iterative
	// contract development (a test-fixture-only loader).
	FixturesDir string
}

// DefaultConfig mirrors the usual bigcache defaults (a multi-minute
// life window sized for an interactive development loop, not production
// serving).
func DefaultConfig() Config {
	return Config{EntryLifeWindow: 10 * time.Minute}
}

// NewCache constructs a Cache. The badger-backed fixture store is optional:
// when cfg.FixturesDir is empty, LoadDebugByName always returns
// ErrFixtureNotFound.
func NewCache(cfg Config, logger logging.Logger) (*Cache, error) {
	bcCfg := bigcache.DefaultConfig(cfg.EntryLifeWindow)
	bc, err := bigcache.New(context.Background(), bcCfg)
	if err != nil {
		return nil, WrapCompileFailed(Hash{}, err)
	}

	c := &Cache{logger: logger, bytesByHash: bc}

	if cfg.FixturesDir != "" {
		opts := badgerdb.DefaultOptions(cfg.FixturesDir)
		opts.Logger = nil
		db, err := badgerdb.Open(opts)
		if err != nil {
			return nil, err
		}
		c.fixtures = db
	}

	return c, nil
}

// Close releases the fixture store, if one was opened.
func (c *Cache) Close() error {
	if c.fixtures != nil {
		return c.fixtures.Close()
	}
	return nil
}

// LoadFromBytes hashes wasm, inserts it (deduplicating on hash), and returns
// the resulting ContractCode.
func (c *Cache) LoadFromBytes(wasm []byte) (*ContractCode, error) {
	cc := NewContractCode(wasm)
	if err := c.bytesByHash.Set(cc.Hash().String(), cc.Bytes()); err != nil {
		return nil, err
	}
	return cc, nil
}

// Get looks up a previously inserted blob by hash.
func (c *Cache) Get(hash Hash) (*ContractCode, error) {
	raw, err := c.bytesByHash.Get(hash.String())
	if err != nil {
		if err == bigcache.ErrEntryNotFound {
			return nil, WrapNotFound(hash)
		}
		return nil, err
	}
	return NewContractCode(raw), nil
}

// LoadDebugByName loads a named fixture, consulting the badger-backed store
// first (if configured) before falling back to ErrFixtureNotFound. Test
// code registers fixtures via RegisterFixture; this is never used on a
// production execution path.
func (c *Cache) LoadDebugByName(name string) (*ContractCode, error) {
	if c.fixtures == nil {
		return nil, ErrFixtureNotFound
	}
	var raw []byte
	err := c.fixtures.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte("fixture/" + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, ErrFixtureNotFound
	}
	if err != nil {
		return nil, err
	}
	cc, err := c.LoadFromBytes(raw)
	if err != nil {
		return nil, err
	}
	return cc, nil
}

// RegisterFixture stores wasm under name for later LoadDebugByName lookups.
// Requires the cache to have been constructed with a FixturesDir.
func (c *Cache) RegisterFixture(name string, wasm []byte) error {
	if c.fixtures == nil {
		return ErrFixtureNotFound
	}
	return c.fixtures.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte("fixture/"+name), wasm)
	})
}

// CompiledModule returns the parsed module for cc under engine, compiling
// and memoizing it on first use.
func (c *Cache) CompiledModule(ctx context.Context, engine wazero.Runtime, cc *ContractCode) (wazero.CompiledModule, error) {
	key := compiledKey{engine: runtimeIdentity(engine), hash: cc.Hash()}
	if v, ok := c.compiled.Load(key); ok {
		return v.(wazero.CompiledModule), nil
	}

	mod, err := engine.CompileModule(ctx, cc.Bytes())
	if err != nil {
		return nil, WrapCompileFailed(cc.Hash(), err)
	}

	// Another goroutine may have compiled the same (engine, hash) first;
	// either outcome is fine, but surface exactly one winner so callers
	// never see two distinct CompiledModule values alive for the same key.
	actual, loaded := c.compiled.LoadOrStore(key, mod)
	if loaded {
		_ = mod.Close(ctx)
		return actual.(wazero.CompiledModule), nil
	}
	return mod, nil
}

// runtimeIdentity distinguishes compiled-module cache entries across
// independent wazero.Runtime instances (e.g. one per transaction's Engine
// in tests) without requiring wazero.Runtime to be comparable.
func runtimeIdentity(r wazero.Runtime) uintptr {
	return identityOf(r)
}
