package code

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash is the 32-byte content digest of a WASM blob. Equality defines
// content identity (CodeHash).
type Hash [32]byte

// HashOf computes the SHA-256 digest of a full WASM blob, matching the
// original's CodeHash::from_content (starstream_vm/src/code.rs) and the
// CodeHash passed through starstream_this_code.
func HashOf(wasm []byte) Hash {
	return Hash(sha256.Sum256(wasm))
}

// String renders the hash as lowercase hex, used both for display and as
// the bigcache/badger key.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ContractCode is an immutable (bytes, CodeHash) pair. A wazero engine-scoped
// parsed-module view is cached separately by CodeCache, since
// wazero.CompiledModule cannot be embedded in a value that must also be
// safe to share across engines.
type ContractCode struct {
	wasm []byte
	hash Hash
}

// NewContractCode hashes and wraps a raw WASM blob.
func NewContractCode(wasm []byte) *ContractCode {
	buf := make([]byte, len(wasm))
	copy(buf, wasm)
	return &ContractCode{wasm: buf, hash: HashOf(buf)}
}

// Hash returns the content digest.
func (c *ContractCode) Hash() Hash { return c.hash }

// Bytes returns the raw WASM bytes. Callers must not mutate the slice.
func (c *ContractCode) Bytes() []byte { return c.wasm }
