// Package identity implements the opaque 128-bit identifiers (UtxoId,
// TokenId) that the scheduler hands UTXOs and tokens, plus the per-
// transaction table that lets WASM guest code carry them around as plain
// integer slots.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// UtxoId is a stable, opaque 128-bit identifier minted once per UTXO
// instance and never reused within a transaction. Its bytes
// carry no semantic meaning; only equality matters.
type UtxoId [16]byte

// NewUtxoId draws a fresh CSPRNG-filled identifier. google/uuid's v4
// generator is exactly "16 random bytes with the RFC 4122 version/variant
// bits set"; Starstream has no use for those reserved bits, so the raw
// 16 bytes are kept as-is rather than re-deriving them by hand.
func NewUtxoId() UtxoId {
	return UtxoId(uuid.New())
}

func (id UtxoId) String() string { return hex.EncodeToString(id[:]) }

// TokenId is the 128-bit identity minted when a token is bound into an
// output slot. It is distinct from Token.Kind (the uint64 semantic payload
// a contract assigns a token), which this package does not model — Kind is
// scheduler/ledger-facing data, not an identity.
type TokenId [16]byte

// NewTokenId draws a fresh CSPRNG-filled identifier, mirroring NewUtxoId.
func NewTokenId() TokenId {
	return TokenId(uuid.New())
}

func (id TokenId) String() string { return hex.EncodeToString(id[:]) }

// Table is the per-transaction registry that lets a 128-bit UtxoId/TokenId
// cross the WASM boundary as a plain i64 or externref slot without the
// guest ever seeing its real bytes. Every transaction owns exactly one
// Table; it is never shared across transactions ("everything
// transaction-local except the code cache").
//
// Two independent encodings are supported, mirroring the original
// implementation's to_wasm_i64 / to_wasm_externref split:
//
//   - Scramble: a random uint64 alias usable as a plain i64 value, for
//     dialects (coordination script) that only get integer slots.
//   - Handle: an externref-shaped opaque uint64, for dialects where the
//     original used a rich host object (wasmi/wasmtime ExternRef). wazero
//     has no equivalent object model, so Starstream treats externref as
//     just another table-backed handle rather than a typed host value —
//     a deliberate simplification documented alongside this type.
type Table struct {
	scrambledUtxos  map[uint64]UtxoId
	scrambledTokens map[uint64]TokenId

	handleUtxos  map[uint64]UtxoId
	handleTokens map[uint64]TokenId
	nextHandle   uint64
}

// NewTable constructs an empty identity table for one transaction.
func NewTable() *Table {
	return &Table{
		scrambledUtxos:  make(map[uint64]UtxoId),
		scrambledTokens: make(map[uint64]TokenId),
		handleUtxos:     make(map[uint64]UtxoId),
		handleTokens:    make(map[uint64]TokenId),
		nextHandle:      1, // 0 is reserved as "no handle" / WASM null
	}
}

func randomUint64() uint64 {
	var buf [8]byte
	// crypto/rand never fails on platforms Starstream targets; a failure
	// here indicates a broken kernel entropy source, not a recoverable
	// input error, so it is not worth threading through every call site.
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("identity: system randomness unavailable: %v", err))
	}
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v
}

// ScrambleUtxo registers id under a fresh random alias and returns that
// alias as the i64 value to hand to WASM.
func (t *Table) ScrambleUtxo(id UtxoId) int64 {
	s := randomUint64()
	t.scrambledUtxos[s] = id
	return int64(s)
}

// ResolveUtxoScramble reverses ScrambleUtxo. ok is false if the scrambled
// value was never registered (guest passed a forged or stale integer).
func (t *Table) ResolveUtxoScramble(scrambled int64) (UtxoId, bool) {
	id, ok := t.scrambledUtxos[uint64(scrambled)]
	return id, ok
}

// ScrambleToken mirrors ScrambleUtxo for TokenId.
func (t *Table) ScrambleToken(id TokenId) int64 {
	s := randomUint64()
	t.scrambledTokens[s] = id
	return int64(s)
}

// ResolveTokenScramble mirrors ResolveUtxoScramble for TokenId.
func (t *Table) ResolveTokenScramble(scrambled int64) (TokenId, bool) {
	id, ok := t.scrambledTokens[uint64(scrambled)]
	return id, ok
}

// HandleUtxo mints an opaque handle standing in for an externref carrying
// id. Unlike Scramble*, handles are sequential rather than random: nothing
// in the externref path relies on unguessability, only on uniqueness
// within the transaction.
func (t *Table) HandleUtxo(id UtxoId) uint64 {
	h := t.nextHandle
	t.nextHandle++
	t.handleUtxos[h] = id
	return h
}

// ResolveUtxoHandle reverses HandleUtxo.
func (t *Table) ResolveUtxoHandle(handle uint64) (UtxoId, bool) {
	id, ok := t.handleUtxos[handle]
	return id, ok
}

// HandleToken mirrors HandleUtxo for TokenId.
func (t *Table) HandleToken(id TokenId) uint64 {
	h := t.nextHandle
	t.nextHandle++
	t.handleTokens[h] = id
	return h
}

// ResolveTokenHandle mirrors ResolveUtxoHandle for TokenId.
func (t *Table) ResolveTokenHandle(handle uint64) (TokenId, bool) {
	id, ok := t.handleTokens[handle]
	return id, ok
}
