// Package code content-addresses WASM contract blobs and caches their
// parsed wazero modules.
package code

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup by hash has no prior insertion.
	ErrNotFound = errors.New("code: not found")

	// ErrFixtureNotFound is returned by LoadDebugByName when no fixture was
	// ever registered under that name.
	ErrFixtureNotFound = errors.New("code: debug fixture not found")

	// ErrCompileFailed wraps a wazero compilation failure.
	ErrCompileFailed = errors.New("code: module compilation failed")
)

// WrapNotFound annotates ErrNotFound with the hash that was missing.
func WrapNotFound(hash Hash) error {
	return fmt.Errorf("%w: %s", ErrNotFound, hash)
}

// WrapCompileFailed annotates ErrCompileFailed with its cause.
func WrapCompileFailed(hash Hash, cause error) error {
	return fmt.Errorf("%w: hash=%s cause=%v", ErrCompileFailed, hash, cause)
}
