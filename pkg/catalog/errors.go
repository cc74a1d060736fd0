package catalog

import (
	"errors"
	"fmt"
)

// ErrCacheMiss is returned by a Store when no entry exists for a key.
var ErrCacheMiss = errors.New("catalog cache miss")

// CacheIOError is returned when the local cache store cannot be read or
// written. Reads treat it as a miss; writes log it and carry on.
type CacheIOError struct {
	Op  string // "read" or "write"
	Key string
	Err error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("catalog cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheIOError) Unwrap() error {
	return e.Err
}
