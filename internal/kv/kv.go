package kv

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/boardstore/internal/storeerr"
)

// Store is the asynchronous-in-spirit key-value backend.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key. ok is false if the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear deletes every key in the backend.
	Clear(ctx context.Context) error

	// SizeInBytes reports the approximate space used by the backend.
	SizeInBytes(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverPebble = "pebble"
)

// Drivers returns the known driver names in sorted order.
func Drivers() []string {
	names := []string{DriverMemory, DriverSQLite, DriverPebble}
	sort.Strings(names)
	return names
}

// IsDriver reports whether name is a known driver.
func IsDriver(name string) bool {
	for _, d := range Drivers() {
		if d == name {
			return true
		}
	}
	return false
}

// Open opens the backend named by driver at path.
// path is ignored by the memory driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverPebble:
		return OpenPebble(path)
	default:
		return nil, storeerr.New(storeerr.KindConfiguration, storeerr.CodeUnknownDriver, "kv.open",
			fmt.Sprintf("unknown storage driver %q: must be one of %v", driver, Drivers()))
	}
}
