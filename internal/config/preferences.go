package config

import (
	"context"
	"fmt"

	"github.com/roach88/boardstore/internal/kv"
	"github.com/roach88/boardstore/internal/storeerr"
)

// PrefPrefix separates preference keys from record and index keys.
const PrefPrefix = "ntz_"

// DriverPref is the preference naming the driver that wrote the store.
const DriverPref = "driver"

// Backend is the part of the repository that preferences need.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Preferences reads and writes "ntz_" keys.
type Preferences struct {
	backend Backend
}

// NewPreferences returns preferences stored in b.
func NewPreferences(b Backend) *Preferences {
	return &Preferences{backend: b}
}

// PrefKey returns the backend key of preference name.
func PrefKey(name string) string { return PrefPrefix + name }

// Get returns preference name.
func (p *Preferences) Get(ctx context.Context, name string) (string, bool, error) {
	return p.backend.Get(ctx, PrefKey(name))
}

// Set stores preference name.
func (p *Preferences) Set(ctx context.Context, name, value string) error {
	return p.backend.Set(ctx, PrefKey(name), value)
}

// Remove deletes preference name.
func (p *Preferences) Remove(ctx context.Context, name string) error {
	return p.backend.Remove(ctx, PrefKey(name))
}

// CheckDriver compares the stored driver preference with active. An absent
// preference is written as active. A stored name that is not a known driver
// is UNKNOWN_DRIVER. The stored name is returned so callers can report a
// store written by another driver.
func (p *Preferences) CheckDriver(ctx context.Context, active string) (string, error) {
	stored, ok, err := p.Get(ctx, DriverPref)
	if err != nil {
		return "", err
	}
	if !ok {
		if err := p.Set(ctx, DriverPref, active); err != nil {
			return "", err
		}
		return active, nil
	}
	if !kv.IsDriver(stored) {
		return stored, storeerr.New(storeerr.KindConfiguration, storeerr.CodeUnknownDriver, "config.driver",
			fmt.Sprintf("store names unknown driver %q", stored))
	}
	return stored, nil
}
