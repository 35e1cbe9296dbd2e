package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Pebble is a Store backed by a pebble LSM database directory.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a pebble database in the directory at path.
func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}
	return &Pebble{db: db}, nil
}

// Get implements Store.
func (p *Pebble) Get(_ context.Context, key string) (string, bool, error) {
	val, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pebble get %q: %w", key, err)
	}
	// val is only valid until closer.Close
	value := string(val)
	if err := closer.Close(); err != nil {
		return "", false, fmt.Errorf("pebble get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements Store.
func (p *Pebble) Set(_ context.Context, key, value string) error {
	if err := p.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %q: %w", key, err)
	}
	return nil
}

// Remove implements Store.
func (p *Pebble) Remove(_ context.Context, key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("pebble remove %q: %w", key, err)
	}
	return nil
}

// Clear implements Store. Valid UTF-8 never contains 0xff, so the range
// covers every string key.
func (p *Pebble) Clear(_ context.Context) error {
	if err := p.db.DeleteRange([]byte{}, []byte{0xff}, pebble.Sync); err != nil {
		return fmt.Errorf("pebble clear: %w", err)
	}
	return nil
}

// SizeInBytes implements Store. Reports on-disk usage including WAL and
// obsolete tables awaiting compaction.
func (p *Pebble) SizeInBytes(_ context.Context) (int64, error) {
	return int64(p.db.Metrics().DiskSpaceUsage()), nil
}

// Close implements Store.
func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
