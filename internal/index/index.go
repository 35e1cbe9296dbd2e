// Package index maintains the ordered list of record ids of one record type.
//
// The list is persisted as a JSON array of strings under "index_<type>".
// It is the sole source of enumeration and ordering for a type: records are
// listed in index order, and order only changes through Create (append),
// Reorder, and Delete.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/boardstore/internal/storeerr"
)

// KeyPrefix is prepended to the type name to form the index key.
const KeyPrefix = "index_"

// Key returns the backend key of the index of typ.
func Key(typ string) string {
	return KeyPrefix + typ
}

// Backend is the subset of the key-value store the index persists through.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// IDGenerator mints candidate record ids.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator mints random (version 4) UUIDs.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate returns a new hyphenated UUID string.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// TypeIndex is the ordered id list of one record type.
//
// Thread-safety: the id list is guarded by an internal mutex. Callers that
// need a create-write-persist sequence to be atomic with respect to other
// writers of the same type hold Lock/Unlock around it.
type TypeIndex struct {
	backend Backend
	typ     string
	gen     IDGenerator
	logger  *zap.Logger

	write sync.Mutex

	mu     sync.RWMutex
	ids    []string
	loaded bool
}

// Option configures a TypeIndex.
type Option func(*TypeIndex)

// WithIDGenerator overrides the id generator (default UUIDGenerator).
func WithIDGenerator(g IDGenerator) Option {
	return func(ix *TypeIndex) {
		if g != nil {
			ix.gen = g
		}
	}
}

// WithLogger sets the logger. nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(ix *TypeIndex) {
		if l != nil {
			ix.logger = l
		}
	}
}

// New creates an unloaded index for typ.
func New(backend Backend, typ string, opts ...Option) *TypeIndex {
	ix := &TypeIndex{
		backend: backend,
		typ:     typ,
		gen:     UUIDGenerator{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Type returns the record type this index belongs to.
func (ix *TypeIndex) Type() string { return ix.typ }

// Loaded reports whether Load has completed successfully.
func (ix *TypeIndex) Loaded() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.loaded
}

// Load reads the persisted id list. Subsequent calls are no-ops.
// An absent key yields an empty index. A payload that is not a JSON array of
// unique strings is a CORRUPT_INDEX error and leaves the index unloaded.
func (ix *TypeIndex) Load(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.loaded {
		return nil
	}

	raw, ok, err := ix.backend.Get(ctx, Key(ix.typ))
	if err != nil {
		return fmt.Errorf("load index %s: %w", ix.typ, err)
	}

	var ids []string
	if ok {
		ids, err = decodeIDs(raw)
		if err != nil {
			return storeerr.Wrap(storeerr.KindCorruption, storeerr.CodeCorruptIndex, "index.load",
				fmt.Sprintf("index of %q is not a JSON array of ids", ix.typ), err)
		}
		if dup, found := firstDuplicate(ids); found {
			return storeerr.New(storeerr.KindCorruption, storeerr.CodeCorruptIndex, "index.load",
				fmt.Sprintf("index of %q lists id %q more than once", ix.typ, dup))
		}
	}
	if ids == nil {
		ids = []string{}
	}

	ix.ids = ids
	ix.loaded = true
	ix.logger.Debug("index loaded", zap.String("type", ix.typ), zap.Int("size", len(ids)))
	return nil
}

// Create appends an id to the in-memory list and returns it. An empty id
// mints a fresh one, retrying until it does not collide. An explicit id that
// is already present fails with DUPLICATE_ID. Create does not persist.
func (ix *TypeIndex) Create(id string) (string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if id == "" {
		for {
			id = ix.gen.Generate()
			if !slices.Contains(ix.ids, id) {
				break
			}
		}
	} else if slices.Contains(ix.ids, id) {
		return "", storeerr.New(storeerr.KindConfiguration, storeerr.CodeDuplicateID, "index.create",
			fmt.Sprintf("id %q already exists in index of %q", id, ix.typ))
	}

	ix.ids = append(ix.ids, id)
	return id, nil
}

// Discard removes id from the in-memory list without persisting. It undoes
// a Create whose record write failed.
func (ix *TypeIndex) Discard(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.remove(id)
}

// Save persists the current list. Any failure is an INDEX_WRITE_FAILED
// error wrapping the cause.
func (ix *TypeIndex) Save(ctx context.Context) error {
	ix.mu.RLock()
	ids := slices.Clone(ix.ids)
	ix.mu.RUnlock()
	if ids == nil {
		ids = []string{}
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return storeerr.Wrap(storeerr.KindBackend, storeerr.CodeIndexWriteFailed, "index.save",
			fmt.Sprintf("encode index of %q", ix.typ), err)
	}
	if err := ix.backend.Set(ctx, Key(ix.typ), string(data)); err != nil {
		return storeerr.Wrap(storeerr.KindBackend, storeerr.CodeIndexWriteFailed, "index.save",
			fmt.Sprintf("write index of %q", ix.typ), err)
	}
	return nil
}

// Delete removes id and persists the list. Absent ids are a no-op. If the
// write fails the in-memory list is restored.
func (ix *TypeIndex) Delete(ctx context.Context, id string) error {
	ix.mu.Lock()
	before := slices.Clone(ix.ids)
	removed := ix.remove(id)
	ix.mu.Unlock()
	if !removed {
		return nil
	}
	return ix.saveOrRestore(ctx, before)
}

// Reorder moves subset to the end of the list in the given order, keeping the
// remaining ids in their original order, then persists. Ids in subset that
// the index does not contain are ignored; repeated ids count once.
//
//	[a b c].Reorder([b a]) => [c b a]
func (ix *TypeIndex) Reorder(ctx context.Context, subset []string) error {
	ix.mu.Lock()
	before := slices.Clone(ix.ids)
	present := make(map[string]bool, len(ix.ids))
	for _, id := range ix.ids {
		present[id] = true
	}

	moved := make([]string, 0, len(subset))
	inSubset := make(map[string]bool, len(subset))
	for _, id := range subset {
		if !present[id] || inSubset[id] {
			continue
		}
		inSubset[id] = true
		moved = append(moved, id)
	}

	next := make([]string, 0, len(ix.ids))
	for _, id := range ix.ids {
		if !inSubset[id] {
			next = append(next, id)
		}
	}
	ix.ids = append(next, moved...)
	ix.mu.Unlock()

	return ix.saveOrRestore(ctx, before)
}

// saveOrRestore persists the list and puts before back if that fails, so the
// in-memory list keeps matching the stored one. Callers hold the write lock.
func (ix *TypeIndex) saveOrRestore(ctx context.Context, before []string) error {
	if err := ix.Save(ctx); err != nil {
		ix.mu.Lock()
		ix.ids = before
		ix.mu.Unlock()
		return err
	}
	return nil
}

// List returns a copy of the ids in index order.
func (ix *TypeIndex) List() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return slices.Clone(ix.ids)
}

// Len returns the number of ids.
func (ix *TypeIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// Contains reports whether id is listed.
func (ix *TypeIndex) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return slices.Contains(ix.ids, id)
}

// Position returns the position of id, or -1.
func (ix *TypeIndex) Position(id string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return slices.Index(ix.ids, id)
}

// Each calls fn for every id in index order over a snapshot of the list,
// stopping at the first error.
func (ix *TypeIndex) Each(fn func(id string) error) error {
	for _, id := range ix.List() {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

// Lock acquires the per-type write lock.
func (ix *TypeIndex) Lock() { ix.write.Lock() }

// Unlock releases the per-type write lock.
func (ix *TypeIndex) Unlock() { ix.write.Unlock() }

// decodeIDs parses a stored index: a JSON array whose elements are all
// non-empty strings.
func decodeIDs(raw string) ([]string, error) {
	var elems []any
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, err
	}
	if elems == nil {
		return nil, errors.New("null is not an array")
	}
	ids := make([]string, len(elems))
	for i, e := range elems {
		s, ok := e.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("element %d is %v, not an id", i, e)
		}
		ids[i] = s
	}
	return ids, nil
}

// remove must be called with mu held.
func (ix *TypeIndex) remove(id string) bool {
	i := slices.Index(ix.ids, id)
	if i < 0 {
		return false
	}
	ix.ids = slices.Delete(ix.ids, i, i+1)
	return true
}

func firstDuplicate(ids []string) (string, bool) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id, true
		}
		seen[id] = struct{}{}
	}
	return "", false
}
