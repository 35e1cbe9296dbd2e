// Package repo is the registry of record types and the gateway to the
// key-value backend.
//
// A Repository owns:
//   - the registered schemas (type name -> *schema.Type)
//   - one memoized TypeIndex per type, loaded on first use
//   - the key conventions ("<type>_<id>" for records, "index_<type>" for indices)
//   - a synchronous lifecycle bus that record operations publish to
//
// All backend access goes through the Repository so key and value checks and
// debug logging happen in one place.
package repo

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/roach88/boardstore/internal/index"
	"github.com/roach88/boardstore/internal/kv"
	"github.com/roach88/boardstore/internal/schema"
	"github.com/roach88/boardstore/internal/storeerr"
)

// RecordKey returns the backend key of record id of type typ.
func RecordKey(typ, id string) string {
	return typ + "_" + id
}

// IndexKey returns the backend key of the index of typ.
func IndexKey(typ string) string {
	return index.Key(typ)
}

// Repository is the type registry and backend gateway.
//
// Thread-safety: safe for concurrent use.
type Repository struct {
	store  kv.Store
	logger *zap.Logger
	gen    index.IDGenerator
	driver string

	mu      sync.RWMutex
	types   map[string]*schema.Type
	order   []string
	indices map[string]*index.TypeIndex

	bus bus
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for backend debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithIDGenerator sets the generator indices mint record ids with.
func WithIDGenerator(g index.IDGenerator) Option {
	return func(r *Repository) {
		if g != nil {
			r.gen = g
		}
	}
}

// WithDriverName records the backend driver name for log fields.
func WithDriverName(name string) Option {
	return func(r *Repository) { r.driver = name }
}

// New creates a Repository over store with no types registered.
func New(store kv.Store, opts ...Option) *Repository {
	r := &Repository{
		store:   store,
		logger:  zap.NewNop(),
		gen:     index.UUIDGenerator{},
		driver:  "unknown",
		types:   make(map[string]*schema.Type),
		indices: make(map[string]*index.TypeIndex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Logger returns the repository logger.
func (r *Repository) Logger() *zap.Logger { return r.logger }

// Driver returns the backend driver name.
func (r *Repository) Driver() string { return r.driver }

// RegisterType adds a schema. Registering the same type name twice fails
// with DUPLICATE_TYPE.
func (r *Repository) RegisterType(t *schema.Type) error {
	if t == nil || t.Name == "" {
		return storeerr.New(storeerr.KindConfiguration, storeerr.CodeUnknownType, "repo.register", "type must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[t.Name]; ok {
		return storeerr.New(storeerr.KindConfiguration, storeerr.CodeDuplicateType, "repo.register",
			fmt.Sprintf("type %q is already registered", t.Name))
	}
	r.types[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Register registers every type in order, stopping at the first error.
func (r *Repository) Register(types ...*schema.Type) error {
	for _, t := range types {
		if err := r.RegisterType(t); err != nil {
			return err
		}
	}
	return nil
}

// Type returns the registered schema named name.
func (r *Repository) Type(name string) (*schema.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, storeerr.New(storeerr.KindConfiguration, storeerr.CodeUnknownType, "repo.type",
			fmt.Sprintf("type %q is not registered", name))
	}
	return t, nil
}

// Types returns the registered schemas in registration order.
func (r *Repository) Types() []*schema.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*schema.Type, len(r.order))
	for i, name := range r.order {
		out[i] = r.types[name]
	}
	return out
}

// RequireIndex returns the loaded index of typ, creating and loading it on
// first use. A failed load is retried on the next call.
func (r *Repository) RequireIndex(ctx context.Context, typ string) (*index.TypeIndex, error) {
	if _, err := r.Type(typ); err != nil {
		return nil, err
	}

	r.mu.Lock()
	ix, ok := r.indices[typ]
	if !ok {
		ix = index.New(r, typ, index.WithIDGenerator(r.gen), index.WithLogger(r.logger))
		r.indices[typ] = ix
	}
	r.mu.Unlock()

	if err := ix.Load(ctx); err != nil {
		return nil, err
	}
	return ix, nil
}

// TypeHasData reports whether typ has at least one indexed record.
func (r *Repository) TypeHasData(ctx context.Context, typ string) (bool, error) {
	ix, err := r.RequireIndex(ctx, typ)
	if err != nil {
		return false, err
	}
	return ix.Len() > 0, nil
}

// TypeList returns every id of typ in index order.
func (r *Repository) TypeList(ctx context.Context, typ string) ([]string, error) {
	ix, err := r.RequireIndex(ctx, typ)
	if err != nil {
		return nil, err
	}
	return ix.List(), nil
}

// Get reads key from the backend. ok is false if the key is absent.
func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, invalidKey("repo.get")
	}
	v, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return "", false, storeerr.Backend("repo.get", err)
	}
	r.logger.Debug("kv get", zap.String("key", key), zap.Bool("found", ok), zap.String("driver", r.driver))
	return v, ok, nil
}

// Set writes value under key. Empty keys fail with INVALID_KEY and values
// that are not valid UTF-8 with INVALID_VALUE.
func (r *Repository) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return invalidKey("repo.set")
	}
	if !utf8.ValidString(value) {
		return storeerr.New(storeerr.KindConfiguration, storeerr.CodeInvalidValue, "repo.set",
			fmt.Sprintf("value for %q is not valid UTF-8", key))
	}
	if err := r.store.Set(ctx, key, value); err != nil {
		return storeerr.Backend("repo.set", err)
	}
	r.logger.Debug("kv set", zap.String("key", key), zap.Int("bytes", len(value)), zap.String("driver", r.driver))
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (r *Repository) Remove(ctx context.Context, key string) error {
	if key == "" {
		return invalidKey("repo.remove")
	}
	if err := r.store.Remove(ctx, key); err != nil {
		return storeerr.Backend("repo.remove", err)
	}
	r.logger.Debug("kv remove", zap.String("key", key), zap.String("driver", r.driver))
	return nil
}

// Clear deletes every key in the backend and forgets the loaded indices.
func (r *Repository) Clear(ctx context.Context) error {
	if err := r.store.Clear(ctx); err != nil {
		return storeerr.Backend("repo.clear", err)
	}
	r.mu.Lock()
	r.indices = make(map[string]*index.TypeIndex)
	r.mu.Unlock()
	r.logger.Debug("kv clear", zap.String("driver", r.driver))
	return nil
}

// SizeInBytes reports the backend size estimate.
func (r *Repository) SizeInBytes(ctx context.Context) (int64, error) {
	n, err := r.store.SizeInBytes(ctx)
	if err != nil {
		return 0, storeerr.Backend("repo.size", err)
	}
	return n, nil
}

func invalidKey(op string) error {
	return storeerr.New(storeerr.KindConfiguration, storeerr.CodeInvalidKey, op, "key must not be empty")
}
