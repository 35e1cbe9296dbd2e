// Package view provides the query and command layer over stored records.
//
// A ViewCache loads each record type once per session and serves queries
// from memory. Commands that change the tree (create, cascade delete,
// reorder) go through the cache so it stays consistent with the store.
package view

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/boardstore/internal/record"
	"github.com/roach88/boardstore/internal/repo"
	"github.com/roach88/boardstore/internal/schema"
	"github.com/roach88/boardstore/internal/storeerr"
)

// Query is an equality conjunction over record fields. The key "id"
// matches the record id.
type Query map[string]any

// Matches reports whether rec satisfies every condition in q.
func (q Query) Matches(rec *record.Record) bool {
	for k, want := range q {
		var got any
		if k == schema.IDField {
			got = rec.ID()
		} else {
			got = rec.Get(k)
		}
		if !equalValue(got, want) {
			return false
		}
	}
	return true
}

// ViewCache caches the records of each type in index order.
//
// Thread-safety: the cache maps are safe for concurrent use and concurrent
// first loads of a type share one backend read. The records themselves
// follow record.Record's ownership rules.
type ViewCache struct {
	repo   *repo.Repository
	logger *zap.Logger
	loads  singleflight.Group

	mu    sync.RWMutex
	cache map[string][]*record.Record
}

// Option configures a ViewCache.
type Option func(*ViewCache)

// WithLogger sets the logger. Default: the repository's logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *ViewCache) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates an empty ViewCache over r.
func New(r *repo.Repository, opts ...Option) *ViewCache {
	v := &ViewCache{
		repo:   r,
		logger: r.Logger(),
		cache:  make(map[string][]*record.Record),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Repo returns the underlying repository.
func (v *ViewCache) Repo() *repo.Repository { return v.repo }

// GetModels returns the records of typ matching q. The first call for a type
// loads every stored record and attaches parent to those whose rel is
// parent's id. A nil or empty q returns the cached slice itself; callers must
// not modify it. Later deletes and reorders replace the cached slice rather
// than change a slice already handed out.
func (v *ViewCache) GetModels(ctx context.Context, typ string, parent *record.Record, q Query) ([]*record.Record, error) {
	recs, err := v.load(ctx, typ, parent)
	if err != nil {
		return nil, err
	}
	if len(q) == 0 {
		return recs, nil
	}
	var out []*record.Record
	for _, rec := range recs {
		if q.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// First returns the first record of typ matching q, or nil.
func (v *ViewCache) First(ctx context.Context, typ string, q Query) (*record.Record, error) {
	recs, err := v.GetModels(ctx, typ, nil, q)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (v *ViewCache) cached(typ string) ([]*record.Record, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	recs, ok := v.cache[typ]
	return recs, ok
}

func (v *ViewCache) load(ctx context.Context, typ string, parent *record.Record) ([]*record.Record, error) {
	if recs, ok := v.cached(typ); ok {
		return recs, nil
	}
	_, err, _ := v.loads.Do(typ, func() (any, error) {
		if _, ok := v.cached(typ); ok {
			return nil, nil
		}
		recs, err := record.List(ctx, v.repo, typ, parent)
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		v.cache[typ] = recs
		v.mu.Unlock()
		v.logger.Debug("type loaded", zap.String("type", typ), zap.Int("records", len(recs)))
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	recs, _ := v.cached(typ)
	return recs, nil
}

// LoadModelsParent attaches to each record without a parent the first
// record of the parent type whose id equals its rel.
func (v *ViewCache) LoadModelsParent(ctx context.Context, recs ...*record.Record) error {
	for _, rec := range recs {
		if rec.Parent() != nil || rec.Schema().IsRoot() || rec.Rel() == "" {
			continue
		}
		p, err := v.First(ctx, rec.Schema().Parent, Query{schema.IDField: rec.Rel()})
		if err != nil {
			return err
		}
		if p != nil {
			rec.SetParent(p)
		}
	}
	return nil
}

// CreateModel creates and saves a record of typ. parent, if given, sets rel;
// importID, if given, forces the id.
func (v *ViewCache) CreateModel(ctx context.Context, typ string, data map[string]any, parent *record.Record, importID string) (*record.Record, error) {
	rec, err := record.New(v.repo, typ, nil)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		rec.SetParent(parent)
	}
	if err := rec.Assign(data); err != nil {
		return nil, err
	}
	if importID != "" {
		rec.SetImportID(importID)
	}
	if err := v.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateModel assigns data to rec and saves it.
func (v *ViewCache) UpdateModel(ctx context.Context, rec *record.Record, data map[string]any) error {
	if err := rec.Assign(data); err != nil {
		return err
	}
	return v.Save(ctx, rec)
}

// Save saves rec. A record created by the save joins the cached records of
// its type.
func (v *ViewCache) Save(ctx context.Context, rec *record.Record) error {
	if rec.ID() != "" {
		return rec.Save(ctx)
	}
	if _, err := v.load(ctx, rec.Type(), nil); err != nil {
		return err
	}
	if err := rec.Save(ctx); err != nil {
		return err
	}
	if rec.ID() == "" {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	recs := v.cache[rec.Type()]
	if !slices.ContainsFunc(recs, func(c *record.Record) bool { return c.ID() == rec.ID() }) {
		v.cache[rec.Type()] = append(recs, rec)
	}
	return nil
}

// evict drops rec, or the cached record with the id rec had before it was
// deleted.
func (v *ViewCache) evict(rec *record.Record, id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	recs := v.cache[rec.Type()]
	if i := slices.IndexFunc(recs, func(c *record.Record) bool { return c == rec || c.ID() == id }); i >= 0 {
		v.cache[rec.Type()] = append(slices.Clone(recs[:i]), recs[i+1:]...)
	}
}

// DeleteModelStructure deletes rec and, depth first, every descendant. A
// record without an id is already gone and is ignored.
func (v *ViewCache) DeleteModelStructure(ctx context.Context, rec *record.Record) error {
	if rec == nil || rec.ID() == "" {
		return nil
	}
	if child := rec.Schema().Child; child != "" {
		children, err := v.GetModels(ctx, child, nil, Query{schema.RelField: rec.ID()})
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := v.DeleteModelStructure(ctx, c); err != nil {
				return err
			}
		}
	}
	id := rec.ID()
	if err := rec.Delete(ctx); err != nil {
		return err
	}
	v.evict(rec, id)
	return nil
}

// UpdateIndexOrder moves orderedChildIDs, in that order, to the end of the
// child type's index. Ids not in the index are dropped.
func (v *ViewCache) UpdateIndexOrder(ctx context.Context, parent *record.Record, orderedChildIDs []string) error {
	child := parent.Schema().Child
	if child == "" {
		return storeerr.New(storeerr.KindConfiguration, storeerr.CodeUnknownType, "view.order",
			fmt.Sprintf("%s has no child type", parent.Type()))
	}
	return v.UpdateRootOrder(ctx, child, orderedChildIDs)
}

// UpdateRootOrder reorders the index of typ directly.
func (v *ViewCache) UpdateRootOrder(ctx context.Context, typ string, ids []string) error {
	if _, err := v.repo.Type(typ); err != nil {
		return err
	}
	ix, err := v.repo.RequireIndex(ctx, typ)
	if err != nil {
		return err
	}
	ix.Lock()
	err = ix.Reorder(ctx, ids)
	ix.Unlock()
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if recs, ok := v.cache[typ]; ok {
		sorted := slices.Clone(recs)
		slices.SortStableFunc(sorted, func(a, b *record.Record) int {
			return ix.Position(a.ID()) - ix.Position(b.ID())
		})
		v.cache[typ] = sorted
	}
	return nil
}

// MoveUp swaps rec with its previous sibling. It reports false when rec is
// already first.
func (v *ViewCache) MoveUp(ctx context.Context, rec *record.Record) (bool, error) {
	return v.move(ctx, rec, -1)
}

// MoveDown swaps rec with its next sibling. It reports false when rec is
// already last.
func (v *ViewCache) MoveDown(ctx context.Context, rec *record.Record) (bool, error) {
	return v.move(ctx, rec, 1)
}

func (v *ViewCache) move(ctx context.Context, rec *record.Record, step int) (bool, error) {
	if rec.ID() == "" {
		return false, storeerr.New(storeerr.KindConfiguration, storeerr.CodeNoID, "view.move",
			fmt.Sprintf("%s has no id", rec.Type()))
	}
	var q Query
	if !rec.Schema().IsRoot() {
		q = Query{schema.RelField: rec.Rel()}
	}
	siblings, err := v.GetModels(ctx, rec.Type(), nil, q)
	if err != nil {
		return false, err
	}
	ids := make([]string, len(siblings))
	for i, s := range siblings {
		ids[i] = s.ID()
	}
	i := slices.Index(ids, rec.ID())
	j := i + step
	if i < 0 || j < 0 || j >= len(ids) {
		return false, nil
	}
	ids[i], ids[j] = ids[j], ids[i]
	if err := v.UpdateRootOrder(ctx, rec.Type(), ids); err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate drops every cached type.
func (v *ViewCache) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache = make(map[string][]*record.Record)
}

// Reset removes every key from the store and empties the cache.
func (v *ViewCache) Reset(ctx context.Context) error {
	if err := v.repo.Clear(ctx); err != nil {
		return err
	}
	v.Invalidate()
	v.logger.Info("store reset", zap.String("driver", v.repo.Driver()))
	return nil
}

func equalValue(a, b any) bool {
	if x, ok := asInt(a); ok {
		y, ok := asInt(b)
		return ok && x == y
	}
	switch a.(type) {
	case nil, string, bool, float64:
	default:
		return false
	}
	switch b.(type) {
	case nil, string, bool, float64:
	default:
		return false
	}
	return a == b
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
