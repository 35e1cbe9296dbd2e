// Package record implements a schema-typed record persisted as one key in
// the backend.
//
// A record is transient until its first successful Save, which mints (or
// honors an import) id, writes "<type>_<id>" and appends the id to the type
// index. Delete removes both and turns the record back into a transient
// shell that can be saved again under a new id.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/boardstore/internal/codec"
	"github.com/roach88/boardstore/internal/repo"
	"github.com/roach88/boardstore/internal/schema"
	"github.com/roach88/boardstore/internal/storeerr"
)

// Record is one instance of a registered type.
//
// Thread-safety: a Record is owned by its caller and is not safe for
// concurrent mutation. Persistence steps are serialized per type through the
// type index lock.
type Record struct {
	repo     *repo.Repository
	typ      *schema.Type
	id       string
	importID string
	fields   map[string]any
	dirty    bool
	parent   *Record
}

// New creates a transient record of type typ. Non-empty data is assigned
// through Assign and marks the record dirty.
func New(r *repo.Repository, typ string, data map[string]any) (*Record, error) {
	t, err := r.Type(typ)
	if err != nil {
		return nil, err
	}
	rec := &Record{repo: r, typ: t, fields: make(map[string]any)}
	if len(data) > 0 {
		if err := rec.Assign(data); err != nil {
			return nil, err
		}
		rec.dirty = true
	}
	return rec, nil
}

// Fetch loads the stored record typ/id.
func Fetch(ctx context.Context, r *repo.Repository, typ, id string) (*Record, error) {
	rec, err := New(r, typ, nil)
	if err != nil {
		return nil, err
	}
	if err := rec.Load(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

// List loads every stored record of typ in index order. parent, if not nil,
// is attached to the records whose rel is parent's id.
func List(ctx context.Context, r *repo.Repository, typ string, parent *Record) ([]*Record, error) {
	ids, err := r.TypeList(ctx, typ)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := Fetch(ctx, r, typ, id)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", typ, err)
		}
		if parent != nil && rec.Rel() == parent.ID() {
			rec.parent = parent
		}
		out = append(out, rec)
	}
	return out, nil
}

// Assign validates data merged over the current values and copies the
// declared fields it contains. On a validation failure nothing changes and
// the error lists every offending field. Dirty is set if any value changed
// and otherwise left as it was. Undeclared keys, including "id", are ignored.
func (rec *Record) Assign(data map[string]any) error {
	merged := rec.Fields()
	for k, v := range data {
		if rec.typ.HasField(k) {
			merged[k] = v
		}
	}
	if errs := rec.typ.Validate(merged); len(errs) > 0 {
		return storeerr.Validation("record.assign",
			fmt.Sprintf("invalid %s data", rec.typ.Name), errs)
	}

	for k, v := range data {
		f, ok := rec.typ.Field(k)
		if !ok {
			continue
		}
		n, _ := f.Normalize(v) // validated above
		if old := rec.Get(k); !isScalar(old) || n != old {
			rec.dirty = true
		}
		if n == nil {
			delete(rec.fields, k)
			continue
		}
		rec.fields[k] = n
	}
	return nil
}

// Load replaces the record's state with the stored record id. A missing key
// is RECORD_NOT_FOUND; a payload that is not a JSON object or that fails
// schema validation is CORRUPT_RECORD. On failure the record is unchanged.
func (rec *Record) Load(ctx context.Context, id string) error {
	raw, ok, err := rec.repo.Get(ctx, repo.RecordKey(rec.typ.Name, id))
	if err != nil {
		return err
	}
	if !ok {
		return storeerr.New(storeerr.KindNotFound, storeerr.CodeRecordNotFound, "record.load",
			fmt.Sprintf("%s %q does not exist", rec.typ.Name, id))
	}

	stored, err := decodeObject(raw)
	if err != nil {
		return storeerr.Wrap(storeerr.KindCorruption, storeerr.CodeCorruptRecord, "record.load",
			fmt.Sprintf("%s %q is not a JSON object", rec.typ.Name, id), err)
	}
	check := rec.typ.Defaults()
	for k, v := range stored {
		check[k] = v
	}
	if errs := rec.typ.Validate(check); len(errs) > 0 {
		return &storeerr.Error{
			Kind:    storeerr.KindCorruption,
			Code:    storeerr.CodeCorruptRecord,
			Op:      "record.load",
			Message: fmt.Sprintf("stored %s %q fails validation", rec.typ.Name, id),
			Fields:  errs,
		}
	}

	fields := make(map[string]any, len(stored))
	for k, v := range stored {
		f, ok := rec.typ.Field(k)
		if !ok {
			continue
		}
		if n, _ := f.Normalize(v); n != nil {
			fields[k] = n
		}
	}

	rec.fields = fields
	rec.id = id
	rec.importID = ""
	rec.dirty = false
	rec.repo.Emit(repo.Event{Kind: repo.EventLoaded, Type: rec.typ.Name, ID: id, Data: rec.Data()})
	return nil
}

// Save persists the record if it is dirty and emits EventCreated or
// EventUpdated.
func (rec *Record) Save(ctx context.Context) error {
	return rec.save(ctx, false)
}

// SaveSilent persists like Save without emitting a lifecycle event. Import
// merges use it.
func (rec *Record) SaveSilent(ctx context.Context) error {
	return rec.save(ctx, true)
}

func (rec *Record) save(ctx context.Context, silent bool) error {
	if !rec.dirty {
		return nil
	}

	data := rec.Fields()
	if errs := rec.typ.Validate(data); len(errs) > 0 {
		return storeerr.Validation("record.save",
			fmt.Sprintf("invalid %s data", rec.typ.Name), errs)
	}
	for k, v := range rec.fields {
		if !rec.typ.HasField(k) {
			data[k] = v
		}
	}

	ix, err := rec.repo.RequireIndex(ctx, rec.typ.Name)
	if err != nil {
		return err
	}
	ix.Lock()
	defer ix.Unlock()

	id := rec.id
	created := id == ""
	if created {
		if id, err = ix.Create(rec.importID); err != nil {
			return err
		}
	}

	data[schema.IDField] = id
	payload, err := codec.MarshalCanonical(data)
	if err != nil {
		if created {
			ix.Discard(id)
		}
		return storeerr.Wrap(storeerr.KindConfiguration, storeerr.CodeEncodeFailed, "record.save",
			fmt.Sprintf("encode %s", rec.typ.Name), err)
	}

	if err := rec.repo.Set(ctx, repo.RecordKey(rec.typ.Name, id), string(payload)); err != nil {
		if created {
			ix.Discard(id)
		}
		return err
	}
	if created {
		if err := ix.Save(ctx); err != nil {
			ix.Discard(id)
			if rmErr := rec.repo.Remove(ctx, repo.RecordKey(rec.typ.Name, id)); rmErr != nil {
				rec.repo.Logger().Warn("orphaned record after index write failure",
					zap.String("type", rec.typ.Name), zap.String("id", id), zap.Error(rmErr))
			}
			return err
		}
	}

	rec.id = id
	rec.importID = ""
	rec.dirty = false
	rec.repo.Logger().Debug("record saved",
		zap.String("type", rec.typ.Name), zap.String("id", id), zap.Bool("created", created))

	if !silent {
		kind := repo.EventUpdated
		if created {
			kind = repo.EventCreated
		}
		rec.repo.Emit(repo.Event{Kind: kind, Type: rec.typ.Name, ID: id, Data: rec.Data()})
	}
	return nil
}

// Delete removes the stored record and its index entry. The record keeps its
// fields, loses its id and becomes dirty so it can be saved again.
func (rec *Record) Delete(ctx context.Context) error {
	if rec.id == "" {
		return storeerr.New(storeerr.KindConfiguration, storeerr.CodeNoID, "record.delete",
			fmt.Sprintf("%s has no id", rec.typ.Name))
	}

	ix, err := rec.repo.RequireIndex(ctx, rec.typ.Name)
	if err != nil {
		return err
	}
	ix.Lock()
	defer ix.Unlock()

	if err := rec.repo.Remove(ctx, repo.RecordKey(rec.typ.Name, rec.id)); err != nil {
		return err
	}
	if err := ix.Delete(ctx, rec.id); err != nil {
		return err
	}

	id := rec.id
	rec.id = ""
	rec.dirty = true
	rec.repo.Logger().Debug("record deleted", zap.String("type", rec.typ.Name), zap.String("id", id))
	rec.repo.Emit(repo.Event{Kind: repo.EventDeleted, Type: rec.typ.Name, ID: id})
	return nil
}

// Get returns the value of field: the stored value, else the declared
// default. Undeclared fields return their raw value if one was Set, else nil.
func (rec *Record) Get(field string) any {
	if v, ok := rec.fields[field]; ok {
		return v
	}
	if f, ok := rec.typ.Field(field); ok {
		return f.Default
	}
	return nil
}

// String returns a string field, or "" if it holds no string.
func (rec *Record) String(field string) string {
	s, _ := rec.Get(field).(string)
	return s
}

// Bool returns a checkbox field, or false if it holds no bool.
func (rec *Record) Bool(field string) bool {
	b, _ := rec.Get(field).(bool)
	return b
}

// Int returns a number field, or 0 if it holds no integer.
func (rec *Record) Int(field string) int64 {
	switch n := rec.Get(field).(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// Set stores v under field without validation, including undeclared
// fields. It marks the record dirty when the value changes.
func (rec *Record) Set(field string, v any) {
	if old, ok := rec.fields[field]; ok && isScalar(old) && isScalar(v) && old == v {
		return
	}
	rec.fields[field] = v
	rec.dirty = true
}

// Fields returns the effective value of every declared field that has one.
func (rec *Record) Fields() map[string]any {
	out := make(map[string]any, len(rec.typ.Fields))
	for _, f := range rec.typ.Fields {
		if v := rec.Get(f.Name); v != nil {
			out[f.Name] = v
		}
	}
	return out
}

// Data returns Fields plus "id" when the record is persistent.
func (rec *Record) Data() map[string]any {
	out := rec.Fields()
	if rec.id != "" {
		out[schema.IDField] = rec.id
	}
	return out
}

// ID returns the record id, "" while transient.
func (rec *Record) ID() string { return rec.id }

// Type returns the type name.
func (rec *Record) Type() string { return rec.typ.Name }

// Schema returns the type schema.
func (rec *Record) Schema() *schema.Type { return rec.typ }

// Dirty reports whether the record has unsaved changes.
func (rec *Record) Dirty() bool { return rec.dirty }

// SetImportID forces the id the next creating Save uses.
func (rec *Record) SetImportID(id string) { rec.importID = id }

// Parent returns the parent record, if one was attached.
func (rec *Record) Parent() *Record { return rec.parent }

// SetParent attaches p as the parent and sets rel to its id.
func (rec *Record) SetParent(p *Record) {
	rec.parent = p
	if p != nil && p.id != "" {
		rec.Set(schema.RelField, p.id)
	}
}

// Rel returns the parent id stored in rel.
func (rec *Record) Rel() string { return rec.String(schema.RelField) }

func decodeObject(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("got %T", v)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after the object")
	}
	return obj, nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, int, int32, int64, float64:
		return true
	}
	return false
}
