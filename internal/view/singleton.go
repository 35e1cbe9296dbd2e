package view

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/boardstore/internal/record"
	"github.com/roach88/boardstore/internal/schema"
	"github.com/roach88/boardstore/internal/storeerr"
)

// Singleton returns the stored record of a singleton type, or a transient
// record holding the defaults when none is stored yet.
func (v *ViewCache) Singleton(ctx context.Context, typ string) (*record.Record, error) {
	t, err := v.repo.Type(typ)
	if err != nil {
		return nil, err
	}
	if !t.Singleton {
		return nil, storeerr.New(storeerr.KindConfiguration, storeerr.CodeUnknownType, "view.singleton",
			fmt.Sprintf("%s is not a singleton type", typ))
	}
	recs, err := v.GetModels(ctx, typ, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		return recs[0], nil
	}
	return record.New(v.repo, typ, nil)
}

// ResetSingleton deletes rec if it is stored and returns a fresh default
// record of the same type.
func (v *ViewCache) ResetSingleton(ctx context.Context, rec *record.Record) (*record.Record, error) {
	if err := v.DeleteModelStructure(ctx, rec); err != nil {
		return nil, err
	}
	return record.New(v.repo, rec.Type(), nil)
}

// ImportSingleton assigns the JSON object in data to rec and saves it. An
// "id" key in data is ignored.
func (v *ViewCache) ImportSingleton(ctx context.Context, rec *record.Record, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return storeerr.Wrap(storeerr.KindValidation, storeerr.CodeInvalidPayload, "view.import",
			fmt.Sprintf("%s import must be a JSON object", rec.Type()), err)
	}
	delete(obj, schema.IDField)
	return v.UpdateModel(ctx, rec, obj)
}
