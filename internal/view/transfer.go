package view

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/boardstore/internal/codec"
	"github.com/roach88/boardstore/internal/record"
	"github.com/roach88/boardstore/internal/schema"
	"github.com/roach88/boardstore/internal/storeerr"
)

// ImportResult counts what an import did.
type ImportResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"` // no id, or rel matched no imported parent
}

// Chain returns the exported types: the first non-singleton root type
// followed by its descendants.
func (v *ViewCache) Chain() []string {
	var chain []string
	for _, t := range v.repo.Types() {
		if !t.IsRoot() || t.Singleton {
			continue
		}
		for name := t.Name; name != ""; {
			chain = append(chain, name)
			next, err := v.repo.Type(name)
			if err != nil {
				break
			}
			name = next.Child
		}
		break
	}
	return chain
}

// Export returns every record of the exported types in index order, with
// empty values left out.
func (v *ViewCache) Export(ctx context.Context) (codec.Payload, error) {
	p := make(codec.Payload)
	for _, typ := range v.Chain() {
		recs, err := v.GetModels(ctx, typ, nil, nil)
		if err != nil {
			return nil, err
		}
		entries := make([]codec.Entry, 0, len(recs))
		for _, rec := range recs {
			e := codec.Entry{}
			for k, val := range rec.Data() {
				if !schema.IsEmpty(val) {
					e[k] = val
				}
			}
			entries = append(entries, e)
		}
		p[typ] = entries
	}
	return p, nil
}

// ExportEncoded exports and encodes with c.
func (v *ViewCache) ExportEncoded(ctx context.Context, c codec.Codec) ([]byte, error) {
	p, err := v.Export(ctx)
	if err != nil {
		return nil, err
	}
	return c.Encode(p)
}

// ImportBytes decodes data with c and imports it. The root type array is
// required; the nested arrays may be absent.
func (v *ViewCache) ImportBytes(ctx context.Context, data []byte, c codec.Codec) (ImportResult, error) {
	p, err := c.Decode(data)
	if err != nil {
		return ImportResult{}, err
	}
	chain := v.Chain()
	if len(chain) == 0 {
		return ImportResult{}, storeerr.New(storeerr.KindConfiguration, storeerr.CodeUnknownType, "view.import",
			"no exportable types registered")
	}
	if _, ok := p[chain[0]]; !ok {
		return ImportResult{}, storeerr.New(storeerr.KindValidation, storeerr.CodeInvalidPayload, "view.import",
			fmt.Sprintf("payload has no %q array", chain[0]))
	}
	return v.ImportData(ctx, p)
}

// ImportData upserts p by id, parents before children. An existing record
// is merged and saved silently; a missing one is created under its id.
// Entries of other types in p are ignored.
func (v *ViewCache) ImportData(ctx context.Context, p codec.Payload) (ImportResult, error) {
	var res ImportResult
	chain := v.Chain()
	if len(chain) == 0 {
		return res, nil
	}

	total := 0
	done := make(map[string][]bool, len(chain))
	for _, typ := range chain {
		total += len(p[typ])
		done[typ] = make([]bool, len(p[typ]))
	}
	seen := 0
	var walk func(depth int, parent *record.Record) error
	walk = func(depth int, parent *record.Record) error {
		typ := chain[depth]
		for i, e := range p[typ] {
			if done[typ][i] {
				continue
			}
			if parent != nil && !equalValue(e[schema.RelField], parent.ID()) {
				continue
			}
			done[typ][i] = true
			seen++
			id, _ := e[schema.IDField].(string)
			if id == "" {
				res.Skipped++
				continue
			}
			rec, err := v.upsert(ctx, typ, id, e, parent, &res)
			if err != nil {
				return fmt.Errorf("import %s %q: %w", typ, id, err)
			}
			if depth+1 < len(chain) {
				if err := walk(depth+1, rec); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(0, nil); err != nil {
		return res, err
	}
	res.Skipped += total - seen

	v.logger.Info("import finished",
		zap.Int("created", res.Created), zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged), zap.Int("skipped", res.Skipped))
	return res, nil
}

func (v *ViewCache) upsert(ctx context.Context, typ, id string, e codec.Entry, parent *record.Record, res *ImportResult) (*record.Record, error) {
	existing, err := v.First(ctx, typ, Query{schema.IDField: id})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		rec, err := v.CreateModel(ctx, typ, e, parent, id)
		if err != nil {
			return nil, err
		}
		res.Created++
		return rec, nil
	}

	if err := existing.Assign(e); err != nil {
		return nil, err
	}
	if !existing.Dirty() {
		res.Unchanged++
		return existing, nil
	}
	if err := existing.SaveSilent(ctx); err != nil {
		return nil, err
	}
	res.Updated++
	return existing, nil
}
