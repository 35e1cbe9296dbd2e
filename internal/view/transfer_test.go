package view

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardstore/internal/codec"
	"github.com/roach88/boardstore/internal/kv"
	"github.com/roach88/boardstore/internal/record"
	"github.com/roach88/boardstore/internal/repo"
	"github.com/roach88/boardstore/internal/storeerr"
)

func snapshot(t *testing.T, m *kv.Memory) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, k := range m.Keys() {
		v, ok, err := m.Get(context.Background(), k)
		require.NoError(t, err)
		require.True(t, ok)
		out[k] = v
	}
	return out
}

func mustFirst(t *testing.T, v *ViewCache, typ, id string) *record.Record {
	t.Helper()
	rec, err := v.First(context.Background(), typ, Query{"id": id})
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func TestExport_Golden(t *testing.T) {
	v, _, _ := newView(t)
	seed(t, v)

	data, err := v.ExportEncoded(context.Background(), codec.JSON{})
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "export", data)
}

func TestExport_PrunesEmptyValues(t *testing.T) {
	v, _, _ := newView(t)
	seed(t, v)

	p, err := v.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"board", "group", "item"}, v.Chain())
	for _, e := range p["item"] {
		assert.NotContains(t, e, "note")
		assert.NotContains(t, e, "youtube")
		assert.Contains(t, e, "marked", "false is a value")
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src, _, _ := newView(t)
	seed(t, src)
	want, err := src.Export(ctx)
	require.NoError(t, err)

	dst, _, _ := newView(t)
	res, err := dst.ImportData(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 6}, res)

	got, err := dst.Export(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestImportBytes_EachCodec(t *testing.T) {
	ctx := context.Background()
	src, _, srcStore := newView(t)
	seed(t, src)

	for _, name := range codec.Names() {
		t.Run(name, func(t *testing.T) {
			c, err := codec.ByName(name)
			require.NoError(t, err)
			data, err := src.ExportEncoded(ctx, c)
			require.NoError(t, err)

			dst, _, dstStore := newView(t)
			res, err := dst.ImportBytes(ctx, data, c)
			require.NoError(t, err)
			assert.Equal(t, 6, res.Created)
			if diff := cmp.Diff(snapshot(t, srcStore), snapshot(t, dstStore)); diff != "" {
				t.Errorf("store mismatch (-src +dst):\n%s", diff)
			}
		})
	}
}

func TestImportData_Idempotent(t *testing.T) {
	ctx := context.Background()
	src, _, _ := newView(t)
	seed(t, src)
	p, err := src.Export(ctx)
	require.NoError(t, err)

	dst, _, m := newView(t)
	_, err = dst.ImportData(ctx, p)
	require.NoError(t, err)
	before := snapshot(t, m)

	res, err := dst.ImportData(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Unchanged: 6}, res)
	assert.Equal(t, before, snapshot(t, m))
}

func TestImportData_MergesSilently(t *testing.T) {
	ctx := context.Background()
	v, r, _ := newView(t)
	tr := seed(t, v)

	var events []repo.EventKind
	unsubscribe := r.Subscribe(func(ev repo.Event) { events = append(events, ev.Kind) })
	defer unsubscribe()

	res, err := v.ImportData(ctx, codec.Payload{
		"board": {{"id": "id-1", "label": "Home"}},
		"group": {{"id": "id-2", "rel": "id-1", "label": "Food"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Updated: 1, Unchanged: 1}, res)
	assert.Empty(t, events, "merges emit nothing")
	require.Same(t, tr.groups[0], mustFirst(t, v, "group", "id-2"))
	assert.Equal(t, "Food", tr.groups[0].String("label"))
	assert.Equal(t, "H", tr.board.String("icon"), "fields absent from the entry are kept")
}

func TestImportData_Skips(t *testing.T) {
	ctx := context.Background()
	v, r, _ := newView(t)

	res, err := v.ImportData(ctx, codec.Payload{
		"board": {{"id": "b1", "label": "One"}, {"label": "No id"}},
		"group": {
			{"id": "g1", "rel": "b1", "label": "Kept"},
			{"id": "g2", "rel": "missing", "label": "Orphan"},
		},
		"item":    {{"id": "i1", "rel": "g2", "label": "Orphan child"}},
		"unknown": {{"id": "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 2, Skipped: 3}, res)

	groups, err := r.TypeList(ctx, "group")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, groups)
}

func TestImportData_InvalidEntry(t *testing.T) {
	ctx := context.Background()
	v, r, _ := newView(t)

	_, err := v.ImportData(ctx, codec.Payload{
		"board": {{"id": "b1", "label": "One"}},
		"group": {{"id": "g1", "rel": "b1", "label": ""}},
	})
	require.Error(t, err)
	assert.True(t, storeerr.IsValidation(err))

	// Parents already imported stay
	boards, err := r.TypeList(ctx, "board")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, boards)
}

func TestImportBytes_Shape(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newView(t)

	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"missing root array", `{"group":[]}`, storeerr.CodeInvalidPayload},
		{"root not an array", `{"board":{}}`, storeerr.CodeInvalidPayload},
		{"not json", `board`, storeerr.CodeInvalidPayload},
		{"only root", `{"board":[]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ImportBytes(ctx, []byte(tt.raw), codec.JSON{})
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.code, storeerr.CodeOf(err))
		})
	}
}
