package record

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardstore/internal/kv"
	"github.com/roach88/boardstore/internal/repo"
	"github.com/roach88/boardstore/internal/schema"
	"github.com/roach88/boardstore/internal/storeerr"
	"github.com/roach88/boardstore/internal/testutil"
)

func newBoard(t *testing.T, r *repo.Repository, label string) *Record {
	t.Helper()
	rec, err := New(r, "board", map[string]any{"label": label})
	require.NoError(t, err)
	return rec
}

func TestNew(t *testing.T) {
	r, _ := testutil.NewRepo(t)

	rec := newBoard(t, r, "Home")
	assert.Equal(t, "", rec.ID())
	assert.True(t, rec.Dirty())
	assert.Equal(t, "Home", rec.String("label"))
	assert.Equal(t, "board", rec.Type())
	assert.Equal(t, "board", rec.Schema().Name)

	empty, err := New(r, "board", nil)
	require.NoError(t, err)
	assert.False(t, empty.Dirty())

	_, err = New(r, "widget", nil)
	assert.Equal(t, storeerr.CodeUnknownType, storeerr.CodeOf(err))

	_, err = New(r, "board", map[string]any{"label": ""})
	assert.True(t, storeerr.IsValidation(err))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r, _ := testutil.NewRepo(t)

	data := map[string]any{
		"rel":     "g-1",
		"label":   "Milk",
		"marked":  true,
		"variant": "note",
		"amount":  3,
		"note":    "2% fat <organic> & fresh",
	}
	rec, err := New(r, "item", data)
	require.NoError(t, err)
	require.NoError(t, rec.Save(ctx))
	require.NotEmpty(t, rec.ID())
	assert.False(t, rec.Dirty())

	loaded, err := Fetch(ctx, r, "item", rec.ID())
	require.NoError(t, err)
	assert.Equal(t, rec.ID(), loaded.ID())
	assert.False(t, loaded.Dirty())
	assert.Equal(t, rec.Fields(), loaded.Fields())
	assert.Equal(t, int64(3), loaded.Int("amount"))
	assert.True(t, loaded.Bool("marked"))
	assert.Equal(t, "g-1", loaded.Rel())
	assert.Equal(t, "", loaded.String("url"), "default for unset field")
}

func TestSave_StoredPayload(t *testing.T) {
	ctx := context.Background()
	r, m := testutil.NewRepo(t)

	rec := newBoard(t, r, "Home")
	require.NoError(t, rec.Save(ctx))

	raw, ok, err := m.Get(ctx, "board_id-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"id":"id-1","label":"Home"}`, raw)

	idx, _, err := m.Get(ctx, "index_board")
	require.NoError(t, err)
	assert.Equal(t, `["id-1"]`, idx)
}

func TestID_ImmutableAfterSave(t *testing.T) {
	ctx := context.Background()
	r, m := testutil.NewRepo(t)

	rec := newBoard(t, r, "Home")
	require.NoError(t, rec.Save(ctx))
	id := rec.ID()

	require.NoError(t, rec.Assign(map[string]any{"label": "Work", "id": "other"}))
	assert.True(t, rec.Dirty())
	require.NoError(t, rec.Save(ctx))
	assert.Equal(t, id, rec.ID())

	ids, err := r.TypeList(ctx, "board")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids, "update must not append to the index")

	raw, _, _ := m.Get(ctx, "board_"+id)
	assert.Contains(t, raw, `"label":"Work"`)
}

func TestSave_NoopWhenClean(t *testing.T) {
	ctx := context.Background()
	r, m := testutil.NewRepo(t)

	rec, err := New(r, "board", nil)
	require.NoError(t, err)
	require.NoError(t, rec.Save(ctx))
	assert.Equal(t, "", rec.ID())
	assert.Equal(t, 0, m.Len())
}

func TestSave_RequiredFieldMissing(t *testing.T) {
	ctx := context.Background()
	r, m := testutil.NewRepo(t)

	rec, err := New(r, "board", nil)
	require.NoError(t, err)
	rec.Set("icon", "star")

	err = rec.Save(ctx)
	require.Error(t, err)
	assert.True(t, storeerr.IsValidation(err))
	require.Len(t, storeerr.FieldsOf(err), 1)
	assert.Equal(t, "label", storeerr.FieldsOf(err)[0].Field)
	assert.Equal(t, "", rec.ID())
	assert.True(t, rec.Dirty())
	assert.Equal(t, 0, m.Len(), "nothing persisted")
}

func TestAssign_FailureMutatesNothing(t *testing.T) {
	r, _ := testutil.NewRepo(t)
	rec := newBoard(t, r, "Home")

	long := "this label is much longer than the sixty characters a board label may hold"
	err := rec.Assign(map[string]any{"label": long, "icon": "x"})
	require.Error(t, err)
	assert.Equal(t, storeerr.CodeInvalidAssignment, storeerr.CodeOf(err))
	assert.Equal(t, "Home", rec.String("label"))
	assert.Equal(t, "", rec.String("icon"))
}

func TestAssign_DirtyTracking(t *testing.T) {
	ctx := context.Background()
	r, _ := testutil.NewRepo(t)
	rec := newBoard(t, r, "Home")
	require.NoError(t, rec.Save(ctx))
	require.False(t, rec.Dirty())

	require.NoError(t, rec.Assign(map[string]any{"label": "Home"}))
	assert.False(t, rec.Dirty(), "equal values leave dirty unchanged")

	require.NoError(t, rec.Assign(map[string]any{"undeclared": 1}))
	assert.False(t, rec.Dirty(), "undeclared keys are ignored")
	assert.Nil(t, rec.Get("undeclared"))

	require.NoError(t, rec.Assign(map[string]any{"icon": "star"}))
	assert.True(t, rec.Dirty())

	// Dirty is never forced back to false by an equal assignment
	require.NoError(t, rec.Assign(map[string]any{"icon": "star"}))
	assert.True(t, rec.Dirty())
}

func TestAssign_NormalizesNumbers(t *testing.T) {
	r, _ := testutil.NewRepo(t)
	rec, err := New(r, "item", map[string]any{"rel": "g", "label": "x", "amount": 2.0})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Get("amount"))
}

func TestSaveLoad_UnicodeNormalized(t *testing.T) {
	ctx := context.Background()
	r, _ := testutil.NewRepo(t)

	rec := newBoard(t, r, "Cafe\u0301")
	assert.Equal(t, "Caf\u00e9", rec.String("label"))
	require.NoError(t, rec.Save(ctx))

	loaded, err := Fetch(ctx, r, "board", rec.ID())
	require.NoError(t, err)
	assert.Equal(t, rec.Fields(), loaded.Fields())

	// the same text in either form is no change
	require.NoError(t, loaded.Assign(map[string]any{"label": "Cafe\u0301"}))
	assert.False(t, loaded.Dirty())
}

func TestSet_TrustedPath(t *testing.T) {
	r, _ := testutil.NewRepo(t)
	rec := newBoard(t, r, "Home")

	rec.Set("color", "red")
	assert.Equal(t, "red", rec.Get("color"), "direct set records undeclared fields")
	assert.NotContains(t, rec.Fields(), "color")
}

func TestGet_Defaults(t *testing.T) {
	r, _ := testutil.NewRepo(t)
	rec, err := New(r, "item", nil)
	require.NoError(t, err)
	assert.Equal(t, "label", rec.Get("variant"))
	assert.Equal(t, int64(0), rec.Get("amount"))
	assert.Equal(t, false, rec.Get("marked"))
	assert.Nil(t, rec.Get("nope"))

	data := rec.Data()
	assert.NotContains(t, data, "id")
	assert.NotContains(t, data, "label")
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	r, m := testutil.NewRepo(t)

	_, err := Fetch(ctx, r, "board", "missing")
	assert.True(t, storeerr.IsNotFound(err))
	assert.Equal(t, storeerr.CodeRecordNotFound, storeerr.CodeOf(err))

	for name, raw := range map[string]string{
		"not json":        `{"label":`,
		"array":           `["Home"]`,
		"fails schema":    `{"label":""}`,
		"wrong value type": `{"label":12}`,
		"trailing data":    `{"label":"x"}garbage`,
		"two objects":      `{"label":"x"} {"label":"y"}`,
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, m.Set(ctx, "board_bad", raw))
			before := m.Keys()

			rec := newBoard(t, r, "Keep")
			err := rec.Load(ctx, "bad")
			require.Error(t, err)
			assert.True(t, storeerr.IsCorruption(err))
			assert.Equal(t, storeerr.CodeCorruptRecord, storeerr.CodeOf(err))

			assert.Equal(t, "", rec.ID(), "record unchanged")
			assert.Equal(t, "Keep", rec.String("label"))
			assert.Equal(t, before, m.Keys(), "store unmodified")
		})
	}
}

func TestLoad_DropsUndeclaredFields(t *testing.T) {
	ctx := context.Background()
	r, m := testutil.NewRepo(t)
	require.NoError(t, m.Set(ctx, "board_b", `{"id":"b","label":"Home","legacy":true}`))

	rec, err := Fetch(ctx, r, "board", "b")
	require.NoError(t, err)
	assert.Nil(t, rec.Get("legacy"))
	assert.Equal(t, map[string]any{"id": "b", "label": "Home"}, rec.Data())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	r, m := testutil.NewRepo(t)

	rec := newBoard(t, r, "Home")
	require.NoError(t, rec.Save(ctx))
	id := rec.ID()

	require.NoError(t, rec.Delete(ctx))
	assert.Equal(t, "", rec.ID())
	assert.True(t, rec.Dirty())
	_, ok, _ := m.Get(ctx, "board_"+id)
	assert.False(t, ok)
	ids, _ := r.TypeList(ctx, "board")
	assert.Empty(t, ids)

	// The shell can be saved again under a new id
	require.NoError(t, rec.Save(ctx))
	assert.NotEqual(t, id, rec.ID())
	assert.Equal(t, "Home", rec.String("label"))

	noID := newBoard(t, r, "Fresh")
	err := noID.Delete(ctx)
	assert.Equal(t, storeerr.CodeNoID, storeerr.CodeOf(err))
}

func TestCreateDelete_IndexLength(t *testing.T) {
	ctx := context.Background()
	r, _ := testutil.NewRepo(t)

	var recs []*Record
	for i := 0; i < 9; i++ {
		rec := newBoard(t, r, "B")
		require.NoError(t, rec.Save(ctx))
		recs = append(recs, rec)
	}
	for _, rec := range recs[:4] {
		require.NoError(t, rec.Delete(ctx))
	}

	ids, err := r.TypeList(ctx, "board")
	require.NoError(t, err)
	assert.Len(t, ids, 5)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestSave_ImportID(t *testing.T) {
	ctx := context.Background()
	r, _ := testutil.NewRepo(t)

	rec := newBoard(t, r, "Imported")
	rec.SetImportID("b-42")
	require.NoError(t, rec.Save(ctx))
	assert.Equal(t, "b-42", rec.ID())

	dup := newBoard(t, r, "Again")
	dup.SetImportID("b-42")
	err := dup.Save(ctx)
	assert.Equal(t, storeerr.CodeDuplicateID, storeerr.CodeOf(err))
	assert.Equal(t, "", dup.ID())
	assert.True(t, dup.Dirty())
}

func TestSave_EncodeFailed(t *testing.T) {
	ctx := context.Background()
	r, _ := testutil.NewRepo(t)

	rec := newBoard(t, r, "Home")
	rec.Set("callback", func() {})
	err := rec.Save(ctx)
	assert.Equal(t, storeerr.CodeEncodeFailed, storeerr.CodeOf(err))
	assert.Equal(t, "", rec.ID())

	ids, _ := r.TypeList(ctx, "board")
	assert.Empty(t, ids, "minted id rolled back")
}

// flakyStore fails Set for keys matching failKey.
type flakyStore struct {
	*kv.Memory
	failKey string
	err     error
}

func (f *flakyStore) Set(ctx context.Context, key, value string) error {
	if key == f.failKey {
		return f.err
	}
	return f.Memory.Set(ctx, key, value)
}

func TestSave_RecordWriteFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	store := &flakyStore{Memory: kv.NewMemory(), failKey: "board_id-1", err: boom}
	r := repo.New(store, repo.WithIDGenerator(testutil.NewSequenceIDs("id")))
	require.NoError(t, r.Register(schema.MustLoadCatalog()...))

	rec := newBoard(t, r, "Home")
	err := rec.Save(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "", rec.ID())
	assert.True(t, rec.Dirty(), "failed save keeps dirty so it can be retried")

	ids, _ := r.TypeList(ctx, "board")
	assert.Empty(t, ids)

	// Retry mints the next id and succeeds
	require.NoError(t, rec.Save(ctx))
	assert.Equal(t, "id-2", rec.ID())
}

func TestSave_IndexWriteFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota")
	store := &flakyStore{Memory: kv.NewMemory(), failKey: "index_board", err: boom}
	r := repo.New(store, repo.WithIDGenerator(testutil.NewSequenceIDs("id")))
	require.NoError(t, r.Register(schema.MustLoadCatalog()...))

	rec := newBoard(t, r, "Home")
	err := rec.Save(ctx)
	require.Error(t, err)
	assert.Equal(t, storeerr.CodeIndexWriteFailed, storeerr.CodeOf(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "", rec.ID())
	assert.Equal(t, 0, store.Len(), "record write rolled back")
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	r, _ := testutil.NewRepo(t)

	var got []repo.EventKind
	r.Subscribe(func(ev repo.Event) { got = append(got, ev.Kind) })

	rec := newBoard(t, r, "Home")
	require.NoError(t, rec.Save(ctx))
	require.NoError(t, rec.Assign(map[string]any{"label": "Work"}))
	require.NoError(t, rec.Save(ctx))
	require.NoError(t, rec.Assign(map[string]any{"label": "Silent"}))
	require.NoError(t, rec.SaveSilent(ctx))
	_, err := Fetch(ctx, r, "board", rec.ID())
	require.NoError(t, err)
	require.NoError(t, rec.Delete(ctx))

	// Failed operations emit nothing
	bad, err := New(r, "board", nil)
	require.NoError(t, err)
	bad.Set("icon", "x")
	assert.Error(t, bad.Save(ctx))

	assert.Equal(t, []repo.EventKind{
		repo.EventCreated, repo.EventUpdated, repo.EventLoaded, repo.EventDeleted,
	}, got)
}

func TestSetParent(t *testing.T) {
	ctx := context.Background()
	r, _ := testutil.NewRepo(t)
	board := newBoard(t, r, "Home")
	require.NoError(t, board.Save(ctx))

	group, err := New(r, "group", nil)
	require.NoError(t, err)
	group.SetParent(board)
	require.NoError(t, group.Assign(map[string]any{"label": "G"}))
	require.NoError(t, group.Save(ctx))

	assert.Same(t, board, group.Parent())
	assert.Equal(t, board.ID(), group.Rel())
}

func TestList(t *testing.T) {
	ctx := context.Background()
	r, m := testutil.NewRepo(t)

	for _, label := range []string{"A", "B", "C"} {
		require.NoError(t, newBoard(t, r, label).Save(ctx))
	}
	recs, err := List(ctx, r, "board", nil)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "A", recs[0].String("label"))
	assert.Equal(t, "C", recs[2].String("label"))

	home, work := recs[0], recs[1]
	for _, rel := range []string{home.ID(), work.ID()} {
		g, err := New(r, "group", map[string]any{"rel": rel, "label": "G"})
		require.NoError(t, err)
		require.NoError(t, g.Save(ctx))
	}
	groups, err := List(ctx, r, "group", home)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Same(t, home, groups[0].Parent())
	assert.Nil(t, groups[1].Parent(), "rel names another board")

	// An indexed id without a stored record is a load failure
	require.NoError(t, m.Remove(ctx, "board_"+recs[1].ID()))
	_, err = List(ctx, r, "board", nil)
	assert.True(t, storeerr.IsNotFound(err))
}
