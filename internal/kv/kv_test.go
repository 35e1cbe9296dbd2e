package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardstore/internal/storeerr"
)

// openers builds one fresh store per driver.
func openers(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		DriverMemory: func() Store { return NewMemory() },
		DriverSQLite: func() Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		DriverPebble: func() Store {
			s, err := OpenPebble(filepath.Join(t.TempDir(), "pebble"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStore_Conformance(t *testing.T) {
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()

			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok, "absent key must report ok=false")

			require.NoError(t, s.Set(ctx, "board_1", `{"label":"Home"}`))
			v, ok, err := s.Get(ctx, "board_1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"label":"Home"}`, v)

			// Overwrite
			require.NoError(t, s.Set(ctx, "board_1", `{"label":"Work"}`))
			v, _, err = s.Get(ctx, "board_1")
			require.NoError(t, err)
			assert.Equal(t, `{"label":"Work"}`, v)

			// Empty values are legal
			require.NoError(t, s.Set(ctx, "index_board", ""))
			v, ok, err = s.Get(ctx, "index_board")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "", v)

			require.NoError(t, s.Remove(ctx, "board_1"))
			_, ok, err = s.Get(ctx, "board_1")
			require.NoError(t, err)
			assert.False(t, ok)

			// Removing an absent key is not an error
			require.NoError(t, s.Remove(ctx, "board_1"))

			require.NoError(t, s.Set(ctx, "a", "1"))
			require.NoError(t, s.Set(ctx, "b", "2"))
			size, err := s.SizeInBytes(ctx)
			require.NoError(t, err)
			assert.Greater(t, size, int64(0))

			require.NoError(t, s.Clear(ctx))
			for _, key := range []string{"a", "b", "index_board"} {
				_, ok, err := s.Get(ctx, key)
				require.NoError(t, err)
				assert.False(t, ok, "key %q should be cleared", key)
			}
		})
	}
}

func TestSQLite_Pragmas(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "index_board", `["a","b"]`))
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()

	v, ok, err := s2.Get(ctx, "index_board")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["a","b"]`, v)
}

func TestSQLite_InvalidPath(t *testing.T) {
	_, err := OpenSQLite("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestSQLite_CloseNilDB(t *testing.T) {
	s := &SQLite{db: nil}
	assert.NoError(t, s.Close())
}

func TestPebble_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pebble")
	s, err := OpenPebble(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Drivers(t *testing.T) {
	s, err := Open(DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(DriverSQLite, filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLite{}, s)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("cloud", "")
	require.Error(t, err)
	assert.True(t, storeerr.IsConfiguration(err))
	assert.Equal(t, storeerr.CodeUnknownDriver, storeerr.CodeOf(err))
}

func TestDrivers(t *testing.T) {
	assert.Equal(t, []string{"memory", "pebble", "sqlite"}, Drivers())
	assert.True(t, IsDriver("pebble"))
	assert.False(t, IsDriver("local"))
}

func TestMemory_Keys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "b", "2"))
	require.NoError(t, m.Set(ctx, "a", "1"))
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, 2, m.Len())
}

// failingStore fails every write.
type failingStore struct {
	*Memory
	err error
}

func (f *failingStore) Set(context.Context, string, string) error { return f.err }

func TestInstrument_CountsOps(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	boom := errors.New("boom")
	s := Instrument(&failingStore{Memory: NewMemory(), err: boom}, m, "memory")

	_, _, err := s.Get(ctx, "x")
	require.NoError(t, err)
	_, _, err = s.Get(ctx, "y")
	require.NoError(t, err)
	err = s.Set(ctx, "x", "1")
	assert.ErrorIs(t, err, boom, "driver errors pass through unchanged")

	assert.Equal(t, 2.0, promtest.ToFloat64(m.Ops("get", "memory", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Ops("set", "memory", "error")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.Ops("set", "memory", "ok")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "boardstore_kv_ops_total")
	assert.Contains(t, names, "boardstore_kv_op_seconds")
}
