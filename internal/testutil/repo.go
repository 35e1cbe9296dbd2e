package testutil

import (
	"testing"

	"go.uber.org/zap"

	"github.com/roach88/boardstore/internal/kv"
	"github.com/roach88/boardstore/internal/repo"
	"github.com/roach88/boardstore/internal/schema"
)

// NewRepo returns a repository over a fresh memory store with the full record
// catalog registered and ids minted by SequenceIDs("id").
func NewRepo(t testing.TB) (*repo.Repository, *kv.Memory) {
	t.Helper()
	return NewRepoOn(t, kv.NewMemory())
}

// NewRepoOn is NewRepo over an existing memory store, for reopening the same
// data in a second session.
func NewRepoOn(t testing.TB, m *kv.Memory) (*repo.Repository, *kv.Memory) {
	t.Helper()
	r := repo.New(m,
		repo.WithLogger(zap.NewNop()),
		repo.WithIDGenerator(NewSequenceIDs("id")),
		repo.WithDriverName(kv.DriverMemory),
	)
	if err := r.Register(schema.MustLoadCatalog()...); err != nil {
		t.Fatalf("register catalog: %v", err)
	}
	return r, m
}
