package alias

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"label-resolver/internal/common"
	"label-resolver/internal/resolve/model"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[[2]string]string
	err  error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[[2]string]string{}} }

func (m *memRepo) Find(_ context.Context, tenantID, phrase string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	id, ok := m.rows[[2]string{tenantID, phrase}]
	return id, ok, nil
}

func (m *memRepo) UpsertIfAbsent(_ context.Context, tenantID, phrase, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	k := [2]string{tenantID, phrase}
	if _, ok := m.rows[k]; ok {
		return false, nil
	}
	m.rows[k] = itemID
	return true, nil
}

type staticItems map[string][]model.CatalogItem

func (s staticItems) GetItems(_ context.Context, tenantID string) ([]model.CatalogItem, error) {
	return s[tenantID], nil
}

func testStore(repo Repository) *Store {
	items := staticItems{
		"t1": {{ID: "1", Name: "Brisket", EnabledMethods: []string{"chilled"}}},
		"t2": {{ID: "7", Name: "Picanha", EnabledMethods: []string{"frozen"}}},
	}
	return NewStore(repo, items, zerolog.Nop())
}

func TestStore_SaveAndLookup(t *testing.T) {
	repo := newMemRepo()
	s := testStore(repo)
	ctx := context.Background()

	created, err := s.Save(ctx, "t1", "  Péito  bovino ", "1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "1", repo.rows[[2]string{"t1", "PEITO BOVINO"}])

	it, err := s.Lookup(ctx, "t1", "peito bovino")
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, "Brisket", it.Name)
}

func TestStore_SaveIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	s := testStore(repo)
	ctx := context.Background()

	created, err := s.Save(ctx, "t1", "peito", "1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Save(ctx, "t1", "PEITO", "1")
	require.NoError(t, err)
	assert.False(t, created)

	// a second binding for the same phrase does not overwrite the first
	created, err = s.Save(ctx, "t1", "peito", "2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, repo.rows, 1)
	assert.Equal(t, "1", repo.rows[[2]string{"t1", "PEITO"}])
}

func TestStore_EmptyPhraseIsNoop(t *testing.T) {
	repo := newMemRepo()
	s := testStore(repo)

	created, err := s.Save(context.Background(), "t1", " !! ", "1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, repo.rows)
}

func TestStore_SaveRequiresTenantAndItem(t *testing.T) {
	s := testStore(newMemRepo())
	_, err := s.Save(context.Background(), "", "peito", "1")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = s.Save(context.Background(), "t1", "peito", " ")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestStore_LookupMisses(t *testing.T) {
	repo := newMemRepo()
	s := testStore(repo)
	ctx := context.Background()
	_, err := s.Save(ctx, "t1", "peito", "1")
	require.NoError(t, err)

	it, err := s.Lookup(ctx, "t1", "costela")
	require.NoError(t, err)
	assert.Nil(t, it)

	// tenants never see each other's aliases
	it, err = s.Lookup(ctx, "t2", "peito")
	require.NoError(t, err)
	assert.Nil(t, it)

	it, err = s.Lookup(ctx, "t1", "")
	require.NoError(t, err)
	assert.Nil(t, it)
}

func TestStore_LookupTargetLeftCatalog(t *testing.T) {
	repo := newMemRepo()
	s := testStore(repo)
	ctx := context.Background()
	_, err := s.Save(ctx, "t1", "fraldinha", "404")
	require.NoError(t, err)

	it, err := s.Lookup(ctx, "t1", "fraldinha")
	require.NoError(t, err)
	assert.Nil(t, it)
}

func TestStore_RepoErrors(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("disk full")
	s := testStore(repo)

	_, err := s.Lookup(context.Background(), "t1", "peito")
	assert.ErrorContains(t, err, "disk full")
	_, err = s.Save(context.Background(), "t1", "peito", "1")
	assert.ErrorContains(t, err, "disk full")
}
