package personadb

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfplay/internal/persona"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "personas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorePutGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	p := persona.Persona{
		ID:          "gardener",
		Name:        "Rosa",
		Description: "A retired botanist.",
		Style:       "warm",
		Interests:   []string{"orchids"},
		Traits:      []string{"patient"},
	}
	require.NoError(t, store.Put(ctx, p))

	got, err := store.Get(ctx, "gardener")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStorePutUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, persona.Persona{ID: "a", Name: "A", Description: "first"}))
	require.NoError(t, store.Put(ctx, persona.Persona{ID: "a", Name: "A", Description: "second"}))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Description)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStoreGetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStorePutRejectsInvalid(t *testing.T) {
	store := openTestStore(t)

	err := store.Put(context.Background(), persona.Persona{ID: "x"})
	assert.Error(t, err)
}

func TestStoreImportJSONL(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	input := strings.Join([]string{
		`{"id":"a","name":"Ada","description":"An archivist."}`,
		``,
		`{"id":"b","name":"Bo","description":"A baker.","interests":["rye bread"]}`,
	}, "\n")

	imported, err := store.ImportJSONL(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStoreImportJSONLStopsOnBadLine(t *testing.T) {
	store := openTestStore(t)

	input := `{"id":"a","name":"Ada","description":"An archivist."}` + "\n" + `{not json}`
	imported, err := store.ImportJSONL(context.Background(), strings.NewReader(input))
	assert.Error(t, err)
	assert.Equal(t, 1, imported)
}

func TestStoreSampleRandom(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Put(ctx, persona.Persona{ID: id, Name: strings.ToUpper(id), Description: "d"}))
	}

	sampled, err := store.SampleRandom(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, sampled, 2)
	assert.NotEqual(t, sampled[0].ID, sampled[1].ID)

	// Asking for more than exists returns the whole pool.
	all, err := store.SampleRandom(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStoreSampleSeededIsDeterministic(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, store.Put(ctx, persona.Persona{ID: id, Name: strings.ToUpper(id), Description: "d"}))
	}

	first, err := store.SampleSeeded(ctx, 3, 42)
	require.NoError(t, err)
	second, err := store.SampleSeeded(ctx, 3, 42)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := store.SampleSeeded(ctx, 3, 7)
	require.NoError(t, err)
	assert.Len(t, other, 3)
}
