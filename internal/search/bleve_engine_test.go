package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/likesync/internal/likes"
)

func TestBleveEngineIndexesAndSearches(t *testing.T) {
	ledger := seedLedger(t, sampleFavorites...)

	idxPath := filepath.Join(t.TempDir(), "index", "index.bleve")
	eng, err := NewBleveEngine(context.Background(), ledger, idxPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	count, err := eng.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	res, err := eng.Search("fireworks", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "1", res[0].Favorite.ID)
	assert.Equal(t, "alice", res[0].Favorite.ScreenName)
	assert.Equal(t, "Sun Jul 04 18:30:00 +0000 2021", res[0].Favorite.CreatedAt)

	res, err = eng.Search("gopher", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "2", res[0].Favorite.ID)

	res, err = eng.Search("x", 10)
	require.NoError(t, err)
	assert.Empty(t, res)

	fi, err := os.Stat(idxPath)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestBleveEngineOnSynced(t *testing.T) {
	ledger := seedLedger(t)

	eng, err := NewBleveEngine(context.Background(), ledger, filepath.Join(t.TempDir(), "index.bleve"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	count, err := eng.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, eng.OnSynced(context.Background(), []*likes.Favorite{
		{ID: "7", ScreenName: "carol", Text: "late night telescope session", Media: []*likes.MediaRef{}},
	}))

	res, err := eng.Search("telescope", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "7", res[0].Favorite.ID)
}

func TestBleveEngineReopensExistingIndex(t *testing.T) {
	ledger := seedLedger(t, sampleFavorites...)
	idxPath := filepath.Join(t.TempDir(), "index.bleve")

	first, err := NewBleveEngine(context.Background(), ledger, idxPath)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewBleveEngine(context.Background(), ledger, idxPath)
	require.NoError(t, err)
	defer second.Close()

	count, err := second.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count, "reindexing replaces documents by id")
}
