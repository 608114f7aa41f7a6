package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pders01/likesync/internal/likes"
	"github.com/pders01/likesync/internal/storage"
)

// Searcher defines the search API used by the CLI.
type Searcher interface {
	Search(query string, limit int) ([]*Result, error)
}

// SyncListener is implemented by engines that maintain an external index
// and want to be told about newly synced favorites.
type SyncListener interface {
	OnSynced(ctx context.Context, favorites []*likes.Favorite) error
}

// DebugStatser provides lightweight stats for visibility/debugging.
// Implemented by engines that can report index doc counts, etc.
type DebugStatser interface {
	DocCount() (int, error)
}

// Result is one matching favorite.
type Result struct {
	Favorite *likes.Favorite
	Score    float64
	Matches  []Match
}

// Match represents where text was found
type Match struct {
	Field  string // "text", "screen_name", "filename"
	Text   string // matched text snippet
	Weight float64
}

// LoadFavorites decodes the favorites stored in the ledger, in commit order.
func LoadFavorites(ctx context.Context, ledger storage.Ledger) ([]*likes.Favorite, error) {
	entries, err := ledger.Entries(ctx)
	if err != nil {
		return nil, err
	}

	favorites := make([]*likes.Favorite, 0, len(entries))
	for _, e := range entries {
		raw, ok := e.PostData.(json.RawMessage)
		if !ok {
			continue
		}
		var fav likes.Favorite
		if err := json.Unmarshal(raw, &fav); err != nil {
			return nil, fmt.Errorf("decoding ledger entry %s: %w", e.Identifier, err)
		}
		if fav.ID == "" {
			fav.ID = e.Identifier
		}
		favorites = append(favorites, &fav)
	}
	return favorites, nil
}
