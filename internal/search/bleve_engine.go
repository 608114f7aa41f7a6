package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/likesync/internal/likes"
	"github.com/pders01/likesync/internal/storage"
)

// BleveEngine keeps a persistent full-text index of the favorites.
type BleveEngine struct {
	ledger storage.Ledger
	idx    bleve.Index
}

// NewBleveEngine creates or opens a Bleve index at indexPath and indexes current data.
func NewBleveEngine(ctx context.Context, ledger storage.Ledger, indexPath string) (*BleveEngine, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	// Try open first
	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating index: %w", err)
		}
	}

	be := &BleveEngine{ledger: ledger, idx: idx}
	if err := be.reindexAll(ctx); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return be, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = true
	text.IncludeTermVectors = true

	author := bleve.NewTextFieldMapping()
	author.Analyzer = standard.Name
	author.Store = true

	files := bleve.NewTextFieldMapping()
	files.Analyzer = standard.Name
	files.Store = true

	created := bleve.NewTextFieldMapping()
	created.Analyzer = keyword.Name
	created.Store = true
	created.Index = false

	dm.AddFieldMappingsAt("text", text)
	dm.AddFieldMappingsAt("screen_name", author)
	dm.AddFieldMappingsAt("filenames", files)
	dm.AddFieldMappingsAt("created_at", created)

	im.DefaultMapping = dm
	return im
}

func favoriteDoc(fav *likes.Favorite) map[string]any {
	return map[string]any{
		"id":          fav.ID,
		"text":        fav.Text,
		"screen_name": fav.ScreenName,
		"filenames":   strings.Join(fav.Filenames(), " "),
		"created_at":  fav.CreatedAt,
	}
}

func (b *BleveEngine) reindexAll(ctx context.Context) error {
	favorites, err := LoadFavorites(ctx, b.ledger)
	if err != nil {
		return fmt.Errorf("loading favorites: %w", err)
	}
	return b.index(favorites)
}

func (b *BleveEngine) index(favorites []*likes.Favorite) error {
	batch := b.idx.NewBatch()
	for _, fav := range favorites {
		if err := batch.Index(docIDForFavorite(fav.ID), favoriteDoc(fav)); err != nil {
			return fmt.Errorf("indexing %s: %w", fav.ID, err)
		}
	}
	return b.idx.Batch(batch)
}

// OnSynced indexes the favorites committed by a sync run.
func (b *BleveEngine) OnSynced(_ context.Context, favorites []*likes.Favorite) error {
	return b.index(favorites)
}

func (b *BleveEngine) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	// OR of per-term matches across the fields, boosted by importance
	tokens := tokenize(query)
	fields := []struct {
		name  string
		boost float64
	}{
		{"text", 3.0},
		{"screen_name", 2.0},
		{"filenames", 0.5},
	}
	var qs []bleveQuery.Query
	for _, tok := range tokens {
		for _, f := range fields {
			qm := bleve.NewMatchQuery(tok)
			qm.SetField(f.name)
			qm.SetBoost(f.boost)
			qs = append(qs, qm)

			qp := bleve.NewPrefixQuery(tok)
			qp.SetField(f.name)
			qp.SetBoost(f.boost * 0.8)
			qs = append(qs, qp)
		}
	}
	if len(qs) == 0 {
		return []*Result{}, nil
	}

	srch := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	srch.Fields = []string{"text", "screen_name", "created_at"}
	res, err := b.idx.Search(srch)
	if err != nil {
		return nil, err
	}

	out := make([]*Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		fav := &likes.Favorite{ID: strings.TrimPrefix(h.ID, "like:")}
		if t, ok := h.Fields["text"].(string); ok {
			fav.Text = t
		}
		if s, ok := h.Fields["screen_name"].(string); ok {
			fav.ScreenName = s
		}
		if c, ok := h.Fields["created_at"].(string); ok {
			fav.CreatedAt = c
		}
		out = append(out, &Result{Favorite: fav, Score: h.Score})
	}
	return out, nil
}

// DocCount reports total documents in the index.
func (b *BleveEngine) DocCount() (int, error) {
	n, err := b.idx.DocCount()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (b *BleveEngine) Close() error {
	return b.idx.Close()
}

func docIDForFavorite(id string) string { return "like:" + id }
