// Package search maintains a full-text index over saved notes. Indexing is
// best-effort: a failed index write is logged and never fails the save.
package search

import (
	"fmt"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"

	"github.com/studygen/studygen/internal/store"
)

// Hit is one search result.
type Hit struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Index is an in-memory bleve index of note text, scoped per owner.
type Index struct {
	idx bleve.Index
}

// NewIndex builds the in-memory index. The owner field uses the keyword
// analyzer so opaque user ids match exactly instead of being tokenized.
func NewIndex() (*Index, error) {
	mapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()
	owner := bleve.NewTextFieldMapping()
	owner.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("owner_id", owner)
	mapping.DefaultMapping = doc

	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("create note index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// IndexNote adds or replaces a note in the index.
func (i *Index) IndexNote(n store.Note) error {
	return i.idx.Index(n.ID, map[string]interface{}{
		"owner_id": n.UserID,
		"title":    n.Title,
		"subject":  n.Subject,
		"topic":    n.Topic,
		"content":  n.Content,
	})
}

// RemoveNote drops a note from the index.
func (i *Index) RemoveNote(id string) error {
	return i.idx.Delete(id)
}

// Search matches q against the owner's notes and returns up to limit hits.
func (i *Index) Search(ownerID, q string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	match := bleve.NewMatchQuery(q)
	ownerQ := bleve.NewTermQuery(ownerID)
	ownerQ.SetField("owner_id")
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(match, ownerQ))
	req.Size = limit
	req.Fields = []string{"title"}

	res, err := i.idx.Search(req)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if t, ok := h.Fields["title"].(string); ok {
			hit.Title = t
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
