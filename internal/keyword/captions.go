// Package keyword provides a Bleve index over catalog captions, fused with
// semantic hits during text search.
package keyword

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// Result is a single caption keyword hit.
type Result struct {
	ID    string
	Score float64
}

// captionDoc is the shape Bleve indexes per catalog item.
type captionDoc struct {
	Caption string `json:"caption"`
}

// CaptionIndex wraps a Bleve index keyed by catalog item path.
type CaptionIndex struct {
	index bleve.Index
}

// NewCaptionIndex creates or opens a Bleve caption index at path. The
// standard analyzer (lowercase + tokenize, no stemming) keeps catalog words
// like "leggings" matching exactly.
func NewCaptionIndex(path string) (*CaptionIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open caption index: %w", openErr)
		}
		return &CaptionIndex{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	captionMapping := bleve.NewTextFieldMapping()
	captionMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("caption", captionMapping)
	im.AddDocumentMapping("item", docMapping)
	im.DefaultType = "item"
	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create caption index: %w", err)
	}
	return &CaptionIndex{index: index}, nil
}

// Index indexes one caption under the item path.
func (c *CaptionIndex) Index(path, caption string) error {
	return c.index.Index(path, captionDoc{Caption: caption})
}

// IndexBatch indexes captions keyed by item path in one Bleve batch.
func (c *CaptionIndex) IndexBatch(captions map[string]string) error {
	batch := c.index.NewBatch()
	for path, caption := range captions {
		if err := batch.Index(path, captionDoc{Caption: caption}); err != nil {
			return err
		}
	}
	return c.index.Batch(batch)
}

// Search runs a match query over captions and returns up to limit hits.
func (c *CaptionIndex) Search(query string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	results, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("caption search failed: %w", err)
	}
	out := make([]Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Count returns the number of indexed captions.
func (c *CaptionIndex) Count() (uint64, error) {
	return c.index.DocCount()
}

// Close closes the underlying index.
func (c *CaptionIndex) Close() error {
	return c.index.Close()
}
