package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/osusume-io/osusume/internal/behavior"
	"github.com/osusume-io/osusume/internal/catalog"
	"github.com/osusume-io/osusume/internal/embedding"
	"github.com/osusume-io/osusume/internal/keyword"
	"github.com/osusume-io/osusume/internal/models"
	"github.com/osusume-io/osusume/internal/recommend"
	"github.com/osusume-io/osusume/internal/session"
	"github.com/osusume-io/osusume/internal/vector"
)

// Service serves global (non-partitioned) catalog search. userID <= 0 means
// an anonymous caller: no behavior is recorded and no session is cached.
type Service struct {
	global         *vector.Handle
	captions       *keyword.CaptionIndex // optional; nil disables keyword fusion
	embedder       embedding.Embedder
	catalog        *catalog.Store
	behaviors      *behavior.Store
	sessions       *session.Cache
	semanticWeight float64
	keywordWeight  float64
	logger         *zap.Logger
}

// NewService creates a search service. captions and logger may be nil.
func NewService(
	global *vector.Handle,
	captions *keyword.CaptionIndex,
	embedder embedding.Embedder,
	cat *catalog.Store,
	behaviors *behavior.Store,
	sessions *session.Cache,
	semanticWeight, keywordWeight float64,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if semanticWeight <= 0 && keywordWeight <= 0 {
		semanticWeight = 1
	}
	return &Service{
		global:         global,
		captions:       captions,
		embedder:       embedder,
		catalog:        cat,
		behaviors:      behaviors,
		sessions:       sessions,
		semanticWeight: semanticWeight,
		keywordWeight:  keywordWeight,
		logger:         logger,
	}
}

// TextSearch embeds the query text and returns the top k catalog items.
// Caption keyword hits are fused in when a caption index is configured.
func (s *Service) TextSearch(ctx context.Context, userID int64, query string, k int) (*models.SearchResponse, error) {
	started := time.Now()
	query = strings.TrimSpace(query)
	if query == "" || k < 1 {
		return &models.SearchResponse{Query: query}, nil
	}
	if userID > 0 {
		if err := s.behaviors.Add(ctx, userID, behavior.EventSearch, query); err != nil {
			return nil, fmt.Errorf("record search: %w", err)
		}
	}

	vecs, err := s.embedder.EncodeTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	semantic := s.global.Search(vecs[0], k)

	hits := semantic
	if s.captions != nil && s.keywordWeight > 0 {
		kwHits, err := s.captions.Search(query, k)
		if err != nil {
			// Keyword fusion is an enrichment; a broken caption index must not
			// take down semantic search.
			s.logger.Warn("caption search failed", zap.Error(err))
		} else {
			hits = fuse(semantic, kwHits, s.semanticWeight, s.keywordWeight)
		}
		if len(hits) > k {
			hits = hits[:k]
		}
	}

	results, err := s.enrich(ctx, hits)
	if err != nil {
		return nil, err
	}
	s.recordSession(userID, results)
	return &models.SearchResponse{
		Results:   results,
		Query:     query,
		QueryTime: time.Since(started).Milliseconds(),
	}, nil
}

// ImageSearch embeds the image at path and returns the top k similar catalog
// items, excluding the query image itself. The best hit's caption is recorded
// as a marker-prefixed search event so image searches feed the interest
// vector the same way text searches do.
func (s *Service) ImageSearch(ctx context.Context, userID int64, path string, k int) (*models.SearchResponse, error) {
	started := time.Now()
	if path == "" || k < 1 {
		return &models.SearchResponse{}, nil
	}

	vecs, err := s.embedder.EncodeImages(ctx, []string{path})
	if err != nil {
		return nil, fmt.Errorf("embed query image: %w", err)
	}
	// One extra candidate, since the query image may be a catalog item.
	candidates := s.global.Search(vecs[0], k+1)
	hits := make([]vector.Result, 0, k)
	for _, c := range candidates {
		if c.ID == path {
			continue
		}
		hits = append(hits, c)
		if len(hits) >= k {
			break
		}
	}

	results, err := s.enrich(ctx, hits)
	if err != nil {
		return nil, err
	}
	if userID > 0 && len(results) > 0 && results[0].Caption != "" {
		derived := recommend.ImageSearchMarker + results[0].Caption
		if err := s.behaviors.Add(ctx, userID, behavior.EventSearch, derived); err != nil {
			return nil, fmt.Errorf("record image search: %w", err)
		}
	}
	s.recordSession(userID, results)
	return &models.SearchResponse{
		Results:   results,
		QueryTime: time.Since(started).Milliseconds(),
	}, nil
}

// ResolveClick resolves position i of the user's last search result list and
// records the click. Returns the clicked path, or "" when the entry is stale
// or missing; stale clicks are not an error.
func (s *Service) ResolveClick(ctx context.Context, userID int64, i int) (string, error) {
	path, ok := s.sessions.Resolve(userID, i)
	if !ok {
		return "", nil
	}
	if err := s.behaviors.Add(ctx, userID, behavior.EventClick, path); err != nil {
		return "", fmt.Errorf("record click: %w", err)
	}
	s.logger.Info("search result click",
		zap.Int64("user_id", userID), zap.Int("position", i), zap.String("path", path))
	return path, nil
}

func (s *Service) enrich(ctx context.Context, hits []vector.Result) ([]models.ScoredItem, error) {
	results := make([]models.ScoredItem, 0, len(hits))
	for _, hit := range hits {
		caption, err := s.catalog.Caption(ctx, hit.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve caption: %w", err)
		}
		results = append(results, models.ScoredItem{Path: hit.ID, Caption: caption, Score: hit.Score})
	}
	return results, nil
}

func (s *Service) recordSession(userID int64, results []models.ScoredItem) {
	if userID <= 0 {
		return
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Path
	}
	s.sessions.Record(userID, ids)
}
