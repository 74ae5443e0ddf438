package recommend

import (
	"context"
	"strings"

	"github.com/osusume-io/osusume/internal/behavior"
	"github.com/osusume-io/osusume/internal/embedding"
	"github.com/osusume-io/osusume/pkg/utils"
)

// ImageSearchMarker prefixes search-history values that were derived from an
// image search rather than typed by the user. It is stripped before encoding.
const ImageSearchMarker = "[image] "

// InterestBuilder fuses a user's recent mixed behavior (clicked images and
// search texts) into one unit-norm query vector. Image and text embeddings are
// assumed to live in the same similarity space, so they average directly.
type InterestBuilder struct {
	behaviors *behavior.Store
	embedder  embedding.Embedder
	recentN   int
}

// NewInterestBuilder creates a builder reading the user's recentN most recent
// events.
func NewInterestBuilder(behaviors *behavior.Store, embedder embedding.Embedder, recentN int) *InterestBuilder {
	if recentN <= 0 {
		recentN = 3
	}
	return &InterestBuilder{behaviors: behaviors, embedder: embedder, recentN: recentN}
}

// Build returns the user's interest vector, or nil when there are zero
// qualifying events. A nil vector means "insufficient signal" and callers fall
// back to non-personalized results; it is not an error.
func (b *InterestBuilder) Build(ctx context.Context, userID int64) ([]float32, error) {
	events, err := b.behaviors.RecentMixed(ctx, userID, b.recentN)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	var clicks, searches []string
	for _, e := range events {
		switch e.Type {
		case behavior.EventClick:
			clicks = append(clicks, e.Value)
		case behavior.EventSearch:
			searches = append(searches, strings.TrimSpace(strings.TrimPrefix(e.Value, ImageSearchMarker)))
		}
	}

	var stacked [][]float32
	if len(clicks) > 0 {
		vecs, err := b.embedder.EncodeImages(ctx, clicks)
		if err != nil {
			return nil, err
		}
		stacked = append(stacked, vecs...)
	}
	if len(searches) > 0 {
		vecs, err := b.embedder.EncodeTexts(ctx, searches)
		if err != nil {
			return nil, err
		}
		stacked = append(stacked, vecs...)
	}
	if len(stacked) == 0 {
		return nil, nil
	}

	mean := utils.Mean(stacked)
	utils.NormalizeL2(mean)
	if isZero(mean) {
		// Every contributing embedding was a failure placeholder.
		return nil, nil
	}
	return mean, nil
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
