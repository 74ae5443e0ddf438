// Package vector provides an exact inner-product similarity index over
// unit-norm embedding vectors. An Index is immutable once built; rebuilding
// means building a new Index and publishing it in place of the old one.
package vector

import (
	"fmt"
	"sort"
)

// Item pairs a catalog identifier with its embedding vector.
type Item struct {
	ID     string
	Vector []float32
}

// Result is a single search hit.
type Result struct {
	ID    string
	Score float64 // inner product; cosine similarity for unit-norm vectors
}

// Index is a flat exact inner-product index. The row order of vectors matches
// the identifier order, and that ordinal position is the lookup key.
type Index struct {
	dims    int
	ids     []string
	vectors [][]float32
}

// Build constructs an index from items. The dimension is inferred from the
// first vector. Returns ErrEmptyInput for zero items and ErrDimensionMismatch
// when any vector disagrees on width.
func Build(items []Item) (*Index, error) {
	if len(items) == 0 {
		return nil, ErrEmptyInput
	}
	dims := len(items[0].Vector)
	if dims == 0 {
		return nil, fmt.Errorf("%w: first vector is empty", ErrDimensionMismatch)
	}
	ids := make([]string, len(items))
	vectors := make([][]float32, len(items))
	for i, item := range items {
		if len(item.Vector) != dims {
			return nil, fmt.Errorf("%w: item %q has %d dimensions, expected %d",
				ErrDimensionMismatch, item.ID, len(item.Vector), dims)
		}
		vec := make([]float32, dims)
		copy(vec, item.Vector)
		ids[i] = item.ID
		vectors[i] = vec
	}
	return &Index{dims: dims, ids: ids, vectors: vectors}, nil
}

// Search returns up to min(k, Size) results sorted by descending inner
// product. Ties keep insertion order. Returns nil for k <= 0, an empty index,
// or a query of the wrong width; search never errors.
func (x *Index) Search(query []float32, k int) []Result {
	if x == nil || k <= 0 || len(x.ids) == 0 || len(query) != x.dims {
		return nil
	}
	scores := make([]Result, len(x.ids))
	for i, vec := range x.vectors {
		scores[i] = Result{ID: x.ids[i], Score: Dot(query, vec)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k]
}

// Size returns the number of indexed items.
func (x *Index) Size() int {
	if x == nil {
		return 0
	}
	return len(x.ids)
}

// Dimensions returns the vector width.
func (x *Index) Dimensions() int {
	if x == nil {
		return 0
	}
	return x.dims
}

// IDs returns a copy of the identifier list in row order.
func (x *Index) IDs() []string {
	if x == nil {
		return nil
	}
	out := make([]string, len(x.ids))
	copy(out, x.ids)
	return out
}

// Dot returns the inner product of a and b. The caller guarantees equal width.
func Dot(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
