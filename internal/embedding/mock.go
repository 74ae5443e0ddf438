package embedding

import (
	"context"
	"math"

	"github.com/osusume-io/osusume/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. The same input always
// produces the same unit-norm vector, and image/text inputs share one space.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns a deterministic embedder of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEmbedder{dimensions: dimensions}
}

// EncodeImages returns one deterministic vector per path.
func (e *MockEmbedder) EncodeImages(ctx context.Context, paths []string) ([][]float32, error) {
	return e.encode(paths), nil
}

// EncodeTexts returns one deterministic vector per text.
func (e *MockEmbedder) EncodeTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return e.encode(texts), nil
}

func (e *MockEmbedder) encode(inputs []string) [][]float32 {
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		h := hashString(input)
		vec := make([]float32, e.dimensions)
		for j := range vec {
			vec[j] = float32(math.Sin(float64(h*(j+1)))*0.1 + 0.01)
		}
		utils.NormalizeL2(vec)
		out[i] = vec
	}
	return out
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int { return e.dimensions }

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error { return nil }

func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
