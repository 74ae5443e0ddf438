// Package embedding provides batched image and text embedding behind one
// provider interface, with remote (HTTP) and local (ONNX) implementations.
package embedding

import "context"

// Embedder maps images and texts into one shared similarity space. Both calls
// are batched and return unit-norm vectors in stable input order. A failed
// individual item yields a zero placeholder vector; a batch never aborts
// because one item is bad.
type Embedder interface {
	EncodeImages(ctx context.Context, paths []string) ([][]float32, error)
	EncodeTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Placeholder returns the zero vector used for items that failed to encode.
// It scores 0 against every query, so a failed item never ranks.
func Placeholder(dims int) []float32 {
	return make([]float32, dims)
}
