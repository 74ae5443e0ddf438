//go:build !cgo
// +build !cgo

package embedding

import (
	"errors"

	"go.uber.org/zap"
)

// ONNXEmbedder stub type when built without CGO (see onnx.go for the real
// implementation).
type ONNXEmbedder struct{ Embedder }

// NewONNXEmbedder returns an error when built without CGO.
func NewONNXEmbedder(_, _ string, _ int, _ *zap.Logger) (*ONNXEmbedder, error) {
	return nil, errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}
