//go:build cgo
// +build cgo

// ONNX-based CLIP embedder (requires CGO and the onnxruntime library).
package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/osusume-io/osusume/pkg/utils"
)

// ONNXEmbedder runs exported CLIP text and vision encoders locally. Tensors
// are pre-allocated for batch size 1 and reused under a mutex; batches loop
// item by item, which keeps memory flat on CPU-only hosts.
type ONNXEmbedder struct {
	textSession  *ort.AdvancedSession
	imageSession *ort.AdvancedSession
	dimensions   int
	tokenizer    Tokenizer
	logger       *zap.Logger

	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	pixelValuesTensor   *ort.Tensor[float32]
	textOutputTensor    *ort.Tensor[float32]
	imageOutputTensor   *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXEmbedder creates a local CLIP embedder from the exported text and
// vision model files. logger may be nil.
func NewONNXEmbedder(textModelPath, imageModelPath string, dimensions int, logger *zap.Logger) (*ONNXEmbedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	e := &ONNXEmbedder{dimensions: dimensions, tokenizer: &CLIPTokenizer{}, logger: logger}

	var err error
	e.inputIDsTensor, err = ort.NewTensor(ort.NewShape(1, clipTokenLength), make([]int64, clipTokenLength))
	if err == nil {
		e.attentionMaskTensor, err = ort.NewTensor(ort.NewShape(1, clipTokenLength), make([]int64, clipTokenLength))
	}
	if err == nil {
		e.pixelValuesTensor, err = ort.NewTensor(
			ort.NewShape(1, 3, clipImageSize, clipImageSize),
			make([]float32, 3*clipImageSize*clipImageSize))
	}
	if err == nil {
		e.textOutputTensor, err = ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	}
	if err == nil {
		e.imageOutputTensor, err = ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	}
	if err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("failed to create tensors: %w", err)
	}

	e.textSession, err = ort.NewAdvancedSession(
		textModelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.ArbitraryTensor{e.inputIDsTensor, e.attentionMaskTensor},
		[]ort.ArbitraryTensor{e.textOutputTensor},
		nil,
	)
	if err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("failed to create text session: %w", err)
	}
	e.imageSession, err = ort.NewAdvancedSession(
		imageModelPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{e.pixelValuesTensor},
		[]ort.ArbitraryTensor{e.imageOutputTensor},
		nil,
	)
	if err != nil {
		_ = e.textSession.Destroy()
		e.destroyTensors()
		return nil, fmt.Errorf("failed to create image session: %w", err)
	}
	return e, nil
}

// EncodeTexts embeds each text with the CLIP text encoder.
func (e *ONNXEmbedder) EncodeTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		inputIDs, attentionMask := e.tokenizer.Tokenize(text, clipTokenLength)
		copy(e.inputIDsTensor.GetData(), inputIDs)
		copy(e.attentionMaskTensor.GetData(), attentionMask)
		if err := e.textSession.Run(); err != nil {
			return nil, fmt.Errorf("text inference failed: %w", err)
		}
		out[i] = e.takeOutput(e.textOutputTensor)
	}
	return out, nil
}

// EncodeImages embeds each image with the CLIP vision encoder. An image that
// cannot be decoded gets a placeholder vector instead of aborting the batch.
func (e *ONNXEmbedder) EncodeImages(ctx context.Context, paths []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]float32, len(paths))
	for i, path := range paths {
		pixels, err := PreprocessImage(path, clipImageSize)
		if err != nil {
			e.logger.Warn("cannot preprocess image", zap.String("path", path), zap.Error(err))
			out[i] = Placeholder(e.dimensions)
			continue
		}
		copy(e.pixelValuesTensor.GetData(), pixels)
		if err := e.imageSession.Run(); err != nil {
			return nil, fmt.Errorf("image inference failed: %w", err)
		}
		out[i] = e.takeOutput(e.imageOutputTensor)
	}
	return out, nil
}

func (e *ONNXEmbedder) takeOutput(t *ort.Tensor[float32]) []float32 {
	vec := make([]float32, e.dimensions)
	copy(vec, t.GetData()[:e.dimensions])
	utils.NormalizeL2(vec)
	return vec
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }

// Close destroys the sessions and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.textSession != nil {
		err = e.textSession.Destroy()
		e.textSession = nil
	}
	if e.imageSession != nil {
		if destroyErr := e.imageSession.Destroy(); err == nil {
			err = destroyErr
		}
		e.imageSession = nil
	}
	e.destroyTensors()
	return err
}

func (e *ONNXEmbedder) destroyTensors() {
	for _, t := range []*ort.Tensor[int64]{e.inputIDsTensor, e.attentionMaskTensor} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	for _, t := range []*ort.Tensor[float32]{e.pixelValuesTensor, e.textOutputTensor, e.imageOutputTensor} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	e.inputIDsTensor, e.attentionMaskTensor = nil, nil
	e.pixelValuesTensor, e.textOutputTensor, e.imageOutputTensor = nil, nil, nil
}
