package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/osusume-io/osusume/pkg/utils"
)

const defaultRequestTimeout = 120 * time.Second

// RemoteEmbedder talks to an external embedding service over HTTP. The
// service exposes two batch endpoints taking {"input": [...]} and returning
// {"data": [{"embedding": [...]}, ...]} in input order. Requests are
// long-running by design; callers bound batch sizes rather than cancel.
type RemoteEmbedder struct {
	client   *http.Client
	textURL  string
	imageURL string
	dims     int
	logger   *zap.Logger
}

// NewRemoteEmbedder creates a remote embedder. logger may be nil.
func NewRemoteEmbedder(textURL, imageURL string, dims int, logger *zap.Logger) *RemoteEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteEmbedder{
		client:   &http.Client{Timeout: defaultRequestTimeout},
		textURL:  textURL,
		imageURL: imageURL,
		dims:     dims,
		logger:   logger,
	}
}

// EncodeTexts embeds texts in one batch call.
func (e *RemoteEmbedder) EncodeTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.post(ctx, e.textURL, texts)
}

// EncodeImages reads each image file, base64-encodes it, and embeds the batch
// in one call. Unreadable files get a placeholder vector instead of aborting.
func (e *RemoteEmbedder) EncodeImages(ctx context.Context, paths []string) ([][]float32, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	inputs := make([]string, 0, len(paths))
	readable := make([]int, 0, len(paths)) // positions in paths that made it into inputs
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			e.logger.Warn("cannot read image for embedding", zap.String("path", path), zap.Error(err))
			continue
		}
		inputs = append(inputs, base64.StdEncoding.EncodeToString(data))
		readable = append(readable, i)
	}
	out := make([][]float32, len(paths))
	for i := range out {
		out[i] = Placeholder(e.dims)
	}
	if len(inputs) == 0 {
		return out, nil
	}
	vecs, err := e.post(ctx, e.imageURL, inputs)
	if err != nil {
		return nil, err
	}
	for i, pos := range readable {
		if i < len(vecs) {
			out[pos] = vecs[i]
		}
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *RemoteEmbedder) Dimensions() int { return e.dims }

// Close is a no-op for RemoteEmbedder.
func (e *RemoteEmbedder) Close() error { return nil }

func (e *RemoteEmbedder) post(ctx context.Context, url string, input []string) ([][]float32, error) {
	body, err := json.Marshal(struct {
		Input []string `json:"input"`
	}{Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, raw)
	}
	var parsed struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	out := make([][]float32, len(input))
	for i := range out {
		if i < len(parsed.Data) && len(parsed.Data[i].Embedding) == e.dims {
			vec := make([]float32, e.dims)
			for j, v := range parsed.Data[i].Embedding {
				vec[j] = float32(v)
			}
			utils.NormalizeL2(vec)
			out[i] = vec
		} else {
			e.logger.Warn("embedding service returned bad item", zap.Int("position", i))
			out[i] = Placeholder(e.dims)
		}
	}
	return out, nil
}
