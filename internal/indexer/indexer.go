// Package indexer builds and loads the global and per-partition similarity
// indexes from catalog data. Builds are exclusive and publish atomically:
// queries keep hitting the previous generation until the new one is complete.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/osusume-io/osusume/internal/catalog"
	"github.com/osusume-io/osusume/internal/embedding"
	"github.com/osusume-io/osusume/internal/keyword"
	"github.com/osusume-io/osusume/internal/partition"
	"github.com/osusume-io/osusume/internal/vector"
)

const (
	globalBlobName = "global.idx"
	encodeBatch    = 32
)

// ErrEmptyCatalog is returned by Build when there is nothing to index.
var ErrEmptyCatalog = errors.New("indexer: catalog is empty")

// Builder owns the index build/load lifecycle.
type Builder struct {
	catalog    *catalog.Store
	embedder   embedding.Embedder
	classifier *partition.Classifier
	registry   *partition.Registry
	global     *vector.Handle
	captions   *keyword.CaptionIndex // optional
	indexDir   string
	logger     *zap.Logger

	buildMu sync.Mutex // one build/reload at a time
}

// NewBuilder creates a builder. captions and logger may be nil.
func NewBuilder(
	cat *catalog.Store,
	embedder embedding.Embedder,
	classifier *partition.Classifier,
	registry *partition.Registry,
	global *vector.Handle,
	captions *keyword.CaptionIndex,
	indexDir string,
	logger *zap.Logger,
) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		catalog:    cat,
		embedder:   embedder,
		classifier: classifier,
		registry:   registry,
		global:     global,
		captions:   captions,
		indexDir:   indexDir,
		logger:     logger,
	}
}

// Build embeds the whole catalog, builds the global and partition indexes,
// persists the blobs, and publishes the new generation. Returns
// ErrEmptyCatalog when there is nothing to index; any other failure leaves
// the previous generation serving.
func (b *Builder) Build(ctx context.Context) error {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	items, err := b.catalog.All(ctx)
	if err != nil {
		return fmt.Errorf("list catalog: %w", err)
	}
	if len(items) == 0 {
		return ErrEmptyCatalog
	}
	b.logger.Info("building indexes", zap.Int("items", len(items)))

	paths := make([]string, len(items))
	for i, item := range items {
		paths[i] = item.Path
	}
	vectors, err := b.encodeInBatches(ctx, paths)
	if err != nil {
		return fmt.Errorf("embed catalog: %w", err)
	}

	globalItems := make([]vector.Item, len(items))
	entries := make([]partition.Entry, len(items))
	for i, item := range items {
		globalItems[i] = vector.Item{ID: item.Path, Vector: vectors[i]}
		entries[i] = partition.Entry{ID: item.Path, Vector: vectors[i], Label: item.Caption}
	}

	globalIndex, err := vector.Build(globalItems)
	if err != nil {
		return fmt.Errorf("build global index: %w", err)
	}
	if err := globalIndex.Save(filepath.Join(b.indexDir, globalBlobName)); err != nil {
		return fmt.Errorf("save global index: %w", err)
	}

	built, err := b.registry.BuildAll(entries, b.classifier)
	if err != nil {
		return fmt.Errorf("build partitions: %w", err)
	}
	if err := b.registry.SaveAll(b.indexDir); err != nil {
		return fmt.Errorf("save partitions: %w", err)
	}

	if b.captions != nil {
		captions := make(map[string]string, len(items))
		for _, item := range items {
			captions[item.Path] = item.Caption
		}
		if err := b.captions.IndexBatch(captions); err != nil {
			return fmt.Errorf("index captions: %w", err)
		}
	}

	b.global.Publish(globalIndex)
	b.logger.Info("indexes built",
		zap.Int("global_items", globalIndex.Size()), zap.Int("partitions", built))
	return nil
}

// LoadOrBuild loads persisted blobs when they exist and are valid, and falls
// back to a full build otherwise. An empty catalog with no blobs degrades to
// no indexes (recommendation and search return empty results), not an error.
func (b *Builder) LoadOrBuild(ctx context.Context) error {
	globalIndex, err := vector.LoadFile(filepath.Join(b.indexDir, globalBlobName))
	if err == nil {
		b.global.Publish(globalIndex)
		loaded := b.registry.LoadAll(b.indexDir)
		b.logger.Info("loaded indexes",
			zap.Int("global_items", globalIndex.Size()), zap.Int("partitions", loaded))
		if loaded > 0 {
			return nil
		}
		// Global blob present but no partition blobs: fall through to rebuild
		// so partition-based recommendation comes back.
	} else {
		b.logger.Warn("global index unavailable, rebuilding", zap.Error(err))
	}

	if err := b.Build(ctx); err != nil {
		if errors.Is(err, ErrEmptyCatalog) {
			b.logger.Warn("catalog empty, serving without indexes")
			return nil
		}
		return err
	}
	return nil
}

func (b *Builder) encodeInBatches(ctx context.Context, paths []string) ([][]float32, error) {
	out := make([][]float32, 0, len(paths))
	for start := 0; start < len(paths); start += encodeBatch {
		end := start + encodeBatch
		if end > len(paths) {
			end = len(paths)
		}
		vecs, err := b.embedder.EncodeImages(ctx, paths[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}
