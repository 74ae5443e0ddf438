package partition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/osusume-io/osusume/internal/vector"
)

const (
	blobPrefix = "partition_"
	blobSuffix = ".idx"
)

// Entry is a labeled catalog vector handed to BuildAll.
type Entry struct {
	ID     string
	Vector []float32
	Label  string
}

// Registry maps partition keys to similarity indexes. The active generation is
// an immutable map published by atomic pointer swap: reads take no locks, and
// a rebuild never exposes a partially built generation.
type Registry struct {
	logger *zap.Logger
	gen    atomic.Pointer[map[string]*vector.Index]
}

// NewRegistry creates an empty registry. logger may be nil.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{logger: logger}
	empty := map[string]*vector.Index{}
	r.gen.Store(&empty)
	return r
}

// BuildAll classifies entries with c, builds one index per non-empty group,
// and publishes the result. Empty groups are skipped, so callers must not
// assume every declared key exists. A build failure leaves the previous
// generation in place.
func (r *Registry) BuildAll(entries []Entry, c *Classifier) (int, error) {
	groups := make(map[string][]vector.Item)
	for _, e := range entries {
		key := c.Classify(e.Label)
		groups[key] = append(groups[key], vector.Item{ID: e.ID, Vector: e.Vector})
	}
	next := make(map[string]*vector.Index, len(groups))
	for key, items := range groups {
		idx, err := vector.Build(items)
		if err != nil {
			return 0, fmt.Errorf("build partition %q: %w", key, err)
		}
		next[key] = idx
		r.logger.Info("built partition index",
			zap.String("partition", key), zap.Int("items", idx.Size()))
	}
	r.gen.Store(&next)
	return len(next), nil
}

// SaveAll writes one blob per partition into dir.
func (r *Registry) SaveAll(dir string) error {
	for key, idx := range *r.gen.Load() {
		path := filepath.Join(dir, blobPrefix+key+blobSuffix)
		if err := idx.Save(path); err != nil {
			return fmt.Errorf("save partition %q: %w", key, err)
		}
	}
	return nil
}

// LoadAll scans dir for partition blobs, decodes each, and publishes the
// loaded set. Corrupt or unrecognized files are skipped with a log line, and
// a missing directory degrades to an empty registry; LoadAll never fails.
// Returns the number of partitions loaded.
func (r *Registry) LoadAll(dir string) int {
	files, err := os.ReadDir(dir)
	if err != nil {
		r.logger.Warn("partition index dir unavailable", zap.String("dir", dir), zap.Error(err))
		return 0
	}
	next := make(map[string]*vector.Index)
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasPrefix(name, blobPrefix) || !strings.HasSuffix(name, blobSuffix) {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, blobPrefix), blobSuffix)
		if key == "" {
			continue
		}
		idx, err := vector.LoadFile(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, vector.ErrCorruptIndex) {
				r.logger.Warn("skipping corrupt partition blob", zap.String("file", name), zap.Error(err))
			} else {
				r.logger.Warn("skipping unreadable partition blob", zap.String("file", name), zap.Error(err))
			}
			continue
		}
		next[key] = idx
		r.logger.Info("loaded partition index",
			zap.String("partition", key), zap.Int("items", idx.Size()))
	}
	r.gen.Store(&next)
	return len(next)
}

// Search queries one partition. An absent key is a normal empty result, never
// an error: missing categories are expected in sparse catalogs.
func (r *Registry) Search(key string, query []float32, k int) []vector.Result {
	idx, ok := (*r.gen.Load())[key]
	if !ok {
		return nil
	}
	return idx.Search(query, k)
}

// Keys returns the keys of the active generation, in no particular order.
func (r *Registry) Keys() []string {
	gen := *r.gen.Load()
	keys := make([]string, 0, len(gen))
	for key := range gen {
		keys = append(keys, key)
	}
	return keys
}

// Sizes returns item counts per active partition, for status reporting.
func (r *Registry) Sizes() map[string]int {
	gen := *r.gen.Load()
	sizes := make(map[string]int, len(gen))
	for key, idx := range gen {
		sizes[key] = idx.Size()
	}
	return sizes
}
